package pulseuart

import (
	"fmt"
	"sort"
	"sync"
)

// Ports maps port numbers to open UARTs. It owns each UART's decoder state
// for the port's lifetime; callers get the UART by number instead of
// indexing a fixed table.
type Ports struct {
	max int

	mu    sync.RWMutex
	ports map[int]*UART
}

// NewPorts returns an empty table. max bounds valid port numbers to
// [0, max); zero means any non-negative number.
func NewPorts(max int) *Ports {
	return &Ports{max: max, ports: make(map[int]*UART)}
}

// Open creates the UART for port id.
func (t *Ports) Open(id int, cfg Config, tx PulseSender, rx PulseReceiver, opts ...Option) (*UART, error) {
	if id < 0 || (t.max > 0 && id >= t.max) {
		return nil, fmt.Errorf("%w: %d", ErrPortRange, id)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ports[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrPortInUse, id)
	}
	u, err := New(cfg, tx, rx, opts...)
	if err != nil {
		return nil, fmt.Errorf("port %d: %w", id, err)
	}
	t.ports[id] = u
	return u, nil
}

// Get returns the UART for port id.
func (t *Ports) Get(id int) (*UART, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.ports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPortNotOpen, id)
	}
	return u, nil
}

// Close closes the UART for port id and frees the number.
func (t *Ports) Close(id int) error {
	t.mu.Lock()
	u, ok := t.ports[id]
	delete(t.ports, id)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrPortNotOpen, id)
	}
	return u.Close()
}

// IDs returns the open port numbers in ascending order.
func (t *Ports) IDs() []int {
	t.mu.RLock()
	ids := make([]int, 0, len(t.ports))
	for id := range t.ports {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Ints(ids)
	return ids
}
