package pulseuart

import (
	"context"
	"sync"
)

// Line is an in-memory pulse channel: whatever is sent comes back out of
// ReceivePulses at line level. It stands in for a wired TX->RX loop on the
// host and in tests.
type Line struct {
	maxBatch int
	jitter   func(uint32) uint32
	noIdle   bool

	batches   chan []Pulse
	closeOnce sync.Once
	closed    chan struct{}

	// sends waiting for the feeder, in call order
	mu      sync.Mutex
	pending []lineSend
	feeding bool
}

type lineSend struct {
	line []Pulse
	done chan error // nil for a non-waiting send
}

// LineOption configures a Line.
type LineOption func(*Line)

// WithMaxBatch splits each transmission into capture batches of at most n
// pulses, as a capture FIFO of that depth would.
func WithMaxBatch(n int) LineOption {
	return func(l *Line) { l.maxBatch = n }
}

// WithJitter rewrites every pulse duration on its way through the line.
func WithJitter(f func(ticks uint32) uint32) LineOption {
	return func(l *Line) { l.jitter = f }
}

// WithQueueDepth sets how many batches may wait for a receiver.
func WithQueueDepth(n int) LineOption {
	return func(l *Line) {
		if n > 0 {
			l.batches = make(chan []Pulse, n)
		}
	}
}

// WithoutIdleMarker stops the line from ending each transmission with the
// zero-length idle pulse a capture timeout produces.
func WithoutIdleMarker() LineOption {
	return func(l *Line) { l.noIdle = true }
}

// NewLine returns an open line.
func NewLine(opts ...LineOption) *Line {
	l := &Line{
		batches: make(chan []Pulse, 64),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SendPulses inverts the encoder levels back to line levels, as the
// transmit hardware does, and queues the result for the receiver. With
// wait it returns once every batch is queued. Transmissions reach the
// receiver in call order whether or not they wait.
func (l *Line) SendPulses(pulses []Pulse, wait bool) error {
	line := Invert(pulses)
	if l.jitter != nil {
		for i := range line {
			line[i].Duration = l.jitter(line[i].Duration)
		}
	}
	if !l.noIdle {
		line = append(line, Pulse{Duration: 0, Level: true})
	}
	ls := lineSend{line: line}
	if wait {
		ls.done = make(chan error, 1)
	}
	l.mu.Lock()
	l.pending = append(l.pending, ls)
	if !l.feeding {
		l.feeding = true
		go l.feed()
	}
	l.mu.Unlock()
	if !wait {
		return nil
	}
	return <-ls.done
}

// feed drains pending sends one at a time until none are left.
func (l *Line) feed() {
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.feeding = false
			l.mu.Unlock()
			return
		}
		ls := l.pending[0]
		l.pending[0] = lineSend{}
		l.pending = l.pending[1:]
		l.mu.Unlock()

		err := l.Inject(ls.line)
		if ls.done != nil {
			ls.done <- err
		}
	}
}

// Inject queues line-level pulses for the receiver as if captured.
func (l *Line) Inject(line []Pulse) error {
	for len(line) > 0 {
		n := len(line)
		if l.maxBatch > 0 && n > l.maxBatch {
			n = l.maxBatch
		}
		batch := make([]Pulse, n)
		copy(batch, line[:n])
		line = line[n:]
		select {
		case l.batches <- batch:
		case <-l.closed:
			return ErrClosed
		}
	}
	return nil
}

// ReceivePulses returns the next queued batch.
func (l *Line) ReceivePulses(ctx context.Context) ([]Pulse, error) {
	select {
	case b := <-l.batches:
		return b, nil
	case <-l.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the number of queued batches.
func (l *Line) Pending() int { return len(l.batches) }

// Close fails pending and future sends and receives.
func (l *Line) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}
