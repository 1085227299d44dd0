// pulseuart/uart.go

package pulseuart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// UART is an 8-N-1 byte stream over a pulse sender and a pulse receiver.
//
// Write blocks until the pulse train has been emitted. Reads block on the
// receiver for at most one capture batch at a time and keep decoded bytes
// that did not fit the caller's buffer for the next read.
type UART struct {
	cfg    Config
	timing Timing

	tx  PulseSender
	rx  PulseReceiver
	enc Encoder
	dec *Decoder

	txMu  sync.Mutex
	txbuf []Pulse

	// readMu serialises receivers; rxMu guards the ring and decoder and is
	// never held while waiting on rx.
	readMu sync.Mutex
	rxMu   sync.Mutex
	rxbuf  ring
	rxtmp  []byte

	closeOnce sync.Once
	closed    chan struct{}

	hooks Hooks
	log   zerolog.Logger
	stats counters
}

// Option configures a UART.
type Option func(*UART)

// WithLogger sets the logger used by the UART and its decoder.
func WithLogger(l zerolog.Logger) Option {
	return func(u *UART) { u.log = l }
}

// WithHooks routes codec diagnostics to h.
func WithHooks(h Hooks) Option {
	return func(u *UART) {
		if h != nil {
			u.hooks = h
		}
	}
}

// New returns a UART for cfg. tx may be nil for an RX-only port and rx may
// be nil for a TX-only port.
func New(cfg Config, tx PulseSender, rx PulseReceiver, opts ...Option) (*UART, error) {
	timing, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if cfg.Mode.CanSend() && tx == nil {
		return nil, ErrNoSender
	}
	if cfg.Mode.CanReceive() && rx == nil {
		return nil, ErrNoReceiver
	}
	u := &UART{
		cfg:    cfg,
		timing: timing,
		tx:     tx,
		rx:     rx,
		enc:    Encoder{BitPeriod: timing.BitPeriod, Capacity: cfg.PulseCapacity},
		rxbuf:  newRing(cfg.RxBufferSize),
		closed: make(chan struct{}),
		hooks:  NopHooks{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.dec = NewDecoder(timing.BitPeriod,
		WithRecovery(cfg.Recovery),
		WithDecoderHooks(u.hooks),
		WithDecoderLogger(u.log),
		withCounters(&u.stats),
	)
	u.log.Info().Uint32("baud", timing.Baud).Uint32("div", timing.Divider).
		Uint32("tick_hz", timing.TickHz).Uint32("bit_ticks", uint32(timing.BitPeriod)).
		Str("mode", cfg.Mode.String()).Msg("pulse uart configured")
	return u, nil
}

// Config returns the port configuration.
func (u *UART) Config() Config { return u.cfg }

// Timing returns the derived peripheral timing.
func (u *UART) Timing() Timing { return u.timing }

// Stats returns a snapshot of the port counters.
func (u *UART) Stats() Stats { return u.stats.snapshot() }

// ResetStats zeroes the port counters.
func (u *UART) ResetStats() { u.stats.reset() }

// ---------------- Transmit ----------------

// Write encodes p and blocks until its pulse train has been emitted.
// It is all-or-nothing: on ErrOverflow nothing is sent and n is 0.
func (u *UART) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !u.cfg.Mode.CanSend() {
		return 0, ErrRxOnly
	}
	if u.isClosed() {
		return 0, ErrClosed
	}

	u.txMu.Lock()
	defer u.txMu.Unlock()

	pulses, err := u.enc.AppendEncode(u.txbuf[:0], p)
	if err != nil {
		u.stats.inc(&u.stats.s.Overflows)
		u.hooks.Overflow(len(p)*PulsesPerByte, u.enc.Capacity)
		u.log.Error().Int("bytes", len(p)).Int("capacity", u.enc.Capacity).Msg("data too long")
		return 0, err
	}
	u.txbuf = pulses
	if err := u.tx.SendPulses(pulses, true); err != nil {
		return 0, err
	}
	u.stats.add(&u.stats.s.PulsesOut, len(pulses))
	u.stats.add(&u.stats.s.BytesOut, len(p))
	u.log.Debug().Int("bytes", len(p)).Int("pulses", len(pulses)).Msg("tx")
	return len(p), nil
}

// WriteByte writes a single byte, blocking like Write.
func (u *UART) WriteByte(c byte) error {
	_, err := u.Write([]byte{c})
	return err
}

// ---------------- Receive ----------------

// Buffered returns the number of decoded bytes waiting to be read.
func (u *UART) Buffered() int {
	u.rxMu.Lock()
	defer u.rxMu.Unlock()
	return u.rxbuf.len()
}

// TryRead copies already decoded bytes into p without touching the receiver.
func (u *UART) TryRead(p []byte) int {
	u.rxMu.Lock()
	defer u.rxMu.Unlock()
	n := u.rxbuf.readInto(p)
	u.stats.add(&u.stats.s.BytesIn, n)
	return n
}

// Discard drops buffered bytes and any partially decoded frame.
func (u *UART) Discard() {
	u.rxMu.Lock()
	defer u.rxMu.Unlock()
	u.rxbuf.clear()
	u.dec.Reset()
}

// ReadContext blocks until at least one byte is available or ctx is done,
// then returns up to len(p) bytes.
func (u *UART) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !u.cfg.Mode.CanReceive() {
		return 0, ErrTxOnly
	}

	u.readMu.Lock()
	defer u.readMu.Unlock()
	for {
		if n := u.TryRead(p); n > 0 {
			return n, nil
		}
		if err := u.receive(ctx); err != nil {
			return 0, err
		}
	}
}

// ReadWithTimeout is ReadContext with a deadline of d. A read that expires
// with nothing received returns 0, nil.
func (u *UART) ReadWithTimeout(p []byte, d time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	n, err := u.ReadContext(ctx, p)
	if errors.Is(err, context.DeadlineExceeded) {
		return n, nil
	}
	return n, err
}

// Read implements io.Reader using Config.ReadTimeout. A zero timeout blocks
// until data arrives or the UART is closed.
func (u *UART) Read(p []byte) (int, error) {
	if u.cfg.ReadTimeout <= 0 {
		return u.ReadContext(context.Background(), p)
	}
	return u.ReadWithTimeout(p, u.cfg.ReadTimeout)
}

// ReadFullContext reads exactly len(p) bytes unless ctx ends first, in which
// case it returns the count read so far with the context error.
func (u *UART) ReadFullContext(ctx context.Context, p []byte) (int, error) {
	read := 0
	for read < len(p) {
		n, err := u.ReadContext(ctx, p[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// ReadByteContext blocks for a single byte or until ctx is done.
func (u *UART) ReadByteContext(ctx context.Context) (byte, error) {
	var b [1]byte
	if _, err := u.ReadContext(ctx, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// receive waits for one capture batch and decodes it into the ring.
// Caller holds readMu.
func (u *UART) receive(ctx context.Context) error {
	if u.isClosed() {
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-u.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	batch, err := u.rx.ReceivePulses(ctx)
	if err != nil {
		if u.isClosed() {
			return ErrClosed
		}
		if errors.Is(err, context.DeadlineExceeded) {
			u.stats.inc(&u.stats.s.Timeouts)
		}
		return err
	}
	u.stats.inc(&u.stats.s.Batches)
	u.stats.add(&u.stats.s.PulsesIn, len(batch))

	u.rxMu.Lock()
	defer u.rxMu.Unlock()
	u.rxtmp = u.dec.Decode(u.rxtmp[:0], batch)
	dropped := 0
	for _, b := range u.rxtmp {
		if u.rxbuf.put(b) {
			dropped++
		}
	}
	if dropped > 0 {
		u.stats.add(&u.stats.s.RingDrops, dropped)
		u.hooks.RxDropped(dropped)
		u.log.Warn().Int("dropped", dropped).Msg("rx ring full")
	}
	u.log.Debug().Int("pulses", len(batch)).Int("bytes", len(u.rxtmp)).
		Int("pos", u.dec.Position()).Msg("rx batch")
	return nil
}

// ---------------- Lifecycle ----------------

// Close unblocks pending reads with ErrClosed. Later reads and writes fail
// with ErrClosed. Close does not release the pulse peripheral.
func (u *UART) Close() error {
	u.closeOnce.Do(func() { close(u.closed) })
	return nil
}

func (u *UART) isClosed() bool {
	select {
	case <-u.closed:
		return true
	default:
		return false
	}
}
