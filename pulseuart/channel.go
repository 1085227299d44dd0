package pulseuart

import "context"

// PulseSender drives pulses onto the line.
//
// Implementations must invert every level before driving it: the encoder
// emits inverted levels. When wait is true SendPulses returns only after
// the last pulse has been emitted.
type PulseSender interface {
	SendPulses(pulses []Pulse, wait bool) error
}

// PulseReceiver delivers captured pulses at line level, in batches.
//
// ReceivePulses blocks until a batch is available or ctx is done, in which
// case it returns ctx.Err(). Batches may split anywhere, including inside a
// frame. A batch that ended on an idle line carries a trailing high pulse
// of zero duration.
type PulseReceiver interface {
	ReceivePulses(ctx context.Context) ([]Pulse, error)
}
