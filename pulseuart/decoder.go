// pulseuart/decoder.go

package pulseuart

import "github.com/rs/zerolog"

// Recovery selects how the decoder reacts to a framing violation.
type Recovery uint8

const (
	// RecoverAsIs discards the rest of the offending pulse and keeps the
	// frame position and accumulator as they were left.
	//
	// One step goes beyond plain discard-and-continue: an idle tail (a high
	// pulse under half a bit) arriving when no slots remain, i.e. with the
	// position at or past the stop slot, resets the frame instead of being
	// ignored. The capture idle marker therefore realigns a frame that a
	// missing stop bit left stranded.
	RecoverAsIs Recovery = iota
	// RecoverResync additionally drops the in-progress frame as soon as a
	// missing stop bit is seen, so the next low pulse is taken as a start bit.
	RecoverResync
)

func (r Recovery) String() string {
	switch r {
	case RecoverAsIs:
		return "as-is"
	case RecoverResync:
		return "resync"
	}
	return "unknown"
}

// Decoder rebuilds bytes from captured line-level pulses (idle and stop
// high, start low). It keeps the in-progress frame between calls so a frame
// may span capture batches.
//
// A Decoder is not safe for concurrent use; one goroutine owns it per port.
type Decoder struct {
	bp  BitPeriod
	pos int    // next frame slot to fill
	acc uint32 // levels seen so far, bit j = slot j

	recovery Recovery
	hooks    Hooks
	log      zerolog.Logger
	stats    *counters
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithRecovery sets the framing-violation policy.
func WithRecovery(r Recovery) DecoderOption {
	return func(d *Decoder) { d.recovery = r }
}

// WithDecoderHooks routes decode diagnostics to h.
func WithDecoderHooks(h Hooks) DecoderOption {
	return func(d *Decoder) {
		if h != nil {
			d.hooks = h
		}
	}
}

// WithDecoderLogger sets the diagnostics logger.
func WithDecoderLogger(l zerolog.Logger) DecoderOption {
	return func(d *Decoder) { d.log = l }
}

func withCounters(c *counters) DecoderOption {
	return func(d *Decoder) { d.stats = c }
}

// NewDecoder returns a decoder for bp ticks per bit.
func NewDecoder(bp BitPeriod, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		bp:    bp,
		hooks: NopHooks{},
		log:   zerolog.Nop(),
		stats: &counters{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Position returns the next frame slot to fill. Zero means the decoder is
// waiting for a start bit.
func (d *Decoder) Position() int { return d.pos }

// Reset drops any partially received frame.
func (d *Decoder) Reset() {
	d.pos, d.acc = 0, 0
}

// Decode walks pulses in order and appends every completed byte to dst.
func (d *Decoder) Decode(dst []byte, pulses []Pulse) []byte {
	start := len(dst)
	for _, p := range pulses {
		dst = d.fill(dst, p, len(dst)-start)
	}
	return dst
}

func (d *Decoder) fill(dst []byte, p Pulse, decoded int) []byte {
	span := Span(p.Duration, d.bp)
	d.log.Debug().Uint32("ticks", p.Duration).Bool("level", p.Level).
		Int("span", span).Int("pos", d.pos).Msg("rx pulse")

	// A high pulse shorter than half a bit is an idle tail cut by the
	// capture timeout: all remaining slots of the frame are high.
	if span == 0 && p.Level {
		span = FrameBits - d.pos
		if span <= 0 {
			d.Reset()
			return dst
		}
	}
	// Past the stop slot only an idle tail can realign the frame.
	if d.pos >= FrameBits {
		d.pos += span
		return dst
	}

	for n := 0; n < span; n++ {
		if d.pos == 0 && p.Level {
			d.log.Warn().Msg("not a start bit, skip")
			d.stats.inc(&d.stats.s.SkippedNonStart)
			d.hooks.SkippedNonStart(d.pos)
			return dst
		}
		slot := d.pos
		d.pos++
		if d.pos == FrameBits && !p.Level {
			d.log.Error().Int("decoded", decoded).Msg("not a stop bit")
			d.stats.inc(&d.stats.s.MissingStopBit)
			d.hooks.MissingStopBit(d.pos, decoded)
			if d.recovery == RecoverResync {
				d.Reset()
			}
			return dst
		}
		if p.Level && slot < 32 {
			d.acc |= 1 << uint(slot)
		}
		if d.pos == FrameBits {
			b := byte(d.acc >> 1)
			d.log.Debug().Uint8("data", b).Msg("rx byte")
			dst = append(dst, b)
			decoded++
			d.stats.inc(&d.stats.s.Frames)
			d.Reset()
		}
	}
	return dst
}
