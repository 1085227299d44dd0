package pulseuart

import (
	"fmt"
	"time"
)

// DefaultTicksPerBit is the target peripheral resolution per bit.
const DefaultTicksPerBit = 50

// BitPeriod is the number of peripheral ticks in one bit.
type BitPeriod uint32

// Valid reports whether bp can be used for encoding and decoding.
func (bp BitPeriod) Valid() bool { return bp > 0 }

// Span returns how many whole bit periods duration covers, rounding half up
// so that capture jitter below half a bit does not change the result.
func Span(duration uint32, bp BitPeriod) int {
	return int((uint64(duration) + uint64(bp)/2) / uint64(bp))
}

// Timing describes how a baud rate maps onto the peripheral clock.
type Timing struct {
	SourceHz  uint32    // peripheral source clock
	Divider   uint32    // source clock divider
	TickHz    uint32    // resulting tick rate
	Baud      uint32    // target baud rate
	BitPeriod BitPeriod // ticks per bit at TickHz
}

// NewTiming derives the divider, tick rate and bit period for baud from the
// source clock. The divider is picked so a bit lasts about ticksPerBit ticks;
// ticksPerBit <= 0 selects DefaultTicksPerBit.
func NewTiming(sourceHz, baud uint32, ticksPerBit int) (Timing, error) {
	if ticksPerBit <= 0 {
		ticksPerBit = DefaultTicksPerBit
	}
	if sourceHz == 0 || baud == 0 {
		return Timing{}, fmt.Errorf("%w: source=%dHz baud=%d", ErrBadTiming, sourceHz, baud)
	}
	div := sourceHz / uint32(ticksPerBit) / baud
	if div == 0 {
		return Timing{}, fmt.Errorf("%w: baud %d too fast for %dHz source", ErrBadTiming, baud, sourceHz)
	}
	t := Timing{
		SourceHz: sourceHz,
		Divider:  div,
		TickHz:   sourceHz / div,
		Baud:     baud,
	}
	t.BitPeriod = BitPeriod(t.TickHz / baud)
	if !t.BitPeriod.Valid() {
		return Timing{}, fmt.Errorf("%w: zero bit period", ErrBadTiming)
	}
	return t, nil
}

// Duration converts peripheral ticks to wall time.
func (t Timing) Duration(ticks uint32) time.Duration {
	if t.TickHz == 0 {
		return 0
	}
	return time.Duration(uint64(ticks) * uint64(time.Second) / uint64(t.TickHz))
}

// IdleThreshold is the capture idle timeout in ticks: one full frame of
// high line ends a batch.
func (t Timing) IdleThreshold() uint32 {
	return FrameBits * uint32(t.BitPeriod)
}

// FrameTime is the wall time of one 10-bit frame.
func (t Timing) FrameTime() time.Duration {
	return t.Duration(t.IdleThreshold())
}
