// pulseuart/encoder.go

package pulseuart

import "fmt"

// PulsesPerByte is the number of pulses one encoded byte occupies.
const PulsesPerByte = FrameBits

// Encoder turns bytes into pulses for an inverting pulse transmitter.
//
// Levels are emitted inverted (Level = !frameBit): the transmit side flips
// them again before driving the line, so the wire idles high with a low
// start bit.
type Encoder struct {
	BitPeriod BitPeriod
	// Capacity bounds the number of pulses one call may produce.
	// Zero means unbounded.
	Capacity int
}

// Encode returns the pulse train for p. If the train would exceed Capacity
// it returns ErrOverflow and no pulses.
func (e Encoder) Encode(p []byte) ([]Pulse, error) {
	return e.AppendEncode(nil, p)
}

// AppendEncode appends the pulse train for p to dst. On ErrOverflow dst is
// returned unchanged.
func (e Encoder) AppendEncode(dst []Pulse, p []byte) ([]Pulse, error) {
	need := len(p) * PulsesPerByte
	if e.Capacity > 0 && need > e.Capacity {
		return dst, fmt.Errorf("%w: %d bytes need %d pulses, capacity %d",
			ErrOverflow, len(p), need, e.Capacity)
	}
	if cap(dst)-len(dst) < need {
		grown := make([]Pulse, len(dst), len(dst)+need)
		copy(grown, dst)
		dst = grown
	}
	for _, b := range p {
		dst = e.appendFrame(dst, b)
	}
	return dst, nil
}

// appendFrame emits the frame as five pulse pairs covering bits (0,1),
// (2,3), ... (8,9).
func (e Encoder) appendFrame(dst []Pulse, b byte) []Pulse {
	v := frameOf(b)
	for i := 0; i < FrameBits; i += 2 {
		dst = append(dst,
			Pulse{Duration: uint32(e.BitPeriod), Level: (v>>i)&1 == 0},
			Pulse{Duration: uint32(e.BitPeriod), Level: (v>>(i+1))&1 == 0},
		)
	}
	return dst
}

// BytesForCapacity returns the largest byte count that fits in capacity pulses.
func BytesForCapacity(capacity int) int {
	return capacity / PulsesPerByte
}
