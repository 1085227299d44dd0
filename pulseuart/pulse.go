// pulseuart/pulse.go

// Package pulseuart emulates an 8-N-1 UART on a programmable pulse peripheral.
// Bytes are encoded into timed, leveled pulses for a pulse transmitter and
// captured pulses are decoded back into bytes. The peripheral itself sits
// behind the PulseSender and PulseReceiver interfaces, so the codec runs the
// same on the host (see Line) and on RP2 PIO state machines.
package pulseuart

import "strconv"

// FrameBits is the number of bit slots in one frame: start, 8 data, stop.
const FrameBits = 10

// Pulse is one electrical level held for Duration peripheral ticks.
type Pulse struct {
	Duration uint32
	Level    bool
}

func (p Pulse) String() string {
	l := "L"
	if p.Level {
		l = "H"
	}
	return l + " " + strconv.FormatUint(uint64(p.Duration), 10)
}

// PulsePair mirrors the peripheral's two-pulse transfer unit. The decoder
// never relies on pair boundaries since bit periods do not align to them.
type PulsePair [2]Pulse

// Pairs groups pulses into transfer units. An odd trailing pulse is paired
// with a zero-duration pulse of the same level.
func Pairs(pulses []Pulse) []PulsePair {
	out := make([]PulsePair, 0, (len(pulses)+1)/2)
	for i := 0; i < len(pulses); i += 2 {
		pp := PulsePair{pulses[i], {Level: pulses[i].Level}}
		if i+1 < len(pulses) {
			pp[1] = pulses[i+1]
		}
		out = append(out, pp)
	}
	return out
}

// Flatten is the inverse of Pairs: it returns the pulses in order.
func Flatten(pairs []PulsePair) []Pulse {
	out := make([]Pulse, 0, 2*len(pairs))
	for _, pp := range pairs {
		out = append(out, pp[0], pp[1])
	}
	return out
}

// Invert returns a copy of pulses with every level flipped.
func Invert(pulses []Pulse) []Pulse {
	out := make([]Pulse, len(pulses))
	for i, p := range pulses {
		out[i] = Pulse{Duration: p.Duration, Level: !p.Level}
	}
	return out
}

// frameOf builds the 10-bit frame: start 0 at bit 0, data LSB first in
// bits 1..8, stop 1 at bit 9.
func frameOf(b byte) uint16 {
	return uint16(b)<<1 | 1<<(FrameBits-1)
}
