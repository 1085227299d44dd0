package pulseuart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPulse_String(t *testing.T) {
	require.Equal(t, "H 100", Pulse{Duration: 100, Level: true}.String())
	require.Equal(t, "L 0", Pulse{}.String())
}

func TestPairs_OddTail(t *testing.T) {
	pulses := []Pulse{{1, true}, {2, false}, {3, false}}
	pairs := Pairs(pulses)
	require.Len(t, pairs, 2)
	require.Equal(t, PulsePair{{3, false}, {0, false}}, pairs[1])

	flat := Flatten(pairs)
	require.Equal(t, pulses, flat[:3])
	require.Equal(t, uint32(0), flat[3].Duration)
}

func TestInvert_Copies(t *testing.T) {
	in := []Pulse{{5, true}, {6, false}}
	out := Invert(in)
	require.Equal(t, []Pulse{{5, false}, {6, true}}, out)
	require.True(t, in[0].Level, "input untouched")
}

func TestFrameOf(t *testing.T) {
	require.Equal(t, uint16(0x282), frameOf(0x41))
	require.Equal(t, uint16(0x200), frameOf(0x00))
	require.Equal(t, uint16(0x3FE), frameOf(0xFF))
}
