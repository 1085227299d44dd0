package pulseuart

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpan_RoundsHalfUp(t *testing.T) {
	cases := []struct {
		d    uint32
		bp   BitPeriod
		want int
	}{
		{0, 100, 0},
		{49, 100, 0},
		{50, 100, 1},
		{149, 100, 1},
		{150, 100, 2},
		{500, 100, 5},
		{3, 2, 2},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Span(c.d, c.bp), "Span(%d, %d)", c.d, c.bp)
	}
}

func TestNewTiming(t *testing.T) {
	tm, err := NewTiming(80_000_000, 115200, 50)
	require.NoError(t, err)
	require.Equal(t, uint32(13), tm.Divider)
	require.Equal(t, uint32(6153846), tm.TickHz)
	require.Equal(t, BitPeriod(53), tm.BitPeriod)
	require.Equal(t, uint32(530), tm.IdleThreshold())

	tm, err = NewTiming(80_000_000, 9600, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(166), tm.Divider)
	require.Equal(t, BitPeriod(50), tm.BitPeriod)
}

func TestNewTiming_Errors(t *testing.T) {
	for _, c := range []struct{ src, baud uint32 }{
		{80_000_000, 0},
		{0, 9600},
		{1000, 115200},
	} {
		_, err := NewTiming(c.src, c.baud, 50)
		require.True(t, errors.Is(err, ErrBadTiming), "src=%d baud=%d err=%v", c.src, c.baud, err)
	}
}

func TestTiming_Duration(t *testing.T) {
	tm := Timing{TickHz: 1_000_000, BitPeriod: 100}
	require.Equal(t, time.Millisecond, tm.Duration(1000))
	require.Equal(t, time.Millisecond, tm.FrameTime())
	require.Equal(t, time.Duration(0), Timing{}.Duration(5))
}
