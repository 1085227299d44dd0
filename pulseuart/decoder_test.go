package pulseuart

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// wire returns what a capture would see for data: line levels plus the
// idle marker.
func wire(t *testing.T, bp BitPeriod, data []byte) []Pulse {
	t.Helper()
	pulses, err := Encoder{BitPeriod: bp}.Encode(data)
	require.NoError(t, err)
	return append(Invert(pulses), Pulse{Duration: 0, Level: true})
}

type recordingHooks struct {
	NopHooks
	skipped []int
	stops   []int
}

func (h *recordingHooks) SkippedNonStart(pos int)         { h.skipped = append(h.skipped, pos) }
func (h *recordingHooks) MissingStopBit(pos, decoded int) { h.stops = append(h.stops, decoded) }

// 0x41 on the wire: L, H, L*5, H, L, H.
var wire41 = []Pulse{
	{Duration: 100, Level: false},
	{Duration: 100, Level: true},
	{Duration: 500, Level: false},
	{Duration: 100, Level: true},
	{Duration: 100, Level: false},
	{Duration: 100, Level: true},
}

func TestDecode_MergedRuns(t *testing.T) {
	d := NewDecoder(100)
	got := d.Decode(nil, wire41)
	require.Equal(t, []byte{0x41}, got)
	require.Equal(t, 0, d.Position())
}

func TestDecode_RoundTripAllBytes(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	for _, bp := range []BitPeriod{1, 2, 50, 53, 1000} {
		d := NewDecoder(bp)
		require.Equal(t, data, d.Decode(nil, wire(t, bp, data)), "bp=%d", bp)
	}
}

func TestDecode_RoundTripAnyBatchSplit(t *testing.T) {
	const bp = 50
	data := []byte("Hi\x00\xff\x55")
	line := wire(t, bp, data)
	for cut := 0; cut <= len(line); cut++ {
		d := NewDecoder(bp)
		out := d.Decode(nil, line[:cut])
		out = d.Decode(out, line[cut:])
		require.Equal(t, data, out, "cut=%d", cut)
	}
}

func TestDecode_FrameSpansBatches(t *testing.T) {
	d := NewDecoder(100)
	out := d.Decode(nil, []Pulse{
		{Duration: 100, Level: false},
		{Duration: 100, Level: true},
		{Duration: 200, Level: false},
	})
	require.Empty(t, out)
	require.Equal(t, 4, d.Position())

	out = d.Decode(out, []Pulse{
		{Duration: 300, Level: false},
		{Duration: 100, Level: true},
		{Duration: 100, Level: false},
		{Duration: 100, Level: true},
	})
	require.Equal(t, []byte{0x41}, out)
}

func TestDecode_JitterBelowHalfBit(t *testing.T) {
	const bp = 100
	data := []byte("jitter tolerant")
	line := wire(t, bp, data)
	rng := rand.New(rand.NewSource(7))
	for i := range line {
		if line[i].Duration == 0 {
			continue
		}
		line[i].Duration = uint32(int64(line[i].Duration) + rng.Int63n(bp-1) - (bp/2 - 1))
	}
	require.Equal(t, data, NewDecoder(bp).Decode(nil, line))
}

func TestDecode_IdleSkippedOnce(t *testing.T) {
	h := &recordingHooks{}
	d := NewDecoder(100, WithDecoderHooks(h))

	out := d.Decode(nil, []Pulse{{Duration: 5000, Level: true}})
	require.Empty(t, out)
	require.Equal(t, []int{0}, h.skipped, "rest of the idle pulse is discarded")
	require.Zero(t, d.acc)
	require.Equal(t, 0, d.Position())

	require.Equal(t, []byte{0x41}, d.Decode(out, wire41))
}

func TestDecode_ZeroSpanFillsFrame(t *testing.T) {
	d := NewDecoder(100)
	// start bit then idle marker: all data bits and stop high
	out := d.Decode(nil, []Pulse{{Duration: 100, Level: false}, {Duration: 0, Level: true}})
	require.Equal(t, []byte{0xFF}, out)
	require.Equal(t, 0, d.Position())

	// short high below half a bit also counts as the idle tail
	out = d.Decode(nil, []Pulse{
		{Duration: 100, Level: false},
		{Duration: 100, Level: true},
		{Duration: 500, Level: false},
		{Duration: 100, Level: true},
		{Duration: 100, Level: false},
		{Duration: 40, Level: true},
	})
	require.Equal(t, []byte{0x41}, out)
}

func TestDecode_ZeroSpanAtStartIsSkip(t *testing.T) {
	h := &recordingHooks{}
	d := NewDecoder(100, WithDecoderHooks(h))
	require.Empty(t, d.Decode(nil, []Pulse{{Duration: 0, Level: true}}))
	require.Len(t, h.skipped, 1)
}

func TestDecode_ZeroSpanLowIsIgnored(t *testing.T) {
	d := NewDecoder(100)
	out := d.Decode(nil, []Pulse{{Duration: 10, Level: false}})
	require.Empty(t, out)
	require.Equal(t, 0, d.Position())
}

func TestDecode_MissingStopBitAsIs(t *testing.T) {
	h := &recordingHooks{}
	d := NewDecoder(100, WithDecoderHooks(h))

	// ten low slots: the stop slot is low
	out := d.Decode(nil, []Pulse{{Duration: 1000, Level: false}})
	require.Empty(t, out)
	require.Equal(t, []int{0}, h.stops)
	require.Equal(t, FrameBits, d.Position(), "position left at the stop slot")

	// without an idle marker nothing realigns the frame
	out = d.Decode(out, wire41)
	require.Empty(t, out)
	require.Greater(t, d.Position(), FrameBits)

	// the idle marker does
	out = d.Decode(out, []Pulse{{Duration: 0, Level: true}})
	require.Empty(t, out)
	require.Equal(t, 0, d.Position())
	require.Equal(t, []byte{0x41}, d.Decode(out, wire41))
}

func TestDecode_LineBreakAfterMissingStopBit(t *testing.T) {
	h := &recordingHooks{}
	d := NewDecoder(1, WithDecoderHooks(h))

	require.Empty(t, d.Decode(nil, []Pulse{{Duration: FrameBits, Level: false}}))
	require.Len(t, h.stops, 1)

	// a break this long must not be walked slot by slot
	start := time.Now()
	out := d.Decode(nil, []Pulse{
		{Duration: 1 << 29, Level: false},
		{Duration: 1 << 29, Level: true},
	})
	require.Empty(t, out)
	require.Less(t, int64(time.Since(start)), int64(100*time.Millisecond))
	require.Equal(t, FrameBits+1<<30, d.Position())
	require.Len(t, h.stops, 1)
	require.Empty(t, h.skipped)

	require.Empty(t, d.Decode(nil, []Pulse{{Duration: 0, Level: true}}))
	require.Equal(t, 0, d.Position())
}

func TestDecode_MissingStopBitResync(t *testing.T) {
	h := &recordingHooks{}
	d := NewDecoder(100, WithDecoderHooks(h), WithRecovery(RecoverResync))

	out := d.Decode(nil, append([]Pulse{{Duration: 1000, Level: false}}, wire41...))
	require.Equal(t, []byte{0x41}, out)
	require.Len(t, h.stops, 1)
}

func TestDecode_MissingStopBitReportsDecodedCount(t *testing.T) {
	h := &recordingHooks{}
	d := NewDecoder(100, WithDecoderHooks(h), WithRecovery(RecoverResync))

	batch := append(append([]Pulse{}, wire41...), Pulse{Duration: 1000, Level: false})
	out := d.Decode([]byte("prefix"), batch)
	require.Equal(t, append([]byte("prefix"), 0x41), out)
	require.Equal(t, []int{1}, h.stops)
}

func TestDecode_StatsCounted(t *testing.T) {
	var c counters
	d := NewDecoder(100, withCounters(&c))
	d.Decode(nil, []Pulse{{Duration: 300, Level: true}})
	d.Decode(nil, wire41)
	d.Decode(nil, []Pulse{{Duration: 1000, Level: false}})

	s := c.snapshot()
	require.Equal(t, uint32(1), s.Frames)
	require.Equal(t, uint32(1), s.SkippedNonStart)
	require.Equal(t, uint32(1), s.MissingStopBit)
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder(100)
	d.Decode(nil, wire41[:3])
	require.NotZero(t, d.Position())
	d.Reset()
	require.Equal(t, 0, d.Position())
	require.Equal(t, []byte{0x41}, d.Decode(nil, wire41))
}

func TestRecovery_String(t *testing.T) {
	require.Equal(t, "as-is", RecoverAsIs.String())
	require.Equal(t, "resync", RecoverResync.String())
	require.Equal(t, "unknown", Recovery(9).String())
}
