package serialtap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-pulseuart/pulseuart"
)

// chunkReader returns one chunk per Read, with an empty read in between to
// mimic a serial read timeout.
type chunkReader struct {
	chunks [][]byte
	idle   bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.idle = !r.idle; r.idle {
		return 0, nil
	}
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestRecord_ReplayRoundTrip(t *testing.T) {
	const bp = 40
	src := &chunkReader{chunks: [][]byte{[]byte("AT\r"), []byte("OK\r\n")}}
	rec := Recorder{Encoder: pulseuart.Encoder{BitPeriod: bp}}

	var batches [][]pulseuart.Pulse
	n, err := rec.Record(context.Background(), src, func(b []pulseuart.Pulse) error {
		batches = append(batches, b)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.Len(t, batches, 2)
	last := batches[0][len(batches[0])-1]
	require.Equal(t, pulseuart.Pulse{Duration: 0, Level: true}, last, "batch ends idle")

	var out bytes.Buffer
	m, err := Replay(&out, pulseuart.NewDecoder(bp), batches)
	require.NoError(t, err)
	require.Equal(t, 7, m)
	require.Equal(t, "AT\rOK\r\n", out.String())
}

func TestRecord_ChunkFollowsCapacity(t *testing.T) {
	src := &chunkReader{chunks: [][]byte{[]byte("abcdefgh")}}
	rec := Recorder{Encoder: pulseuart.Encoder{BitPeriod: 10, Capacity: 3 * pulseuart.PulsesPerByte}}

	var sizes []int
	_, err := rec.Record(context.Background(), src, func(b []pulseuart.Pulse) error {
		sizes = append(sizes, len(b))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{3*pulseuart.PulsesPerByte + 1}, sizes, "one read capped at three bytes")
}

func TestRecord_StopsOnCancelAndEmitError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := Recorder{Encoder: pulseuart.Encoder{BitPeriod: 10}}.Record(ctx,
		&chunkReader{chunks: [][]byte{[]byte("x")}},
		func([]pulseuart.Pulse) error { t.Fatal("emit after cancel"); return nil })
	require.NoError(t, err)
	require.Equal(t, 0, n)

	boom := errors.New("boom")
	_, err = Recorder{Encoder: pulseuart.Encoder{BitPeriod: 10}}.Record(context.Background(),
		&chunkReader{chunks: [][]byte{[]byte("x")}},
		func([]pulseuart.Pulse) error { return boom })
	require.True(t, errors.Is(err, boom))
}
