// Package serialtap moves bytes between a host serial port and pulse
// captures: traffic read from a real UART is re-encoded as the pulses a
// pulse UART would put on the wire, and captures are replayed as bytes.
package serialtap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/jangala-dev/tinygo-pulseuart/pulseuart"
)

// Open opens path at baud, 8-N-1. readTimeout bounds each Read so Record
// can notice cancellation; zero blocks.
func Open(path string, baud int, readTimeout time.Duration) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("setting read timeout: %w", err)
		}
	}
	return port, nil
}

// Recorder turns each read from a byte source into one capture batch.
type Recorder struct {
	Encoder pulseuart.Encoder
	// ChunkSize bounds one read; defaults to the encoder capacity in bytes, or 256.
	ChunkSize int
	// Log defaults to a no-op logger.
	Log *zerolog.Logger
}

// Record reads r until EOF or ctx ends and calls emit with the line-level
// pulses of every non-empty read, ending in the capture idle marker.
// A read returning 0 bytes and no error (a serial read timeout) is skipped.
func (rec Recorder) Record(ctx context.Context, r io.Reader, emit func(batch []pulseuart.Pulse) error) (int, error) {
	size := rec.ChunkSize
	if size <= 0 {
		size = 256
		if c := pulseuart.BytesForCapacity(rec.Encoder.Capacity); c > 0 && c < size {
			size = c
		}
	}
	logger := zerolog.Nop()
	if rec.Log != nil {
		logger = *rec.Log
	}
	buf := make([]byte, size)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			pulses, eerr := rec.Encoder.Encode(buf[:n])
			if eerr != nil {
				return total, eerr
			}
			batch := append(pulseuart.Invert(pulses), pulseuart.Pulse{Duration: 0, Level: true})
			if err := emit(batch); err != nil {
				return total, err
			}
			total += n
			logger.Debug().Int("bytes", n).Int("pulses", len(batch)).Msg("tap batch")
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Replay decodes batches and writes the bytes to w, one write per batch.
func Replay(w io.Writer, dec *pulseuart.Decoder, batches [][]pulseuart.Pulse) (int, error) {
	total := 0
	var out []byte
	for _, b := range batches {
		out = dec.Decode(out[:0], b)
		if len(out) == 0 {
			continue
		}
		n, err := w.Write(out)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
