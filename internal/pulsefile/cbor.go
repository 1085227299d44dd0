package pulsefile

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/jangala-dev/tinygo-pulseuart/pulseuart"
)

const cborVersion = 1

// Binary captures are a CBOR map {"v": version, "b": batches}, each pulse a
// two-element array [ticks, level].
type cborCapture struct {
	Version int           `cbor:"v"`
	Batches [][]cborPulse `cbor:"b"`
}

type cborPulse struct {
	_     struct{} `cbor:",toarray"`
	Ticks uint32
	Level bool
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Deterministic so identical captures hash the same.
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// WriteCBOR writes batches as a binary capture.
func WriteCBOR(w io.Writer, batches ...[]pulseuart.Pulse) error {
	c := cborCapture{Version: cborVersion, Batches: make([][]cborPulse, len(batches))}
	for i, b := range batches {
		out := make([]cborPulse, len(b))
		for j, p := range b {
			out[j] = cborPulse{Ticks: p.Duration, Level: p.Level}
		}
		c.Batches[i] = out
	}
	return encMode.NewEncoder(w).Encode(c)
}

// ParseCBOR reads a binary capture written by WriteCBOR.
func ParseCBOR(r io.Reader) ([][]pulseuart.Pulse, error) {
	var c cborCapture
	if err := decMode.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("pulsefile: decoding cbor: %w", err)
	}
	if c.Version != cborVersion {
		return nil, fmt.Errorf("pulsefile: unsupported capture version %d", c.Version)
	}
	batches := make([][]pulseuart.Pulse, 0, len(c.Batches))
	for _, b := range c.Batches {
		if len(b) == 0 {
			continue
		}
		out := make([]pulseuart.Pulse, len(b))
		for j, p := range b {
			out[j] = pulseuart.Pulse{Duration: p.Ticks, Level: p.Level}
		}
		batches = append(batches, out)
	}
	return batches, nil
}

// Format names a capture encoding.
type Format string

const (
	FormatText Format = "text"
	FormatCBOR Format = "cbor"
)

// ParseFormat accepts "text" and "cbor".
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatCBOR:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("pulsefile: unknown format %q", s)
}

// Read parses a capture in format f.
func (f Format) Read(r io.Reader) ([][]pulseuart.Pulse, error) {
	if f == FormatCBOR {
		return ParseCBOR(r)
	}
	return Parse(r)
}

// Write writes batches in format f.
func (f Format) Write(w io.Writer, batches ...[]pulseuart.Pulse) error {
	if f == FormatCBOR {
		return WriteCBOR(w, batches...)
	}
	return Write(w, batches...)
}
