// Package pulsefile reads and writes pulse captures as text.
//
// One pulse per line: a level letter (H or L, also 1 or 0) and a duration
// in ticks. Lines starting with '#' and blank lines are ignored. A line of
// "--" ends the current batch.
//
//	# 0x41 at 100 ticks per bit
//	L 100
//	H 100
//	L 500
//	H 100
//	L 100
//	H 0
//	--
package pulsefile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jangala-dev/tinygo-pulseuart/pulseuart"
)

const batchSep = "--"

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pulsefile: line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads every batch from r. Empty batches are skipped.
func Parse(r io.Reader) ([][]pulseuart.Pulse, error) {
	var (
		batches [][]pulseuart.Pulse
		cur     []pulseuart.Pulse
		lineNo  int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "" || strings.HasPrefix(text, "#"):
			continue
		case text == batchSep:
			if len(cur) > 0 {
				batches = append(batches, cur)
				cur = nil
			}
			continue
		}
		p, err := parsePulse(text)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: text, Err: err}
		}
		cur = append(cur, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}

func parsePulse(text string) (pulseuart.Pulse, error) {
	f := strings.Fields(text)
	if len(f) != 2 {
		return pulseuart.Pulse{}, fmt.Errorf("want <level> <ticks>, got %d fields", len(f))
	}
	var level bool
	switch strings.ToUpper(f[0]) {
	case "H", "1":
		level = true
	case "L", "0":
	default:
		return pulseuart.Pulse{}, fmt.Errorf("bad level %q", f[0])
	}
	d, err := strconv.ParseUint(f[1], 10, 32)
	if err != nil {
		return pulseuart.Pulse{}, fmt.Errorf("bad duration: %w", err)
	}
	return pulseuart.Pulse{Duration: uint32(d), Level: level}, nil
}

// Write prints batches in the format Parse reads, each followed by "--".
func Write(w io.Writer, batches ...[]pulseuart.Pulse) error {
	bw := bufio.NewWriter(w)
	for _, b := range batches {
		for _, p := range b {
			if _, err := fmt.Fprintln(bw, p.String()); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, batchSep); err != nil {
			return err
		}
	}
	return bw.Flush()
}
