// cmd/integrity/main.go
// Exacting cross-port integrity test for the pulse UART, run on the host.
// Wiring is two in-memory lines:
//   U0 TX -> line01 -> U1 RX
//   U1 TX -> line10 -> U0 RX
// Every byte is encoded to pulses, carried across the line at line level
// (optionally jittered) and decoded on the far side.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jangala-dev/tinygo-pulseuart/internal/appconfig"
	"github.com/jangala-dev/tinygo-pulseuart/pulseuart"
)

// Additional bytes to read and print after the first mismatch.
const extraFollowing = 128

var errMismatch = errors.New("integrity mismatch")

/*** Patterns (deterministic) ***/
func patternA(i int) byte { return byte((i*31 + 0x55) & 0xFF) }
func patternB(i int) byte { return byte((i*17 + 0xA6) & 0xFF) }

type port struct {
	name string
	u    *pulseuart.UART
	out  *pulseuart.Line // carries this port's transmissions
}

/*** Main ***/
func main() {
	configFile := flag.String("config", "", "YAML config file")
	logLevel := flag.String("log-level", "", "zerolog level")
	flag.Parse()

	cfg, err := appconfig.Load(*configFile)
	if err != nil {
		appconfig.SetupLogging("info")
		log.Fatal().Err(err).Msg("error loading config")
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger := appconfig.SetupLogging(level)

	tc := cfg.Integrity
	log.Info().Uint32("baud", cfg.Port.BaudRate).Int("bytes_per_dir", tc.TotalBytes).
		Bool("duplex", tc.FullDuplex).Uint32("jitter_ticks", cfg.Line.JitterTicks).
		Msg("pulse uart integrity test")

	pass, fail := 0, 0
	report := func(name string, err error) {
		if err == nil {
			log.Info().Str("test", name).Msg("[PASS]")
			pass++
		} else {
			log.Error().Err(err).Str("test", name).Msg("[FAIL]")
			fail++
		}
	}

	if tc.FullDuplex {
		u0, u1, err := openPair(cfg, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("opening ports")
		}
		report("Full-duplex integrity", runFullDuplex(tc, u0, u1))
		logStats(u0, u1)
	} else {
		u0, u1, err := openPair(cfg, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("opening ports")
		}
		report("U0 -> U1 integrity", runOneWay(tc, u0, u1, patternA))
		logStats(u0, u1)

		u0, u1, err = openPair(cfg, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("opening ports")
		}
		report("U1 -> U0 integrity", runOneWay(tc, u1, u0, patternB))
		logStats(u0, u1)
	}

	log.Info().Int("passed", pass).Int("failed", fail).Msg("summary")
	if fail != 0 {
		os.Exit(1)
	}
}

// openPair wires two ports back to back over fresh lines.
func openPair(cfg appconfig.Config, logger zerolog.Logger) (*port, *port, error) {
	line01 := newLine(cfg.Line, 1)
	line10 := newLine(cfg.Line, 2)

	u0, err := pulseuart.New(cfg.Port, line01, line10,
		pulseuart.WithLogger(logger.With().Str("port", "U0").Logger()))
	if err != nil {
		return nil, nil, err
	}
	u1, err := pulseuart.New(cfg.Port, line10, line01,
		pulseuart.WithLogger(logger.With().Str("port", "U1").Logger()))
	if err != nil {
		return nil, nil, err
	}
	return &port{name: "U0", u: u0, out: line01}, &port{name: "U1", u: u1, out: line10}, nil
}

// newLine jitters every pulse by up to ±JitterTicks, seeded for repeatable runs.
func newLine(lc appconfig.Line, seed int64) *pulseuart.Line {
	opts := []pulseuart.LineOption{
		pulseuart.WithMaxBatch(lc.MaxBatch),
		pulseuart.WithQueueDepth(lc.QueueDepth),
	}
	if j := lc.JitterTicks; j > 0 {
		rng := rand.New(rand.NewSource(seed))
		opts = append(opts, pulseuart.WithJitter(func(d uint32) uint32 {
			delta := rng.Int63n(2*int64(j)+1) - int64(j)
			if v := int64(d) + delta; v > 0 {
				return uint32(v)
			}
			return 1
		}))
	}
	return pulseuart.NewLine(opts...)
}

func logStats(ports ...*port) {
	for _, p := range ports {
		s := p.u.Stats()
		log.Info().Str("port", p.name).
			Uint32("frames", s.Frames).Uint32("bytes_in", s.BytesIn).Uint32("bytes_out", s.BytesOut).
			Uint32("skipped", s.SkippedNonStart).Uint32("stop_errors", s.MissingStopBit).
			Uint32("ring_drops", s.RingDrops).Uint32("batches", s.Batches).
			Msg("stats")
		_ = p.u.Close()
		_ = p.out.Close()
	}
}

/*** Test runners ***/

func runOneWay(tc appconfig.Integrity, tx, rx *port, gen func(int) byte) error {
	rx.u.Discard()

	ctx, cancel := context.WithTimeout(context.Background(), tc.Timeout)
	defer cancel()

	skip := 0
	if tc.UsePreamble {
		skip = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	unblockOnDone(ctx, tx)
	g.Go(func() error { return recvAndCheckStream(ctx, tc, rx.u, gen, skip) })
	g.Go(func() error {
		if tc.UsePreamble {
			if err := tx.u.WriteByte(tc.PreambleByte); err != nil {
				return err
			}
		}
		return sendPatternContext(ctx, tx.u, gen, tc.TotalBytes, tc.SendChunk)
	})
	return g.Wait()
}

func runFullDuplex(tc appconfig.Integrity, u0, u1 *port) error {
	u0.u.Discard()
	u1.u.Discard()

	ctx, cancel := context.WithTimeout(context.Background(), tc.Timeout)
	defer cancel()

	skip := 0
	if tc.UsePreamble {
		skip = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	unblockOnDone(ctx, u0, u1)

	// Receivers first; each skips the preamble byte if configured.
	g.Go(func() error { return recvAndCheckStream(ctx, tc, u1.u, patternA, skip) })
	g.Go(func() error { return recvAndCheckStream(ctx, tc, u0.u, patternB, skip) })

	send := func(p *port, gen func(int) byte) func() error {
		return func() error {
			if tc.UsePreamble {
				if err := p.u.WriteByte(tc.PreambleByte); err != nil {
					return err
				}
			}
			return sendPatternContext(ctx, p.u, gen, tc.TotalBytes, tc.SendChunk)
		}
	}
	g.Go(send(u0, patternA))
	g.Go(send(u1, patternB))
	return g.Wait()
}

// unblockOnDone closes the senders' lines when ctx ends so a Write stuck on
// a full line returns.
func unblockOnDone(ctx context.Context, ports ...*port) {
	go func() {
		<-ctx.Done()
		for _, p := range ports {
			_ = p.out.Close()
		}
	}()
}

/*** Helpers ***/

func sendPatternContext(ctx context.Context, u *pulseuart.UART, gen func(int) byte, n, chunk int) error {
	if chunk <= 0 {
		chunk = 1
	}
	buf := make([]byte, chunk)
	for i := 0; i < n; {
		k := chunk
		if n-i < k {
			k = n - i
		}
		for j := 0; j < k; j++ {
			buf[j] = gen(i + j)
		}
		if _, err := u.Write(buf[:k]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		i += k
	}
	return nil
}

/*** Integrity check with diagnostics ***/

// recvAndCheckStream reads exactly tc.TotalBytes bytes and compares each byte
// against gen(i), after discarding skip bytes. On the first mismatch it prints
// a hex dump of the surrounding expected and actual bytes, then the next
// extraFollowing bytes received.
func recvAndCheckStream(ctx context.Context, tc appconfig.Integrity, u *pulseuart.UART, gen func(int) byte, skip int) error {
	for s := 0; s < skip; {
		var t [1]byte
		m, err := u.ReadContext(ctx, t[:])
		if err != nil {
			return fmt.Errorf("waiting to skip preamble: %w", err)
		}
		s += m
	}

	n := tc.TotalBytes
	chunk := tc.RecvChunk
	if chunk <= 0 {
		chunk = 256
	}
	buf := make([]byte, chunk)
	received := 0

	for received < n {
		k := n - received
		if k > len(buf) {
			k = len(buf)
		}
		m, err := u.ReadContext(ctx, buf[:k])
		if err != nil {
			return fmt.Errorf("after %d bytes: %w", received, err)
		}

		for i := 0; i < m; i++ {
			if exp, act := gen(received+i), buf[i]; act != exp {
				off := received + i
				fmt.Printf("First mismatch at offset %d\n", off)
				printContext(gen, off, buf[:m], i, tc.Radius)

				following := make([]byte, 0, extraFollowing)
				if i+1 < m {
					following = append(following, buf[i+1:m]...)
				}
				tmp := make([]byte, chunk)
				for len(following) < extraFollowing && (off+1+len(following)) < n {
					want := extraFollowing - len(following)
					if want > len(tmp) {
						want = len(tmp)
					}
					mm, err2 := u.ReadWithTimeout(tmp[:want], 100*time.Millisecond)
					if err2 != nil || mm == 0 {
						break
					}
					following = append(following, tmp[:mm]...)
				}
				printFollowing(off, following)
				return fmt.Errorf("%w at offset %d: want %02X got %02X", errMismatch, off, exp, act)
			}
		}
		received += m
	}
	return nil
}

/*** Context dump ***/

func printContext(gen func(int) byte, absOffset int, gotChunk []byte, rel int, radius int) {
	start := absOffset - radius
	if start < 0 {
		start = 0
	}
	end := absOffset + radius + 1

	exp := make([]byte, end-start)
	for i := range exp {
		exp[i] = gen(start + i)
	}

	// Actual bytes aligned to the same window, zero where not yet read.
	act := make([]byte, len(exp))
	base := absOffset - rel
	for i := range act {
		if idx := (start + i) - base; idx >= 0 && idx < len(gotChunk) {
			act[i] = gotChunk[idx]
		}
	}

	fmt.Printf("Context (hex): bytes %d to %d\n", start, start+len(exp)-1)
	fmt.Print(" exp: ")
	printHex(exp, -1)
	fmt.Print(" act: ")
	printHex(act, absOffset-start)
}

func printHex(b []byte, pivot int) {
	for i, v := range b {
		if i == pivot {
			fmt.Printf("[%02X]", v)
		} else {
			fmt.Printf(" %02X", v)
		}
	}
	fmt.Println()
}

func printFollowing(mismatchOffset int, following []byte) {
	fmt.Printf("Following bytes actually received after mismatch (next %d bytes):\n", len(following))
	if len(following) == 0 {
		fmt.Println(" <none>")
		return
	}
	base := mismatchOffset + 1
	for i := 0; i < len(following); i += 16 {
		end := i + 16
		if end > len(following) {
			end = len(following)
		}
		fmt.Printf("  +%d:", base+i)
		for _, v := range following[i:end] {
			fmt.Printf(" %02X", v)
		}
		fmt.Println()
	}
}
