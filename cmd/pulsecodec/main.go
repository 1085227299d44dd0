// cmd/pulsecodec
// Host tool for the pulse UART codec.
//
//	pulsecodec encode < data.bin > pulses.txt
//	pulsecodec decode < pulses.txt > data.bin
//	pulsecodec tap -serial /dev/ttyUSB0 -duration 10s > capture.txt
//	pulsecodec replay -serial /dev/ttyUSB0 < capture.txt
//
// encode prints line-level pulses (what a logic analyser on the wire would
// show) ending in the capture idle marker; -raw prints the inverted levels
// handed to the transmitter instead. decode accepts the same format. tap
// records traffic from a real serial port as pulse batches and replay sends
// a capture's decoded bytes out of one.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jangala-dev/tinygo-pulseuart/internal/appconfig"
	"github.com/jangala-dev/tinygo-pulseuart/internal/pulsefile"
	"github.com/jangala-dev/tinygo-pulseuart/internal/serialtap"
	"github.com/jangala-dev/tinygo-pulseuart/pulseuart"
)

// hookCounter tallies decode diagnostics.
type hookCounter struct {
	pulseuart.NopHooks
	skipped, stopErrs int
}

func (h *hookCounter) SkippedNonStart(int) { h.skipped++ }
func (h *hookCounter) MissingStopBit(pos, decoded int) {
	h.stopErrs++
	log.Debug().Int("pos", pos).Int("decoded", decoded).Msg("frame dropped")
}

type options struct {
	cfg    appconfig.Config
	bp     pulseuart.BitPeriod
	format pulsefile.Format
	raw    bool
	hexOut bool
	serial string
	dur    time.Duration
	logger zerolog.Logger
}

func main() {
	fs := flag.NewFlagSet("pulsecodec", flag.ExitOnError)
	configFile := fs.String("config", "", "YAML config file")
	baud := fs.Uint("baud", 0, "baud rate (overrides config)")
	bitPeriod := fs.Uint("bit-period", 0, "ticks per bit (overrides the derived timing)")
	format := fs.String("format", "text", "capture format: text or cbor")
	raw := fs.Bool("raw", false, "encode: print transmitter (inverted) levels")
	hexOut := fs.Bool("hex", false, "decode: print bytes as hex")
	serialPath := fs.String("serial", "", "tap/replay: serial device")
	duration := fs.Duration("duration", 0, "tap: stop after this long (0 runs until interrupted)")
	logLevel := fs.String("log-level", "", "zerolog level")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: pulsecodec encode|decode|tap|replay [flags]")
		os.Exit(2)
	}
	cmd := os.Args[1]
	_ = fs.Parse(os.Args[2:])

	cfg, err := appconfig.Load(*configFile)
	if err != nil {
		appconfig.SetupLogging("info")
		log.Fatal().Err(err).Msg("error loading config")
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	opts := options{
		cfg:    cfg,
		raw:    *raw,
		hexOut: *hexOut,
		serial: *serialPath,
		dur:    *duration,
		logger: appconfig.SetupLogging(level),
	}
	if opts.format, err = pulsefile.ParseFormat(*format); err != nil {
		log.Fatal().Err(err).Msg("bad -format")
	}

	if *baud != 0 {
		opts.cfg.Port.BaudRate = uint32(*baud)
	}
	timing, err := opts.cfg.Port.Validate()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid port config")
	}
	opts.bp = timing.BitPeriod
	if *bitPeriod != 0 {
		opts.bp = pulseuart.BitPeriod(*bitPeriod)
	}
	log.Info().Uint32("baud", timing.Baud).Uint32("bit_ticks", uint32(opts.bp)).
		Str("cmd", cmd).Str("format", string(opts.format)).Msg("starting")

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	switch cmd {
	case "encode":
		err = runEncode(opts, os.Stdin, out)
	case "decode":
		err = runDecode(opts, os.Stdin, out)
	case "tap":
		err = runTap(opts, out)
	case "replay":
		err = runReplay(opts, os.Stdin)
	default:
		log.Fatal().Str("cmd", cmd).Msg("unknown command")
	}
	if err != nil {
		out.Flush()
		log.Fatal().Err(err).Str("cmd", cmd).Msg("failed")
	}
}

func (o options) encoder() pulseuart.Encoder {
	return pulseuart.Encoder{BitPeriod: o.bp, Capacity: o.cfg.Port.PulseCapacity}
}

func (o options) decoder(h pulseuart.Hooks) *pulseuart.Decoder {
	return pulseuart.NewDecoder(o.bp,
		pulseuart.WithRecovery(o.cfg.Port.Recovery),
		pulseuart.WithDecoderHooks(h),
		pulseuart.WithDecoderLogger(o.logger),
	)
}

func runEncode(o options, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	// Offline encoding has no transmitter buffer to overflow.
	enc := o.encoder()
	enc.Capacity = 0
	pulses, err := enc.Encode(data)
	if err != nil {
		return err
	}
	if !o.raw {
		pulses = append(pulseuart.Invert(pulses), pulseuart.Pulse{Duration: 0, Level: true})
	}
	if err := o.format.Write(out, pulses); err != nil {
		return fmt.Errorf("writing pulses: %w", err)
	}
	log.Info().Int("bytes", len(data)).Int("pulses", len(pulses)).Msg("encoded")
	return nil
}

func runDecode(o options, in io.Reader, out io.Writer) error {
	batches, err := o.format.Read(in)
	if err != nil {
		return err
	}
	hooks := &hookCounter{}
	dec := o.decoder(hooks)
	var data []byte
	for _, b := range batches {
		data = dec.Decode(data, b)
	}
	if o.hexOut {
		_, err = fmt.Fprintln(out, hex.EncodeToString(data))
	} else {
		_, err = out.Write(data)
	}
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	log.Info().Int("batches", len(batches)).Int("bytes", len(data)).
		Int("skipped", hooks.skipped).Int("stop_errors", hooks.stopErrs).
		Int("pending_pos", dec.Position()).Msg("decoded")
	return nil
}

func runTap(o options, out io.Writer) error {
	if o.serial == "" {
		return fmt.Errorf("tap needs -serial")
	}
	port, err := serialtap.Open(o.serial, int(o.cfg.Port.BaudRate), 100*time.Millisecond)
	if err != nil {
		return err
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if o.dur > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.dur)
		defer cancel()
	}

	var batches [][]pulseuart.Pulse
	rec := serialtap.Recorder{Encoder: o.encoder(), Log: &o.logger}
	n, err := rec.Record(ctx, port, func(b []pulseuart.Pulse) error {
		batches = append(batches, b)
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Str("serial", o.serial).Int("bytes", n).Int("batches", len(batches)).Msg("tap done")
	return o.format.Write(out, batches...)
}

func runReplay(o options, in io.Reader) error {
	if o.serial == "" {
		return fmt.Errorf("replay needs -serial")
	}
	batches, err := o.format.Read(in)
	if err != nil {
		return err
	}
	port, err := serialtap.Open(o.serial, int(o.cfg.Port.BaudRate), 0)
	if err != nil {
		return err
	}
	defer port.Close()

	hooks := &hookCounter{}
	n, err := serialtap.Replay(port, o.decoder(hooks), batches)
	if err != nil {
		return err
	}
	log.Info().Str("serial", o.serial).Int("bytes", n).Int("stop_errors", hooks.stopErrs).Msg("replayed")
	return nil
}
