package pulseuart

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which directions a port uses.
type Mode uint8

const (
	ModeTxRx Mode = iota
	ModeTx
	ModeRx
)

func (m Mode) String() string {
	switch m {
	case ModeTxRx:
		return "txrx"
	case ModeTx:
		return "tx"
	case ModeRx:
		return "rx"
	}
	return "unknown"
}

// CanSend reports whether the mode includes the transmit direction.
func (m Mode) CanSend() bool { return m == ModeTxRx || m == ModeTx }

// CanReceive reports whether the mode includes the receive direction.
func (m Mode) CanReceive() bool { return m == ModeTxRx || m == ModeRx }

// ParseMode accepts "tx", "rx" and "txrx" (or "tx_rx"), case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txrx", "tx_rx", "tx-rx":
		return ModeTxRx, nil
	case "tx", "tx_only":
		return ModeTx, nil
	case "rx", "rx_only":
		return ModeRx, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrBadConfig, s)
}

// UnmarshalYAML decodes a mode name.
func (m *Mode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseRecovery accepts "as-is" (or "asis") and "resync".
func ParseRecovery(s string) (Recovery, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "as-is", "asis", "as_is":
		return RecoverAsIs, nil
	case "resync":
		return RecoverResync, nil
	}
	return 0, fmt.Errorf("%w: unknown recovery %q", ErrBadConfig, s)
}

// UnmarshalYAML decodes a recovery policy name.
func (r *Recovery) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseRecovery(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// DefaultSourceClockHz is an 80MHz peripheral clock.
const DefaultSourceClockHz = 80_000_000

// Config describes one emulated UART port.
type Config struct {
	BaudRate      uint32 `yaml:"baud_rate"`
	Mode          Mode   `yaml:"mode"`
	SourceClockHz uint32 `yaml:"source_clock_hz"`
	TicksPerBit   int    `yaml:"ticks_per_bit"`
	// PulseCapacity bounds the pulses of one write; 0 is unbounded.
	PulseCapacity int `yaml:"pulse_capacity"`
	// RxBufferSize is the decoded-byte ring size; 0 selects DefaultRxBufferSize.
	RxBufferSize int           `yaml:"rx_buffer_size"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	Recovery     Recovery      `yaml:"recovery"`
}

// DefaultConfig returns a 115200 baud TX+RX configuration.
func DefaultConfig() Config {
	return Config{
		BaudRate:      115200,
		Mode:          ModeTxRx,
		SourceClockHz: DefaultSourceClockHz,
		TicksPerBit:   DefaultTicksPerBit,
		RxBufferSize:  DefaultRxBufferSize,
		ReadTimeout:   100 * time.Millisecond,
	}
}

// Timing derives the peripheral timing for the configured baud rate.
func (c Config) Timing() (Timing, error) {
	src := c.SourceClockHz
	if src == 0 {
		src = DefaultSourceClockHz
	}
	return NewTiming(src, c.BaudRate, c.TicksPerBit)
}

// Validate checks the configuration and returns the derived timing.
func (c Config) Validate() (Timing, error) {
	if c.BaudRate == 0 {
		return Timing{}, fmt.Errorf("%w: baud rate is zero", ErrBadConfig)
	}
	if c.Mode > ModeRx {
		return Timing{}, fmt.Errorf("%w: mode %d", ErrBadConfig, c.Mode)
	}
	if c.PulseCapacity < 0 || (c.PulseCapacity > 0 && c.PulseCapacity < PulsesPerByte) {
		return Timing{}, fmt.Errorf("%w: pulse capacity %d cannot hold one byte", ErrBadConfig, c.PulseCapacity)
	}
	if c.RxBufferSize < 0 {
		return Timing{}, fmt.Errorf("%w: rx buffer size %d", ErrBadConfig, c.RxBufferSize)
	}
	if c.ReadTimeout < 0 {
		return Timing{}, fmt.Errorf("%w: read timeout %v", ErrBadConfig, c.ReadTimeout)
	}
	return c.Timing()
}
