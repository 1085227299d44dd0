package pulseuart

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestConfig_UnmarshalYAML(t *testing.T) {
	cfg := DefaultConfig()
	err := yaml.Unmarshal([]byte(`
baud_rate: 9600
mode: rx
recovery: resync
read_timeout: 250ms
pulse_capacity: 640
`), &cfg)
	require.NoError(t, err)
	require.Equal(t, uint32(9600), cfg.BaudRate)
	require.Equal(t, ModeRx, cfg.Mode)
	require.Equal(t, RecoverResync, cfg.Recovery)
	require.Equal(t, 250*time.Millisecond, cfg.ReadTimeout)
	require.Equal(t, 640, cfg.PulseCapacity)
	// untouched keys keep their defaults
	require.Equal(t, uint32(DefaultSourceClockHz), cfg.SourceClockHz)
	require.Equal(t, DefaultRxBufferSize, cfg.RxBufferSize)
}

func TestConfig_UnmarshalYAMLBadMode(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte("mode: sideways\n"), &cfg)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBadConfig), "err=%v", err)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":      ModeTxRx,
		"TX_RX": ModeTxRx,
		"tx":    ModeTx,
		" Rx ":  ModeRx,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseMode("duplex")
	require.Error(t, err)
}

func TestMode_Directions(t *testing.T) {
	require.True(t, ModeTxRx.CanSend() && ModeTxRx.CanReceive())
	require.True(t, ModeTx.CanSend())
	require.False(t, ModeTx.CanReceive())
	require.False(t, ModeRx.CanSend())
	require.True(t, ModeRx.CanReceive())
	require.Equal(t, "tx", ModeTx.String())
}

func TestParseRecovery(t *testing.T) {
	r, err := ParseRecovery("AS_IS")
	require.NoError(t, err)
	require.Equal(t, RecoverAsIs, r)
	_, err = ParseRecovery("retry")
	require.True(t, errors.Is(err, ErrBadConfig))
}

func TestConfig_Validate(t *testing.T) {
	tm, err := DefaultConfig().Validate()
	require.NoError(t, err)
	require.Equal(t, BitPeriod(53), tm.BitPeriod)

	bad := []func(*Config){
		func(c *Config) { c.BaudRate = 0 },
		func(c *Config) { c.Mode = 7 },
		func(c *Config) { c.PulseCapacity = PulsesPerByte - 1 },
		func(c *Config) { c.PulseCapacity = -1 },
		func(c *Config) { c.RxBufferSize = -1 },
		func(c *Config) { c.ReadTimeout = -time.Second },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		_, err := c.Validate()
		require.True(t, errors.Is(err, ErrBadConfig), "case %d: err=%v", i, err)
	}

	c := DefaultConfig()
	c.SourceClockHz = 1000
	_, err = c.Validate()
	require.True(t, errors.Is(err, ErrBadTiming), "err=%v", err)
}
