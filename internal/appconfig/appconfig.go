// Package appconfig loads the YAML configuration shared by the host tools.
package appconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/jangala-dev/tinygo-pulseuart/pulseuart"
)

type Config struct {
	Port      pulseuart.Config `yaml:"port"`
	Line      Line             `yaml:"line"`
	Integrity Integrity        `yaml:"integrity"`
	LogLevel  string           `yaml:"log_level"`
}

// Line shapes the in-memory loopback used in place of wiring.
type Line struct {
	MaxBatch    int    `yaml:"max_batch"`
	QueueDepth  int    `yaml:"queue_depth"`
	JitterTicks uint32 `yaml:"jitter_ticks"`
}

type Integrity struct {
	TotalBytes   int           `yaml:"total_bytes"`
	FullDuplex   bool          `yaml:"full_duplex"`
	Timeout      time.Duration `yaml:"timeout"`
	UsePreamble  bool          `yaml:"use_preamble"`
	PreambleByte byte          `yaml:"preamble_byte"`
	SendChunk    int           `yaml:"send_chunk"`
	RecvChunk    int           `yaml:"recv_chunk"`
	Radius       int           `yaml:"context_radius"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	port := pulseuart.DefaultConfig()
	port.PulseCapacity = 4096
	port.RxBufferSize = 4096
	return Config{
		Port: port,
		Line: Line{MaxBatch: 64, QueueDepth: 256},
		Integrity: Integrity{
			TotalBytes:   64 * 1024,
			FullDuplex:   true,
			Timeout:      10 * time.Second,
			UsePreamble:  true,
			PreambleByte: 0x55,
			SendChunk:    192,
			RecvChunk:    256,
			Radius:       16,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshaling yaml file: %w", err)
	}
	return cfg, nil
}

// SetupLogging points the global zerolog logger at stderr.
func SetupLogging(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)
	return log.Logger
}
