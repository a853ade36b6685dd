// Package config loads the bridge settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/leandrodaf/midibridge/internal/chain"
	"github.com/leandrodaf/midibridge/internal/timing"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the content of a bridge configuration file.
type Config struct {
	ClientName string        `yaml:"client_name"`
	Log        LogConfig     `yaml:"log"`
	Chain      ChainConfig   `yaml:"chain"`
	Timing     TimingConfig  `yaml:"timing"`
	Engine     EngineConfig  `yaml:"engine"`
	Source     SourceConfig  `yaml:"source"`
	Filter     *FilterConfig `yaml:"filter"`
}

// LogConfig selects the log level and an optional log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ChainConfig tunes the event chain. Durations use Go syntax, e.g. 10ms.
type ChainConfig struct {
	PollTimeout time.Duration `yaml:"poll_timeout"`
	StopGrace   time.Duration `yaml:"stop_grace"`
	Buffer      int           `yaml:"buffer"`
}

// TimingConfig tunes the deadline estimator.
type TimingConfig struct {
	JitterMargin time.Duration `yaml:"jitter_margin"`
}

// EngineConfig configures the software engine.
type EngineConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	BufferSize uint32 `yaml:"buffer_size"`
}

// SourceConfig selects the platform source: a device node on linux, an endpoint index elsewhere.
type SourceConfig struct {
	Device string `yaml:"device"`
	Index  int    `yaml:"index"`
}

// FilterConfig lists the commands delivered to the consumer by name.
type FilterConfig struct {
	Commands []string `yaml:"commands"`
}

var commandNames = map[string]contracts.MIDICommand{
	"note_on":        contracts.NoteOn,
	"note_off":       contracts.NoteOff,
	"control_change": contracts.ControlChange,
	"pitch_bend":     contracts.PitchBend,
}

func defaultConfig() *Config {
	return &Config{
		ClientName: "GO MIDI Bridge",
		Log:        LogConfig{Level: "info"},
		Chain: ChainConfig{
			PollTimeout: chain.DefaultPollTimeout,
			StopGrace:   2 * chain.DefaultPollTimeout,
			Buffer:      chain.DefaultBuffer,
		},
		Timing: TimingConfig{JitterMargin: timing.DefaultJitterMargin},
		Engine: EngineConfig{SampleRate: 48000, BufferSize: 256},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Chain.PollTimeout <= 0 {
		return fmt.Errorf("chain.poll_timeout must be positive, got %s", c.Chain.PollTimeout)
	}
	if c.Chain.Buffer < 0 {
		return fmt.Errorf("chain.buffer must not be negative, got %d", c.Chain.Buffer)
	}
	if c.Engine.SampleRate == 0 || c.Engine.BufferSize == 0 {
		return fmt.Errorf("engine.sample_rate and engine.buffer_size must be positive")
	}
	if c.Filter != nil {
		for _, name := range c.Filter.Commands {
			if _, ok := commandNames[strings.ToLower(name)]; !ok {
				return fmt.Errorf("filter: unknown command %q", name)
			}
		}
	}
	return nil
}

// LogLevel returns the configured level. Unknown names fall back to info.
func (c *Config) LogLevel() contracts.LogLevel {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return contracts.InfoLevel
	}
	return contracts.LogLevel(level)
}

// Options maps the file onto bridge options. Options given after these override them.
func (c *Config) Options() []contracts.Option {
	opts := []contracts.Option{
		contracts.WithClientName(c.ClientName),
		contracts.WithLogLevel(c.LogLevel()),
		contracts.WithChainConfig(contracts.ChainConfig{
			PollTimeout: c.Chain.PollTimeout,
			StopGrace:   c.Chain.StopGrace,
			Buffer:      c.Chain.Buffer,
		}),
		contracts.WithJitterMargin(c.Timing.JitterMargin),
		contracts.WithEngineConfig(contracts.EngineConfig{
			SampleRate: c.Engine.SampleRate,
			BufferSize: c.Engine.BufferSize,
		}),
		contracts.WithSourceConfig(contracts.SourceConfig{
			Device: c.Source.Device,
			Index:  c.Source.Index,
		}),
	}
	if c.Log.File != "" {
		opts = append(opts, contracts.WithLogFile(c.Log.File))
	}
	if c.Filter != nil {
		filter := contracts.EventFilter{}
		for _, name := range c.Filter.Commands {
			filter.Commands = append(filter.Commands, commandNames[strings.ToLower(name)])
		}
		opts = append(opts, contracts.WithEventFilter(filter))
	}
	return opts
}
