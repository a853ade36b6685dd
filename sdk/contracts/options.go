package contracts

import (
	"time"

	"go.opentelemetry.io/otel/metric"
)

// MIDICommand represents the types of MIDI commands for event filtering.
type MIDICommand byte

const (
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
	// ControlChange is the MIDI command for a Control Change event (0xB0).
	ControlChange MIDICommand = 0xB0
	// PitchBend is the MIDI command for a Pitch Bend event (0xE0).
	PitchBend MIDICommand = 0xE0
)

// EventFilter allows users to specify which MIDI commands reach the consumer.
type EventFilter struct {
	Commands []MIDICommand // List of MIDI commands to deliver; everything else is dropped.
}

// Allows reports whether the event passes the filter. A nil filter allows everything.
func (f *EventFilter) Allows(event RawEvent) bool {
	if f == nil {
		return true
	}
	command := event.Command()
	for _, allowed := range f.Commands {
		if command == allowed {
			return true
		}
	}
	return false
}

// ChainConfig tunes the event chain.
type ChainConfig struct {
	PollTimeout time.Duration // Bounded wait of one source poll; also the cancellation latency.
	StopGrace   time.Duration // Longest time Stop waits for the listener to acknowledge.
	Buffer      int           // Batches that may wait between listener and consumer.
}

// EngineConfig configures the built-in software engine.
type EngineConfig struct {
	SampleRate uint32 // Frames per second.
	BufferSize uint32 // Frames per cycle.
}

// SourceConfig selects and configures the platform source.
type SourceConfig struct {
	Device string // Raw MIDI device node (linux), e.g. /dev/snd/midiC1D0.
	Index  int    // Index of the input endpoint (darwin, windows).
}

// ClientOptions defines the configuration options for the bridge.
type ClientOptions struct {
	Logger       Logger        // Logger for logging events and errors.
	LogLevel     LogLevel      // Level of logging to use.
	LogFilePath  string        // File path for logging if file logging is enabled.
	ClientName   string        // Desired client name announced to the engine.
	EventFilter  *EventFilter  // Optional filter for MIDI events to deliver.
	Consumer     ConsumerFunc  // Receives every delivered event.
	Source       Source        // Producer; defaults to the platform source.
	Engine       Engine        // Periodic engine; defaults to the software engine.
	Clock        Clock         // Monotonic clock shared by the timing estimator and default sources.
	Chain        ChainConfig   // Event chain tuning.
	JitterMargin time.Duration // Compensation for scheduling jitter between both clocks.
	EngineConfig EngineConfig  // Software engine configuration.
	SourceConfig SourceConfig  // Platform source configuration.
	Meter        metric.Meter  // Meter used to publish the diagnostics; nil disables them.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the bridge.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the bridge.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile writes the logs to the given file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithClientName sets the name announced to the engine.
func WithClientName(name string) Option {
	return func(opts *ClientOptions) {
		opts.ClientName = name
	}
}

// WithEventFilter sets the MIDI event filter.
func WithEventFilter(filter EventFilter) Option {
	return func(opts *ClientOptions) {
		opts.EventFilter = &filter
	}
}

// WithConsumer sets the function that receives the delivered events.
func WithConsumer(fn ConsumerFunc) Option {
	return func(opts *ClientOptions) {
		opts.Consumer = fn
	}
}

// WithSource replaces the platform source.
func WithSource(src Source) Option {
	return func(opts *ClientOptions) {
		opts.Source = src
	}
}

// WithEngine replaces the software engine.
func WithEngine(engine Engine) Option {
	return func(opts *ClientOptions) {
		opts.Engine = engine
	}
}

// WithClock replaces the system monotonic clock.
func WithClock(clock Clock) Option {
	return func(opts *ClientOptions) {
		opts.Clock = clock
	}
}

// WithChainConfig tunes the event chain. Zero fields keep their defaults.
func WithChainConfig(cfg ChainConfig) Option {
	return func(opts *ClientOptions) {
		opts.Chain = cfg
	}
}

// WithJitterMargin sets the jitter compensation of the deadline estimator.
func WithJitterMargin(margin time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.JitterMargin = margin
	}
}

// WithEngineConfig configures the software engine. Zero fields keep their defaults.
func WithEngineConfig(cfg EngineConfig) Option {
	return func(opts *ClientOptions) {
		opts.EngineConfig = cfg
	}
}

// WithSourceConfig configures the platform source.
func WithSourceConfig(cfg SourceConfig) Option {
	return func(opts *ClientOptions) {
		opts.SourceConfig = cfg
	}
}

// WithMeter publishes the bridge diagnostics through the given meter.
func WithMeter(meter metric.Meter) Option {
	return func(opts *ClientOptions) {
		opts.Meter = meter
	}
}
