package bridge

import (
	"github.com/leandrodaf/midibridge/internal/clock"
	"github.com/leandrodaf/midibridge/internal/engine/tickengine"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// DefaultClientName is announced to the engine when no name is configured.
const DefaultClientName = "GO MIDI Bridge"

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
// The source is left alone; NewBridge picks the platform source when none was given.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized options with defaults applied.
//   - error: An error if there was an issue applying the options.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}

	if options.ClientName == "" {
		options.ClientName = DefaultClientName
	}
	if options.Clock == nil {
		options.Clock = clock.NewSystem()
	}
	if options.Engine == nil {
		options.Engine = tickengine.New(options.EngineConfig, options.Clock, options.Logger)
	}
	return *options, nil
}
