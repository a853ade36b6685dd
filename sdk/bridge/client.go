package bridge

import (
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// NewBridge creates a MIDI bridge with the specified options.
// It applies default options, picks the platform source unless one was given and wires
// the event chain to the engine's cycle.
//
// opts ...contracts.Option: A variadic list of option functions to customize the bridge configuration.
//
// Returns:
//   - contracts.Bridge: A closed bridge; call Open and Start to begin delivering events.
//   - error: An error, if the platform source could not be created.
func NewBridge(opts ...contracts.Option) (contracts.Bridge, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	if options.Source == nil {
		options.Source, err = NewSource(&options)
		if err != nil {
			options.Logger.Error("cannot create MIDI source", options.Logger.Field().Error("error", err))
			return nil, err
		}
	}

	return newBridge(options), nil
}
