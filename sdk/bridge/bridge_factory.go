package bridge

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midibridge/internal/source/mididarwin"
	"github.com/leandrodaf/midibridge/internal/source/midiwindows"
	"github.com/leandrodaf/midibridge/internal/source/rawmidi"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system has no MIDI source.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// DefaultRawMIDIDevice is the first device of the first sound card.
const DefaultRawMIDIDevice = "/dev/snd/midiC0D0"

// sourceInitializers maps OS names to corresponding MIDI source initializers.
var sourceInitializers = map[string]func(*contracts.ClientOptions) (contracts.Source, error){
	"darwin":  newCoreMIDISource, // macOS (Darwin) CoreMIDI endpoint.
	"windows": newWinMMSource,    // Windows winmm input device.
	"linux":   newRawMIDISource,  // ALSA raw MIDI device node.
}

// NewSource opens the MIDI source of the current operating system.
// It returns ErrUnsupportedOS when the OS has no source.
func NewSource(opts *contracts.ClientOptions) (contracts.Source, error) {
	return newSourceFor(runtime.GOOS, opts)
}

func newSourceFor(goos string, opts *contracts.ClientOptions) (contracts.Source, error) {
	if initializer, exists := sourceInitializers[goos]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
}

func newCoreMIDISource(opts *contracts.ClientOptions) (contracts.Source, error) {
	src, err := mididarwin.Open(opts.ClientName, opts.SourceConfig.Index, opts.Clock, opts.Logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newWinMMSource(opts *contracts.ClientOptions) (contracts.Source, error) {
	src, err := midiwindows.Open(opts.SourceConfig.Index, opts.Clock, opts.Logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newRawMIDISource(opts *contracts.ClientOptions) (contracts.Source, error) {
	device := opts.SourceConfig.Device
	if device == "" {
		device = DefaultRawMIDIDevice
	}
	src, err := rawmidi.Open(device, opts.Clock, opts.Logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}
