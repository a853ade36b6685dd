//go:build !darwin
// +build !darwin

package mididarwin

import "github.com/leandrodaf/midibridge/sdk/contracts"

// Source is only available on macOS.
type Source struct {
	contracts.Source
}

// Open fails on every platform but macOS.
func Open(name string, index int, clock contracts.Clock, logger contracts.Logger) (*Source, error) {
	logger.Warn("CoreMIDI source requested on a non-macOS system")
	return nil, contracts.ErrUnsupportedPlatform
}
