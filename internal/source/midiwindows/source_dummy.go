//go:build !windows
// +build !windows

package midiwindows

import "github.com/leandrodaf/midibridge/sdk/contracts"

// Source is only available on Windows.
type Source struct {
	contracts.Source
}

// Open fails on every platform but Windows.
func Open(index int, clock contracts.Clock, logger contracts.Logger) (*Source, error) {
	logger.Warn("winmm source requested on a non-Windows system")
	return nil, contracts.ErrUnsupportedPlatform
}
