//go:build !linux
// +build !linux

package rawmidi

import (
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Source is not available outside linux.
type Source struct{}

// Open always fails outside linux.
func Open(device string, clock contracts.Clock, logger contracts.Logger) (*Source, error) {
	return nil, contracts.ErrUnsupportedPlatform
}

func (s *Source) Poll(time.Duration) (bool, error) { return false, contracts.ErrUnsupportedPlatform }

func (s *Source) Drain() ([]contracts.RawEvent, error) { return nil, contracts.ErrUnsupportedPlatform }

func (s *Source) Now() contracts.Instant { return 0 }

func (s *Source) Close() error { return nil }
