// Package clock provides the monotonic clocks used to stamp event batches and to
// estimate cycle deadlines.
package clock

import (
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// System reads Go's monotonic clock relative to the moment it was created.
type System struct {
	origin time.Time
}

// NewSystem creates a system clock whose origin is now.
func NewSystem() *System {
	return &System{origin: time.Now()}
}

// Now returns the time elapsed since the origin.
func (s *System) Now() contracts.Instant {
	return contracts.InstantFromDuration(time.Since(s.origin))
}

// Instant converts a wall-clock reading taken by the caller to this clock's time base.
func (s *System) Instant(t time.Time) contracts.Instant {
	return contracts.InstantFromDuration(t.Sub(s.origin))
}

// Manual is a clock that only moves when told to. It is safe for concurrent use.
type Manual struct {
	now atomic.Int64
}

// NewManual creates a manual clock reading at.
func NewManual(at time.Duration) *Manual {
	m := &Manual{}
	m.now.Store(int64(at))
	return m
}

// Now returns the current reading.
func (m *Manual) Now() contracts.Instant {
	return contracts.Instant(m.now.Load())
}

// Set moves the clock to at.
func (m *Manual) Set(at time.Duration) {
	m.now.Store(int64(at))
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.now.Add(int64(d))
}
