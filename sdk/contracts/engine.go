package contracts

import "time"

// CycleTimes describes the cycle the engine is currently processing.
type CycleTimes struct {
	CurrentFrames uint64        // Frame counter at the start of the current cycle.
	CurrentStart  Instant       // Start of the current cycle.
	NextStart     Instant       // Expected start of the next cycle.
	Period        time.Duration // Engine's current best estimate of the cycle period.
}

// CycleQuery exposes the timing information of a periodic engine.
type CycleQuery interface {
	CycleTimes() (CycleTimes, error)
	FramesSinceCycleStart() uint32
	SampleRate() uint32
}

// ProcessFunc is invoked by the engine once per cycle with the number of frames in the cycle.
// Returning a non-zero value stops the engine.
type ProcessFunc func(nFrames uint32) int

// CycleFunc is the bridge-level cycle callback; deadline is the cutoff for events of this cycle.
type CycleFunc func(nFrames uint32, deadline Instant) int

// Engine is the periodic, real-time consumer side of the bridge.
type Engine interface {
	CycleQuery

	Open(name string) error
	Name() string
	SetProcessCallback(fn ProcessFunc) error
	Activate() error
	Deactivate() error
	Close() error
}
