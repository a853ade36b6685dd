package contracts

import "errors"

var (
	// ErrBadState is returned when a transition is attempted from a state that forbids it.
	ErrBadState = errors.New("bad state")
	// ErrEngineFailure is returned when the periodic engine rejects a request.
	ErrEngineFailure = errors.New("engine failure")
	// ErrSourceClosed is returned by a Source that has been closed.
	ErrSourceClosed = errors.New("source closed")
	// ErrUnsupportedPlatform is returned by sources that are not available on the running platform.
	ErrUnsupportedPlatform = errors.New("MIDI source is not available on this platform")
)
