package contracts

import "time"

// Source is the producer side of the bridge.
//
// Poll blocks for at most timeout and reports whether events are pending.
// Drain returns all pending events in arrival order without blocking.
// Now reads the clock used to stamp batches.
type Source interface {
	Poll(timeout time.Duration) (bool, error)
	Drain() ([]RawEvent, error)
	Now() Instant
	Close() error
}
