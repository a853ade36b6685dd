package contracts

import "time"

// Instant is a point in time on a monotonic clock, in nanoseconds since the clock's origin.
type Instant int64

// Add returns the instant shifted by d.
func (i Instant) Add(d time.Duration) Instant {
	return i + Instant(d)
}

// Sub returns the duration i-o.
func (i Instant) Sub(o Instant) time.Duration {
	return time.Duration(i - o)
}

// Before reports whether i lies strictly before o.
func (i Instant) Before(o Instant) bool {
	return i < o
}

// Microseconds returns the instant as an integer microsecond count.
func (i Instant) Microseconds() int64 {
	return time.Duration(i).Microseconds()
}

// InstantFromDuration converts an offset from the clock origin to an Instant.
func InstantFromDuration(d time.Duration) Instant {
	return Instant(d)
}

// Clock reads a monotonic time source.
type Clock interface {
	Now() Instant
}
