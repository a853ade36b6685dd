// Package timing reconciles the engine's cycle boundaries with the clock that stamps
// incoming events.
//
// Each cycle needs one cutoff instant, the deadline: events stamped at or before it
// belong to the current cycle. The estimator advances the previous deadline by one cycle
// length while that stays plausible, and re-derives it from the engine's timing
// information otherwise.
package timing

import (
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"golang.org/x/time/rate"
)

// DefaultJitterMargin compensates for scheduling jitter between the engine and the system clock.
const DefaultJitterMargin = 500 * time.Microsecond

// Estimator computes per-cycle deadlines.
//
// Deadline and Invalidate must be called from a single goroutine at a time: the engine's
// cycle goroutine, or a control goroutine while the engine is not running.
// Resets and Fallbacks may be read from anywhere.
type Estimator struct {
	clock  contracts.Clock
	query  contracts.CycleQuery
	jitter time.Duration
	logger contracts.Logger

	previous contracts.Instant
	cycle    time.Duration

	resets    atomic.Int64
	fallbacks atomic.Int64

	errLog *rate.Limiter
}

// New creates an estimator. A non-positive jitter selects DefaultJitterMargin.
func New(clock contracts.Clock, query contracts.CycleQuery, jitter time.Duration, logger contracts.Logger) *Estimator {
	if jitter <= 0 {
		jitter = DefaultJitterMargin
	}
	return &Estimator{
		clock:  clock,
		query:  query,
		jitter: jitter,
		logger: logger,
		errLog: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Deadline returns the cutoff for events of the current cycle. It never fails.
func (e *Estimator) Deadline() contracts.Instant {
	if e.cycle > 0 {
		candidate := e.previous.Add(e.cycle)
		if e.plausible(candidate) {
			e.previous = candidate
			return candidate
		}
	}
	return e.reset()
}

// plausible reports whether the candidate lies (within the jitter margin) in the previous cycle.
func (e *Estimator) plausible(candidate contracts.Instant) bool {
	now := e.clock.Now()
	if candidate >= now {
		e.logger.Debug("deadline too late", e.logger.Field().Duration("by", candidate.Sub(now)))
		return false
	}
	earliest := now.Add(-e.cycle - e.jitter)
	if candidate < earliest {
		e.logger.Debug("deadline too early", e.logger.Field().Duration("by", earliest.Sub(candidate)))
		return false
	}
	return true
}

// reset derives the deadline from the engine's position in the current cycle.
// When the engine cannot answer, the deadline falls back to now and the cycle length is
// cleared so that the next cycle resets again.
func (e *Estimator) reset() contracts.Instant {
	e.resets.Add(1)

	times, err := e.query.CycleTimes()
	if err != nil || times.Period <= 0 {
		e.fallbacks.Add(1)
		e.cycle = 0
		if e.errLog.Allow() {
			e.logger.Error("cannot read engine cycle times; using current time as deadline",
				e.logger.Field().Error("error", err),
				e.logger.Field().Duration("period", times.Period))
		}
		return e.clock.Now()
	}
	e.cycle = times.Period

	elapsed := FramesToDuration(e.query.FramesSinceCycleStart(), e.query.SampleRate())
	deadline := e.clock.Now().Add(-elapsed - e.jitter)
	e.previous = deadline

	e.logger.Debug("cycle timing reset",
		e.logger.Field().Int64("count", e.resets.Load()),
		e.logger.Field().Duration("cycleLength", e.cycle))
	return deadline
}

// Invalidate forces a reset on the next cycle. Call it whenever the engine (re)starts.
func (e *Estimator) Invalidate() {
	e.cycle = 0
	e.previous = 0
	e.resets.Store(0)
}

// Resets returns the number of resets since the last Invalidate. Ideally it stays at one.
func (e *Estimator) Resets() int64 {
	return e.resets.Load()
}

// Fallbacks returns the number of cycles whose deadline fell back to the current time.
func (e *Estimator) Fallbacks() int64 {
	return e.fallbacks.Load()
}

// FramesToDuration converts a frame count at the given sample rate to a duration.
func FramesToDuration(frames, sampleRate uint32) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(uint64(frames) * uint64(time.Second) / uint64(sampleRate))
}
