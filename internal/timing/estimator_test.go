package timing

import (
	"errors"
	"testing"
	"time"

	"github.com/leandrodaf/midibridge/internal/clock"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuery struct {
	period     time.Duration
	frames     uint32
	sampleRate uint32
	err        error
	calls      int
}

func (q *fakeQuery) CycleTimes() (contracts.CycleTimes, error) {
	q.calls++
	if q.err != nil {
		return contracts.CycleTimes{}, q.err
	}
	return contracts.CycleTimes{Period: q.period}, nil
}

func (q *fakeQuery) FramesSinceCycleStart() uint32 { return q.frames }

func (q *fakeQuery) SampleRate() uint32 { return q.sampleRate }

func us(n int64) time.Duration {
	return time.Duration(n) * time.Microsecond
}

func newEstimator(now time.Duration, q *fakeQuery) (*Estimator, *clock.Manual) {
	clk := clock.NewManual(now)
	return New(clk, q, 500*time.Microsecond, logger.NewNopLogger()), clk
}

func TestEstimator_FirstDeadlineResets(t *testing.T) {
	q := &fakeQuery{period: us(1000), frames: 48, sampleRate: 48000}
	e, _ := newEstimator(us(100000), q)

	deadline := e.Deadline()

	// now - 1ms elapsed in the cycle - 0.5ms jitter
	assert.Equal(t, int64(98500), deadline.Microseconds())
	assert.Equal(t, int64(1), e.Resets())
	assert.Equal(t, us(1000), e.cycle)
	assert.Equal(t, deadline, e.previous)
}

func TestEstimator_CandidateTooLateTriggersReset(t *testing.T) {
	q := &fakeQuery{period: us(1000), frames: 0, sampleRate: 48000}
	e, _ := newEstimator(us(100700), q)
	e.previous = contracts.InstantFromDuration(us(100000))
	e.cycle = us(1000)

	deadline := e.Deadline()

	// candidate 101000us >= now 100700us, so the timing is re-derived from the engine
	assert.Equal(t, 1, q.calls)
	assert.Equal(t, int64(1), e.Resets())
	assert.Equal(t, int64(100200), deadline.Microseconds())
}

func TestEstimator_PlausibleCandidateIsAccepted(t *testing.T) {
	q := &fakeQuery{period: us(1000), sampleRate: 48000}
	e, _ := newEstimator(us(102000), q)
	e.previous = contracts.InstantFromDuration(us(100000))
	e.cycle = us(1000)

	deadline := e.Deadline()

	// candidate 101000us is before now and not earlier than 102000-1000-500 = 100500us
	assert.Equal(t, int64(101000), deadline.Microseconds())
	assert.Equal(t, 0, q.calls)
	assert.Equal(t, int64(0), e.Resets())
	assert.Equal(t, deadline, e.previous)
}

func TestEstimator_CandidateTooEarlyTriggersReset(t *testing.T) {
	q := &fakeQuery{period: us(1000), sampleRate: 48000}
	e, _ := newEstimator(us(103000), q)
	e.previous = contracts.InstantFromDuration(us(100000))
	e.cycle = us(1000)

	// candidate 101000us < 103000-1000-500 = 101500us
	deadline := e.Deadline()

	assert.Equal(t, 1, q.calls)
	assert.Equal(t, int64(102500), deadline.Microseconds())
}

func TestEstimator_FastPathIsMonotonicAcrossCycles(t *testing.T) {
	q := &fakeQuery{period: us(1000), frames: 12, sampleRate: 48000}
	e, clk := newEstimator(us(50000), q)

	previous := e.Deadline()
	for i := 0; i < 100; i++ {
		clk.Advance(us(1000))
		deadline := e.Deadline()
		require.Equal(t, us(1000), deadline.Sub(previous), "cycle %d", i)
		previous = deadline
	}
	assert.Equal(t, int64(1), e.Resets(), "a steady engine needs a single reset")
}

func TestEstimator_QueryFailureFallsBackToNow(t *testing.T) {
	q := &fakeQuery{err: errors.New("engine gone"), sampleRate: 48000}
	e, clk := newEstimator(us(70000), q)

	assert.Equal(t, clk.Now(), e.Deadline())
	assert.Equal(t, int64(1), e.Fallbacks())
	assert.Equal(t, time.Duration(0), e.cycle)

	clk.Advance(us(1000))
	assert.Equal(t, clk.Now(), e.Deadline(), "the next cycle resets again")
	assert.Equal(t, int64(2), e.Resets())
	assert.Equal(t, int64(2), e.Fallbacks())

	q.err = nil
	q.period = us(1000)
	clk.Advance(us(1000))
	assert.Equal(t, clk.Now().Add(-us(500)), e.Deadline(), "recovers once the engine answers")
	assert.Equal(t, int64(2), e.Fallbacks())
}

func TestEstimator_InvalidateForcesReset(t *testing.T) {
	q := &fakeQuery{period: us(1000), sampleRate: 48000}
	e, clk := newEstimator(us(10000), q)
	e.Deadline()
	clk.Advance(us(1000))
	e.Deadline()
	require.Equal(t, 1, q.calls)

	e.Invalidate()
	assert.Equal(t, int64(0), e.Resets())
	assert.Equal(t, contracts.Instant(0), e.previous)
	assert.Equal(t, time.Duration(0), e.cycle)

	clk.Advance(us(1000))
	e.Deadline()
	assert.Equal(t, 2, q.calls)
	assert.Equal(t, int64(1), e.Resets())
}

func TestNew_DefaultJitter(t *testing.T) {
	e := New(clock.NewManual(0), &fakeQuery{}, 0, logger.NewNopLogger())
	assert.Equal(t, DefaultJitterMargin, e.jitter)
}

func TestFramesToDuration(t *testing.T) {
	assert.Equal(t, time.Millisecond, FramesToDuration(48, 48000))
	assert.Equal(t, 5333333*time.Nanosecond, FramesToDuration(256, 48000))
	assert.Equal(t, time.Duration(0), FramesToDuration(256, 0))
}
