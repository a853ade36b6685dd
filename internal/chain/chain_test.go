package chain

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

const farFuture = contracts.Instant(math.MaxInt64)

type scriptedBatch struct {
	at     time.Duration
	events []contracts.RawEvent
}

// scriptedSource wakes once per queued batch and stamps it with the scripted instant.
type scriptedSource struct {
	pending chan scriptedBatch
	failing atomic.Int32
	closed  atomic.Bool

	mu      sync.Mutex
	current *scriptedBatch
	stamp   contracts.Instant
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{pending: make(chan scriptedBatch, 1024)}
}

func (s *scriptedSource) emit(at time.Duration, keys ...uint8) {
	events := make([]contracts.RawEvent, len(keys))
	for i, k := range keys {
		events[i] = note(k)
	}
	s.pending <- scriptedBatch{at: at, events: events}
}

func (s *scriptedSource) Poll(timeout time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, contracts.ErrSourceClosed
	}
	if s.failing.Load() > 0 {
		s.failing.Add(-1)
		return false, errors.New("device hiccup")
	}
	s.mu.Lock()
	ready := s.current != nil
	s.mu.Unlock()
	if ready {
		return true, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-s.pending:
		s.mu.Lock()
		s.current = &b
		s.mu.Unlock()
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

func (s *scriptedSource) Drain() ([]contracts.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, nil
	}
	events := s.current.events
	s.stamp = contracts.InstantFromDuration(s.current.at)
	s.current = nil
	return events, nil
}

func (s *scriptedSource) Now() contracts.Instant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stamp
}

func (s *scriptedSource) Close() error {
	s.closed.Store(true)
	return nil
}

func note(key uint8) contracts.RawEvent {
	return contracts.RawEvent{Msg: midi.NoteOn(0, key, 100)}
}

func ms(n int) contracts.Instant {
	return contracts.InstantFromDuration(time.Duration(n) * time.Millisecond)
}

type delivery struct {
	key uint8
	ts  contracts.Instant
}

type recorder struct {
	got []delivery
}

func (r *recorder) consume(ev contracts.RawEvent, ts contracts.Instant) {
	r.got = append(r.got, delivery{key: ev.Msg[1], ts: ts})
}

func newTestChain() *Chain {
	return New(Config{PollTimeout: 2 * time.Millisecond}, logger.NewNopLogger())
}

func waitForBatches(t *testing.T, c *Chain, n int64) {
	t.Helper()
	require.Eventually(t, func() bool { return c.BatchCount() == n }, 2*time.Second, time.Millisecond,
		"expected %d buffered batches", n)
}

func TestChain_StartStop(t *testing.T) {
	c := newTestChain()
	assert.Equal(t, contracts.ChainStopped, c.State())
	assert.Empty(t, c.Session())

	require.NoError(t, c.Start(newScriptedSource()))
	assert.Equal(t, contracts.ChainRunning, c.State())
	assert.NotEmpty(t, c.Session())

	time.Sleep(5 * time.Millisecond)
	c.Stop()
	assert.Equal(t, contracts.ChainStopped, c.State())
	assert.Equal(t, int64(0), c.BatchCount())
}

func TestChain_DrainUpToDeadline(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	src.emit(10*time.Millisecond, 10)
	src.emit(20*time.Millisecond, 20)
	src.emit(30*time.Millisecond, 30)

	require.NoError(t, c.Start(src))
	defer c.Stop()
	waitForBatches(t, c, 3)

	var r recorder
	n := c.Drain(ms(25), r.consume)
	assert.Equal(t, 2, n)
	assert.Equal(t, []delivery{{10, ms(10)}, {20, ms(20)}}, r.got)
	assert.True(t, c.HasResult(), "the t=30 batch stays at the head")
	assert.Equal(t, int64(1), c.BatchCount())

	r.got = nil
	n = c.Drain(ms(35), r.consume)
	assert.Equal(t, 1, n)
	assert.Equal(t, []delivery{{30, ms(30)}}, r.got)
	assert.False(t, c.HasResult())
	assert.Equal(t, int64(0), c.BatchCount())
}

func TestChain_PushBackKeepsBatchUntouched(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	src.emit(50*time.Millisecond, 1, 2, 3)

	require.NoError(t, c.Start(src))
	defer c.Stop()
	waitForBatches(t, c, 1)

	var r recorder
	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, c.Drain(ms(40), r.consume))
		assert.True(t, c.HasResult())
		assert.Equal(t, int64(1), c.BatchCount())
	}
	assert.Empty(t, r.got)

	assert.Equal(t, 3, c.Drain(ms(50), r.consume))
	assert.Equal(t, []delivery{{1, ms(50)}, {2, ms(50)}, {3, ms(50)}}, r.got)
}

func TestChain_DeliversEveryEventExactlyOnceInOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := newTestChain()
	src := newScriptedSource()

	const batches = 200
	var key uint8
	var want []delivery
	at := time.Duration(0)
	for i := 0; i < batches; i++ {
		at += time.Duration(1+rng.Intn(5)) * time.Millisecond
		size := 1 + rng.Intn(3)
		keys := make([]uint8, size)
		for j := range keys {
			keys[j] = key % 128
			want = append(want, delivery{key: keys[j], ts: contracts.InstantFromDuration(at)})
			key++
		}
		src.emit(at, keys...)
	}

	require.NoError(t, c.Start(src))
	defer c.Stop()

	var r recorder
	deadline := contracts.Instant(0)
	end := contracts.InstantFromDuration(at)
	for deadline < end {
		deadline = deadline.Add(time.Duration(rng.Intn(4)) * time.Millisecond)
		c.Drain(deadline, r.consume)
		for _, d := range r.got {
			require.LessOrEqual(t, d.ts, deadline, "event delivered past its deadline")
		}
	}
	require.Eventually(t, func() bool {
		c.Drain(end, r.consume)
		return len(r.got) >= len(want)
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, want, r.got)
	assert.Equal(t, int64(0), c.BatchCount())
}

func TestChain_StopDiscardsBufferedBatches(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	src.emit(10*time.Millisecond, 1)
	src.emit(20*time.Millisecond, 2)

	require.NoError(t, c.Start(src))
	waitForBatches(t, c, 2)

	c.Stop()
	assert.Equal(t, int64(0), c.BatchCount())
	assert.False(t, c.HasResult())

	fresh := newScriptedSource()
	fresh.emit(30*time.Millisecond, 3)
	require.NoError(t, c.Start(fresh))
	defer c.Stop()
	assert.Equal(t, contracts.ChainRunning, c.State())
	waitForBatches(t, c, 1)

	var r recorder
	c.Drain(farFuture, r.consume)
	assert.Equal(t, []delivery{{3, ms(30)}}, r.got, "events recorded before Stop must not be delivered")
}

func TestChain_StartTwiceFailsAndStops(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	require.NoError(t, c.Start(src))

	err := c.Start(src)
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrBadState)
	assert.Equal(t, contracts.ChainStopped, c.State())
	assert.Equal(t, int64(0), c.BatchCount())

	require.NoError(t, c.Start(src), "the chain can be started again after the failed start")
	c.Stop()
}

func TestChain_StartWithoutSource(t *testing.T) {
	c := newTestChain()
	assert.ErrorIs(t, c.Start(nil), contracts.ErrBadState)
	assert.Equal(t, contracts.ChainStopped, c.State())
}

func TestChain_ConcurrentStop(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	for i := 0; i < 10; i++ {
		src.emit(time.Duration(i)*time.Millisecond, uint8(i))
	}
	require.NoError(t, c.Start(src))
	waitForBatches(t, c, 10)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Stop()
		}()
	}
	wg.Wait()

	assert.Equal(t, contracts.ChainStopped, c.State())
	assert.Equal(t, int64(0), c.BatchCount())
}

func TestChain_DrainDoesNotWaitForTransitions(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	src.emit(time.Millisecond, 1)
	require.NoError(t, c.Start(src))
	defer c.Stop()
	waitForBatches(t, c, 1)

	c.mu.Lock()
	var r recorder
	assert.Equal(t, 0, c.Drain(farFuture, r.consume))
	c.mu.Unlock()

	assert.Equal(t, 1, c.Drain(farFuture, r.consume))
}

func TestChain_DrainOnStoppedChain(t *testing.T) {
	c := newTestChain()
	var r recorder
	assert.Equal(t, 0, c.Drain(farFuture, r.consume))
	assert.Empty(t, r.got)
}

func TestChain_EndsWhenSourceCloses(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	src.emit(time.Millisecond, 7)
	require.NoError(t, c.Start(src))
	defer c.Stop()
	waitForBatches(t, c, 1)

	require.NoError(t, src.Close())

	var r recorder
	require.Eventually(t, func() bool {
		c.Drain(farFuture, r.consume)
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.links == nil
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, []delivery{{7, ms(1)}}, r.got, "batches produced before the end are still delivered")
	assert.Equal(t, contracts.ChainRunning, c.State())
	assert.Equal(t, 0, c.Drain(farFuture, r.consume))
}

func TestChain_RecoversFromSourceErrors(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	src.failing.Store(3)
	src.emit(time.Millisecond, 9)
	require.NoError(t, c.Start(src))
	defer c.Stop()

	waitForBatches(t, c, 1)
	var r recorder
	assert.Equal(t, 1, c.Drain(farFuture, r.consume))
}

func TestChain_BatchCountPairsProductionAndRelease(t *testing.T) {
	c := newTestChain()
	first := c.newBatch(ms(1), []contracts.RawEvent{note(1)})
	second := c.newBatch(ms(2), []contracts.RawEvent{note(2)})
	assert.Equal(t, int64(2), c.BatchCount())

	// a batch still held by a listener that outlived Stop is released after the restart
	require.NoError(t, c.Start(newScriptedSource()))
	c.Stop()
	c.release(first)
	assert.Equal(t, int64(1), c.BatchCount())
	c.release(second)
	assert.Equal(t, int64(0), c.BatchCount())
	c.release(nil)
	assert.Equal(t, int64(0), c.BatchCount())
}

func TestChain_DiagnosticReadsDoNotCostCycles(t *testing.T) {
	c := newTestChain()
	src := newScriptedSource()
	const cycles = 100
	for i := 1; i <= cycles; i++ {
		src.emit(time.Duration(i)*time.Millisecond, uint8(i))
	}
	require.NoError(t, c.Start(src))
	defer c.Stop()
	waitForBatches(t, c, cycles)

	done := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				_ = c.State()
				_ = c.HasResult()
				_ = c.Session()
				_ = c.BatchCount()
			}
		}()
	}

	var r recorder
	for i := 1; i <= cycles; i++ {
		require.Equal(t, 1, c.Drain(ms(i), r.consume), "cycle %d delivered nothing", i)
	}
	close(done)
	readers.Wait()
	assert.Len(t, r.got, cycles)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultPollTimeout, cfg.PollTimeout)
	assert.Equal(t, 2*DefaultPollTimeout, cfg.StopGrace)
	assert.Equal(t, DefaultBuffer, cfg.Buffer)

	cfg = Config{PollTimeout: 5 * time.Millisecond}.withDefaults()
	assert.Equal(t, 10*time.Millisecond, cfg.StopGrace)
}
