// Package chain buffers event batches between a blocking source listener and a
// non-blocking periodic consumer.
//
// A single listener goroutine polls the source and hands each batch to the consumer
// side through a bounded channel. The consumer drains batches up to a deadline; a batch
// recorded after the deadline stays at the head of the chain until a later cycle.
package chain

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"golang.org/x/time/rate"
)

const (
	// DefaultPollTimeout is the bounded wait of a single source poll.
	DefaultPollTimeout = 10 * time.Millisecond
	// DefaultBuffer is the number of batches that may wait for the consumer.
	DefaultBuffer = 256
)

// Config tunes a Chain. Zero values are replaced by defaults.
type Config struct {
	PollTimeout time.Duration
	StopGrace   time.Duration
	Buffer      int
}

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 2 * c.PollTimeout
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultBuffer
	}
	return c
}

// Chain is one bridging session's event queue. The zero value is not usable; use New.
type Chain struct {
	cfg    Config
	logger contracts.Logger

	// mu serializes Start, Stop and Drain and guards links and head. Readers never take it,
	// so diagnostics cannot make Drain skip a cycle.
	mu    sync.Mutex
	links chan *Batch // nil once the session is stopped or ended
	head  *Batch      // batch received but recorded after the last deadline

	state atomic.Int32 // contracts.ChainState, written at the end of each transition
	sess  atomic.Pointer[session]

	// batches counts every batch ever produced minus every batch released, across
	// sessions, so a late release by a listener that outlived Stop still balances.
	batches atomic.Int64

	errLog *rate.Limiter
}

// session is the state shared between one listener goroutine and the chain.
type session struct {
	id     string
	cancel atomic.Bool
	quit   chan struct{} // closed by Stop to wake a listener blocked on links
	done   chan struct{} // closed by the listener when it returns
}

// New creates a stopped chain.
func New(cfg Config, logger contracts.Logger) *Chain {
	c := &Chain{
		cfg:    cfg.withDefaults(),
		logger: logger,
		errLog: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	c.state.Store(int32(contracts.ChainStopped))
	return c
}

// Start begins listening on src.
//
// Starting a running chain is a caller error: the running session is stopped first so
// that the chain is left stopped, and ErrBadState is returned.
func (c *Chain) Start(src contracts.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == contracts.ChainRunning {
		c.stopLocked()
		c.logger.Error("attempt to start the event chain twice; the running session was stopped")
		return fmt.Errorf("%w: event chain is already running", contracts.ErrBadState)
	}
	if src == nil {
		return fmt.Errorf("%w: no source", contracts.ErrBadState)
	}

	sess := &session{
		id:   uuid.NewString(),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.sess.Store(sess)
	c.links = make(chan *Batch, c.cfg.Buffer)
	c.head = nil

	go c.listen(src, sess, c.links)

	c.state.Store(int32(contracts.ChainRunning))
	c.logger.Info("event chain started",
		c.logger.Field().String("session", sess.id),
		c.logger.Field().Duration("pollTimeout", c.cfg.PollTimeout))
	return nil
}

// listen is the producer loop. Each wake-up with data yields exactly one batch, which is
// handed off before the loop polls again, so batches leave in production order.
// Closing out tells the consumer that the chain has ended.
func (c *Chain) listen(src contracts.Source, s *session, out chan<- *Batch) {
	defer close(s.done)
	defer close(out)

	for !s.cancel.Load() {
		ready, err := src.Poll(c.cfg.PollTimeout)
		if err != nil {
			if c.sourceFailed(s, "poll", err) {
				return
			}
			continue
		}
		if !ready || s.cancel.Load() {
			continue
		}

		events, err := src.Drain()
		if err != nil {
			if c.sourceFailed(s, "drain", err) {
				return
			}
			continue
		}
		if len(events) == 0 {
			continue
		}

		b := c.newBatch(src.Now(), events)
		select {
		case <-s.quit:
			c.release(b)
			return
		default:
		}
		select {
		case out <- b:
		case <-s.quit:
			c.release(b)
			return
		}
	}
}

// sourceFailed logs a source error and backs off for one poll period.
// It reports whether the listener has to end.
func (c *Chain) sourceFailed(s *session, op string, err error) bool {
	if errors.Is(err, contracts.ErrSourceClosed) {
		c.logger.Info("source closed; event chain ended", c.logger.Field().String("session", s.id))
		return true
	}
	if c.errLog.Allow() {
		c.logger.Error("source "+op+" failed",
			c.logger.Field().String("session", s.id),
			c.logger.Field().Error("error", err))
	}
	timer := time.NewTimer(c.cfg.PollTimeout)
	defer timer.Stop()
	select {
	case <-s.quit:
		return true
	case <-timer.C:
		return false
	}
}

// Drain delivers, in order, every event of every batch recorded at or before deadline.
//
// Drain never blocks: when a transition holds the chain it returns immediately, and only
// batches that are already available are considered. A batch recorded after deadline is
// kept at the head of the chain untouched. It returns the number of events delivered.
func (c *Chain) Drain(deadline contracts.Instant, fn contracts.ConsumerFunc) int {
	if !c.mu.TryLock() {
		return 0
	}
	defer c.mu.Unlock()

	delivered := 0
	for {
		b := c.head
		if b == nil {
			b = c.receive()
			if b == nil {
				return delivered
			}
		}
		if b.Timestamp > deadline {
			c.head = b
			return delivered
		}
		c.head = nil
		for _, ev := range b.Events {
			fn(ev, b.Timestamp)
		}
		delivered += len(b.Events)
		c.release(b)
	}
}

// receive takes the next batch without blocking. It returns nil when nothing is ready.
func (c *Chain) receive() *Batch {
	if c.links == nil {
		return nil
	}
	select {
	case b, ok := <-c.links:
		if !ok {
			c.links = nil
			return nil
		}
		return b
	default:
		return nil
	}
}

// Stop cancels the listener and discards every buffered batch.
//
// Stop waits for the listener to acknowledge the cancellation, but never longer than the
// configured stop grace period. It must not be called from the real-time cycle.
func (c *Chain) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Chain) stopLocked() {
	if c.State() == contracts.ChainStopped {
		return
	}

	sess := c.sess.Load()
	sess.cancel.Store(true)
	close(sess.quit)

	timer := time.NewTimer(c.cfg.StopGrace)
	select {
	case <-sess.done:
	case <-timer.C:
		c.logger.Warn("event chain listener did not acknowledge stop in time",
			c.logger.Field().String("session", sess.id),
			c.logger.Field().Duration("grace", c.cfg.StopGrace))
	}
	timer.Stop()

	c.release(c.head)
	c.head = nil
	for b := c.receive(); b != nil; b = c.receive() {
		c.release(b)
	}
	c.links = nil
	c.state.Store(int32(contracts.ChainStopped))

	c.logger.Info("event chain stopped", c.logger.Field().String("session", sess.id))
}

// State returns the current state. A transition in progress is reported once it completes.
func (c *Chain) State() contracts.ChainState {
	return contracts.ChainState(c.state.Load())
}

// HasResult reports whether at least one batch is waiting to be drained.
func (c *Chain) HasResult() bool {
	return c.BatchCount() > 0
}

// BatchCount returns the number of batches that were produced and not yet delivered or discarded.
func (c *Chain) BatchCount() int64 {
	return c.batches.Load()
}

// Session returns the id of the current or last session; empty before the first Start.
func (c *Chain) Session() string {
	if sess := c.sess.Load(); sess != nil {
		return sess.id
	}
	return ""
}
