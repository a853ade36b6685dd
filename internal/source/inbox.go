// Package source holds the producers that feed the event chain.
//
// Platform drivers deliver events from their own callback threads. Inbox turns those
// pushes into the poll-then-drain shape the chain's listener expects.
package source

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// DefaultInboxLimit bounds the events an inbox holds between two drains.
const DefaultInboxLimit = 4096

// Inbox collects pushed events until they are drained. It is safe for concurrent use.
type Inbox struct {
	mu      sync.Mutex
	pending []contracts.RawEvent
	closed  bool
	limit   int

	signal  chan struct{}
	dropped atomic.Int64
}

// NewInbox creates an inbox that holds at most limit events. A non-positive limit
// selects DefaultInboxLimit.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	return &Inbox{
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

// Push appends an event. It never blocks; it reports false when the event was dropped
// because the inbox is full or closed.
func (b *Inbox) Push(event contracts.RawEvent) bool {
	b.mu.Lock()
	if b.closed || len(b.pending) >= b.limit {
		b.mu.Unlock()
		b.dropped.Add(1)
		return false
	}
	b.pending = append(b.pending, event)
	b.mu.Unlock()

	b.notify()
	return true
}

func (b *Inbox) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Poll waits up to timeout for pending events.
func (b *Inbox) Poll(timeout time.Duration) (bool, error) {
	if ready, err := b.ready(); ready || err != nil {
		return ready, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.signal:
	case <-timer.C:
	}
	return b.ready()
}

func (b *Inbox) ready() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, contracts.ErrSourceClosed
	}
	return len(b.pending) > 0, nil
}

// Drain takes every pending event, oldest first.
func (b *Inbox) Drain() ([]contracts.RawEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, contracts.ErrSourceClosed
	}
	events := b.pending
	b.pending = nil
	return events, nil
}

// Close discards pending events and wakes a waiting Poll. Later calls return
// contracts.ErrSourceClosed.
func (b *Inbox) Close() error {
	b.mu.Lock()
	b.closed = true
	b.pending = nil
	b.mu.Unlock()

	b.notify()
	return nil
}

// Dropped returns the number of events rejected by Push.
func (b *Inbox) Dropped() int64 {
	return b.dropped.Load()
}
