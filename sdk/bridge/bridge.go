// Package bridge assembles the event chain, the deadline estimator, the engine client and
// the dispatcher into a contracts.Bridge.
package bridge

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/internal/chain"
	"github.com/leandrodaf/midibridge/internal/cycleclient"
	"github.com/leandrodaf/midibridge/internal/dispatch"
	"github.com/leandrodaf/midibridge/internal/telemetry"
	"github.com/leandrodaf/midibridge/internal/timing"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// dropCounter is implemented by sources that buffer pushed events and may drop them.
type dropCounter interface {
	Dropped() int64
}

type bridge struct {
	name   string
	logger contracts.Logger
	source contracts.Source

	chain      *chain.Chain
	timing     *timing.Estimator
	client     *cycleclient.Client
	dispatcher *dispatch.Dispatcher

	// mu serializes the bridge transitions; the components lock on their own.
	mu     sync.Mutex
	closed bool
}

func newBridge(opts contracts.ClientOptions) *bridge {
	c := chain.New(chain.Config{
		PollTimeout: opts.Chain.PollTimeout,
		StopGrace:   opts.Chain.StopGrace,
		Buffer:      opts.Chain.Buffer,
	}, opts.Logger)
	estimator := timing.New(opts.Clock, opts.Engine, opts.JitterMargin, opts.Logger)

	b := &bridge{
		name:       opts.ClientName,
		logger:     opts.Logger,
		source:     opts.Source,
		chain:      c,
		timing:     estimator,
		client:     cycleclient.New(opts.Engine, estimator, opts.Logger),
		dispatcher: dispatch.New(c, opts.Consumer, opts.EventFilter, opts.Logger),
	}

	if err := telemetry.ObserveStats(opts.Meter, opts.ClientName, b.Stats); err != nil {
		opts.Logger.Warn("cannot register bridge metrics", opts.Logger.Field().Error("error", err))
	}
	return b
}

// Open connects to the engine and registers the dispatcher as cycle callback.
func (b *bridge) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("%w: bridge is closed", contracts.ErrBadState)
	}
	if err := b.client.Open(b.name); err != nil {
		return err
	}
	if err := b.client.RegisterProcessCallback(b.dispatcher.Process); err != nil {
		b.client.Close()
		return err
	}
	return nil
}

// Start begins listening on the source and then activates the engine, so the first cycle
// already finds a running chain.
func (b *bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if state := b.client.State(); state != contracts.ClientIdle {
		return fmt.Errorf("%w: cannot start bridge with engine client %s", contracts.ErrBadState, state)
	}
	if err := b.chain.Start(b.source); err != nil {
		return err
	}
	if err := b.client.Activate(); err != nil {
		b.chain.Stop()
		return err
	}
	b.logger.Info("bridge started", b.logger.Field().String("session", b.chain.Session()))
	return nil
}

// Stop deactivates the engine before stopping the chain so no cycle drains a stopping chain.
func (b *bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

func (b *bridge) stopLocked() {
	b.client.Stop()
	b.chain.Stop()
}

// Close stops the bridge and releases the engine and the source. Further calls do nothing.
func (b *bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.stopLocked()
	b.client.Close()
	if err := b.source.Close(); err != nil {
		return fmt.Errorf("close source: %w", err)
	}
	b.logger.Info("bridge closed")
	return nil
}

// Stats returns the current diagnostics.
func (b *bridge) Stats() contracts.Stats {
	return contracts.Stats{
		ChainState:  b.chain.State(),
		ClientState: b.client.State(),
		Batches:     b.chain.BatchCount(),
		Resets:      b.timing.Resets(),
		Fallbacks:   b.timing.Fallbacks(),
		Cycles:      b.dispatcher.Cycles(),
		Delivered:   b.dispatcher.Delivered(),
		Filtered:    b.dispatcher.Filtered(),
		Dropped:     b.dropped(),
	}
}

func (b *bridge) dropped() int64 {
	if counter, ok := b.source.(dropCounter); ok {
		return counter.Dropped()
	}
	return 0
}

// Name returns the name the engine assigned to this client.
func (b *bridge) Name() string {
	return b.client.Name()
}
