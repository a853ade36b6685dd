// Package cycleclient guards the life cycle of a periodic engine session:
//
//	closed --Open--> idle --Activate--> running --Stop--> idle --Close--> closed
//
// Every transition holds one lock for its whole duration, engine calls included, so
// state queries never observe a half-applied transition.
package cycleclient

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midibridge/internal/timing"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Client drives one engine session and feeds the per-cycle deadline to a callback.
type Client struct {
	engine contracts.Engine
	timing *timing.Estimator
	logger contracts.Logger

	mu    sync.Mutex
	state contracts.ClientState

	callback atomic.Pointer[contracts.CycleFunc]
}

// New creates a closed client. The estimator must query the same engine.
func New(engine contracts.Engine, estimator *timing.Estimator, logger contracts.Logger) *Client {
	return &Client{
		engine: engine,
		timing: estimator,
		logger: logger,
		state:  contracts.ClientClosed,
	}
}

// Open starts an engine session under the given name.
func (c *Client) Open(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != contracts.ClientClosed {
		return fmt.Errorf("%w: cannot open engine client in state %s", contracts.ErrBadState, c.state)
	}
	if err := c.engine.Open(name); err != nil {
		c.logger.Error("cannot open engine client",
			c.logger.Field().String("name", name),
			c.logger.Field().Error("error", err))
		return fmt.Errorf("%w: open: %v", contracts.ErrEngineFailure, err)
	}
	c.state = contracts.ClientIdle
	c.logger.Info("engine client opened", c.logger.Field().String("name", c.engine.Name()))
	return nil
}

// RegisterProcessCallback installs fn as the per-cycle callback. The client must be idle.
func (c *Client) RegisterProcessCallback(fn contracts.CycleFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != contracts.ClientIdle {
		return fmt.Errorf("%w: cannot register callback in state %s", contracts.ErrBadState, c.state)
	}
	c.callback.Store(&fn)
	if err := c.engine.SetProcessCallback(c.process); err != nil {
		return fmt.Errorf("%w: set process callback: %v", contracts.ErrEngineFailure, err)
	}
	return nil
}

// process runs on the engine's cycle goroutine.
func (c *Client) process(nFrames uint32) int {
	fn := c.callback.Load()
	if fn == nil || *fn == nil {
		return 0
	}
	return (*fn)(nFrames, c.timing.Deadline())
}

// Activate makes the engine invoke the callback on every cycle. The client must be idle.
func (c *Client) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != contracts.ClientIdle {
		return fmt.Errorf("%w: cannot activate engine client in state %s", contracts.ErrBadState, c.state)
	}
	c.timing.Invalidate()
	if err := c.engine.Activate(); err != nil {
		c.logger.Error("cannot activate engine client", c.logger.Field().Error("error", err))
		return fmt.Errorf("%w: activate: %v", contracts.ErrEngineFailure, err)
	}
	c.state = contracts.ClientRunning
	c.logger.Info("engine client activated")
	return nil
}

// Stop deactivates a running client. It does nothing in any other state.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Client) stopLocked() {
	if c.state != contracts.ClientRunning {
		return
	}
	if err := c.engine.Deactivate(); err != nil {
		c.logger.Error("engine deactivation failed", c.logger.Field().Error("error", err))
	}
	c.state = contracts.ClientIdle
	c.logger.Info("engine client stopped")
}

// Close stops the client if needed and ends the engine session.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == contracts.ClientClosed {
		return
	}
	c.stopLocked()
	if err := c.engine.Close(); err != nil {
		c.logger.Error("engine close failed", c.logger.Field().Error("error", err))
	}
	c.state = contracts.ClientClosed
	c.logger.Info("engine client closed")
}

// State returns the current state. It blocks while a transition is in progress.
func (c *Client) State() contracts.ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Name returns the name the engine assigned to this client, or "" while closed.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == contracts.ClientClosed {
		return ""
	}
	return c.engine.Name()
}
