// Package tickengine is a software periodic engine. It invokes the process callback once
// per buffer period from a dedicated goroutine, the way an audio server invokes its
// clients, and answers the timing queries the deadline estimator needs.
package tickengine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/sourcegraph/conc"
)

const (
	// DefaultSampleRate is used when the configuration leaves it unset.
	DefaultSampleRate = 48000
	// DefaultBufferSize is used when the configuration leaves it unset.
	DefaultBufferSize = 256
)

var (
	// ErrNotOpen is returned by operations that need an open engine.
	ErrNotOpen = errors.New("engine is not open")
	// ErrAlreadyOpen is returned by Open on an open engine.
	ErrAlreadyOpen = errors.New("engine is already open")
)

// Engine implements contracts.Engine with a ticker.
type Engine struct {
	clock      contracts.Clock
	logger     contracts.Logger
	sampleRate uint32
	bufferSize uint32
	period     time.Duration

	mu       sync.Mutex
	open     bool
	name     string
	callback contracts.ProcessFunc
	quit     chan struct{}
	wg       *conc.WaitGroup

	cycleStart atomic.Int64 // contracts.Instant of the current cycle
	frames     atomic.Uint64
}

// New creates a closed engine. Zero fields of cfg select the defaults.
func New(cfg contracts.EngineConfig, clock contracts.Clock, logger contracts.Logger) *Engine {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &Engine{
		clock:      clock,
		logger:     logger,
		sampleRate: cfg.SampleRate,
		bufferSize: cfg.BufferSize,
		period:     time.Duration(uint64(cfg.BufferSize) * uint64(time.Second) / uint64(cfg.SampleRate)),
	}
}

// Open starts a session. The engine has a single client, so the name is taken as given.
func (e *Engine) Open(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return ErrAlreadyOpen
	}
	e.open = true
	e.name = name
	return nil
}

// Name returns the client name, or "" while closed.
func (e *Engine) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// SetProcessCallback sets the function called on every cycle. It cannot change while active.
func (e *Engine) SetProcessCallback(fn contracts.ProcessFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ErrNotOpen
	}
	if e.wg != nil {
		return errors.New("cannot set the process callback of an active engine")
	}
	e.callback = fn
	return nil
}

// Activate starts the cycle goroutine.
func (e *Engine) Activate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ErrNotOpen
	}
	if e.wg != nil {
		return nil
	}
	e.quit = make(chan struct{})
	e.wg = conc.NewWaitGroup()
	e.cycleStart.Store(int64(e.clock.Now()))
	quit, callback := e.quit, e.callback
	e.wg.Go(func() { e.run(quit, callback) })
	e.logger.Debug("software engine activated",
		e.logger.Field().Duration("period", e.period),
		e.logger.Field().Int64("sampleRate", int64(e.sampleRate)))
	return nil
}

func (e *Engine) run(quit <-chan struct{}, callback contracts.ProcessFunc) {
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
		}
		e.cycleStart.Store(int64(e.clock.Now()))
		e.frames.Add(uint64(e.bufferSize))
		if callback == nil {
			continue
		}
		if rc := callback(e.bufferSize); rc != 0 {
			e.logger.Warn("process callback returned non-zero; engine stops calling it",
				e.logger.Field().Int("code", rc))
			return
		}
	}
}

// Deactivate stops the cycle goroutine and waits for the current cycle to finish.
// A panic raised by the callback is reported as an error.
func (e *Engine) Deactivate() error {
	e.mu.Lock()
	wg := e.wg
	if wg == nil {
		e.mu.Unlock()
		return nil
	}
	close(e.quit)
	e.wg = nil
	e.mu.Unlock()

	if recovered := wg.WaitAndRecover(); recovered != nil {
		return fmt.Errorf("process callback panicked: %w", recovered.AsError())
	}
	return nil
}

// Close deactivates and ends the session.
func (e *Engine) Close() error {
	err := e.Deactivate()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
	e.name = ""
	e.callback = nil
	return err
}

// CycleTimes reports the current cycle. The period is the nominal buffer period.
func (e *Engine) CycleTimes() (contracts.CycleTimes, error) {
	e.mu.Lock()
	active := e.wg != nil
	e.mu.Unlock()
	if !active {
		return contracts.CycleTimes{}, ErrNotOpen
	}
	start := contracts.Instant(e.cycleStart.Load())
	return contracts.CycleTimes{
		CurrentFrames: e.frames.Load(),
		CurrentStart:  start,
		NextStart:     start.Add(e.period),
		Period:        e.period,
	}, nil
}

// FramesSinceCycleStart estimates the frames elapsed since the current cycle began.
func (e *Engine) FramesSinceCycleStart() uint32 {
	elapsed := e.clock.Now().Sub(contracts.Instant(e.cycleStart.Load()))
	if elapsed <= 0 {
		return 0
	}
	frames := uint64(elapsed) * uint64(e.sampleRate) / uint64(time.Second)
	if frames > uint64(e.bufferSize) {
		frames = uint64(e.bufferSize)
	}
	return uint32(frames)
}

// SampleRate returns the frames per second.
func (e *Engine) SampleRate() uint32 {
	return e.sampleRate
}

// Period returns the nominal cycle period.
func (e *Engine) Period() time.Duration {
	return e.period
}
