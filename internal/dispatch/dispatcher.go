// Package dispatch implements the per-cycle callback that moves due events from the
// event chain to the consumer.
package dispatch

import (
	"sync/atomic"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Drainer delivers buffered events recorded at or before a deadline without blocking.
type Drainer interface {
	Drain(deadline contracts.Instant, fn contracts.ConsumerFunc) int
}

// Dispatcher is the bridge's cycle callback.
type Dispatcher struct {
	drainer  Drainer
	consumer contracts.ConsumerFunc
	filter   *contracts.EventFilter
	logger   contracts.Logger

	deliver contracts.ConsumerFunc

	cycles    atomic.Int64
	delivered atomic.Int64
	filtered  atomic.Int64
}

// New creates a dispatcher. A nil filter delivers every event; a nil consumer discards them.
func New(drainer Drainer, consumer contracts.ConsumerFunc, filter *contracts.EventFilter, logger contracts.Logger) *Dispatcher {
	d := &Dispatcher{
		drainer:  drainer,
		consumer: consumer,
		filter:   filter,
		logger:   logger,
	}
	d.deliver = d.handle
	return d
}

// Process drains the chain up to deadline. It always returns 0 so the engine keeps running.
func (d *Dispatcher) Process(nFrames uint32, deadline contracts.Instant) int {
	d.cycles.Add(1)
	d.drainer.Drain(deadline, d.deliver)
	return 0
}

func (d *Dispatcher) handle(event contracts.RawEvent, timestamp contracts.Instant) {
	if !d.filter.Allows(event) {
		d.filtered.Add(1)
		d.logger.Debug("event filtered", d.logger.Field().Uint8("command", uint8(event.Command())))
		return
	}
	d.delivered.Add(1)
	if d.consumer != nil {
		d.consumer(event, timestamp)
	}
}

// Cycles returns the number of processed cycles.
func (d *Dispatcher) Cycles() int64 { return d.cycles.Load() }

// Delivered returns the number of events handed to the consumer.
func (d *Dispatcher) Delivered() int64 { return d.delivered.Load() }

// Filtered returns the number of events dropped by the filter.
func (d *Dispatcher) Filtered() int64 { return d.filtered.Load() }
