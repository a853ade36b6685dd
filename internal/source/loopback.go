package source

import (
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// Loopback is an in-process source: whatever is sent to it comes out of the bridge.
// Pass it with contracts.WithSource to feed the bridge from the same program.
type Loopback struct {
	*Inbox
	clock contracts.Clock
}

// NewLoopback creates a loopback source stamped with clock.
func NewLoopback(clock contracts.Clock, limit int) *Loopback {
	return &Loopback{Inbox: NewInbox(limit), clock: clock}
}

// Send queues msg. The bytes are copied, so the caller may reuse its buffer.
func (l *Loopback) Send(msg midi.Message) bool {
	return l.Push(contracts.RawEvent{Msg: append(midi.Message(nil), msg...)})
}

// Now reads the clock the loopback stamps batches with.
func (l *Loopback) Now() contracts.Instant {
	return l.clock.Now()
}
