package contracts

import "gitlab.com/gomidi/midi/v2"

// RawEvent is a single MIDI payload as it was read from a source.
// The bridge never decodes it; it is copied as a value from the source to the consumer.
type RawEvent struct {
	Msg midi.Message // Raw MIDI bytes (status byte first).
}

// Command returns the command nibble of the status byte, or 0 for an empty payload.
func (e RawEvent) Command() MIDICommand {
	if len(e.Msg) == 0 {
		return 0
	}
	return MIDICommand(e.Msg[0] & 0xF0)
}

// ConsumerFunc receives every delivered event together with the instant its batch was recorded.
// It is invoked from the real-time cycle and must not block.
type ConsumerFunc func(event RawEvent, timestamp Instant)

// Stats is a read-only snapshot of the bridge diagnostics.
type Stats struct {
	ChainState  ChainState  // State of the event chain.
	ClientState ClientState // State of the periodic engine client.
	Batches     int64       // Event batches currently buffered in the chain.
	Resets      int64       // Timing resets since the engine was last activated.
	Fallbacks   int64       // Cycles that fell back to "now" because the engine timing query failed.
	Cycles      int64       // Cycles processed by the dispatcher.
	Delivered   int64       // Events handed to the consumer.
	Filtered    int64       // Events dropped by the event filter.
	Dropped     int64       // Events the source discarded because its buffer was full.
}

// Bridge moves MIDI events from an asynchronous source into a periodic real-time engine.
type Bridge interface {
	Open() error  // Connects to the periodic engine and registers the cycle callback.
	Start() error // Starts listening on the source and activates the engine.
	Stop() error  // Deactivates the engine and stops listening; buffered events are discarded.
	Close() error // Stops the bridge and releases the engine and the source.
	Stats() Stats // Returns the current diagnostics.
	Name() string // Name the engine assigned to this client; empty while closed.
}
