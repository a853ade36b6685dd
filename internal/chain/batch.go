package chain

import "github.com/leandrodaf/midibridge/sdk/contracts"

// Batch holds the events that one poll wake-up retrieved from the source,
// stamped with a single instant.
type Batch struct {
	Timestamp contracts.Instant
	Events    []contracts.RawEvent
}

func (c *Chain) newBatch(ts contracts.Instant, events []contracts.RawEvent) *Batch {
	c.batches.Add(1)
	return &Batch{Timestamp: ts, Events: events}
}

// release drops a batch that was delivered or discarded.
func (c *Chain) release(b *Batch) {
	if b == nil {
		return
	}
	c.batches.Add(-1)
}
