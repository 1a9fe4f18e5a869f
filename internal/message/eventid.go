package message

import "sync/atomic"

// EventIDGenerator hands out process-wide unique, monotonically increasing
// event ids (§6.3 P7). 0 is reserved as the "no ref-event" sentinel, so the
// first generated id is 1.
type EventIDGenerator struct {
	next atomic.Uint64
}

// NewEventIDGenerator returns a generator starting at 1.
func NewEventIDGenerator() *EventIDGenerator {
	return &EventIDGenerator{}
}

// Next returns the next event id.
func (g *EventIDGenerator) Next() uint64 {
	return g.next.Add(1)
}
