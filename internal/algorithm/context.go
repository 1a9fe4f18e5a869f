// Package algorithm implements the Algorithm Set of §4.2: one handler per
// message family (Join, Leave, SearchExact, Bootstrap, Response), plus the
// static MessageType -> Kind dispatch table a participant uses to route an
// inbound envelope to the right handler. Handlers never block and never
// touch the network directly -- they return the messages to be sent, the
// same contract the teacher's node/operation.go handlers follow by
// returning a value plus an error rather than performing I/O themselves.
package algorithm

import (
	"sync"

	"minhton/internal/domain"
	"minhton/internal/fsm"
	"minhton/internal/logger"
	"minhton/internal/message"
	"minhton/internal/routinginfo"
	"minhton/internal/storage"
	"minhton/internal/timeout"
)

// Context bundles everything a handler needs: the owning participant's
// identity and mutable state, plus the shared generators/timers. It is
// reused across every Handle call for one participant.
type Context struct {
	Self     domain.NodeInfo
	Routing  *routinginfo.RoutingInformation
	Data     *storage.LocalData
	Machine  *fsm.Machine
	Timeouts *timeout.Manager
	UUIDs    domain.Generator
	EventIDs *message.EventIDGenerator
	Logger   logger.Logger

	// DSNLevel is the configured level of the Distributed Service Node
	// hierarchy (§4.7); 0 means entity search is not in use.
	DSNLevel uint32

	// LeaveState tracks an in-progress leave-with-replacement run while this
	// participant is acting as L (§4.4); nil outside of a leave.
	LeaveState *LeaveRunState

	// Locked and LockedBy implement a participant's own single-slot lock,
	// granted to at most one concurrent leaver at a time when this
	// participant is a member of that leaver's locking set S (§4.4 step 3).
	Locked   bool
	LockedBy domain.NodeInfo

	quorumMu sync.Mutex
	quorums  map[uint64]*timeout.AckQuorum

	pendingMu sync.Mutex
	pending   []Outbound
}

// Enqueue stashes an Outbound produced outside a Handle call's own return
// path -- specifically, a quorum callback (§4.6 P8) that fires synchronously
// from inside another handler's Inc() and has no return value of its own to
// append to. The participant event loop drains this after every Handle.
func (c *Context) Enqueue(o Outbound) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending = append(c.pending, o)
}

// DrainPending returns and clears any Outbound messages stashed via Enqueue.
func (c *Context) DrainPending() []Outbound {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// ArmAckQuorum registers a waitForAcks(number, cb) counter under
// refEventID (§4.6 P8); a later RemoveNeighborAck carrying the same
// RefEventID increments it via ackQuorumFor. A number of zero is satisfied
// at once: cb runs before ArmAckQuorum returns.
func (c *Context) ArmAckQuorum(refEventID uint64, number int, cb func()) {
	c.quorumMu.Lock()
	defer c.quorumMu.Unlock()
	if c.quorums == nil {
		c.quorums = make(map[uint64]*timeout.AckQuorum)
	}
	c.quorums[refEventID] = timeout.NewAckQuorum(number, cb)
}

// ackQuorumFor returns the quorum counter armed for refEventID, or a
// pre-satisfied one if none was armed (an unexpected/late ack is harmless).
func (c *Context) ackQuorumFor(refEventID uint64) *timeout.AckQuorum {
	c.quorumMu.Lock()
	defer c.quorumMu.Unlock()
	if c.quorums == nil {
		c.quorums = make(map[uint64]*timeout.AckQuorum)
	}
	q, ok := c.quorums[refEventID]
	if !ok {
		q = timeout.NewAckQuorum(0, nil)
		c.quorums[refEventID] = q
	}
	return q
}

// NextEventID draws a fresh correlation id for an outbound message chain.
func (c *Context) NextEventID() uint64 { return c.EventIDs.Next() }

// Outbound is one message a handler wants sent, independent of transport.
type Outbound struct {
	To         domain.NodeInfo
	Body       message.Variant
	RefEventID uint64
}

// Send builds an Outbound addressed to to, correlated to refEventID (0 if
// this starts a fresh exchange).
func (c *Context) Send(to domain.NodeInfo, body message.Variant, refEventID uint64) Outbound {
	return Outbound{To: to, Body: body, RefEventID: refEventID}
}
