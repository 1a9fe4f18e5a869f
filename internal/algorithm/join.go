package algorithm

import (
	"fmt"

	"minhton/internal/domain"
	"minhton/internal/fsm"
	"minhton/internal/message"
	"minhton/internal/minhtonerr"
	"minhton/internal/timeout"
)

// Join implements §4.3's join handler: accepting a child, forwarding
// toward a node with free capacity, and the resulting three-way handshake
// (Join / JoinAccept / JoinAcceptAck).
type Join struct{}

func (Join) Handle(ctx *Context, env message.Envelope) ([]Outbound, error) {
	switch body := env.Body.(type) {
	case *message.Join:
		return handleJoin(ctx, env, body)
	case *message.JoinAccept:
		return handleJoinAccept(ctx, env, body)
	case *message.JoinAcceptAck:
		return handleJoinAcceptAck(ctx, env, body)
	default:
		return nil, fmt.Errorf("%w: join algorithm received %T", minhtonerr.ErrInvalidMessage, env.Body)
	}
}

// handleJoin implements §4.3 step 1/2: accept into a free child slot, or
// forward toward the shallowest, left-most subtree with capacity.
// Forwarding does not move this node's own FSM state -- only actually
// accepting does, since §4.2's table models "processing a join" as the
// transient ConnectedAcceptingChild state entered while awaiting the
// JoinAcceptAck.
func handleJoin(ctx *Context, env message.Envelope, body *message.Join) ([]Outbound, error) {
	slot, free := ctx.Routing.FreeChildSlot()
	if !free {
		target, ok := ctx.Routing.ForwardJoinTarget()
		if !ok {
			return nil, fmt.Errorf("%w: no forwarding target with free capacity known", minhtonerr.ErrFSMViolation)
		}
		return []Outbound{ctx.Send(target, body, env.RefEventID)}, nil
	}

	if _, err := ctx.Machine.Apply(fsm.EventJoin, env.EventID); err != nil {
		return nil, err
	}

	newPos := ctx.Self.Position.Child(slot)
	adjLeft, adjRight := deriveNewChildAdjacency(ctx, slot)
	rtNeighbors := computeRoutingTableNeighborsFor(newPos, ctx.Routing.AllInitialisedNeighbors())

	accept := &message.JoinAccept{
		Fanout:                ctx.Self.Position.Fanout,
		AssignedPosition:      newPos,
		AdjacentLeft:          adjLeft,
		AdjacentRight:         adjRight,
		RoutingTableNeighbors: rtNeighbors,
	}

	// Reuse the joiner's own correlation id (env.RefEventID, minted when it
	// sent Join) as this reply's RefEventID too: the JoinAcceptAckResponse
	// wait armed by the participant event loop on send keys on the same id
	// but a different timeout.Type, so the two waits never collide, and
	// the joiner's handleJoinAccept can cancel its JoinAcceptResponse timer
	// by that same id once this envelope arrives.
	refID := env.RefEventID
	if refID == 0 {
		refID = ctx.NextEventID()
	}
	return []Outbound{ctx.Send(body.EnteringNode, accept, refID)}, nil
}

// deriveNewChildAdjacency approximates the in-order adjacent-left/right of
// a newly assigned child slot from locally-known state only: the
// occupied sibling immediately left/right of the slot, falling back to
// self (the parent) on the left and self's own adjacent-right on the
// right. This does not walk the full in-order chain the way a complete
// tree simulation would; it is refined as further UpdateNeighbors/
// adjacency traffic arrives, the same way §4.1 treats adjacency as
// dynamically discovered rather than a pure function of position.
func deriveNewChildAdjacency(ctx *Context, slot uint16) (domain.NodeInfo, domain.NodeInfo) {
	var left, right domain.NodeInfo

	if slot > 0 {
		if sib, ok := ctx.Routing.GetChild(slot - 1); ok {
			left = sib
		}
	}
	if !left.Initialised() {
		left = ctx.Self
	}

	if slot+1 < ctx.Self.Position.Fanout {
		if sib, ok := ctx.Routing.GetChild(slot + 1); ok {
			right = sib
		}
	}
	if !right.Initialised() {
		if r, ok := ctx.Routing.GetAdjacentRight(); ok {
			right = r
		}
	}
	return left, right
}

// computeRoutingTableNeighborsFor filters known to the subset that
// structurally classifies as a routing-table neighbor of pos (§4.1),
// without requiring access to routinginfo's unexported classifier.
func computeRoutingTableNeighborsFor(pos domain.LogicalPosition, known []domain.NodeInfo) []domain.NodeInfo {
	var out []domain.NodeInfo
	for _, cand := range known {
		if !cand.Initialised() || cand.Position.Level != pos.Level {
			continue
		}
		if isRoutingTableNeighbor(pos, cand.Position) {
			out = append(out, cand)
		}
	}
	return out
}

func isRoutingTableNeighbor(viewer, candidate domain.LogicalPosition) bool {
	if candidate.Level != viewer.Level {
		return false
	}
	for i := 0; i < int(viewer.Level); i++ {
		for f := -(int(viewer.Fanout) - 1); f <= int(viewer.Fanout)-1; f++ {
			if f == 0 {
				continue
			}
			if offset, ok := viewer.RoutingTableNeighborOffset(i, f); ok && offset.Equal(candidate) {
				return true
			}
		}
	}
	return false
}

// symmetricRelationship reports whether candidate would classify as a
// structural neighbor (parent/child/routing-table/routing-table-child) of
// viewer, without requiring viewer's own RoutingInformation -- used to
// decide which already-known peers must be told about a newly joined
// node (§4.3: "issues UpdateNeighbors to all nodes whose routing views
// must learn of the new node, computed symmetrically to §4.1").
func symmetricRelationship(viewer, candidate domain.LogicalPosition) domain.NeighborRelationship {
	if !viewer.IsRoot() && candidate.Equal(viewer.Parent()) {
		return domain.RelationshipParent
	}
	if candidate.Level == viewer.Level+1 && candidate.Parent().Equal(viewer) {
		return domain.RelationshipChild
	}
	if isRoutingTableNeighbor(viewer, candidate) {
		return domain.RelationshipRoutingTableNeighbor
	}
	if candidate.Level == viewer.Level+1 && isRoutingTableNeighbor(viewer, candidate.Parent()) {
		return domain.RelationshipRoutingTableNeighborChild
	}
	return domain.RelationshipUnknown
}

// handleJoinAccept implements §4.3: the joiner installs the neighbors it
// was given, sends JoinAcceptAck, and moves to Connected.
func handleJoinAccept(ctx *Context, env message.Envelope, body *message.JoinAccept) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventJoinAccept, env.RefEventID); err != nil {
		return nil, err
	}
	ctx.Timeouts.Cancel(timeout.Key{EventID: env.RefEventID, Kind: timeout.JoinAcceptResponse})

	ctx.Self.Position = body.AssignedPosition
	ctx.Routing.SetSelfPosition(body.AssignedPosition)
	if err := ctx.Routing.SetParent(env.Sender); err != nil {
		return nil, err
	}
	if body.AdjacentLeft.Initialised() {
		if _, err := ctx.Routing.UpdateNeighbor(body.AdjacentLeft); err != nil {
			return nil, err
		}
	}
	if body.AdjacentRight.Initialised() {
		if _, err := ctx.Routing.UpdateNeighbor(body.AdjacentRight); err != nil {
			return nil, err
		}
	}
	for _, n := range body.RoutingTableNeighbors {
		if _, err := ctx.Routing.UpdateNeighbor(n); err != nil {
			return nil, err
		}
	}

	// Echo the same correlation id the accepting parent armed its
	// JoinAcceptAckResponse wait under (env.RefEventID), so its
	// handleJoinAcceptAck can cancel that exact timer.
	ack := &message.JoinAcceptAck{AcceptedNode: ctx.Self}
	return []Outbound{ctx.Send(env.Sender, ack, env.RefEventID)}, nil
}

// handleJoinAcceptAck implements §4.3: the accepting parent commits the
// child slot and pushes UpdateNeighbors to every already-known peer whose
// routing view is affected by the new node.
func handleJoinAcceptAck(ctx *Context, env message.Envelope, body *message.JoinAcceptAck) ([]Outbound, error) {
	ctx.Timeouts.Cancel(timeout.Key{EventID: env.RefEventID, Kind: timeout.JoinAcceptAckResponse})
	if _, err := ctx.Machine.Apply(fsm.EventJoinAcceptAck, env.RefEventID); err != nil {
		return nil, err
	}
	if _, err := ctx.Routing.UpdateNeighbor(body.AcceptedNode); err != nil {
		return nil, err
	}

	var out []Outbound
	newPos := body.AcceptedNode.Position
	for _, n := range ctx.Routing.AllInitialisedNeighbors() {
		if n.Equal(body.AcceptedNode) {
			continue
		}
		if symmetricRelationship(n.Position, newPos) == domain.RelationshipUnknown {
			continue
		}
		upd := &message.UpdateNeighbors{Updates: []message.NeighborUpdate{{Node: body.AcceptedNode}}}
		out = append(out, ctx.Send(n, upd, ctx.NextEventID()))
	}
	if left, ok := ctx.Routing.GetAdjacentLeft(); ok && !left.Equal(body.AcceptedNode) {
		upd := &message.UpdateNeighbors{Updates: []message.NeighborUpdate{{Node: body.AcceptedNode}}}
		out = append(out, ctx.Send(left, upd, ctx.NextEventID()))
	}
	if right, ok := ctx.Routing.GetAdjacentRight(); ok && !right.Equal(body.AcceptedNode) {
		upd := &message.UpdateNeighbors{Updates: []message.NeighborUpdate{{Node: body.AcceptedNode}}}
		out = append(out, ctx.Send(right, upd, ctx.NextEventID()))
	}
	return out, nil
}
