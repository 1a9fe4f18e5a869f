package algorithm

import (
	"fmt"

	"minhton/internal/fsm"
	"minhton/internal/message"
	"minhton/internal/minhtonerr"
)

// Response implements §4.6's passive bookkeeping handlers. The participant
// dispatches each message to Handle as it arrives. UpdateNeighbors,
// RemoveNeighbor, GetNeighbors and InformAboutNeighbors never touch the
// FSM; RemoveNeighborAck is applied as fsm.EventRemoveNeighborAck and
// counted against the ack quorum armed under its RefEventID.
type Response struct{}

func (Response) Handle(ctx *Context, env message.Envelope) ([]Outbound, error) {
	switch body := env.Body.(type) {
	case *message.UpdateNeighbors:
		return handleUpdateNeighbors(ctx, body)
	case *message.RemoveNeighbor:
		return handleRemoveNeighbor(ctx, env, body)
	case *message.GetNeighbors:
		return handleGetNeighbors(ctx, body)
	case *message.InformAboutNeighbors:
		// Consumed by a previously suspended Join continuation (§4.6); the
		// base response algorithm has nothing further to do with it.
		return nil, nil
	case *message.RemoveNeighborAck:
		if _, err := ctx.Machine.Apply(fsm.EventRemoveNeighborAck, env.RefEventID); err != nil {
			return nil, err
		}
		ctx.ackQuorumFor(env.RefEventID).Inc()
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: response algorithm received %T", minhtonerr.ErrInvalidMessage, env.Body)
	}
}

// handleUpdateNeighbors applies each (node, relationship) tuple via
// §4.1's classifier; the relationship carried on the wire is advisory
// only; the receiver's own classifier (run inside UpdateNeighbor) is
// authoritative since it alone knows the receiver's real self position.
func handleUpdateNeighbors(ctx *Context, body *message.UpdateNeighbors) ([]Outbound, error) {
	for _, u := range body.Updates {
		if _, err := ctx.Routing.UpdateNeighbor(u.Node); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// handleRemoveNeighbor removes by position; removing the parent outside
// the leave protocol is illegal and is rejected by RemoveNeighbor itself
// (§4.6).
func handleRemoveNeighbor(ctx *Context, env message.Envelope, body *message.RemoveNeighbor) ([]Outbound, error) {
	if err := ctx.Routing.RemoveNeighbor(body.Target); err != nil {
		return nil, err
	}
	ack := &message.RemoveNeighborAck{}
	return []Outbound{ctx.Send(env.Sender, ack, env.EventID)}, nil
}

// handleGetNeighbors replies with the matching initialised neighbors; an
// empty requested set is invalid (§4.6).
func handleGetNeighbors(ctx *Context, body *message.GetNeighbors) ([]Outbound, error) {
	if len(body.RequestedRelationships) == 0 {
		return nil, fmt.Errorf("%w: GetNeighbors requires at least one relationship", minhtonerr.ErrInvalidMessage)
	}
	nodes := ctx.Routing.NeighborsByRelationship(body.RequestedRelationships)
	reply := &message.InformAboutNeighbors{Nodes: nodes}
	return []Outbound{ctx.Send(body.SendBackTo, reply, ctx.NextEventID())}, nil
}
