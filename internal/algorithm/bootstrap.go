package algorithm

import (
	"fmt"

	"minhton/internal/fsm"
	"minhton/internal/message"
	"minhton/internal/minhtonerr"
	"minhton/internal/timeout"
)

// Bootstrap implements §4.3's bootstrap handler: replying to a discovering
// peer's multicast, and a joiner reacting to the response it gets back by
// sending its own Join.
type Bootstrap struct{}

func (Bootstrap) Handle(ctx *Context, env message.Envelope) ([]Outbound, error) {
	switch body := env.Body.(type) {
	case *message.BootstrapDiscover:
		return handleBootstrapDiscover(ctx, env)
	case *message.BootstrapResponse:
		return handleBootstrapResponse(ctx, env, body)
	default:
		return nil, fmt.Errorf("%w: bootstrap algorithm received %T", minhtonerr.ErrInvalidMessage, env.Body)
	}
}

// handleBootstrapDiscover replies unicast with a BootstrapResponse
// pointing the discoverer at this node as an entry point; any already
// joined participant may answer (§4.3). A node still joining itself
// (uninitialised self position) has nothing to offer and stays silent.
func handleBootstrapDiscover(ctx *Context, env message.Envelope) ([]Outbound, error) {
	if !ctx.Self.Initialised() {
		return nil, nil
	}
	resp := &message.BootstrapResponse{NodeToJoin: ctx.Self}
	return []Outbound{ctx.Send(env.Sender, resp, env.EventID)}, nil
}

// handleBootstrapResponse cancels the bootstrap retry timer, advances the
// FSM, and sends Join to the discovered entry node (§4.3).
func handleBootstrapResponse(ctx *Context, env message.Envelope, body *message.BootstrapResponse) ([]Outbound, error) {
	ctx.Timeouts.Cancel(timeout.Key{EventID: env.RefEventID, Kind: timeout.BootstrapResponse})
	if _, err := ctx.Machine.Apply(fsm.EventBootstrapResponse, env.RefEventID); err != nil {
		return nil, err
	}
	join := &message.Join{EnteringNode: ctx.Self}
	return []Outbound{ctx.Send(body.NodeToJoin, join, ctx.NextEventID())}, nil
}
