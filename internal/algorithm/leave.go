package algorithm

import (
	"fmt"

	"minhton/internal/domain"
	"minhton/internal/fsm"
	"minhton/internal/logger"
	"minhton/internal/message"
	"minhton/internal/minhtonerr"
)

// LeaveRunState tracks one in-progress leave-with-replacement run while this
// participant is acting as L (§4.4). Denied survives a restart from step 1
// so a retried ReplacementOffer can tell R which locking-set members are
// known-bad without repeating the whole lock handshake.
type LeaveRunState struct {
	Replacement domain.NodeInfo
	LockingSet  []domain.NodeInfo
	Denied      map[domain.UUID]bool
	GrantedBy   []domain.NodeInfo
	Responses   int
}

// Leave implements §4.4's seven-step leave-with-replacement protocol. A
// single node plays three roles across a run: the leaver L, the rightmost
// deepest leaf R chosen to replace it, and an ordinary member of L's locking
// set S -- Handle dispatches on whichever message arrived rather than on a
// fixed role.
type Leave struct{}

func (Leave) Handle(ctx *Context, env message.Envelope) ([]Outbound, error) {
	switch body := env.Body.(type) {
	case *message.FindReplacement:
		return handleFindReplacement(ctx, env, body)
	case *message.ReplacementOffer:
		return handleReplacementOffer(ctx, env, body)
	case *message.ReplacementAck:
		return handleReplacementAck(ctx, env, body)
	case *message.ReplacementNack:
		return handleReplacementNack(ctx, env, body)
	case *message.LockNeighborRequest:
		return handleLockNeighborRequest(ctx, env, body)
	case *message.LockNeighborResponse:
		return handleLockNeighborResponse(ctx, env, body)
	case *message.UnlockNeighbor:
		return handleUnlockNeighbor(ctx, body)
	case *message.SignOffParentRequest:
		return handleSignOffParentRequest(ctx, env, body)
	case *message.SignOffParentAnswer:
		return handleSignOffParentAnswer(ctx, env, body)
	case *message.ReplacementUpdate:
		return handleReplacementUpdate(ctx, env, body)
	case *message.RemoveAndUpdateNeighbor:
		return handleRemoveAndUpdateNeighbor(ctx, env, body)
	default:
		return nil, fmt.Errorf("%w: leave algorithm received %T", minhtonerr.ErrInvalidMessage, env.Body)
	}
}

// InitiateLeave begins (or, after a nack/denial, restarts) the protocol for
// this participant as L (§4.4 step 1). A leaf with no children needs no
// replacement and takes the direct-leave path instead.
func (Leave) InitiateLeave(ctx *Context) ([]Outbound, error) {
	if ctx.Routing.OccupiedChildCount() == 0 {
		return directLeaveWithoutReplacement(ctx)
	}

	ctx.Machine.ForceState(fsm.WaitForReplacementOffer)
	if ctx.LeaveState == nil {
		ctx.LeaveState = &LeaveRunState{Denied: make(map[domain.UUID]bool)}
	} else {
		ctx.LeaveState.LockingSet = nil
		ctx.LeaveState.GrantedBy = nil
		ctx.LeaveState.Responses = 0
	}

	target, ok := rightmostChild(ctx)
	if !ok {
		return directLeaveWithoutReplacement(ctx)
	}
	req := &message.FindReplacement{NodeToReplace: ctx.Self}
	return []Outbound{ctx.Send(target, req, ctx.NextEventID())}, nil
}

// directLeaveWithoutReplacement handles the supplemented leaf-only fallback:
// no replacement search is needed, L signs off its parent directly and then
// tells its remaining neighbors it is gone.
func directLeaveWithoutReplacement(ctx *Context) ([]Outbound, error) {
	ctx.Machine.ForceState(fsm.ConnectedWaitingParentResponseDirectLeaveWoReplacement)
	parent, hasParent := ctx.Routing.GetParent()
	if !hasParent {
		ctx.Machine.ForceState(fsm.Idle)
		return nil, nil
	}
	req := &message.SignOffParentRequest{Leaver: ctx.Self}
	return []Outbound{ctx.Send(parent, req, ctx.NextEventID())}, nil
}

// FallbackToDirectLeave gives up looking for a replacement and leaves
// directly, same as a true leaf (EventReplacementFallbackToDirectLeave).
// Nothing in this repository calls it: no timer is armed on ReplacementOffer
// replies, so EventTimeoutReplacementOfferResponseExhausted is never raised.
func (Leave) FallbackToDirectLeave(ctx *Context) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventReplacementFallbackToDirectLeave, 0); err != nil {
		return nil, err
	}
	ctx.LeaveState = nil
	parent, hasParent := ctx.Routing.GetParent()
	if !hasParent {
		ctx.Machine.ForceState(fsm.Idle)
		return nil, nil
	}
	req := &message.SignOffParentRequest{Leaver: ctx.Self}
	return []Outbound{ctx.Send(parent, req, ctx.NextEventID())}, nil
}

// handleFindReplacement forwards toward the rightmost deepest leaf; a node
// with no children is that leaf and offers itself as R (§4.4 step 1-2).
func handleFindReplacement(ctx *Context, env message.Envelope, body *message.FindReplacement) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventFindReplacement, env.RefEventID); err != nil {
		return nil, err
	}
	if target, ok := rightmostChild(ctx); ok {
		return []Outbound{ctx.Send(target, body, env.EventID)}, nil
	}
	offer := &message.ReplacementOffer{Replacement: ctx.Self}
	return []Outbound{ctx.Send(body.NodeToReplace, offer, env.EventID)}, nil
}

// handleReplacementOffer is L's reaction to R's offer (§4.4 step 2-3): reply
// with the full locking set and what L already knows about denials from a
// prior attempt, and in the same round begin locking S optimistically --
// a ReplacementNack, if it comes, aborts whatever locking is in flight.
func handleReplacementOffer(ctx *Context, env message.Envelope, body *message.ReplacementOffer) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventReplacementOffer, env.RefEventID); err != nil {
		return nil, err
	}
	if ctx.LeaveState == nil {
		ctx.LeaveState = &LeaveRunState{Denied: make(map[domain.UUID]bool)}
	}
	ls := ctx.LeaveState
	ls.Replacement = body.Replacement
	ls.LockingSet = ctx.Routing.LockingSet()
	ls.GrantedBy = nil
	ls.Responses = 0

	locked := make([]bool, len(ls.LockingSet))
	for i, n := range ls.LockingSet {
		locked[i] = ls.Denied[n.ID]
	}

	var out []Outbound
	ack := &message.ReplacementAck{Neighbors: ls.LockingSet, LockedStates: locked}
	out = append(out, ctx.Send(body.Replacement, ack, env.EventID))

	if len(ls.LockingSet) == 0 {
		// nothing to lock: proceed straight to sign-off.
		return append(out, sendSignOffParentRequest(ctx)...), nil
	}
	for _, n := range ls.LockingSet {
		req := &message.LockNeighborRequest{Requester: ctx.Self}
		out = append(out, ctx.Send(n, req, ctx.NextEventID()))
	}
	return out, nil
}

// handleReplacementAck is R's reaction once L has replied (§4.4 step 2):
// if L already knows any locking-set member is denied, give up immediately
// rather than let L run the full lock handshake for nothing.
func handleReplacementAck(ctx *Context, env message.Envelope, body *message.ReplacementAck) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventReplacementAck, env.RefEventID); err != nil {
		return nil, err
	}
	for _, locked := range body.LockedStates {
		if locked {
			nack := &message.ReplacementNack{}
			return []Outbound{ctx.Send(env.Sender, nack, env.EventID)}, nil
		}
	}
	return nil, nil
}

// handleReplacementNack sends L back to step 1 (§4.4 step 2). No backoff
// delay is applied: L restarts the search immediately, and the number of
// restarts is not limited.
func handleReplacementNack(ctx *Context, env message.Envelope, _ *message.ReplacementNack) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventReplacementNack, env.RefEventID); err != nil {
		return nil, err
	}
	return Leave{}.InitiateLeave(ctx)
}

// handleLockNeighborRequest grants a lock iff this participant is not
// already locked for someone else (§4.4 step 3).
func handleLockNeighborRequest(ctx *Context, env message.Envelope, body *message.LockNeighborRequest) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventLockNeighborRequest, env.RefEventID); err != nil {
		return nil, err
	}
	granted := !ctx.Locked
	if granted {
		ctx.Locked = true
		ctx.LockedBy = body.Requester
	}
	resp := &message.LockNeighborResponse{Granted: granted}
	return []Outbound{ctx.Send(body.Requester, resp, env.EventID)}, nil
}

// handleLockNeighborResponse accumulates grants for one locking round
// (§4.4 step 3): once every member of S has answered, either every grant
// held and L proceeds to sign off its parent, or at least one denial came
// in and L releases whatever it got, in reverse acquisition order, and
// restarts from step 1.
func handleLockNeighborResponse(ctx *Context, env message.Envelope, body *message.LockNeighborResponse) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventLockNeighborResponse, env.RefEventID); err != nil {
		return nil, err
	}
	ls := ctx.LeaveState
	if ls == nil {
		return nil, fmt.Errorf("%w: lock response received outside an active leave", minhtonerr.ErrFSMViolation)
	}
	ls.Responses++
	if body.Granted {
		ls.GrantedBy = append(ls.GrantedBy, env.Sender)
	} else {
		ls.Denied[env.Sender.ID] = true
	}
	if ls.Responses < len(ls.LockingSet) {
		return nil, nil
	}

	anyDenied := len(ls.GrantedBy) < ls.Responses
	if anyDenied {
		if _, err := ctx.Machine.Apply(fsm.EventUnlockNeighbor, 0); err != nil {
			return nil, err
		}
		var out []Outbound
		for i := len(ls.GrantedBy) - 1; i >= 0; i-- {
			out = append(out, ctx.Send(ls.GrantedBy[i], &message.UnlockNeighbor{}, ctx.NextEventID()))
		}
		retry, err := Leave{}.InitiateLeave(ctx)
		if err != nil {
			return nil, err
		}
		return append(out, retry...), nil
	}

	return sendSignOffParentRequest(ctx), nil
}

func sendSignOffParentRequest(ctx *Context) []Outbound {
	parent, hasParent := ctx.Routing.GetParent()
	if !hasParent {
		// L is the root: nothing above to sign off, skip straight to
		// notifying neighbors of the replacement.
		return notifyReplacement(ctx)
	}
	req := &message.SignOffParentRequest{Leaver: ctx.Self}
	return []Outbound{ctx.Send(parent, req, ctx.NextEventID())}
}

// handleUnlockNeighbor releases a lock this participant had granted to some
// leaver's locking set (§4.4 step 3/7); it is never classified against the
// FSM since it carries no protocol-legality concern of its own.
func handleUnlockNeighbor(ctx *Context, _ *message.UnlockNeighbor) ([]Outbound, error) {
	ctx.Locked = false
	ctx.LockedBy = domain.NodeInfo{}
	return nil, nil
}

// handleSignOffParentRequest is the parent's acknowledgement of an
// impending child departure (§4.4 step 4); removing the child from the
// parent's own routing table happens later, driven by the
// ReplacementUpdate/RemoveAndUpdateNeighbor fan-out of step 5.
func handleSignOffParentRequest(ctx *Context, env message.Envelope, body *message.SignOffParentRequest) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventSignOffParentRequest, env.RefEventID); err != nil {
		return nil, err
	}
	answer := &message.SignOffParentAnswer{}
	return []Outbound{ctx.Send(body.Leaver, answer, env.EventID)}, nil
}

// handleSignOffParentAnswer is L's cue to tell every affected node about the
// departure (§4.4 step 4-5): the direct-leave and with-replacement variants
// share the message but differ in what they send.
func handleSignOffParentAnswer(ctx *Context, env message.Envelope, body *message.SignOffParentAnswer) ([]Outbound, error) {
	directLeave := ctx.Machine.State() == fsm.ConnectedWaitingParentResponseDirectLeaveWoReplacement
	if _, err := ctx.Machine.Apply(fsm.EventSignOffParentAnswer, env.RefEventID); err != nil {
		return nil, err
	}
	if directLeave {
		return notifyDirectLeave(ctx)
	}
	return notifyReplacement(ctx), nil
}

// notifyReplacement fans ReplacementUpdate out to R and to every neighbor L
// currently knows about (§4.4 step 5-6): R itself reads Replacement.ID ==
// its own id as the signal to assume L's position, everyone else rewrites
// whichever slot pointed at R's old position to point at R instead.
func notifyReplacement(ctx *Context) []Outbound {
	ls := ctx.LeaveState
	if ls == nil || !ls.Replacement.Initialised() {
		// root leaving with no children ever had to replace: nothing to fan
		// out, the overlay simply shrinks by one node.
		return finishLeave(ctx)
	}

	neighbors := ctx.Routing.AllInitialisedNeighbors()
	recipients := append([]domain.NodeInfo{ls.Replacement}, neighbors...)
	refID := ctx.NextEventID()
	ctx.ArmAckQuorum(refID, len(recipients), func() {
		if _, err := ctx.Machine.Apply(fsm.EventLeaveComplete, 0); err != nil {
			ctx.Logger.Error("leave completion transition failed", logger.F("err", err))
			return
		}
		for _, n := range ls.LockingSet {
			ctx.Enqueue(ctx.Send(n, &message.UnlockNeighbor{}, ctx.NextEventID()))
		}
		ctx.LeaveState = nil
	})

	out := make([]Outbound, 0, len(recipients))
	for _, n := range recipients {
		upd := &message.ReplacementUpdate{
			RemovedPosition:  ls.Replacement.Position,
			ReplacedPosition: ctx.Self.Position,
			Replacement:      ls.Replacement,
		}
		out = append(out, ctx.Send(n, upd, refID))
	}
	return out
}

// notifyDirectLeave is the leaf-only fallback's step 5 equivalent: just ask
// every known neighbor to drop the reference, no replacement involved.
func notifyDirectLeave(ctx *Context) ([]Outbound, error) {
	return finishLeave(ctx), nil
}

func finishLeave(ctx *Context) []Outbound {
	neighbors := ctx.Routing.AllInitialisedNeighbors()
	refID := ctx.NextEventID()
	ctx.ArmAckQuorum(refID, len(neighbors), func() {
		if _, err := ctx.Machine.Apply(fsm.EventLeaveComplete, 0); err != nil {
			ctx.Logger.Error("direct-leave completion transition failed", logger.F("err", err))
		}
		ctx.LeaveState = nil
	})
	if len(neighbors) == 0 {
		// nothing to notify: a quorum of zero fires at once, so the
		// completion callback above has already run inside ArmAckQuorum.
		return nil
	}
	out := make([]Outbound, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, ctx.Send(n, &message.RemoveNeighbor{Target: ctx.Self.Position}, refID))
	}
	return out
}

// handleReplacementUpdate is received by R (assuming L's position) and by
// every third party asked to rewrite a stale reference (§4.4 step 5-6).
func handleReplacementUpdate(ctx *Context, env message.Envelope, body *message.ReplacementUpdate) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventReplacementUpdate, env.RefEventID); err != nil {
		return nil, err
	}
	if body.Replacement.Equal(ctx.Self) {
		ctx.Self.Position = body.ReplacedPosition
		ctx.Routing.SetSelfPosition(body.ReplacedPosition)
		ack := &message.RemoveNeighborAck{}
		return []Outbound{ctx.Send(env.Sender, ack, env.EventID)}, nil
	}
	_ = ctx.Routing.RemoveNeighbor(body.RemovedPosition)
	if _, err := ctx.Routing.UpdateNeighbor(body.Replacement); err != nil {
		return nil, err
	}
	ack := &message.RemoveNeighborAck{}
	return []Outbound{ctx.Send(env.Sender, ack, env.EventID)}, nil
}

// handleRemoveAndUpdateNeighbor is the atomic drop-one/learn-one variant of
// the same bookkeeping used elsewhere in the leave fan-out (§4.6).
func handleRemoveAndUpdateNeighbor(ctx *Context, env message.Envelope, body *message.RemoveAndUpdateNeighbor) ([]Outbound, error) {
	if _, err := ctx.Machine.Apply(fsm.EventRemoveAndUpdateNeighbor, env.RefEventID); err != nil {
		return nil, err
	}
	_ = ctx.Routing.RemoveNeighbor(body.Remove.Position)
	if _, err := ctx.Routing.UpdateNeighbor(body.Update); err != nil {
		return nil, err
	}
	ack := &message.RemoveNeighborAck{}
	return []Outbound{ctx.Send(env.Sender, ack, env.EventID)}, nil
}

// rightmostChild returns the highest-index occupied child slot, used to
// route FindReplacement toward the rightmost deepest leaf (§4.4 step 1).
func rightmostChild(ctx *Context) (domain.NodeInfo, bool) {
	fanout := ctx.Self.Position.Fanout
	for k := int(fanout) - 1; k >= 0; k-- {
		if n, ok := ctx.Routing.GetChild(uint16(k)); ok {
			return n, true
		}
	}
	return domain.NodeInfo{}, false
}
