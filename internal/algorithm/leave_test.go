package algorithm

import (
	"net/netip"
	"testing"

	"minhton/internal/domain"
	"minhton/internal/fsm"
	"minhton/internal/logger"
	"minhton/internal/message"
	"minhton/internal/routinginfo"
	"minhton/internal/storage"
	"minhton/internal/timeout"
)

func leavePeer(t *testing.T, id byte, level uint32, number uint64, port uint16) domain.NodeInfo {
	t.Helper()
	addr, err := netip.ParseAddr("127.0.0.1")
	if err != nil {
		t.Fatalf("ParseAddr: %v", err)
	}
	return domain.NodeInfo{
		Position: domain.LogicalPosition{Level: level, Number: number, Fanout: 2},
		Network:  domain.NetworkInfo{Addr: addr, Port: port},
		ID:       domain.UUID{id},
	}
}

func newLeaveContext(t *testing.T, self domain.NodeInfo) *Context {
	t.Helper()
	return &Context{
		Self:     self,
		Routing:  routinginfo.New(self),
		Data:     storage.New(&logger.NopLogger{}),
		Machine:  fsm.New(),
		Timeouts: timeout.New(),
		EventIDs: message.NewEventIDGenerator(),
		Logger:   &logger.NopLogger{},
	}
}

func envelopeFrom(sender, target domain.NodeInfo, eventID, refEventID uint64, body message.Variant) message.Envelope {
	return message.Envelope{Sender: sender, Target: target, EventID: eventID, RefEventID: refEventID, Body: body}
}

// TestLeafDirectLeaveSkipsReplacementSearch exercises the supplemented
// leaf-only fallback: a childless node leaves without ever looking for a
// replacement.
func TestLeafDirectLeaveSkipsReplacementSearch(t *testing.T) {
	parent := leavePeer(t, 1, 0, 0, 3000)
	self := leavePeer(t, 2, 1, 0, 3001)
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)
	if err := ctx.Routing.SetParent(parent); err != nil {
		t.Fatalf("SetParent: %v", err)
	}

	out, err := Leave{}.InitiateLeave(ctx)
	if err != nil {
		t.Fatalf("InitiateLeave: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly one outbound SignOffParentRequest, got %d", len(out))
	}
	if _, ok := out[0].Body.(*message.SignOffParentRequest); !ok {
		t.Fatalf("expected SignOffParentRequest, got %T", out[0].Body)
	}
	if out[0].To.ID != parent.ID {
		t.Fatalf("expected request addressed to parent")
	}
	if got := ctx.Machine.State(); got != fsm.ConnectedWaitingParentResponseDirectLeaveWoReplacement {
		t.Fatalf("expected direct-leave waiting state, got %s", got)
	}
}

// TestLeafDirectLeaveCompletesToIdle drives the direct-leave path all the
// way through SignOffParentAnswer and the neighbor RemoveNeighborAck
// quorum to Idle.
func TestLeafDirectLeaveCompletesToIdle(t *testing.T) {
	parent := leavePeer(t, 1, 0, 0, 3000)
	left := leavePeer(t, 3, 1, 0, 3002)
	right := leavePeer(t, 4, 1, 2, 3003)
	self := leavePeer(t, 2, 1, 1, 3001)
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)
	if err := ctx.Routing.SetParent(parent); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	if _, err := ctx.Routing.UpdateNeighbor(left); err != nil {
		t.Fatalf("UpdateNeighbor(left): %v", err)
	}
	if _, err := ctx.Routing.UpdateNeighbor(right); err != nil {
		t.Fatalf("UpdateNeighbor(right): %v", err)
	}

	if _, err := (Leave{}).InitiateLeave(ctx); err != nil {
		t.Fatalf("InitiateLeave: %v", err)
	}

	answerEnv := envelopeFrom(parent, self, 10, 0, &message.SignOffParentAnswer{})
	out, err := Leave{}.Handle(ctx, answerEnv)
	if err != nil {
		t.Fatalf("Handle(SignOffParentAnswer): %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected one RemoveNeighbor per known neighbor (parent, left, right), got %d", len(out))
	}
	if got := ctx.Machine.State(); got != fsm.SignOffFromInlevelNeighborsDirectLeaveWoReplacement {
		t.Fatalf("expected sign-off-from-neighbors state, got %s", got)
	}

	refID := out[0].RefEventID
	for i, o := range out {
		if _, ok := o.Body.(*message.RemoveNeighbor); !ok {
			t.Fatalf("expected RemoveNeighbor at index %d, got %T", i, o.Body)
		}
		ackEnv := envelopeFrom(o.To, self, 20+uint64(i), refID, &message.RemoveNeighborAck{})
		if _, err := (Response{}).Handle(ctx, ackEnv); err != nil {
			t.Fatalf("Handle(RemoveNeighborAck) %d: %v", i, err)
		}
	}
	if got := ctx.Machine.State(); got != fsm.Idle {
		t.Fatalf("expected Idle once every ack landed, got %s", got)
	}
}

// TestFindReplacementForwardsToRightmostChild checks that an interior node
// with occupied children forwards rather than offering itself.
func TestFindReplacementForwardsToRightmostChild(t *testing.T) {
	self := leavePeer(t, 1, 0, 0, 3000)
	childA := leavePeer(t, 2, 1, 0, 3001)
	childB := leavePeer(t, 3, 1, 1, 3002)
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)
	if err := ctx.Routing.SetChild(0, childA); err != nil {
		t.Fatalf("SetChild(0): %v", err)
	}
	if err := ctx.Routing.SetChild(1, childB); err != nil {
		t.Fatalf("SetChild(1): %v", err)
	}

	leaver := leavePeer(t, 9, 0, 5, 3010)
	env := envelopeFrom(leaver, self, 1, 0, &message.FindReplacement{NodeToReplace: leaver})
	out, err := Leave{}.Handle(ctx, env)
	if err != nil {
		t.Fatalf("Handle(FindReplacement): %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected single forward, got %d", len(out))
	}
	if out[0].To.ID != childB.ID {
		t.Fatalf("expected forward to rightmost child %s, got %s", childB.ID, out[0].To.ID)
	}
	if got := ctx.Machine.State(); got != fsm.Connected {
		t.Fatalf("forwarding must not move the FSM, got %s", got)
	}
}

// TestFindReplacementLeafOffersItself checks a childless recipient becomes
// R and replies with a ReplacementOffer addressed to the leaver.
func TestFindReplacementLeafOffersItself(t *testing.T) {
	self := leavePeer(t, 1, 2, 3, 3000)
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)

	leaver := leavePeer(t, 9, 0, 5, 3010)
	env := envelopeFrom(leaver, self, 1, 0, &message.FindReplacement{NodeToReplace: leaver})
	out, err := Leave{}.Handle(ctx, env)
	if err != nil {
		t.Fatalf("Handle(FindReplacement): %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one ReplacementOffer, got %d", len(out))
	}
	offer, ok := out[0].Body.(*message.ReplacementOffer)
	if !ok {
		t.Fatalf("expected ReplacementOffer, got %T", out[0].Body)
	}
	if offer.Replacement.ID != self.ID {
		t.Fatal("expected self to offer itself as replacement")
	}
	if out[0].To.ID != leaver.ID {
		t.Fatal("expected offer addressed back to the leaver")
	}
}

// TestReplacementNackRestartsFromFindReplacement drives L through
// ConnectedReplacing, has R nack, and checks L restarts the search.
func TestReplacementNackRestartsFromFindReplacement(t *testing.T) {
	child := leavePeer(t, 2, 1, 0, 3001)
	self := leavePeer(t, 1, 0, 0, 3000)
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)
	if err := ctx.Routing.SetChild(0, child); err != nil {
		t.Fatalf("SetChild: %v", err)
	}

	if _, err := (Leave{}).InitiateLeave(ctx); err != nil {
		t.Fatalf("InitiateLeave: %v", err)
	}
	if got := ctx.Machine.State(); got != fsm.WaitForReplacementOffer {
		t.Fatalf("expected WaitForReplacementOffer, got %s", got)
	}

	replacement := leavePeer(t, 3, 2, 1, 3002)
	offerEnv := envelopeFrom(replacement, self, 5, 0, &message.ReplacementOffer{Replacement: replacement})
	if _, err := (Leave{}).Handle(ctx, offerEnv); err != nil {
		t.Fatalf("Handle(ReplacementOffer): %v", err)
	}
	if got := ctx.Machine.State(); got != fsm.ConnectedReplacing {
		t.Fatalf("expected ConnectedReplacing, got %s", got)
	}

	nackEnv := envelopeFrom(replacement, self, 6, 0, &message.ReplacementNack{})
	out, err := Leave{}.Handle(ctx, nackEnv)
	if err != nil {
		t.Fatalf("Handle(ReplacementNack): %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one FindReplacement retry, got %d", len(out))
	}
	if _, ok := out[0].Body.(*message.FindReplacement); !ok {
		t.Fatalf("expected a fresh FindReplacement, got %T", out[0].Body)
	}
	if got := ctx.Machine.State(); got != fsm.WaitForReplacementOffer {
		t.Fatalf("expected back to WaitForReplacementOffer, got %s", got)
	}
}

// TestLockNeighborDenialUnlocksGrantedAndRestarts checks the all-grants-
// required semantics: one denial among several unlocks whatever was
// already granted, in reverse order, and restarts the search.
func TestLockNeighborDenialUnlocksGrantedAndRestarts(t *testing.T) {
	child := leavePeer(t, 2, 1, 0, 3001)
	self := leavePeer(t, 1, 0, 0, 3000)
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)
	if err := ctx.Routing.SetChild(0, child); err != nil {
		t.Fatalf("SetChild: %v", err)
	}
	adjLeft := leavePeer(t, 4, 1, 5, 3004)
	if _, err := ctx.Routing.UpdateNeighbor(adjLeft); err != nil {
		t.Fatalf("UpdateNeighbor(adjLeft): %v", err)
	}

	if _, err := (Leave{}).InitiateLeave(ctx); err != nil {
		t.Fatalf("InitiateLeave: %v", err)
	}
	replacement := leavePeer(t, 5, 2, 9, 3005)
	offerEnv := envelopeFrom(replacement, self, 5, 0, &message.ReplacementOffer{Replacement: replacement})
	out, err := Leave{}.Handle(ctx, offerEnv)
	if err != nil {
		t.Fatalf("Handle(ReplacementOffer): %v", err)
	}

	var lockRequests []Outbound
	for _, o := range out {
		if _, ok := o.Body.(*message.LockNeighborRequest); ok {
			lockRequests = append(lockRequests, o)
		}
	}
	if len(lockRequests) != len(ctx.LeaveState.LockingSet) {
		t.Fatalf("expected a lock request per locking-set member, got %d want %d", len(lockRequests), len(ctx.LeaveState.LockingSet))
	}

	var finalOut []Outbound
	for i, o := range lockRequests {
		granted := i != 0 // deny the first responder
		respEnv := envelopeFrom(o.To, self, 100+uint64(i), 0, &message.LockNeighborResponse{Granted: granted})
		got, err := Leave{}.Handle(ctx, respEnv)
		if err != nil {
			t.Fatalf("Handle(LockNeighborResponse) %d: %v", i, err)
		}
		finalOut = got
	}

	unlocks := 0
	retries := 0
	for _, o := range finalOut {
		switch o.Body.(type) {
		case *message.UnlockNeighbor:
			unlocks++
		case *message.FindReplacement:
			retries++
		}
	}
	if unlocks != len(lockRequests)-1 {
		t.Fatalf("expected %d unlocks (all but the denied one), got %d", len(lockRequests)-1, unlocks)
	}
	if retries != 1 {
		t.Fatalf("expected exactly one retry FindReplacement, got %d", retries)
	}
	if got := ctx.Machine.State(); got != fsm.WaitForReplacementOffer {
		t.Fatalf("expected restart state WaitForReplacementOffer, got %s", got)
	}
}

func TestLockNeighborRequestGrantsWhenFree(t *testing.T) {
	self := leavePeer(t, 1, 1, 0, 3000)
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)

	requester := leavePeer(t, 2, 0, 0, 3001)
	env := envelopeFrom(requester, self, 1, 0, &message.LockNeighborRequest{Requester: requester})
	out, err := Leave{}.Handle(ctx, env)
	if err != nil {
		t.Fatalf("Handle(LockNeighborRequest): %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one response, got %d", len(out))
	}
	resp, ok := out[0].Body.(*message.LockNeighborResponse)
	if !ok {
		t.Fatalf("expected LockNeighborResponse, got %T", out[0].Body)
	}
	if !resp.Granted {
		t.Fatal("expected lock to be granted on a free node")
	}
	if !ctx.Locked {
		t.Fatal("expected context to record the lock")
	}

	other := leavePeer(t, 3, 0, 1, 3002)
	env2 := envelopeFrom(other, self, 2, 0, &message.LockNeighborRequest{Requester: other})
	out2, err := Leave{}.Handle(ctx, env2)
	if err != nil {
		t.Fatalf("Handle(LockNeighborRequest) second: %v", err)
	}
	if out2[0].Body.(*message.LockNeighborResponse).Granted {
		t.Fatal("expected second concurrent lock request to be denied")
	}

	if _, err := (Leave{}).Handle(ctx, envelopeFrom(requester, self, 3, 0, &message.UnlockNeighbor{})); err != nil {
		t.Fatalf("Handle(UnlockNeighbor): %v", err)
	}
	if ctx.Locked {
		t.Fatal("expected lock released after UnlockNeighbor")
	}
}

func TestReplacementUpdateMovesReplacementToLeaverPosition(t *testing.T) {
	self := leavePeer(t, 5, 2, 9, 3005) // this is R
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)

	leaver := leavePeer(t, 1, 0, 0, 3000)
	update := &message.ReplacementUpdate{
		RemovedPosition:  self.Position,
		ReplacedPosition: leaver.Position,
		Replacement:      self,
	}
	env := envelopeFrom(leaver, self, 1, 0, update)
	out, err := Leave{}.Handle(ctx, env)
	if err != nil {
		t.Fatalf("Handle(ReplacementUpdate): %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one RemoveNeighborAck, got %d", len(out))
	}
	if _, ok := out[0].Body.(*message.RemoveNeighborAck); !ok {
		t.Fatalf("expected RemoveNeighborAck, got %T", out[0].Body)
	}
	if !ctx.Self.Position.Equal(leaver.Position) {
		t.Fatalf("expected self position to become %s, got %s", leaver.Position, ctx.Self.Position)
	}
}

func TestReplacementUpdateRewritesThirdPartyReference(t *testing.T) {
	self := leavePeer(t, 7, 1, 0, 3007)
	oldRef := leavePeer(t, 1, 0, 0, 3000) // the leaver L, known as self's parent
	ctx := newLeaveContext(t, self)
	ctx.Machine.ForceState(fsm.Connected)
	if _, err := ctx.Routing.UpdateNeighbor(oldRef); err != nil {
		t.Fatalf("UpdateNeighbor(oldRef): %v", err)
	}

	replacement := leavePeer(t, 5, 0, 0, 3005) // now sits at oldRef's former slot
	update := &message.ReplacementUpdate{
		RemovedPosition:  domain.LogicalPosition{Level: 2, Number: 9, Fanout: 2}, // replacement's own former slot
		ReplacedPosition: oldRef.Position,
		Replacement:      replacement,
	}
	env := envelopeFrom(oldRef, self, 1, 0, update)
	if _, err := (Leave{}).Handle(ctx, env); err != nil {
		t.Fatalf("Handle(ReplacementUpdate): %v", err)
	}
	parent, ok := ctx.Routing.GetParent()
	if !ok || parent.ID != replacement.ID {
		t.Fatalf("expected parent reference rewritten to the replacement %s, got %s (ok=%v)", replacement.ID, parent.ID, ok)
	}
}
