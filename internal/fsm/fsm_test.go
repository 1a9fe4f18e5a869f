package fsm

import "testing"

func TestJoinHappyPath(t *testing.T) {
	m := New()
	if m.State() != Idle {
		t.Fatalf("initial state = %s, want Idle", m.State())
	}

	m.ForceState(WaitForBootstrapResponse)
	if _, err := m.Apply(EventBootstrapResponse, 1); err != nil {
		t.Fatalf("BootstrapResponse: %v", err)
	}
	if m.State() != WaitForJoinAccept {
		t.Fatalf("state = %s, want WaitForJoinAccept", m.State())
	}

	if _, err := m.Apply(EventJoinAccept, 2); err != nil {
		t.Fatalf("JoinAccept: %v", err)
	}
	if m.State() != Connected {
		t.Fatalf("state = %s, want Connected", m.State())
	}
}

func TestBootstrapTimeoutExhaustedPromotesToRoot(t *testing.T) {
	m := New()
	m.ForceState(WaitForBootstrapResponse)
	if _, err := m.Apply(EventTimeoutBootstrapResponseRetry, 1); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if m.State() != WaitForBootstrapResponse {
		t.Fatalf("state = %s, want WaitForBootstrapResponse after retry", m.State())
	}
	if _, err := m.Apply(EventTimeoutBootstrapResponseExhausted, 2); err != nil {
		t.Fatalf("exhausted: %v", err)
	}
	if m.State() != Connected {
		t.Fatalf("state = %s, want Connected (self-promoted root)", m.State())
	}
}

func TestIllegalEventMovesToErrorState(t *testing.T) {
	m := New() // Idle
	_, err := m.Apply(EventJoinAccept, 1)
	if err == nil {
		t.Fatal("expected FSM violation error")
	}
	if m.State() != ErrorState {
		t.Fatalf("state = %s, want ErrorState", m.State())
	}
}

func TestLateDuplicateRefEventIsDropped(t *testing.T) {
	m := New()
	m.ForceState(WaitForJoinAccept)
	if _, err := m.Apply(EventJoinAccept, 42); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if m.State() != Connected {
		t.Fatalf("state = %s, want Connected", m.State())
	}

	// A second message carrying the same ref-event-id is a late duplicate:
	// it must be silently dropped, not rejected as illegal even though
	// EventJoinAccept is not a legal event from Connected.
	next, err := m.Apply(EventJoinAccept, 42)
	if err != nil {
		t.Fatalf("duplicate should not error: %v", err)
	}
	if next != Connected {
		t.Fatalf("state after duplicate = %s, want unchanged Connected", next)
	}
}

func TestLeaveWithReplacementHappyPath(t *testing.T) {
	m := New()
	m.ForceState(Connected)
	m.ForceState(WaitForReplacementOffer) // self-initiated leave decision

	if _, err := m.Apply(EventReplacementOffer, 1); err != nil {
		t.Fatalf("ReplacementOffer: %v", err)
	}
	if m.State() != ConnectedReplacing {
		t.Fatalf("state = %s, want ConnectedReplacing", m.State())
	}

	if _, err := m.Apply(EventLockNeighborResponse, 2); err != nil {
		t.Fatalf("LockNeighborResponse: %v", err)
	}
	if m.State() != ConnectedReplacing {
		t.Fatalf("state = %s, want ConnectedReplacing (self-loop)", m.State())
	}

	if _, err := m.Apply(EventSignOffParentAnswer, 3); err != nil {
		t.Fatalf("SignOffParentAnswer: %v", err)
	}
	if m.State() != SignOffFromInlevelNeighbors {
		t.Fatalf("state = %s, want SignOffFromInlevelNeighbors", m.State())
	}

	if _, err := m.Apply(EventRemoveNeighborAck, 4); err != nil {
		t.Fatalf("RemoveNeighborAck: %v", err)
	}
	if m.State() != SignOffFromInlevelNeighbors {
		t.Fatalf("state = %s, want SignOffFromInlevelNeighbors (self-loop)", m.State())
	}

	if _, err := m.Apply(EventLeaveComplete, 0); err != nil {
		t.Fatalf("LeaveComplete: %v", err)
	}
	if m.State() != Idle {
		t.Fatalf("state = %s, want Idle", m.State())
	}
}

func TestLeaveWithReplacementNackRestartsFromStepOne(t *testing.T) {
	m := New()
	m.ForceState(WaitForReplacementOffer)
	if _, err := m.Apply(EventReplacementOffer, 1); err != nil {
		t.Fatalf("ReplacementOffer: %v", err)
	}
	if _, err := m.Apply(EventReplacementNack, 2); err != nil {
		t.Fatalf("ReplacementNack: %v", err)
	}
	if m.State() != WaitForReplacementOffer {
		t.Fatalf("state = %s, want WaitForReplacementOffer (restart)", m.State())
	}
}

func TestReplacementOfferExhaustedFallsBackToDirectLeave(t *testing.T) {
	m := New()
	m.ForceState(WaitForReplacementOffer)
	if _, err := m.Apply(EventTimeoutReplacementOfferResponseExhausted, 0); err != nil {
		t.Fatalf("exhausted: %v", err)
	}
	if m.State() != ConnectedWaitingParentResponseDirectLeaveWoReplacement {
		t.Fatalf("state = %s, want ConnectedWaitingParentResponseDirectLeaveWoReplacement", m.State())
	}

	if _, err := m.Apply(EventSignOffParentAnswer, 1); err != nil {
		t.Fatalf("SignOffParentAnswer: %v", err)
	}
	if m.State() != SignOffFromInlevelNeighborsDirectLeaveWoReplacement {
		t.Fatalf("state = %s, want SignOffFromInlevelNeighborsDirectLeaveWoReplacement", m.State())
	}

	if _, err := m.Apply(EventLeaveComplete, 0); err != nil {
		t.Fatalf("LeaveComplete: %v", err)
	}
	if m.State() != Idle {
		t.Fatalf("state = %s, want Idle", m.State())
	}
}

func TestPassiveUpdateNeverMovesFSM(t *testing.T) {
	m := New()
	m.ForceState(Connected)
	if _, err := m.Apply(EventPassiveUpdate, 0); err != nil {
		t.Fatalf("PassiveUpdate: %v", err)
	}
	if m.State() != Connected {
		t.Fatalf("state = %s, want unchanged Connected", m.State())
	}
}

func TestEveryStateHasAtLeastOneValidTransition(t *testing.T) {
	states := []State{
		Idle, WaitForBootstrapResponse, WaitForJoinAccept, Connected,
		ConnectedAcceptingChild, ConnectedReplacing, WaitForReplacementOffer,
		ConnectedWaitingParentResponse, SignOffFromInlevelNeighbors,
		ConnectedWaitingParentResponseDirectLeaveWoReplacement,
		SignOffFromInlevelNeighborsDirectLeaveWoReplacement,
	}
	for _, s := range states {
		found := false
		for k := range table {
			if k.state == s {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("state %s has no transitions defined", s)
		}
	}
}
