package fsm

import (
	"fmt"

	"minhton/internal/minhtonerr"
)

// Machine is a single participant's finite-state machine. It is not safe
// for concurrent use; a participant drives it from its single cooperative
// event loop only (§5).
type Machine struct {
	state State
	// seenRefEvents remembers ref-event-ids this machine has already acted
	// on, so a late duplicate response (identified by ref-event-id) is
	// silently dropped instead of being classified as illegal (§4.2).
	seenRefEvents map[uint64]struct{}
}

// New returns a Machine starting in Idle, per §3.
func New() *Machine {
	return &Machine{
		state:         Idle,
		seenRefEvents: make(map[uint64]struct{}),
	}
}

// State returns the current FSM state.
func (m *Machine) State() State {
	return m.state
}

// Apply classifies event e (optionally correlated to refEventID, 0 if
// none) against the current state. A legal transition updates the state
// and returns it. An illegal transition drives the machine to ErrorState
// and returns the wrapped FSMViolation error, except when refEventID has
// already been seen -- that case is a late duplicate and is dropped
// without moving the state, per §4.2.
func (m *Machine) Apply(e EventKind, refEventID uint64) (State, error) {
	if refEventID != 0 {
		if _, dup := m.seenRefEvents[refEventID]; dup {
			return m.state, nil
		}
	}

	next, ok := Lookup(m.state, e)
	if !ok {
		prev := m.state
		m.state = ErrorState
		return m.state, fmt.Errorf("%w: event %s illegal in state %s", minhtonerr.ErrFSMViolation, e, prev)
	}

	if refEventID != 0 {
		m.seenRefEvents[refEventID] = struct{}{}
	}
	m.state = next
	return m.state, nil
}

// ForceState bypasses the transition table. It exists for transitions the
// table cannot express as classified inbound events: the self-initiated
// decision to begin leaving (Connected -> WaitForReplacementOffer) and
// joining-as-root bootstrap setup (Idle -> WaitForBootstrapResponse). Both
// are local decisions, not reactions to an inbound message or timeout.
func (m *Machine) ForceState(s State) {
	m.state = s
}
