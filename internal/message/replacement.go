package message

import "minhton/internal/domain"

// FindReplacement is routed toward the rightmost deepest leaf, which
// becomes the replacement R for a leaving interior node L (§4.4 step 1).
type FindReplacement struct {
	NodeToReplace domain.NodeInfo
}

func (*FindReplacement) Type() Type { return TypeFindReplacement }
func (m *FindReplacement) writeBody(w *writer) { w.nodeInfo(m.NodeToReplace) }
func (m *FindReplacement) readBody(r *reader) (err error) {
	m.NodeToReplace, err = r.nodeInfo()
	return err
}

// ReplacementOffer is R's reply offering itself as the replacement
// (§4.4 step 2).
type ReplacementOffer struct {
	Replacement domain.NodeInfo
}

func (*ReplacementOffer) Type() Type { return TypeReplacementOffer }
func (m *ReplacementOffer) writeBody(w *writer) { w.nodeInfo(m.Replacement) }
func (m *ReplacementOffer) readBody(r *reader) (err error) {
	m.Replacement, err = r.nodeInfo()
	return err
}

// ReplacementAck carries L's full neighbor list and which of them are
// already locked by a concurrent leaver (§4.4 step 2).
type ReplacementAck struct {
	Neighbors    []domain.NodeInfo
	LockedStates []bool
}

func (*ReplacementAck) Type() Type { return TypeReplacementAck }

func (m *ReplacementAck) writeBody(w *writer) {
	w.nodeInfoSlice(m.Neighbors)
	w.u32(uint32(len(m.LockedStates)))
	for _, locked := range m.LockedStates {
		w.boolean(locked)
	}
}

func (m *ReplacementAck) readBody(r *reader) error {
	var err error
	if m.Neighbors, err = r.nodeInfoSlice(); err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.LockedStates = make([]bool, n)
	for i := range m.LockedStates {
		if m.LockedStates[i], err = r.boolean(); err != nil {
			return err
		}
	}
	return nil
}

// ReplacementNack tells L that some member of the locking set S is already
// locked by a concurrent leave; L must restart from step 1 after backoff
// (§4.4 step 2).
type ReplacementNack struct{}

func (*ReplacementNack) Type() Type               { return TypeReplacementNack }
func (*ReplacementNack) writeBody(*writer)        {}
func (*ReplacementNack) readBody(*reader) error   { return nil }

// LockNeighborRequest asks a member of S to lock itself against concurrent
// leaves (§4.4 step 3).
type LockNeighborRequest struct {
	Requester domain.NodeInfo
}

func (*LockNeighborRequest) Type() Type { return TypeLockNeighborRequest }
func (m *LockNeighborRequest) writeBody(w *writer) { w.nodeInfo(m.Requester) }
func (m *LockNeighborRequest) readBody(r *reader) (err error) {
	m.Requester, err = r.nodeInfo()
	return err
}

// LockNeighborResponse grants or denies a lock request (§4.4 step 3).
type LockNeighborResponse struct {
	Granted bool
}

func (*LockNeighborResponse) Type() Type { return TypeLockNeighborResponse }
func (m *LockNeighborResponse) writeBody(w *writer) { w.boolean(m.Granted) }
func (m *LockNeighborResponse) readBody(r *reader) (err error) {
	m.Granted, err = r.boolean()
	return err
}

// UnlockNeighbor releases a previously granted lock, sent to every member
// of S on both the success path (step 7) and any abort path, always in
// reverse acquisition order (§4.4).
type UnlockNeighbor struct{}

func (*UnlockNeighbor) Type() Type             { return TypeUnlockNeighbor }
func (*UnlockNeighbor) writeBody(*writer)      {}
func (*UnlockNeighbor) readBody(*reader) error { return nil }

// SignOffParentRequest asks L's parent to acknowledge the upcoming
// departure (§4.4 step 4).
type SignOffParentRequest struct {
	Leaver domain.NodeInfo
}

func (*SignOffParentRequest) Type() Type { return TypeSignOffParentRequest }
func (m *SignOffParentRequest) writeBody(w *writer) { w.nodeInfo(m.Leaver) }
func (m *SignOffParentRequest) readBody(r *reader) (err error) {
	m.Leaver, err = r.nodeInfo()
	return err
}

// SignOffParentAnswer is the parent's acknowledgement (§4.4 step 4).
type SignOffParentAnswer struct{}

func (*SignOffParentAnswer) Type() Type             { return TypeSignOffParentAnswer }
func (*SignOffParentAnswer) writeBody(*writer)      {}
func (*SignOffParentAnswer) readBody(*reader) error { return nil }

// ReplacementUpdate tells a node that a position reference must be
// rewritten: whatever referenced RemovedPosition (R's old slot) now
// references ReplacedPosition (L's slot, now occupied by R) (§4.4 step 5).
type ReplacementUpdate struct {
	RemovedPosition  domain.LogicalPosition
	ReplacedPosition domain.LogicalPosition
	Replacement      domain.NodeInfo
}

func (*ReplacementUpdate) Type() Type { return TypeReplacementUpdate }

func (m *ReplacementUpdate) writeBody(w *writer) {
	w.position(m.RemovedPosition)
	w.position(m.ReplacedPosition)
	w.nodeInfo(m.Replacement)
}

func (m *ReplacementUpdate) readBody(r *reader) error {
	var err error
	if m.RemovedPosition, err = r.position(); err != nil {
		return err
	}
	if m.ReplacedPosition, err = r.position(); err != nil {
		return err
	}
	m.Replacement, err = r.nodeInfo()
	return err
}

// RemoveAndUpdateNeighbor is the atomic pair used by the leave protocol
// where a single recipient must both drop a stale reference and learn the
// replacement's new identity in one step; either both apply or the message
// is rejected whole (§4.6).
type RemoveAndUpdateNeighbor struct {
	Remove             domain.NodeInfo
	Update             domain.NodeInfo
	UpdateRelationship domain.NeighborRelationship
}

func (*RemoveAndUpdateNeighbor) Type() Type { return TypeRemoveAndUpdateNeighbor }

func (m *RemoveAndUpdateNeighbor) writeBody(w *writer) {
	w.nodeInfo(m.Remove)
	w.nodeInfo(m.Update)
	w.relationship(m.UpdateRelationship)
}

func (m *RemoveAndUpdateNeighbor) readBody(r *reader) error {
	var err error
	if m.Remove, err = r.nodeInfo(); err != nil {
		return err
	}
	if m.Update, err = r.nodeInfo(); err != nil {
		return err
	}
	m.UpdateRelationship, err = r.relationship()
	return err
}

// RemoveNeighborAck acknowledges RemoveNeighbor/RemoveAndUpdateNeighbor;
// acks are counted against an expected quorum by waitForAcks (§4.6 P8).
type RemoveNeighborAck struct{}

func (*RemoveNeighborAck) Type() Type             { return TypeRemoveNeighborAck }
func (*RemoveNeighborAck) writeBody(*writer)      {}
func (*RemoveNeighborAck) readBody(*reader) error { return nil }
