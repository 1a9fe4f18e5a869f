package domain

// NodeInfo identifies a peer: its logical position, its physical network
// address, and its stable UUID. A NodeInfo is Initialised iff both the
// fanout is set (Position.Fanout != 0) and the network address is valid;
// an uninitialised NodeInfo is a placeholder for "unknown peer at this
// slot" rather than an error.
type NodeInfo struct {
	Position LogicalPosition
	Network  NetworkInfo
	ID       UUID
}

// Initialised reports whether this NodeInfo refers to a real, reachable
// peer (§3).
func (n NodeInfo) Initialised() bool {
	return n.Position.Fanout != 0 && n.Network.IsValid()
}

// Equal compares NodeInfo by identity (UUID), the only field that survives
// a leave-with-replacement reassignment of Position (§4.4 step 6).
func (n NodeInfo) Equal(o NodeInfo) bool {
	return n.ID.Equal(o.ID)
}

// SamePosition reports whether two NodeInfo values occupy the same slot,
// regardless of identity -- used by the routing-information classifier
// (§4.1) which operates purely on position.
func (n NodeInfo) SamePosition(o NodeInfo) bool {
	return n.Position.Equal(o.Position)
}

func (n NodeInfo) String() string {
	if !n.Initialised() {
		return "<uninitialized>"
	}
	return n.ID.String() + "@" + n.Network.String()
}
