package message

import "minhton/internal/domain"

// Join is sent by the joining node to the entry point (§4.3).
type Join struct {
	EnteringNode domain.NodeInfo
}

func (*Join) Type() Type { return TypeJoin }

func (m *Join) writeBody(w *writer) { w.nodeInfo(m.EnteringNode) }

func (m *Join) readBody(r *reader) error {
	n, err := r.nodeInfo()
	if err != nil {
		return err
	}
	m.EnteringNode = n
	return nil
}

// JoinAccept is the entry point's reply when it has a free child slot
// (§4.3 step 1): it carries everything the joiner needs to initialise its
// own routing view.
type JoinAccept struct {
	Fanout                 uint16
	AssignedPosition       domain.LogicalPosition
	AdjacentLeft           domain.NodeInfo
	AdjacentRight          domain.NodeInfo
	RoutingTableNeighbors  []domain.NodeInfo
}

func (*JoinAccept) Type() Type { return TypeJoinAccept }

func (m *JoinAccept) writeBody(w *writer) {
	w.u16(m.Fanout)
	w.position(m.AssignedPosition)
	w.nodeInfo(m.AdjacentLeft)
	w.nodeInfo(m.AdjacentRight)
	w.nodeInfoSlice(m.RoutingTableNeighbors)
}

func (m *JoinAccept) readBody(r *reader) error {
	var err error
	if m.Fanout, err = r.u16(); err != nil {
		return err
	}
	if m.AssignedPosition, err = r.position(); err != nil {
		return err
	}
	if m.AdjacentLeft, err = r.nodeInfo(); err != nil {
		return err
	}
	if m.AdjacentRight, err = r.nodeInfo(); err != nil {
		return err
	}
	if m.RoutingTableNeighbors, err = r.nodeInfoSlice(); err != nil {
		return err
	}
	return nil
}

// JoinAcceptAck confirms receipt of JoinAccept; the parent commits the
// child slot on delivery (§4.3).
type JoinAcceptAck struct {
	AcceptedNode domain.NodeInfo
}

func (*JoinAcceptAck) Type() Type { return TypeJoinAcceptAck }

func (m *JoinAcceptAck) writeBody(w *writer) { w.nodeInfo(m.AcceptedNode) }

func (m *JoinAcceptAck) readBody(r *reader) error {
	n, err := r.nodeInfo()
	if err != nil {
		return err
	}
	m.AcceptedNode = n
	return nil
}
