package message

import "minhton/internal/domain"

// NeighborUpdate is one (node, relationship) tuple applied via §4.1's
// classifier.
type NeighborUpdate struct {
	Node         domain.NodeInfo
	Relationship domain.NeighborRelationship
}

// UpdateNeighbors applies a batch of neighbor updates; it never moves the
// FSM (§4.6).
type UpdateNeighbors struct {
	Updates []NeighborUpdate
}

func (*UpdateNeighbors) Type() Type { return TypeUpdateNeighbors }

func (m *UpdateNeighbors) writeBody(w *writer) {
	w.u32(uint32(len(m.Updates)))
	for _, u := range m.Updates {
		w.nodeInfo(u.Node)
		w.relationship(u.Relationship)
	}
}

func (m *UpdateNeighbors) readBody(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Updates = make([]NeighborUpdate, n)
	for i := range m.Updates {
		if m.Updates[i].Node, err = r.nodeInfo(); err != nil {
			return err
		}
		if m.Updates[i].Relationship, err = r.relationship(); err != nil {
			return err
		}
	}
	return nil
}

// RemoveNeighbor asks the recipient to drop its reference to Target by
// position; removing the parent outside the leave protocol is illegal and
// is rejected by the handler, not by the wire format (§4.6).
type RemoveNeighbor struct {
	Target domain.LogicalPosition
}

func (*RemoveNeighbor) Type() Type { return TypeRemoveNeighbor }
func (m *RemoveNeighbor) writeBody(w *writer) { w.position(m.Target) }
func (m *RemoveNeighbor) readBody(r *reader) (err error) {
	m.Target, err = r.position()
	return err
}

// GetNeighbors requests the matching initialised neighbors by relationship
// kind; an empty requested set is invalid (§4.6).
type GetNeighbors struct {
	RequestedRelationships []domain.NeighborRelationship
	SendBackTo             domain.NodeInfo
}

func (*GetNeighbors) Type() Type { return TypeGetNeighbors }

func (m *GetNeighbors) writeBody(w *writer) {
	w.relationshipSlice(m.RequestedRelationships)
	w.nodeInfo(m.SendBackTo)
}

func (m *GetNeighbors) readBody(r *reader) error {
	var err error
	if m.RequestedRelationships, err = r.relationshipSlice(); err != nil {
		return err
	}
	m.SendBackTo, err = r.nodeInfo()
	return err
}

// InformAboutNeighbors is the reply to GetNeighbors, consumed by a
// previously suspended Join continuation (§4.6).
type InformAboutNeighbors struct {
	Nodes []domain.NodeInfo
}

func (*InformAboutNeighbors) Type() Type { return TypeInformAboutNeighbors }
func (m *InformAboutNeighbors) writeBody(w *writer) { w.nodeInfoSlice(m.Nodes) }
func (m *InformAboutNeighbors) readBody(r *reader) (err error) {
	m.Nodes, err = r.nodeInfoSlice()
	return err
}
