package message

import "minhton/internal/domain"

// ValueKind tags whether a stored attribute is Static (set once, rarely
// changes) or Dynamic (changes often, e.g. a load metric), per §4.7's
// LocalData model.
type ValueKind uint8

const (
	ValueStatic ValueKind = iota
	ValueDynamic
)

// Scope selects how much of a query's matching node set is returned:
// All, or Some truncated to kFindQuerySomeScopeThreshold (§4.7).
type Scope uint8

const (
	ScopeAll Scope = iota
	ScopeSome
)

// FindQuerySomeScopeThreshold bounds a ScopeSome query's result size.
const FindQuerySomeScopeThreshold = 32

// Attribute is one (key, value, timestamp, kind) tuple as stored in
// LocalData and carried over the wire in AttributeInquiryAnswer (§4.7).
type Attribute struct {
	Key       string
	Value     string
	Timestamp int64
	Kind      ValueKind
}

// FindQueryRequest is routed via search-exact to the computed root DSN
// (§4.7).
type FindQueryRequest struct {
	Query string
	Scope Scope
}

func (*FindQueryRequest) Type() Type { return TypeFindQueryRequest }

func (m *FindQueryRequest) writeBody(w *writer) {
	w.str(m.Query)
	w.u8(uint8(m.Scope))
}

func (m *FindQueryRequest) readBody(r *reader) error {
	var err error
	if m.Query, err = r.str(); err != nil {
		return err
	}
	scope, err := r.u8()
	if err != nil {
		return err
	}
	m.Scope = Scope(scope)
	return nil
}

// FindQueryAnswer carries the DSN's matching node list back to the query
// initiator (§4.7).
type FindQueryAnswer struct {
	Nodes []domain.NodeInfo
}

func (*FindQueryAnswer) Type() Type { return TypeFindQueryAnswer }
func (m *FindQueryAnswer) writeBody(w *writer) { w.nodeInfoSlice(m.Nodes) }
func (m *FindQueryAnswer) readBody(r *reader) (err error) {
	m.Nodes, err = r.nodeInfoSlice()
	return err
}

// AttributeInquiryRequest asks a node directly for the current value of
// the named keys, used when FindQueryAnswer's cached freshness is stale
// (§4.7).
type AttributeInquiryRequest struct {
	Keys []string
}

func (*AttributeInquiryRequest) Type() Type { return TypeAttributeInquiryRequest }

func (m *AttributeInquiryRequest) writeBody(w *writer) {
	w.u32(uint32(len(m.Keys)))
	for _, k := range m.Keys {
		w.str(k)
	}
}

func (m *AttributeInquiryRequest) readBody(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Keys = make([]string, n)
	for i := range m.Keys {
		if m.Keys[i], err = r.str(); err != nil {
			return err
		}
	}
	return nil
}

// AttributeInquiryAnswer carries a node's current attribute snapshot, sent
// either as a direct reply to AttributeInquiryRequest or pushed
// unsolicited to the owner's covering DSN on a local data change (§4.7).
type AttributeInquiryAnswer struct {
	Node       domain.NodeInfo
	Attributes []Attribute
}

func (*AttributeInquiryAnswer) Type() Type { return TypeAttributeInquiryAnswer }

func (m *AttributeInquiryAnswer) writeBody(w *writer) {
	w.nodeInfo(m.Node)
	w.u32(uint32(len(m.Attributes)))
	for _, a := range m.Attributes {
		w.str(a.Key)
		w.str(a.Value)
		w.u64(uint64(a.Timestamp))
		w.u8(uint8(a.Kind))
	}
}

func (m *AttributeInquiryAnswer) readBody(r *reader) error {
	var err error
	if m.Node, err = r.nodeInfo(); err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Attributes = make([]Attribute, n)
	for i := range m.Attributes {
		if m.Attributes[i].Key, err = r.str(); err != nil {
			return err
		}
		if m.Attributes[i].Value, err = r.str(); err != nil {
			return err
		}
		ts, err := r.u64()
		if err != nil {
			return err
		}
		m.Attributes[i].Timestamp = int64(ts)
		kind, err := r.u8()
		if err != nil {
			return err
		}
		m.Attributes[i].Kind = ValueKind(kind)
	}
	return nil
}

// SubscriptionOrder places or withdraws a DSN's subscription to the given
// keys on a node as it joins/leaves the DSN's subtree (§4.7).
type SubscriptionOrder struct {
	Keys      []string
	Subscribe bool
}

func (*SubscriptionOrder) Type() Type { return TypeSubscriptionOrder }

func (m *SubscriptionOrder) writeBody(w *writer) {
	w.u32(uint32(len(m.Keys)))
	for _, k := range m.Keys {
		w.str(k)
	}
	w.boolean(m.Subscribe)
}

func (m *SubscriptionOrder) readBody(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Keys = make([]string, n)
	for i := range m.Keys {
		if m.Keys[i], err = r.str(); err != nil {
			return err
		}
	}
	m.Subscribe, err = r.boolean()
	return err
}

// SubscriptionUpdate is pushed to a subscriber whenever a subscribed key
// changes via localInsert/localUpdate/localRemove (§4.7).
type SubscriptionUpdate struct {
	Key       string
	Value     string
	Timestamp int64
}

func (*SubscriptionUpdate) Type() Type { return TypeSubscriptionUpdate }

func (m *SubscriptionUpdate) writeBody(w *writer) {
	w.str(m.Key)
	w.str(m.Value)
	w.u64(uint64(m.Timestamp))
}

func (m *SubscriptionUpdate) readBody(r *reader) error {
	var err error
	if m.Key, err = r.str(); err != nil {
		return err
	}
	if m.Value, err = r.str(); err != nil {
		return err
	}
	ts, err := r.u64()
	if err != nil {
		return err
	}
	m.Timestamp = int64(ts)
	return nil
}
