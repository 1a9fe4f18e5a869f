package message

import "minhton/internal/domain"

// SearchExact is forwarded one hop at a time toward Destination (§4.5).
// Query is itself a serialized MessageVariant, deserialized and dispatched
// as a fresh event once the receiver is the destination.
type SearchExact struct {
	Destination        domain.LogicalPosition
	Query              []byte
	NotifyAboutFailure bool
}

func (*SearchExact) Type() Type { return TypeSearchExact }

func (m *SearchExact) writeBody(w *writer) {
	w.position(m.Destination)
	w.bytesField(m.Query)
	w.boolean(m.NotifyAboutFailure)
}

func (m *SearchExact) readBody(r *reader) error {
	var err error
	if m.Destination, err = r.position(); err != nil {
		return err
	}
	if m.Query, err = r.bytesField(); err != nil {
		return err
	}
	m.NotifyAboutFailure, err = r.boolean()
	return err
}

// SearchExactFailure is returned to the original sender when no neighbor
// is closer to Destination and NotifyAboutFailure was set (§4.5).
type SearchExactFailure struct {
	Query []byte
}

func (*SearchExactFailure) Type() Type { return TypeSearchExactFailure }
func (m *SearchExactFailure) writeBody(w *writer) { w.bytesField(m.Query) }
func (m *SearchExactFailure) readBody(r *reader) (err error) {
	m.Query, err = r.bytesField()
	return err
}

// Empty is a no-op payload, used where a message type requires a body but
// the protocol carries no information beyond the envelope header itself.
type Empty struct{}

func (*Empty) Type() Type             { return TypeEmpty }
func (*Empty) writeBody(*writer)      {}
func (*Empty) readBody(*reader) error { return nil }
