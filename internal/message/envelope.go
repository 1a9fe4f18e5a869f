package message

import (
	"fmt"

	"minhton/internal/domain"
	"minhton/internal/minhtonerr"
)

// Variant is a concrete message payload: a tagged union member dispatched
// by Type(), matching the design notes' "tagged variants over class
// hierarchies" guidance (a map[Type]func, not a base-class pointer).
type Variant interface {
	Type() Type
	writeBody(w *writer)
	readBody(r *reader) error
}

// Envelope is the header every overlay message carries (§6.3): sender and
// target peer identity, the wrapped payload, and event correlation/
// logging metadata.
type Envelope struct {
	Sender     domain.NodeInfo
	Target     domain.NodeInfo
	EventID    uint64
	RefEventID uint64
	Logging    LoggingInfo
	Body       Variant
}

// preJoinTypes are the message types exchanged before a participant has a
// tree position of its own (discovering an entry point, or asking one to
// be let in): Sender, and for BootstrapDiscover/BootstrapResponse also
// Target, are necessarily uninitialised peers at that point (§4.3, §6.2).
func preJoinType(t Type) bool {
	return t == TypeBootstrapDiscover || t == TypeBootstrapResponse || t == TypeJoin
}

// Validate checks the envelope invariants from §6.3:
//   - EventID must never be 0 (every message carries a fresh event id).
//   - EventID must never equal RefEventID (a message never names itself
//     as its own correlation target).
//   - Sender must be an initialised peer, except for the pre-join
//     messages (BootstrapDiscover, BootstrapResponse, Join) whose sender
//     has no tree position yet by definition.
//   - Target may be uninitialised for SearchExact, where routing resolves
//     the eventual destination hop by hop, and for BootstrapDiscover
//     (multicast, no single target) and BootstrapResponse (addressed back
//     to a still-uninitialised discoverer).
//
// RefEventID == 0 is not itself a violation: it is the "no correlation"
// sentinel for a message that begins a fresh exchange (e.g. the first
// BootstrapDiscover or Join of a protocol run has nothing to reference).
func (e Envelope) Validate() error {
	if e.EventID == 0 {
		return fmt.Errorf("%w: event id must not be zero", minhtonerr.ErrInvalidMessage)
	}
	if e.EventID == e.RefEventID {
		return fmt.Errorf("%w: event id must not equal ref event id", minhtonerr.ErrInvalidMessage)
	}
	if e.Body == nil {
		return fmt.Errorf("%w: envelope has no body", minhtonerr.ErrInvalidMessage)
	}
	typ := e.Body.Type()
	if !preJoinType(typ) && !e.Sender.Initialised() {
		return fmt.Errorf("%w: sender must be an initialised peer", minhtonerr.ErrInvalidMessage)
	}
	if typ != TypeSearchExact && typ != TypeBootstrapDiscover && typ != TypeBootstrapResponse && !e.Target.Initialised() {
		return fmt.Errorf("%w: target must be initialised for message type %s", minhtonerr.ErrInvalidMessage, typ)
	}
	return nil
}

// decoders maps every Type to a constructor producing a zero-valued
// Variant ready for readBody to fill in. Built once at package init and
// exhaustiveness-checked by TestDecodersCoverEveryRealMessageType.
var decoders = map[Type]func() Variant{
	TypeJoin:          func() Variant { return &Join{} },
	TypeJoinAccept:    func() Variant { return &JoinAccept{} },
	TypeJoinAcceptAck: func() Variant { return &JoinAcceptAck{} },

	TypeFindReplacement:         func() Variant { return &FindReplacement{} },
	TypeReplacementOffer:        func() Variant { return &ReplacementOffer{} },
	TypeReplacementAck:          func() Variant { return &ReplacementAck{} },
	TypeReplacementNack:         func() Variant { return &ReplacementNack{} },
	TypeLockNeighborRequest:     func() Variant { return &LockNeighborRequest{} },
	TypeLockNeighborResponse:    func() Variant { return &LockNeighborResponse{} },
	TypeUnlockNeighbor:          func() Variant { return &UnlockNeighbor{} },
	TypeSignOffParentRequest:    func() Variant { return &SignOffParentRequest{} },
	TypeSignOffParentAnswer:     func() Variant { return &SignOffParentAnswer{} },
	TypeReplacementUpdate:       func() Variant { return &ReplacementUpdate{} },
	TypeRemoveAndUpdateNeighbor: func() Variant { return &RemoveAndUpdateNeighbor{} },
	TypeRemoveNeighborAck:       func() Variant { return &RemoveNeighborAck{} },
	TypeRemoveNeighbor:          func() Variant { return &RemoveNeighbor{} },
	TypeUpdateNeighbors:         func() Variant { return &UpdateNeighbors{} },
	TypeGetNeighbors:            func() Variant { return &GetNeighbors{} },
	TypeInformAboutNeighbors:    func() Variant { return &InformAboutNeighbors{} },

	TypeSearchExact:        func() Variant { return &SearchExact{} },
	TypeSearchExactFailure: func() Variant { return &SearchExactFailure{} },
	TypeEmpty:              func() Variant { return &Empty{} },

	TypeBootstrapDiscover: func() Variant { return &BootstrapDiscover{} },
	TypeBootstrapResponse: func() Variant { return &BootstrapResponse{} },

	TypeFindQueryRequest:        func() Variant { return &FindQueryRequest{} },
	TypeFindQueryAnswer:         func() Variant { return &FindQueryAnswer{} },
	TypeAttributeInquiryRequest: func() Variant { return &AttributeInquiryRequest{} },
	TypeAttributeInquiryAnswer:  func() Variant { return &AttributeInquiryAnswer{} },
	TypeSubscriptionOrder:       func() Variant { return &SubscriptionOrder{} },
	TypeSubscriptionUpdate:      func() Variant { return &SubscriptionUpdate{} },
}

// SerializeVariant encodes a bare Variant (type tag plus body, no
// envelope header) -- used to carry one message as the payload of
// another, e.g. SearchExact.Query (§4.5: "Query is itself a serialized
// MessageVariant").
func SerializeVariant(v Variant) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: cannot serialize a nil variant", minhtonerr.ErrInvalidMessage)
	}
	w := newWriter()
	w.u8(uint8(v.Type()))
	v.writeBody(w)
	return w.bytes(), nil
}

// DeserializeVariant decodes a bare Variant produced by SerializeVariant.
func DeserializeVariant(data []byte) (Variant, error) {
	r := newReader(data)
	typByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	newBody, ok := decoders[Type(typByte)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type %d", minhtonerr.ErrInvalidMessage, typByte)
	}
	body := newBody()
	if err := body.readBody(r); err != nil {
		return nil, err
	}
	return body, nil
}

// Serialize encodes an envelope to its wire form.
func Serialize(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	w := newWriter()
	w.u8(uint8(e.Body.Type()))
	w.nodeInfo(e.Sender)
	w.nodeInfo(e.Target)
	w.u64(e.EventID)
	w.u64(e.RefEventID)
	w.u8(uint8(e.Logging.Hop))
	w.u8(uint8(e.Logging.Mode))
	e.Body.writeBody(w)
	return w.bytes(), nil
}

// Deserialize decodes an envelope from its wire form, round-tripping
// exactly what Serialize produced (§6.3 P6).
func Deserialize(data []byte) (Envelope, error) {
	r := newReader(data)
	typByte, err := r.u8()
	if err != nil {
		return Envelope{}, err
	}
	typ := Type(typByte)

	sender, err := r.nodeInfo()
	if err != nil {
		return Envelope{}, err
	}
	target, err := r.nodeInfo()
	if err != nil {
		return Envelope{}, err
	}
	eventID, err := r.u64()
	if err != nil {
		return Envelope{}, err
	}
	refEventID, err := r.u64()
	if err != nil {
		return Envelope{}, err
	}
	hop, err := r.u8()
	if err != nil {
		return Envelope{}, err
	}
	mode, err := r.u8()
	if err != nil {
		return Envelope{}, err
	}

	newBody, ok := decoders[typ]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: unknown message type %d", minhtonerr.ErrInvalidMessage, typByte)
	}
	body := newBody()
	if err := body.readBody(r); err != nil {
		return Envelope{}, err
	}

	e := Envelope{
		Sender:     sender,
		Target:     target,
		EventID:    eventID,
		RefEventID: refEventID,
		Logging:    LoggingInfo{Hop: SearchExactHopKind(hop), Mode: ProcessingMode(mode)},
		Body:       body,
	}
	return e, nil
}
