package algorithm

import "minhton/internal/message"

// Kind names one member of the Algorithm Set (§2, §4.2).
type Kind uint8

const (
	KindJoin Kind = iota
	KindLeave
	KindSearchExact
	KindBootstrap
	KindResponse
	KindEntitySearch
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindLeave:
		return "leave"
	case KindSearchExact:
		return "search_exact"
	case KindBootstrap:
		return "bootstrap"
	case KindResponse:
		return "response"
	case KindEntitySearch:
		return "entity_search"
	default:
		return "unknown"
	}
}

// Algorithm handles one inbound envelope and returns the outbound messages
// it produces. Implementations must not block (§4.2).
type Algorithm interface {
	Handle(ctx *Context, env message.Envelope) ([]Outbound, error)
}

// Set holds one Algorithm instance per Kind (§2 "Algorithm Set").
// EntitySearch is assigned by the caller assembling a participant (it
// lives in internal/entitysearch, which imports this package for Context
// and would create an import cycle if this package imported it back) but
// is dispatched through exactly the same Algorithm interface.
type Set struct {
	Join         Algorithm
	Leave        Algorithm
	SearchExact  Algorithm
	Bootstrap    Algorithm
	Response     Algorithm
	EntitySearch Algorithm
}

// For returns the handler registered for k, or nil if unset.
func (s *Set) For(k Kind) Algorithm {
	switch k {
	case KindJoin:
		return s.Join
	case KindLeave:
		return s.Leave
	case KindSearchExact:
		return s.SearchExact
	case KindBootstrap:
		return s.Bootstrap
	case KindResponse:
		return s.Response
	case KindEntitySearch:
		return s.EntitySearch
	default:
		return nil
	}
}

// dispatch maps every real wire MessageType to the Kind responsible for it
// (§4.2: "Each MessageType is bound to exactly one algorithm's handler").
var dispatch = map[message.Type]Kind{
	message.TypeJoin:          KindJoin,
	message.TypeJoinAccept:    KindJoin,
	message.TypeJoinAcceptAck: KindJoin,

	message.TypeFindReplacement:         KindLeave,
	message.TypeReplacementOffer:        KindLeave,
	message.TypeReplacementAck:          KindLeave,
	message.TypeReplacementNack:         KindLeave,
	message.TypeLockNeighborRequest:     KindLeave,
	message.TypeLockNeighborResponse:    KindLeave,
	message.TypeUnlockNeighbor:          KindLeave,
	message.TypeSignOffParentRequest:    KindLeave,
	message.TypeSignOffParentAnswer:     KindLeave,
	message.TypeReplacementUpdate:       KindLeave,
	message.TypeRemoveAndUpdateNeighbor: KindLeave,

	message.TypeSearchExact:        KindSearchExact,
	message.TypeSearchExactFailure: KindSearchExact,
	message.TypeEmpty:              KindSearchExact,

	message.TypeBootstrapDiscover: KindBootstrap,
	message.TypeBootstrapResponse: KindBootstrap,

	message.TypeUpdateNeighbors:      KindResponse,
	message.TypeRemoveNeighbor:       KindResponse,
	message.TypeRemoveNeighborAck:    KindResponse,
	message.TypeGetNeighbors:         KindResponse,
	message.TypeInformAboutNeighbors: KindResponse,

	message.TypeFindQueryRequest:        KindEntitySearch,
	message.TypeFindQueryAnswer:         KindEntitySearch,
	message.TypeAttributeInquiryRequest: KindEntitySearch,
	message.TypeAttributeInquiryAnswer:  KindEntitySearch,
	message.TypeSubscriptionOrder:       KindEntitySearch,
	message.TypeSubscriptionUpdate:      KindEntitySearch,
}

// DispatchKind returns the Kind bound to t, if t is a message type handled
// by the Algorithm Set.
func DispatchKind(t message.Type) (Kind, bool) {
	k, ok := dispatch[t]
	return k, ok
}
