// Package message defines the overlay's wire taxonomy: one Go struct per
// MessageType (§4), the shared envelope header (§6.3), and a binary codec
// that round-trips every variant through encoding/binary plus explicit
// field writers (§6.3 P6) -- never encoding/gob (its self-describing
// stream is not a fit for a fixed cross-version wire contract) and never
// JSON (too large and slow for a hot control path).
package message

// Type is the wire tag identifying a message's concrete payload, mirroring
// the original source's MessageType enum (message/types.h) one for one so
// that numeric values stay meaningful if ever compared against a trace.
type Type uint8

const (
	TypeInit Type = 0

	TypeJoin          Type = 10
	TypeJoinAccept    Type = 12
	TypeJoinAcceptAck Type = 14

	TypeFindQueryRequest      Type = 20
	TypeFindQueryAnswer       Type = 22
	TypeAttributeInquiryRequest Type = 24
	TypeAttributeInquiryAnswer  Type = 26
	TypeSubscriptionOrder       Type = 28
	TypeSubscriptionUpdate      Type = 30

	TypeSearchExact        Type = 40
	TypeSearchExactFailure Type = 41
	TypeEmpty              Type = 42

	TypeBootstrapDiscover Type = 50
	TypeBootstrapResponse Type = 52

	TypeRemoveNeighbor       Type = 60
	TypeRemoveNeighborAck    Type = 62
	TypeUpdateNeighbors      Type = 64
	TypeReplacementUpdate    Type = 66
	TypeGetNeighbors         Type = 70
	TypeInformAboutNeighbors Type = 72

	TypeFindReplacement         Type = 80
	TypeReplacementNack         Type = 81
	TypeSignOffParentRequest    Type = 82
	TypeLockNeighborRequest     Type = 84
	TypeLockNeighborResponse    Type = 86
	TypeSignOffParentAnswer     Type = 88
	TypeRemoveAndUpdateNeighbor Type = 90
	TypeReplacementOffer        Type = 92
	TypeReplacementAck          Type = 94
	TypeUnlockNeighbor          Type = 96
)

func (t Type) String() string {
	switch t {
	case TypeInit:
		return "Init"
	case TypeJoin:
		return "Join"
	case TypeJoinAccept:
		return "JoinAccept"
	case TypeJoinAcceptAck:
		return "JoinAcceptAck"
	case TypeFindQueryRequest:
		return "FindQueryRequest"
	case TypeFindQueryAnswer:
		return "FindQueryAnswer"
	case TypeAttributeInquiryRequest:
		return "AttributeInquiryRequest"
	case TypeAttributeInquiryAnswer:
		return "AttributeInquiryAnswer"
	case TypeSubscriptionOrder:
		return "SubscriptionOrder"
	case TypeSubscriptionUpdate:
		return "SubscriptionUpdate"
	case TypeSearchExact:
		return "SearchExact"
	case TypeSearchExactFailure:
		return "SearchExactFailure"
	case TypeEmpty:
		return "Empty"
	case TypeBootstrapDiscover:
		return "BootstrapDiscover"
	case TypeBootstrapResponse:
		return "BootstrapResponse"
	case TypeRemoveNeighbor:
		return "RemoveNeighbor"
	case TypeRemoveNeighborAck:
		return "RemoveNeighborAck"
	case TypeUpdateNeighbors:
		return "UpdateNeighbors"
	case TypeReplacementUpdate:
		return "ReplacementUpdate"
	case TypeGetNeighbors:
		return "GetNeighbors"
	case TypeInformAboutNeighbors:
		return "InformAboutNeighbors"
	case TypeFindReplacement:
		return "FindReplacement"
	case TypeReplacementNack:
		return "ReplacementNack"
	case TypeSignOffParentRequest:
		return "SignOffParentRequest"
	case TypeLockNeighborRequest:
		return "LockNeighborRequest"
	case TypeLockNeighborResponse:
		return "LockNeighborResponse"
	case TypeSignOffParentAnswer:
		return "SignOffParentAnswer"
	case TypeRemoveAndUpdateNeighbor:
		return "RemoveAndUpdateNeighbor"
	case TypeReplacementOffer:
		return "ReplacementOffer"
	case TypeReplacementAck:
		return "ReplacementAck"
	case TypeUnlockNeighbor:
		return "UnlockNeighbor"
	default:
		return "Unknown"
	}
}
