package fsm

// EventKind names the inbound events the FSM classifies against the
// current state (§4.2). Every wire MessageType that can legally appear as
// a protocol-driving event has one EventKind; RemoveAndUpdateNeighbor has
// its own EventRemoveAndUpdateNeighbor. The passive bookkeeping messages
// (§4.6 UpdateNeighbors/RemoveNeighbor/GetNeighbors/InformAboutNeighbors)
// share the single EventPassiveUpdate entry in the table; their handlers
// do not apply any event to the FSM.
//
// Timeouts are split into a Retry and an Exhausted EventKind per
// TimeoutType rather than carrying a retry counter through the table
// itself, so the table stays a pure (state, event) -> next-state mapping;
// the retry/exhausted distinction is decided by internal/timeout's caller
// before it delivers the event (§4.3, §4.4, §7.5).
type EventKind uint8

const (
	EventUnknown EventKind = iota

	// Bootstrap & join (§4.3)
	EventBootstrapDiscover
	EventBootstrapResponse
	EventJoin
	EventJoinAccept
	EventJoinAcceptAck

	// Leave with replacement (§4.4)
	EventFindReplacement
	EventReplacementOffer
	EventReplacementAck
	EventReplacementNack
	EventLockNeighborRequest
	EventLockNeighborResponse
	EventUnlockNeighbor
	EventSignOffParentRequest
	EventSignOffParentAnswer
	EventReplacementUpdate
	EventRemoveAndUpdateNeighbor
	EventRemoveNeighborAck

	// Search exact (§4.5)
	EventSearchExact
	EventSearchExactFailure

	// Passive bookkeeping (§4.6) -- never moves the FSM.
	EventPassiveUpdate

	// Synthetic, locally-raised completion/failure signals an algorithm
	// handler emits itself rather than receiving off the wire.
	EventLeaveComplete
	EventReplacementFallbackToDirectLeave
	EventJoinFailed

	// Timeouts (§4.3, §4.4, §7), split Retry/Exhausted per TimeoutType.
	EventTimeoutBootstrapResponseRetry
	EventTimeoutBootstrapResponseExhausted
	EventTimeoutJoinAcceptResponseRetry
	EventTimeoutJoinAcceptResponseExhausted
	EventTimeoutJoinAcceptAckResponseRetry
	EventTimeoutJoinAcceptAckResponseExhausted
	EventTimeoutJoinRetry
	EventTimeoutReplacementOfferResponseRetry
	EventTimeoutReplacementOfferResponseExhausted
	EventTimeoutReplacementAckResponseRetry
	EventTimeoutReplacementAckResponseExhausted
	EventTimeoutSelfDepartureRetry
	EventTimeoutDsnAggregation
	EventTimeoutInquiryAggregation
)

func (e EventKind) String() string {
	switch e {
	case EventBootstrapDiscover:
		return "BootstrapDiscover"
	case EventBootstrapResponse:
		return "BootstrapResponse"
	case EventJoin:
		return "Join"
	case EventJoinAccept:
		return "JoinAccept"
	case EventJoinAcceptAck:
		return "JoinAcceptAck"
	case EventFindReplacement:
		return "FindReplacement"
	case EventReplacementOffer:
		return "ReplacementOffer"
	case EventReplacementAck:
		return "ReplacementAck"
	case EventReplacementNack:
		return "ReplacementNack"
	case EventLockNeighborRequest:
		return "LockNeighborRequest"
	case EventLockNeighborResponse:
		return "LockNeighborResponse"
	case EventUnlockNeighbor:
		return "UnlockNeighbor"
	case EventSignOffParentRequest:
		return "SignOffParentRequest"
	case EventSignOffParentAnswer:
		return "SignOffParentAnswer"
	case EventReplacementUpdate:
		return "ReplacementUpdate"
	case EventRemoveAndUpdateNeighbor:
		return "RemoveAndUpdateNeighbor"
	case EventRemoveNeighborAck:
		return "RemoveNeighborAck"
	case EventSearchExact:
		return "SearchExact"
	case EventSearchExactFailure:
		return "SearchExactFailure"
	case EventPassiveUpdate:
		return "PassiveUpdate"
	case EventLeaveComplete:
		return "LeaveComplete"
	case EventReplacementFallbackToDirectLeave:
		return "ReplacementFallbackToDirectLeave"
	case EventJoinFailed:
		return "JoinFailed"
	case EventTimeoutBootstrapResponseRetry:
		return "TimeoutBootstrapResponseRetry"
	case EventTimeoutBootstrapResponseExhausted:
		return "TimeoutBootstrapResponseExhausted"
	case EventTimeoutJoinAcceptResponseRetry:
		return "TimeoutJoinAcceptResponseRetry"
	case EventTimeoutJoinAcceptResponseExhausted:
		return "TimeoutJoinAcceptResponseExhausted"
	case EventTimeoutJoinAcceptAckResponseRetry:
		return "TimeoutJoinAcceptAckResponseRetry"
	case EventTimeoutJoinAcceptAckResponseExhausted:
		return "TimeoutJoinAcceptAckResponseExhausted"
	case EventTimeoutJoinRetry:
		return "TimeoutJoinRetry"
	case EventTimeoutReplacementOfferResponseRetry:
		return "TimeoutReplacementOfferResponseRetry"
	case EventTimeoutReplacementOfferResponseExhausted:
		return "TimeoutReplacementOfferResponseExhausted"
	case EventTimeoutReplacementAckResponseRetry:
		return "TimeoutReplacementAckResponseRetry"
	case EventTimeoutReplacementAckResponseExhausted:
		return "TimeoutReplacementAckResponseExhausted"
	case EventTimeoutSelfDepartureRetry:
		return "TimeoutSelfDepartureRetry"
	case EventTimeoutDsnAggregation:
		return "TimeoutDsnAggregation"
	case EventTimeoutInquiryAggregation:
		return "TimeoutInquiryAggregation"
	default:
		return "Unknown"
	}
}
