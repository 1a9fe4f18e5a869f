package fsm

// key is the lookup pair for the transition table.
type key struct {
	state State
	event EventKind
}

// table is the declarative (state, event) -> next-state mapping (§4.2,
// design note "state-machine transition tables"). Any (state, event) pair
// absent from this map is, by construction, illegal: Apply reports it as
// an FSM violation rather than the caller needing a default case.
//
// Passive bookkeeping events (EventPassiveUpdate, §4.6) are wired into
// Connected and ConnectedAcceptingChild, and the aggregation timeouts
// (Dsn/Inquiry) into Connected only; each maps the state to itself. In any
// other state these events are illegal like every absent pair.
var table = map[key]State{
	// Bootstrap & join (§4.3)
	{Idle, EventBootstrapResponse}:                     WaitForJoinAccept,
	{Idle, EventTimeoutBootstrapResponseRetry}:         WaitForBootstrapResponse,
	{WaitForBootstrapResponse, EventBootstrapResponse}:                     WaitForJoinAccept,
	{WaitForBootstrapResponse, EventTimeoutBootstrapResponseRetry}:         WaitForBootstrapResponse,
	{WaitForBootstrapResponse, EventTimeoutBootstrapResponseExhausted}:     Connected, // self-promotion to root
	{WaitForJoinAccept, EventJoinAccept}:                                   Connected,
	{WaitForJoinAccept, EventTimeoutJoinAcceptResponseRetry}:               WaitForJoinAccept,
	{WaitForJoinAccept, EventTimeoutJoinAcceptResponseExhausted}:           JoinFailed,

	{Connected, EventJoin}:                     ConnectedAcceptingChild,
	{Connected, EventPassiveUpdate}:             Connected,
	{Connected, EventTimeoutJoinRetry}:          Connected,
	{Connected, EventTimeoutDsnAggregation}:     Connected,
	{Connected, EventTimeoutInquiryAggregation}: Connected,
	{Connected, EventSearchExact}:               Connected,
	{Connected, EventSearchExactFailure}:        Connected,
	{Connected, EventFindReplacement}:           Connected, // forwarding or becoming R
	{Connected, EventReplacementOffer}:          Connected, // R's role: no dedicated FSM state
	{Connected, EventReplacementAck}:            Connected,
	{Connected, EventLockNeighborRequest}:       Connected,
	{Connected, EventSignOffParentRequest}:      Connected,
	{Connected, EventReplacementUpdate}:         Connected,
	{Connected, EventRemoveAndUpdateNeighbor}:   Connected,
	{Connected, EventTimeoutReplacementAckResponseRetry}:     Connected,
	{Connected, EventTimeoutReplacementAckResponseExhausted}: Connected,

	{ConnectedAcceptingChild, EventJoinAcceptAck}:                           Connected,
	{ConnectedAcceptingChild, EventTimeoutJoinAcceptAckResponseRetry}:       ConnectedAcceptingChild,
	{ConnectedAcceptingChild, EventTimeoutJoinAcceptAckResponseExhausted}:   Connected,
	{ConnectedAcceptingChild, EventPassiveUpdate}:                          ConnectedAcceptingChild,

	// Leave with replacement (§4.4): self-initiated leave moves L from
	// Connected to WaitForReplacementOffer; the transition itself is raised
	// by the leave algorithm (not tabulated here since it is not a
	// classified inbound event but a local decision to begin leaving).
	{WaitForReplacementOffer, EventReplacementOffer}:                            ConnectedReplacing,
	{WaitForReplacementOffer, EventTimeoutReplacementOfferResponseRetry}:        WaitForReplacementOffer,
	{WaitForReplacementOffer, EventTimeoutReplacementOfferResponseExhausted}:    ConnectedWaitingParentResponseDirectLeaveWoReplacement,
	{WaitForReplacementOffer, EventTimeoutSelfDepartureRetry}:                   WaitForReplacementOffer,
	{WaitForReplacementOffer, EventReplacementFallbackToDirectLeave}:            ConnectedWaitingParentResponseDirectLeaveWoReplacement,

	{ConnectedReplacing, EventLockNeighborResponse}:  ConnectedReplacing,
	{ConnectedReplacing, EventReplacementNack}:        WaitForReplacementOffer,
	{ConnectedReplacing, EventUnlockNeighbor}:         WaitForReplacementOffer,
	{ConnectedReplacing, EventSignOffParentAnswer}:    SignOffFromInlevelNeighbors,
	{ConnectedReplacing, EventTimeoutSelfDepartureRetry}: WaitForReplacementOffer,

	{ConnectedWaitingParentResponse, EventSignOffParentAnswer}: SignOffFromInlevelNeighbors,

	{SignOffFromInlevelNeighbors, EventRemoveNeighborAck}: SignOffFromInlevelNeighbors,
	{SignOffFromInlevelNeighbors, EventLeaveComplete}:     Idle,

	{ConnectedWaitingParentResponseDirectLeaveWoReplacement, EventSignOffParentAnswer}: SignOffFromInlevelNeighborsDirectLeaveWoReplacement,

	{SignOffFromInlevelNeighborsDirectLeaveWoReplacement, EventRemoveNeighborAck}: SignOffFromInlevelNeighborsDirectLeaveWoReplacement,
	{SignOffFromInlevelNeighborsDirectLeaveWoReplacement, EventLeaveComplete}:     Idle,
}

// Lookup reports the next state for (s, e) and whether the transition is
// legal. An illegal pair is exactly the condition §4.2 calls an FSM
// violation: the caller must drive the FSM to ErrorState itself (Lookup
// does not do it implicitly, since ErrorState transitions still need to be
// logged with the offending state/event by the caller).
func Lookup(s State, e EventKind) (next State, ok bool) {
	next, ok = table[key{s, e}]
	return next, ok
}
