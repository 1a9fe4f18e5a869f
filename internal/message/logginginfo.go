package message

// SearchExactHopKind tags a search-exact hop for structured logging,
// mirroring the original source's SearchExactTestEntryTypes (constants.h).
// This is observability only, supplementing §4.5 which specifies the
// routing rule but not how hops are logged.
type SearchExactHopKind uint8

const (
	HopStart SearchExactHopKind = iota
	HopHop
	HopSuccess
	HopFailure
)

func (k SearchExactHopKind) String() string {
	switch k {
	case HopStart:
		return "start"
	case HopHop:
		return "hop"
	case HopSuccess:
		return "success"
	case HopFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// ProcessingMode tags whether a message is being sent or received, carried
// as a log field at the transport boundary (mirrors the original's
// MessageProcessingModes).
type ProcessingMode uint8

const (
	ProcessingReceiving ProcessingMode = iota
	ProcessingSending
)

func (m ProcessingMode) String() string {
	if m == ProcessingSending {
		return "sending"
	}
	return "receiving"
}

// LoggingInfo rides along in the envelope header (§6.3) purely for
// diagnostics; it never affects routing or FSM decisions.
type LoggingInfo struct {
	Hop  SearchExactHopKind
	Mode ProcessingMode
}
