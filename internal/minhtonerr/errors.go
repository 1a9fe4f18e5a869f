// Package minhtonerr defines the tagged error kinds from which every
// package-level error in the overlay is built, per spec §7. Callers use
// errors.Is against these sentinels; wrapped context is added with
// fmt.Errorf("...: %w", ...) the way the teacher wraps routing/storage
// errors in KoordeDHT's internal/domain and internal/node packages.
package minhtonerr

import "errors"

var (
	// ErrInvalidPosition: a position rejects an invariant (e.g. n >= m^level,
	// or a claimed parent/child relationship does not hold). Recoverable at
	// the API boundary; never propagates into routing state.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrInvalidMessage: header or payload fails validate(); the message is
	// dropped.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrFSMViolation: the event is illegal in the current FSM state. The
	// FSM moves to ErrorState; the participant stops emitting new messages
	// but keeps acknowledging in-flight ones.
	ErrFSMViolation = errors.New("fsm violation")

	// ErrLockContention: a concurrent leave holds (part of) the lock set.
	// Local retry with backoff; bounded retries fall back to direct leave
	// without replacement (leaf only) or to ErrFSMViolation.
	ErrLockContention = errors.New("lock contention")

	// ErrTimeout: an awaited response did not arrive in time. One retry,
	// then surfaced as ErrFSMViolation for the owning protocol.
	ErrTimeout = errors.New("timeout")

	// ErrTransportFatal: a connect failure or short send. The participant
	// connection is torn down.
	ErrTransportFatal = errors.New("transport fatal")

	// ErrConfigError: fanout outside [2,255], or a position outside its
	// level, rejected at construction.
	ErrConfigError = errors.New("config error")
)
