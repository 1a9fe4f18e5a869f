package algorithm

import "time"

// defaultProtocolTimeout bounds how long a handler waits for a correlated
// response before the timeout manager's retry/exhausted events fire
// (§4.3, §4.4). A single value is used across join/leave exchanges; the
// original's per-timeout-type constants (constants.h) are all within the
// same order of magnitude and nothing in this repository's scenarios
// depends on distinguishing them further.
const defaultProtocolTimeout = 3 * time.Second

// maxProtocolRetries bounds the retry events a participant delivers before
// giving up: "Expiry triggers at most one retry; a second expiry of the
// same event yields JoinFailed" (§4.3), mirrored for the leave protocol's
// bounded retries before falling back to direct leave (§4.4).
const maxProtocolRetries = 1
