package timeout

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestArmFiresAfterDuration(t *testing.T) {
	m := New()
	var fired atomic.Bool
	m.Arm(Key{EventID: 1, Kind: BootstrapResponse}, 10*time.Millisecond, func() {
		fired.Store(true)
	})
	time.Sleep(50 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("expected timer to fire")
	}
}

func TestArmIsIdempotentPerKey(t *testing.T) {
	m := New()
	var count atomic.Int32
	key := Key{EventID: 1, Kind: JoinAcceptResponse}
	m.Arm(key, 20*time.Millisecond, func() { count.Add(1) })
	// Re-arming the same key before it fires must replace, not stack.
	m.Arm(key, 20*time.Millisecond, func() { count.Add(1) })
	time.Sleep(60 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Fatalf("fired %d times, want exactly 1", got)
	}
}

func TestCancelPreventsFire(t *testing.T) {
	m := New()
	var fired atomic.Bool
	key := Key{EventID: 1, Kind: JoinRetry}
	m.Arm(key, 20*time.Millisecond, func() { fired.Store(true) })
	m.Cancel(key)
	time.Sleep(40 * time.Millisecond)
	if fired.Load() {
		t.Fatal("expected canceled timer not to fire")
	}
}

func TestAckQuorumFiresExactlyOnce(t *testing.T) {
	var fireCount atomic.Int32
	q := NewAckQuorum(3, func() { fireCount.Add(1) })
	q.Inc()
	q.Inc()
	if q.Reached() {
		t.Fatal("quorum should not be reached after 2 of 3 acks")
	}
	q.Inc()
	if !q.Reached() {
		t.Fatal("quorum should be reached after 3 of 3 acks")
	}
	q.Inc() // extra ack must be a no-op
	q.Inc()
	if got := fireCount.Load(); got != 1 {
		t.Fatalf("callback fired %d times, want exactly 1", got)
	}
}

func TestAckQuorumZeroFiresImmediately(t *testing.T) {
	var fired atomic.Bool
	NewAckQuorum(0, func() { fired.Store(true) })
	if !fired.Load() {
		t.Fatal("expected zero-quorum callback to fire immediately")
	}
}
