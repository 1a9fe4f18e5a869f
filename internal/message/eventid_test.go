package message

import "testing"

func TestEventIDGeneratorUniqueness(t *testing.T) {
	g := NewEventIDGenerator()
	seen := make(map[uint64]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := g.Next()
		if id == 0 {
			t.Fatal("generated event id must never be 0")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate event id at iteration %d: %d", i, id)
		}
		seen[id] = struct{}{}
	}
}
