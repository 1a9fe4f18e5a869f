package domain

import "testing"

func TestUUIDUniquenessAscendingGenerator(t *testing.T) {
	g := NewAscendingGenerator()
	seen := make(map[UUID]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		u := g.NewUUID()
		if _, dup := seen[u]; dup {
			t.Fatalf("duplicate UUID at iteration %d: %s", i, u)
		}
		seen[u] = struct{}{}
	}
}

func TestAscendingGeneratorMonotone(t *testing.T) {
	g := NewAscendingGenerator()
	prev := g.NewUUID()
	for i := 0; i < 1000; i++ {
		next := g.NewUUID()
		if !prev.Less(next) {
			t.Fatalf("expected %s < %s", prev, next)
		}
		prev = next
	}
}

func TestRandomGeneratorProducesDistinctValues(t *testing.T) {
	g := NewRandomGenerator()
	a := g.NewUUID()
	b := g.NewUUID()
	if a.Equal(b) {
		t.Fatal("two independently drawn random UUIDs collided")
	}
	if a.Equal(Nil) || b.Equal(Nil) {
		t.Fatal("random UUID must not be nil")
	}
}

func TestUUIDStringFormat(t *testing.T) {
	var u UUID
	for i := range u {
		u[i] = byte(i)
	}
	got := u.String()
	want := "00010203-0405-0607-0809-0a0b0c0d0e0f"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
