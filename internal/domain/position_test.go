package domain

import "testing"

func TestParentChildReciprocity(t *testing.T) {
	// P3: if A considers B its k-th child, B's parent computation must
	// yield A's position.
	self := LogicalPosition{Level: 1, Number: 0, Fanout: 2}
	for k := uint16(0); k < self.Fanout; k++ {
		child := self.Child(k)
		if !child.Parent().Equal(self) {
			t.Fatalf("child(%d).Parent() = %+v, want %+v", k, child.Parent(), self)
		}
		if child.ChildIndex() != k {
			t.Fatalf("child(%d).ChildIndex() = %d, want %d", k, child.ChildIndex(), k)
		}
	}
}

func TestValidRejectsOutOfRangeNumber(t *testing.T) {
	p := LogicalPosition{Level: 2, Number: 4, Fanout: 2} // max is 4 (0..3)
	if err := p.Valid(); err == nil {
		t.Fatal("expected error for out-of-range number")
	}
}

func TestValidRejectsBadFanout(t *testing.T) {
	p := LogicalPosition{Level: 0, Number: 0, Fanout: 1}
	if err := p.Valid(); err == nil {
		t.Fatal("expected error for fanout below minimum")
	}
}

func TestRoutingTableNeighborOffsetS3(t *testing.T) {
	// Scenario S3: routing-table neighbor of 2:1 at i=1 is 2:3 (offset
	// +m^1=+2, clipped-in-range), fanout=2.
	self := LogicalPosition{Level: 2, Number: 1, Fanout: 2}
	got, ok := self.RoutingTableNeighborOffset(1, 1)
	if !ok {
		t.Fatal("expected in-range offset")
	}
	want := LogicalPosition{Level: 2, Number: 3, Fanout: 2}
	if !got.Equal(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRoutingTableNeighborOffsetOutOfRange(t *testing.T) {
	self := LogicalPosition{Level: 2, Number: 0, Fanout: 2}
	if _, ok := self.RoutingTableNeighborOffset(0, -1); ok {
		t.Fatal("expected out-of-range (negative number)")
	}
}

func TestInorderLessSameLevel(t *testing.T) {
	a := LogicalPosition{Level: 2, Number: 0, Fanout: 2}
	b := LogicalPosition{Level: 2, Number: 1, Fanout: 2}
	if !InorderLess(a, b) {
		t.Fatal("expected a < b")
	}
	if InorderLess(b, a) {
		t.Fatal("expected b not< a")
	}
}
