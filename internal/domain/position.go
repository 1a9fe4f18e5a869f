// Package domain holds the value types shared across the overlay: logical
// positions in the m-ary tree, network addresses, node identities and the
// neighbor-relationship taxonomy used to classify them.
package domain

import (
	"fmt"

	"minhton/internal/minhtonerr"
)

// Fanout bounds, per spec: the branching factor of the tree is fixed at
// bootstrap and never changes afterwards.
const (
	FanoutMinimum = 2
	FanoutMaximum = 255
)

// LogicalPosition identifies a slot (level, number) in the m-ary tree.
// It is a value type: two positions with equal Level/Number/Fanout are
// interchangeable regardless of which NodeInfo currently occupies them.
type LogicalPosition struct {
	Level  uint32
	Number uint64
	Fanout uint16
}

// Root returns the position (0,0) for the given fanout.
func Root(fanout uint16) LogicalPosition {
	return LogicalPosition{Level: 0, Number: 0, Fanout: fanout}
}

// IsRoot reports whether p is the tree root.
func (p LogicalPosition) IsRoot() bool {
	return p.Level == 0 && p.Number == 0
}

// Valid checks the position invariant n < m^level and that fanout is in range.
func (p LogicalPosition) Valid() error {
	if p.Fanout < FanoutMinimum || p.Fanout > FanoutMaximum {
		return fmt.Errorf("%w: fanout %d outside [%d,%d]", minhtonerr.ErrConfigError, p.Fanout, FanoutMinimum, FanoutMaximum)
	}
	if p.Number >= maxNodesAtLevel(p.Level, p.Fanout) {
		return fmt.Errorf("%w: number %d out of range for level %d fanout %d", minhtonerr.ErrInvalidPosition, p.Number, p.Level, p.Fanout)
	}
	return nil
}

// maxNodesAtLevel returns m^level, saturating at the maximum uint64 instead
// of overflowing; a level this deep never occurs in any real deployment but
// the routing-table math must not panic when probing it.
func maxNodesAtLevel(level uint32, fanout uint16) uint64 {
	result := uint64(1)
	for i := uint32(0); i < level; i++ {
		next := result * uint64(fanout)
		if next < result { // overflow
			return ^uint64(0)
		}
		result = next
	}
	return result
}

// String renders the position as "level:number".
func (p LogicalPosition) String() string {
	return fmt.Sprintf("%d:%d", p.Level, p.Number)
}

// Equal reports whether two positions name the same slot in the same tree.
func (p LogicalPosition) Equal(o LogicalPosition) bool {
	return p.Level == o.Level && p.Number == o.Number && p.Fanout == o.Fanout
}

// Parent returns the position of p's parent. Calling Parent on the root is
// a programming error and returns the root itself; callers must check
// IsRoot first.
func (p LogicalPosition) Parent() LogicalPosition {
	if p.IsRoot() {
		return p
	}
	return LogicalPosition{Level: p.Level - 1, Number: p.Number / uint64(p.Fanout), Fanout: p.Fanout}
}

// Child returns the position of p's k-th child (k in [0, fanout)).
func (p LogicalPosition) Child(k uint16) LogicalPosition {
	return LogicalPosition{Level: p.Level + 1, Number: p.Number*uint64(p.Fanout) + uint64(k), Fanout: p.Fanout}
}

// ChildIndex returns which child slot p occupies under its parent, i.e. the
// k such that p.Parent().Child(k) == p.
func (p LogicalPosition) ChildIndex() uint16 {
	return uint16(p.Number % uint64(p.Fanout))
}

// RoutingTableNeighborOffset computes the position of the routing-table
// neighbor of p at hop index i (0-based, i in [0, ceil(log_m N)) ) and
// signed multiplier f (f in [-(fanout-1), fanout-1], f != 0), per §4.1:
// numbers n ± m^i * f, clipped to [0, m^level). ok is false if the
// resulting number falls outside the valid range for this level.
func (p LogicalPosition) RoutingTableNeighborOffset(i int, f int) (LogicalPosition, bool) {
	if f == 0 {
		return LogicalPosition{}, false
	}
	step := pow(uint64(p.Fanout), i)
	delta := step * uint64(abs(f))
	var n uint64
	if f > 0 {
		n = p.Number + delta
	} else {
		if delta > p.Number {
			return LogicalPosition{}, false
		}
		n = p.Number - delta
	}
	max := maxNodesAtLevel(p.Level, p.Fanout)
	if n >= max {
		return LogicalPosition{}, false
	}
	return LogicalPosition{Level: p.Level, Number: n, Fanout: p.Fanout}, true
}

func pow(base uint64, exp int) uint64 {
	result := uint64(1)
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// InorderRank returns p.Number, p's offset within its own level. It orders
// positions of one level only (P4); it is not a dense index, and positions
// at different levels are compared with InorderLess instead.
func (p LogicalPosition) InorderRank() uint64 {
	// A full m-ary tree laid out in-order visits, at each level, the
	// leftmost subtree, the node, then subsequent subtrees -- but for
	// comparing two same-or-different-level positions it is sufficient
	// to compare (level, number) lexicographically within a level and
	// use the ancestor chain across levels. We normalize p to the deeper
	// of two levels when comparing (see Before/InorderLess), so here we
	// simply return Number; InorderLess handles cross-level comparison.
	return p.Number
}

// InorderLess reports whether a occupies an earlier position than b in the
// tree's in-order linearisation. Positions at different levels are
// compared by projecting the shallower one down to the deeper level via
// its leftmost descendant chain, then comparing numbers; on a tie the
// deeper position lies in the shallower one's leftmost subtree and so is
// "earlier" (a leftmost child precedes its parent in-order) -- in practice
// routing only ever compares same-level adjacents, so this is a total
// order extension for bookkeeping, not a protocol-critical computation.
func InorderLess(a, b LogicalPosition) bool {
	if a.Level == b.Level {
		return a.Number < b.Number
	}
	aDeeper := a.Level > b.Level
	// Project the shallower position down to the deeper level by
	// repeatedly taking its leftmost child (number*fanout).
	for a.Level < b.Level {
		a = a.Child(0)
	}
	for b.Level < a.Level {
		b = b.Child(0)
	}
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	// Equal projected number: the deeper position is on the shallower
	// one's leftmost descendant chain and precedes it.
	return aDeeper
}
