package algorithm

import (
	"fmt"

	"minhton/internal/domain"
	"minhton/internal/message"
	"minhton/internal/minhtonerr"
)

// SearchExact implements §4.5: one-hop-at-a-time forwarding toward a
// destination position by a deterministic closest-neighbor metric. Set
// points back at the full Algorithm Set so that, on arrival at the
// destination, the unwrapped query can be dispatched to its own handler
// without SearchExact needing to fake a network round trip to itself.
type SearchExact struct {
	Set *Set
}

func (s *SearchExact) Handle(ctx *Context, env message.Envelope) ([]Outbound, error) {
	switch body := env.Body.(type) {
	case *message.SearchExact:
		return s.handleSearchExact(ctx, env, body)
	case *message.SearchExactFailure:
		return handleSearchExactFailure(ctx, env, body)
	case *message.Empty:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: search-exact algorithm received %T", minhtonerr.ErrInvalidMessage, env.Body)
	}
}

// handleSearchExact implements §4.5: if self is the destination, the
// wrapped query is unwrapped and dispatched as a fresh event; otherwise
// the message is forwarded to the initialised neighbor closest to the
// destination, or bounced back as SearchExactFailure if no neighbor is
// closer than self.
func (s *SearchExact) handleSearchExact(ctx *Context, env message.Envelope, body *message.SearchExact) ([]Outbound, error) {
	if ctx.Self.Position.Equal(body.Destination) {
		inner, err := message.DeserializeVariant(body.Query)
		if err != nil {
			return nil, err
		}
		kind, ok := DispatchKind(inner.Type())
		if !ok {
			return nil, fmt.Errorf("%w: no algorithm for unwrapped query type %s", minhtonerr.ErrInvalidMessage, inner.Type())
		}
		algo := s.Set.For(kind)
		if algo == nil {
			return nil, fmt.Errorf("%w: no handler registered for %s", minhtonerr.ErrInvalidMessage, kind)
		}
		innerEnv := message.Envelope{
			Sender:     env.Sender,
			Target:     ctx.Self,
			EventID:    ctx.NextEventID(),
			RefEventID: env.EventID,
			Body:       inner,
		}
		return algo.Handle(ctx, innerEnv)
	}

	next, ok := closestNeighborTowards(ctx, body.Destination)
	if !ok {
		if body.NotifyAboutFailure {
			failure := &message.SearchExactFailure{Query: body.Query}
			return []Outbound{ctx.Send(env.Sender, failure, env.EventID)}, nil
		}
		return nil, nil
	}
	return []Outbound{ctx.Send(next, body, env.EventID)}, nil
}

// handleSearchExactFailure accepts a bounced search and drops it: it sends
// nothing, logs nothing and returns no error. No retargeting and no DSN
// fallback is attempted, here or by any other handler.
func handleSearchExactFailure(ctx *Context, env message.Envelope, body *message.SearchExactFailure) ([]Outbound, error) {
	return nil, nil
}

// closestNeighborTowards picks, among self's initialised neighbors, the
// one minimising the distance metric to destination (§4.5): smaller
// |levelDiff| first, then smaller number-gap along the current level,
// then lower UUID. It only returns a candidate strictly closer than self;
// if none exists, the destination is unreachable from here.
func closestNeighborTowards(ctx *Context, destination domain.LogicalPosition) (domain.NodeInfo, bool) {
	selfDist := positionDistance(ctx.Self.Position, destination)

	var best domain.NodeInfo
	var bestDist distance
	found := false

	for _, n := range ctx.Routing.AllInitialisedNeighbors() {
		d := positionDistance(n.Position, destination)
		if !lessDistance(d, selfDist) {
			continue
		}
		if !found || lessDistance(d, bestDist) || (d == bestDist && n.ID.Less(best.ID)) {
			best = n
			bestDist = d
			found = true
		}
	}
	return best, found
}

// distance is the ordered (levelDiff, numberGap) pair §4.5 compares
// lexicographically; UUID is compared separately only on an exact tie.
type distance struct {
	levelDiff uint32
	numberGap uint64
}

func lessDistance(a, b distance) bool {
	if a.levelDiff != b.levelDiff {
		return a.levelDiff < b.levelDiff
	}
	return a.numberGap < b.numberGap
}

func positionDistance(pos, destination domain.LogicalPosition) distance {
	levelDiff := absLevelDiff(pos.Level, destination.Level)
	a, b := pos, destination
	for a.Level < b.Level {
		a = a.Child(0)
	}
	for b.Level < a.Level {
		b = b.Child(0)
	}
	var gap uint64
	if a.Number > b.Number {
		gap = a.Number - b.Number
	} else {
		gap = b.Number - a.Number
	}
	return distance{levelDiff: levelDiff, numberGap: gap}
}

func absLevelDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
