// Package entitysearch implements §4.7's Distributed Service Node (DSN)
// aggregation: answering FindQueryRequest/AttributeInquiry traffic that
// search-exact has already routed to the node covering a query's DSN
// position, and maintaining the subscriber index that pushes
// SubscriptionUpdate to interested parties when a tracked attribute
// changes. It is assigned into algorithm.Set.EntitySearch -- a separate
// package rather than living in internal/algorithm itself, since it
// depends on internal/storage.LocalData in ways the base algorithm
// package's other handlers do not.
package entitysearch

import (
	"fmt"
	"strings"

	"minhton/internal/algorithm"
	"minhton/internal/domain"
	"minhton/internal/message"
	"minhton/internal/minhtonerr"
)

// EntitySearch implements algorithm.Algorithm for the FindQuery/
// AttributeInquiry/Subscription message family (§4.7).
type EntitySearch struct{}

func (EntitySearch) Handle(ctx *algorithm.Context, env message.Envelope) ([]algorithm.Outbound, error) {
	switch body := env.Body.(type) {
	case *message.FindQueryRequest:
		return handleFindQueryRequest(ctx, env, body)
	case *message.FindQueryAnswer:
		// Consumed by whichever caller issued the original query; the DSN
		// side that answered it has nothing further to do here.
		return nil, nil
	case *message.AttributeInquiryRequest:
		return handleAttributeInquiryRequest(ctx, env, body)
	case *message.AttributeInquiryAnswer:
		return handleAttributeInquiryAnswer(ctx, env, body)
	case *message.SubscriptionOrder:
		return handleSubscriptionOrder(ctx, env, body)
	case *message.SubscriptionUpdate:
		return handleSubscriptionUpdate(ctx, body)
	default:
		return nil, fmt.Errorf("%w: entity search algorithm received %T", minhtonerr.ErrInvalidMessage, env.Body)
	}
}

// handleFindQueryRequest answers from this node's own LocalData, treating
// Query as an exact key or key prefix to match against the DSN's
// aggregated attribute index (§4.7). ScopeSome truncates the match set to
// FindQuerySomeScopeThreshold keys; ScopeAll returns every match. The
// reply carries the nodes subscribed to (i.e. offering) each matched key,
// which is what a querier actually wants: who to contact for that
// attribute, not the attribute's current value.
func handleFindQueryRequest(ctx *algorithm.Context, env message.Envelope, body *message.FindQueryRequest) ([]algorithm.Outbound, error) {
	var matched []string
	for _, attr := range ctx.Data.All() {
		if attr.Key == body.Query || strings.HasPrefix(attr.Key, body.Query) {
			matched = append(matched, attr.Key)
			if body.Scope == message.ScopeSome && len(matched) >= message.FindQuerySomeScopeThreshold {
				break
			}
		}
	}

	answer := &message.FindQueryAnswer{Nodes: subscribersOf(ctx, matched)}
	return []algorithm.Outbound{ctx.Send(env.Sender, answer, env.EventID)}, nil
}

// subscribersOf collects the de-duplicated union of subscribers across
// keys, in first-seen order.
func subscribersOf(ctx *algorithm.Context, keys []string) []domain.NodeInfo {
	seen := make(map[domain.UUID]struct{})
	var out []domain.NodeInfo
	for _, k := range keys {
		for _, n := range ctx.Data.Subscribers(k) {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// handleAttributeInquiryRequest replies with the requested keys' current
// values, or every locally stored attribute if Keys is empty (§4.7).
func handleAttributeInquiryRequest(ctx *algorithm.Context, env message.Envelope, body *message.AttributeInquiryRequest) ([]algorithm.Outbound, error) {
	var attrs []message.Attribute
	if len(body.Keys) == 0 {
		attrs = ctx.Data.All()
	} else {
		for _, k := range body.Keys {
			if e, ok := ctx.Data.Get(k); ok {
				attrs = append(attrs, message.Attribute{Key: k, Value: e.Value, Timestamp: e.Timestamp, Kind: e.Kind})
			}
		}
	}
	answer := &message.AttributeInquiryAnswer{Node: ctx.Self, Attributes: attrs}
	return []algorithm.Outbound{ctx.Send(env.Sender, answer, env.EventID)}, nil
}

// handleAttributeInquiryAnswer absorbs a subtree member's attribute
// snapshot into this DSN's own aggregated index (§4.7: the DSN caches
// what its subtree offers so FindQueryRequest can answer locally without
// a further round trip) and fans out SubscriptionUpdate to anyone already
// subscribed to a key that changed.
func handleAttributeInquiryAnswer(ctx *algorithm.Context, _ message.Envelope, body *message.AttributeInquiryAnswer) ([]algorithm.Outbound, error) {
	var out []algorithm.Outbound
	for _, attr := range body.Attributes {
		subs := ctx.Data.Insert(attr.Key, attr.Value, attr.Timestamp, attr.Kind)
		ctx.Data.Subscribe(attr.Key, body.Node)
		for _, sub := range subs {
			upd := &message.SubscriptionUpdate{Key: attr.Key, Value: attr.Value, Timestamp: attr.Timestamp}
			out = append(out, ctx.Send(sub, upd, ctx.NextEventID()))
		}
	}
	return out, nil
}

// handleSubscriptionOrder places or withdraws the sender's subscription
// to each named key (§4.7).
func handleSubscriptionOrder(ctx *algorithm.Context, env message.Envelope, body *message.SubscriptionOrder) ([]algorithm.Outbound, error) {
	for _, k := range body.Keys {
		if body.Subscribe {
			ctx.Data.Subscribe(k, env.Sender)
		} else {
			ctx.Data.Unsubscribe(k, env.Sender)
		}
	}
	return nil, nil
}

// handleSubscriptionUpdate caches a pushed update from this node's DSN as
// a Dynamic local value; a node has no further subscribers of its own to
// notify for data it merely consumes.
func handleSubscriptionUpdate(ctx *algorithm.Context, body *message.SubscriptionUpdate) ([]algorithm.Outbound, error) {
	ctx.Data.Insert(body.Key, body.Value, body.Timestamp, message.ValueDynamic)
	return nil, nil
}
