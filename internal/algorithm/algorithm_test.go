package algorithm

import (
	"testing"

	"minhton/internal/message"
)

func TestDispatchCoversEveryRealMessageType(t *testing.T) {
	realTypes := []message.Type{
		message.TypeJoin, message.TypeJoinAccept, message.TypeJoinAcceptAck,
		message.TypeFindQueryRequest, message.TypeFindQueryAnswer, message.TypeAttributeInquiryRequest,
		message.TypeAttributeInquiryAnswer, message.TypeSubscriptionOrder, message.TypeSubscriptionUpdate,
		message.TypeSearchExact, message.TypeSearchExactFailure, message.TypeEmpty,
		message.TypeBootstrapDiscover, message.TypeBootstrapResponse,
		message.TypeRemoveNeighbor, message.TypeRemoveNeighborAck, message.TypeUpdateNeighbors,
		message.TypeReplacementUpdate, message.TypeGetNeighbors, message.TypeInformAboutNeighbors,
		message.TypeFindReplacement, message.TypeReplacementNack, message.TypeSignOffParentRequest,
		message.TypeLockNeighborRequest, message.TypeLockNeighborResponse, message.TypeSignOffParentAnswer,
		message.TypeRemoveAndUpdateNeighbor, message.TypeReplacementOffer, message.TypeReplacementAck,
		message.TypeUnlockNeighbor,
	}
	for _, typ := range realTypes {
		if _, ok := DispatchKind(typ); !ok {
			t.Errorf("no algorithm kind registered for %s", typ)
		}
	}
	if len(dispatch) != len(realTypes) {
		t.Errorf("dispatch map has %d entries, expected exactly %d", len(dispatch), len(realTypes))
	}
}

func TestSetForReturnsRegisteredHandler(t *testing.T) {
	s := &Set{Join: stubAlgorithm{}}
	if s.For(KindJoin) == nil {
		t.Fatal("expected Join handler registered")
	}
	if s.For(KindLeave) != nil {
		t.Fatal("expected nil for unregistered Leave handler")
	}
}

type stubAlgorithm struct{}

func (stubAlgorithm) Handle(ctx *Context, env message.Envelope) ([]Outbound, error) {
	return nil, nil
}
