package message

import (
	"net/netip"
	"reflect"
	"testing"

	"minhton/internal/domain"
)

func peer(n uint64) domain.NodeInfo {
	return domain.NodeInfo{
		Position: domain.LogicalPosition{Level: 1, Number: n, Fanout: 2},
		Network:  domain.NetworkInfo{Addr: netip.MustParseAddr("127.0.0.1"), Port: uint16(2000 + n)},
		ID:       domain.UUID{byte(n)},
	}
}

func roundTrip(t *testing.T, e Envelope) Envelope {
	t.Helper()
	data, err := Serialize(e)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	return got
}

func TestEnvelopeRoundTripJoin(t *testing.T) {
	e := Envelope{
		Sender:     peer(0),
		Target:     peer(1),
		EventID:    1,
		RefEventID: 0,
		Logging:    LoggingInfo{Hop: HopStart, Mode: ProcessingSending},
		Body:       &Join{EnteringNode: peer(2)},
	}
	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\n  want %+v\n  got  %+v", e, got)
	}
}

func TestEnvelopeRoundTripJoinAccept(t *testing.T) {
	e := Envelope{
		Sender:  peer(0),
		Target:  peer(1),
		EventID: 5,
		Body: &JoinAccept{
			Fanout:                2,
			AssignedPosition:      domain.LogicalPosition{Level: 2, Number: 3, Fanout: 2},
			AdjacentLeft:          peer(2),
			AdjacentRight:         peer(3),
			RoutingTableNeighbors: []domain.NodeInfo{peer(4), peer(5)},
		},
	}
	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\n  want %+v\n  got  %+v", e, got)
	}
}

func TestEnvelopeRoundTripSearchExactUninitialisedTarget(t *testing.T) {
	e := Envelope{
		Sender:  peer(0),
		EventID: 9,
		Body: &SearchExact{
			Destination:        domain.LogicalPosition{Level: 3, Number: 2, Fanout: 2},
			Query:               []byte{1, 2, 3, 4},
			NotifyAboutFailure: true,
		},
	}
	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\n  want %+v\n  got  %+v", e, got)
	}
	if got.Target.Initialised() {
		t.Fatal("expected uninitialised target to survive round trip as uninitialised")
	}
}

func TestEnvelopeRoundTripReplacementAck(t *testing.T) {
	e := Envelope{
		Sender:  peer(0),
		Target:  peer(1),
		EventID: 3,
		Body: &ReplacementAck{
			Neighbors:    []domain.NodeInfo{peer(2), peer(3)},
			LockedStates: []bool{true, false},
		},
	}
	got := roundTrip(t, e)
	if !reflect.DeepEqual(e, got) {
		t.Fatalf("round trip mismatch:\n  want %+v\n  got  %+v", e, got)
	}
}

func TestEnvelopeRoundTripEmptyBodies(t *testing.T) {
	bodies := []Variant{
		&ReplacementNack{},
		&UnlockNeighbor{},
		&SignOffParentAnswer{},
		&RemoveNeighborAck{},
		&Empty{},
	}
	for _, body := range bodies {
		e := Envelope{Sender: peer(0), Target: peer(1), EventID: 1, Body: body}
		got := roundTrip(t, e)
		if got.Body.Type() != body.Type() {
			t.Fatalf("type mismatch for %T: got %s want %s", body, got.Body.Type(), body.Type())
		}
	}
}

func TestEnvelopeValidateRejectsZeroEventID(t *testing.T) {
	e := Envelope{Sender: peer(0), Target: peer(1), EventID: 0, Body: &Empty{}}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for zero event id")
	}
}

func TestEnvelopeValidateRejectsEqualEventAndRef(t *testing.T) {
	e := Envelope{Sender: peer(0), Target: peer(1), EventID: 5, RefEventID: 5, Body: &Empty{}}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for event id == ref event id")
	}
}

func TestEnvelopeValidateRejectsUninitialisedSender(t *testing.T) {
	e := Envelope{EventID: 1, Target: peer(1), Body: &Empty{}}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for uninitialised sender")
	}
}

func TestEnvelopeValidateAllowsUninitialisedTargetOnlyForSearchExact(t *testing.T) {
	e := Envelope{Sender: peer(0), EventID: 1, Body: &Empty{}}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for uninitialised target on non-SearchExact message")
	}

	se := Envelope{Sender: peer(0), EventID: 1, Body: &SearchExact{Destination: domain.LogicalPosition{Fanout: 2}}}
	if err := se.Validate(); err != nil {
		t.Fatalf("SearchExact with uninitialised target should validate: %v", err)
	}
}

func TestEnvelopeValidateAllowsUninitialisedSenderForPreJoinTypes(t *testing.T) {
	join := Envelope{Target: peer(1), EventID: 1, Body: &Join{EnteringNode: domain.NodeInfo{}}}
	if err := join.Validate(); err != nil {
		t.Fatalf("Join from an uninitialised sender should validate: %v", err)
	}

	discover := Envelope{EventID: 1, Body: &BootstrapDiscover{DiscoveryMessage: "hello"}}
	if err := discover.Validate(); err != nil {
		t.Fatalf("BootstrapDiscover with no sender/target identity should validate: %v", err)
	}

	response := Envelope{Sender: peer(0), EventID: 1, Body: &BootstrapResponse{NodeToJoin: peer(1)}}
	if err := response.Validate(); err != nil {
		t.Fatalf("BootstrapResponse to an uninitialised discoverer should validate: %v", err)
	}
}

func TestDecodersCoverEveryRealMessageType(t *testing.T) {
	realTypes := []Type{
		TypeJoin, TypeJoinAccept, TypeJoinAcceptAck,
		TypeFindQueryRequest, TypeFindQueryAnswer, TypeAttributeInquiryRequest,
		TypeAttributeInquiryAnswer, TypeSubscriptionOrder, TypeSubscriptionUpdate,
		TypeSearchExact, TypeSearchExactFailure, TypeEmpty,
		TypeBootstrapDiscover, TypeBootstrapResponse,
		TypeRemoveNeighbor, TypeRemoveNeighborAck, TypeUpdateNeighbors,
		TypeReplacementUpdate, TypeGetNeighbors, TypeInformAboutNeighbors,
		TypeFindReplacement, TypeReplacementNack, TypeSignOffParentRequest,
		TypeLockNeighborRequest, TypeLockNeighborResponse, TypeSignOffParentAnswer,
		TypeRemoveAndUpdateNeighbor, TypeReplacementOffer, TypeReplacementAck,
		TypeUnlockNeighbor,
	}
	for _, typ := range realTypes {
		if _, ok := decoders[typ]; !ok {
			t.Errorf("no decoder registered for %s", typ)
		}
	}
	if len(decoders) != len(realTypes) {
		t.Errorf("decoders map has %d entries, expected exactly %d", len(decoders), len(realTypes))
	}
}

func TestSerializeVariantRoundTrip(t *testing.T) {
	original := &Join{EnteringNode: peer(3)}
	data, err := SerializeVariant(original)
	if err != nil {
		t.Fatalf("SerializeVariant: %v", err)
	}
	got, err := DeserializeVariant(data)
	if err != nil {
		t.Fatalf("DeserializeVariant: %v", err)
	}
	join, ok := got.(*Join)
	if !ok {
		t.Fatalf("got %T, want *Join", got)
	}
	if !join.EnteringNode.Equal(original.EnteringNode) {
		t.Fatalf("got %+v, want %+v", join.EnteringNode, original.EnteringNode)
	}
}

func TestSerializeVariantNilIsInvalidMessage(t *testing.T) {
	if _, err := SerializeVariant(nil); err == nil {
		t.Fatal("expected error serializing a nil variant")
	}
}

func TestDeserializeUnknownTypeIsInvalidMessage(t *testing.T) {
	data := []byte{255}
	if _, err := Deserialize(data); err == nil {
		t.Fatal("expected error for unknown message type")
	}
}

func TestDeserializeTruncatedPayloadIsInvalidMessage(t *testing.T) {
	e := Envelope{Sender: peer(0), Target: peer(1), EventID: 1, Body: &Join{EnteringNode: peer(2)}}
	data, err := Serialize(e)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if _, err := Deserialize(data[:len(data)-1]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
