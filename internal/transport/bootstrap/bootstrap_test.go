package bootstrap

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"minhton/internal/domain"
	"minhton/internal/message"
)

// localGroup uses a loopback-reachable multicast group/port unlikely to
// collide with a real deployment's DefaultGroup, so the test suite can run
// sandboxed without touching 224.1.1.1 itself.
const localGroup = "224.1.1.2:17999"

func TestAnnouncerRepliesToProber(t *testing.T) {
	responder := domain.NodeInfo{
		Position: domain.LogicalPosition{Level: 0, Number: 0, Fanout: 4},
		Network:  domain.NetworkInfo{Addr: netip.MustParseAddr("127.0.0.1"), Port: 9000},
		ID:       domain.UUID{1},
	}

	handler := func(_ context.Context, env message.Envelope) (message.Envelope, bool) {
		return message.Envelope{
			Sender:     responder,
			Target:     env.Sender,
			EventID:    1000,
			RefEventID: env.EventID,
			Body:       &message.BootstrapResponse{NodeToJoin: responder},
		}, true
	}

	announcer, err := NewAnnouncer(localGroup, handler, nil)
	if err != nil {
		t.Skipf("multicast unavailable in this sandbox: %v", err)
	}
	defer announcer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go announcer.Serve(ctx)

	time.Sleep(50 * time.Millisecond) // let Serve start reading

	prober, err := NewProber(localGroup)
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}
	defer prober.Close()

	discoverer := domain.NodeInfo{
		Network: domain.NetworkInfo{Addr: netip.MustParseAddr("127.0.0.1"), Port: 9100},
		ID:      domain.UUID{2},
	}

	reply, err := prober.Discover(ctx, discoverer, 42)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	resp, ok := reply.Body.(*message.BootstrapResponse)
	if !ok {
		t.Fatalf("reply body = %T, want *message.BootstrapResponse", reply.Body)
	}
	if !resp.NodeToJoin.Equal(responder) {
		t.Fatalf("NodeToJoin = %+v, want %+v", resp.NodeToJoin, responder)
	}
	if reply.RefEventID != 42 {
		t.Fatalf("RefEventID = %d, want 42", reply.RefEventID)
	}
}
