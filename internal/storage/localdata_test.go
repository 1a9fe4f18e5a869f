package storage

import (
	"net/netip"
	"testing"

	"minhton/internal/domain"
	"minhton/internal/logger"
	"minhton/internal/message"
)

func subscriber(id byte, port uint16) domain.NodeInfo {
	return domain.NodeInfo{
		ID:      domain.UUID{id},
		Network: domain.NetworkInfo{Addr: netip.MustParseAddr("127.0.0.1"), Port: port},
	}
}

func TestInsertThenGet(t *testing.T) {
	d := New(&logger.NopLogger{})
	d.Insert("room.temperature", "21.5", 100, message.ValueDynamic)

	e, ok := d.Get("room.temperature")
	if !ok {
		t.Fatal("expected entry to be present")
	}
	if e.Value != "21.5" || e.Timestamp != 100 || e.Kind != message.ValueDynamic {
		t.Fatalf("got %+v", e)
	}
}

func TestInsertOverwritesExisting(t *testing.T) {
	d := New(&logger.NopLogger{})
	d.Insert("k", "v1", 1, message.ValueStatic)
	d.Insert("k", "v2", 2, message.ValueStatic)

	e, ok := d.Get("k")
	if !ok || e.Value != "v2" || e.Timestamp != 2 {
		t.Fatalf("got %+v, %v", e, ok)
	}
}

func TestRemoveDeletesEntry(t *testing.T) {
	d := New(&logger.NopLogger{})
	d.Insert("k", "v", 1, message.ValueStatic)
	d.Remove("k")

	if _, ok := d.Get("k"); ok {
		t.Fatal("expected entry to be removed")
	}
}

func TestAllReturnsSortedAttributes(t *testing.T) {
	d := New(&logger.NopLogger{})
	d.Insert("b", "2", 1, message.ValueStatic)
	d.Insert("a", "1", 1, message.ValueStatic)
	d.Insert("c", "3", 1, message.ValueDynamic)

	all := d.All()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Fatalf("not sorted: %+v", all)
		}
	}
}

func TestSubscribeAndNotifyOnInsert(t *testing.T) {
	d := New(&logger.NopLogger{})
	sub1 := subscriber(1, 3001)
	sub2 := subscriber(2, 3002)
	d.Subscribe("k", sub1)
	d.Subscribe("k", sub2)

	subs := d.Insert("k", "v", 1, message.ValueDynamic)
	if len(subs) != 2 {
		t.Fatalf("len(subs) = %d, want 2", len(subs))
	}
}

func TestUnsubscribeRemovesFromSet(t *testing.T) {
	d := New(&logger.NopLogger{})
	sub1 := subscriber(1, 3001)
	d.Subscribe("k", sub1)
	d.Unsubscribe("k", sub1)

	if subs := d.Subscribers("k"); len(subs) != 0 {
		t.Fatalf("expected no subscribers, got %+v", subs)
	}
}

func TestRemoveNotifiesRemainingSubscribers(t *testing.T) {
	d := New(&logger.NopLogger{})
	sub1 := subscriber(1, 3001)
	d.Insert("k", "v", 1, message.ValueStatic)
	d.Subscribe("k", sub1)

	subs := d.Remove("k")
	if len(subs) != 1 || subs[0].ID != sub1.ID {
		t.Fatalf("got %+v", subs)
	}
	// subscriber set is also cleared after the key is gone
	if remaining := d.Subscribers("k"); len(remaining) != 0 {
		t.Fatalf("expected subscriber set cleared, got %+v", remaining)
	}
}

func TestGetMissingKey(t *testing.T) {
	d := New(&logger.NopLogger{})
	if _, ok := d.Get("missing"); ok {
		t.Fatal("expected no entry for missing key")
	}
}
