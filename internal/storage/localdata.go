// Package storage holds a participant's LocalData store: per-key
// attribute values plus their subscribers (§3, §4.7). It generalizes the
// teacher's in-memory resource store (internal/storage/memory.go) from a
// DHT key-value map to the overlay's Key -> (Value, timestamp, ValueType)
// model plus a subscriber index.
package storage

import (
	"sort"
	"sync"

	"minhton/internal/domain"
	"minhton/internal/logger"
	"minhton/internal/message"
)

// Entry is one stored attribute value (§3 LocalData).
type Entry struct {
	Value     string
	Timestamp int64
	Kind      message.ValueKind
}

// LocalData is a concurrency-safe per-participant attribute store with a
// per-key subscriber index, mirroring the RWMutex-guarded map the teacher
// uses for DHT resources.
type LocalData struct {
	lgr logger.Logger

	mu          sync.RWMutex
	entries     map[string]Entry
	subscribers map[string]map[domain.UUID]domain.NodeInfo
}

// New returns an empty LocalData store.
func New(lgr logger.Logger) *LocalData {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	return &LocalData{
		lgr:         lgr.Named("localdata"),
		entries:     make(map[string]Entry),
		subscribers: make(map[string]map[domain.UUID]domain.NodeInfo),
	}
}

// Insert creates or overwrites the value at key and returns the set of
// current subscribers to notify (§4.7: "updates all subscribers of that
// key via SubscriptionUpdate").
func (d *LocalData) Insert(key, value string, timestamp int64, kind message.ValueKind) []domain.NodeInfo {
	d.mu.Lock()
	_, existed := d.entries[key]
	d.entries[key] = Entry{Value: value, Timestamp: timestamp, Kind: kind}
	subs := d.subscriberSnapshotLocked(key)
	d.mu.Unlock()

	if existed {
		d.lgr.Debug("local data updated", logger.F("key", key))
	} else {
		d.lgr.Debug("local data inserted", logger.F("key", key))
	}
	return subs
}

// Update is Insert under another name, kept distinct because §4.7 lists
// localInsert/localUpdate/localRemove as separate operations even though
// insert and update share an implementation over a plain map.
func (d *LocalData) Update(key, value string, timestamp int64, kind message.ValueKind) []domain.NodeInfo {
	return d.Insert(key, value, timestamp, kind)
}

// Remove deletes key and returns the subscribers that must be notified of
// the removal.
func (d *LocalData) Remove(key string) []domain.NodeInfo {
	d.mu.Lock()
	delete(d.entries, key)
	subs := d.subscriberSnapshotLocked(key)
	delete(d.subscribers, key)
	d.mu.Unlock()
	d.lgr.Debug("local data removed", logger.F("key", key))
	return subs
}

// Get retrieves the entry at key.
func (d *LocalData) Get(key string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[key]
	return e, ok
}

// All returns a deterministically ordered snapshot of every stored
// attribute, as Attribute values ready to ship over the wire.
func (d *LocalData) All() []message.Attribute {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]message.Attribute, 0, len(d.entries))
	for k, e := range d.entries {
		out = append(out, message.Attribute{Key: k, Value: e.Value, Timestamp: e.Timestamp, Kind: e.Kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Subscribe adds node to key's subscriber set.
func (d *LocalData) Subscribe(key string, node domain.NodeInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subscribers[key] == nil {
		d.subscribers[key] = make(map[domain.UUID]domain.NodeInfo)
	}
	d.subscribers[key][node.ID] = node
}

// Unsubscribe removes node from key's subscriber set.
func (d *LocalData) Unsubscribe(key string, node domain.NodeInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if subs, ok := d.subscribers[key]; ok {
		delete(subs, node.ID)
		if len(subs) == 0 {
			delete(d.subscribers, key)
		}
	}
}

// Subscribers returns the current subscriber set for key.
func (d *LocalData) Subscribers(key string) []domain.NodeInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.subscriberSnapshotLocked(key)
}

func (d *LocalData) subscriberSnapshotLocked(key string) []domain.NodeInfo {
	subs := d.subscribers[key]
	if len(subs) == 0 {
		return nil
	}
	out := make([]domain.NodeInfo, 0, len(subs))
	for _, n := range subs {
		out = append(out, n)
	}
	return out
}
