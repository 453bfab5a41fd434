package store

import (
	"errors"
	"testing"

	"chordkv/internal/ring"
)

// alwaysOwner satisfies Ownership and claims every key, for tests
// that don't care about the ring.
type alwaysOwner struct{ hint ring.Peer }

func (alwaysOwner) Owns(ring.Identifier) bool                            { return true }
func (o alwaysOwner) OwnerHint(ring.Identifier) ring.Peer                { return o.hint }
func (alwaysOwner) OnPredecessorChange(fn func(old, new *ring.Peer))     {}

type neverOwner struct{ hint ring.Peer }

func (neverOwner) Owns(ring.Identifier) bool                        { return false }
func (o neverOwner) OwnerHint(ring.Identifier) ring.Peer            { return o.hint }
func (neverOwner) OnPredecessorChange(fn func(old, new *ring.Peer)) {}

func newTestStore(t *testing.T, ownership Ownership) *Store {
	t.Helper()
	s, err := New("node1", ownership)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t, alwaysOwner{})
	id := ring.HashID([]byte("k1"))

	rec, err := s.Put("k1", id, "v1")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if rec.Version != 1 {
		t.Fatalf("version = %d, want 1", rec.Version)
	}

	got, ok, err := s.Get("k1", id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Value != "v1" {
		t.Fatalf("value = %q, want v1", got.Value)
	}

	rec2, err := s.Put("k1", id, "v2")
	if err != nil || rec2.Version != 2 {
		t.Fatalf("second put: rec=%+v err=%v", rec2, err)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t, alwaysOwner{})
	_, ok, err := s.Get("nope", ring.HashID([]byte("nope")))
	if err != nil || ok {
		t.Fatalf("expected ok=false err=nil, got ok=%v err=%v", ok, err)
	}
}

func TestDeleteHidesKeyButKeepsTombstone(t *testing.T) {
	s := newTestStore(t, alwaysOwner{})
	id := ring.HashID([]byte("k1"))
	s.Put("k1", id, "v1")

	if err := s.Delete("k1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get("k1", id); ok {
		t.Fatalf("deleted key still visible via Get")
	}
	raw, ok := s.GetRaw("k1")
	if !ok || !raw.Tombstone {
		t.Fatalf("GetRaw should still see the tombstone, got ok=%v raw=%+v", ok, raw)
	}
}

func TestNotOwnerRejectsReadsAndWrites(t *testing.T) {
	hint := ring.Peer{Endpoint: "10.0.0.2:6501"}
	s := newTestStore(t, neverOwner{hint: hint})
	id := ring.HashID([]byte("k1"))

	_, err := s.Put("k1", id, "v1")
	var noErr *ring.NotOwnerError
	if !errors.As(err, &noErr) || noErr.Expected.Endpoint != hint.Endpoint {
		t.Fatalf("put err = %v, want NotOwnerError(%v)", err, hint)
	}

	_, _, err = s.Get("k1", id)
	if !errors.Is(err, ring.ErrNotOwner) {
		t.Fatalf("get err = %v, want ErrNotOwner", err)
	}
}

func TestApplyRemoteKeepsHigherVersion(t *testing.T) {
	s := newTestStore(t, alwaysOwner{})
	s.data["k1"] = Record{Value: "old", Version: 5}

	applied, err := s.ApplyRemote("k1", Record{Value: "stale", Version: 3})
	if err != nil || applied {
		t.Fatalf("stale write should be rejected: applied=%v err=%v", applied, err)
	}

	applied, err = s.ApplyRemote("k1", Record{Value: "new", Version: 6})
	if err != nil || !applied {
		t.Fatalf("newer write should be applied: applied=%v err=%v", applied, err)
	}
	if got, _ := s.GetRaw("k1"); got.Value != "new" {
		t.Fatalf("value = %q, want new", got.Value)
	}
}

func TestApplyRemoteDeleteBypassesOwnershipAndLeavesNoTombstone(t *testing.T) {
	s := newTestStore(t, neverOwner{})
	s.data["k1"] = Record{Value: "v1", Version: 1}

	s.ApplyRemoteDelete("k1")

	if _, ok := s.GetRaw("k1"); ok {
		t.Fatalf("ApplyRemoteDelete should remove the key outright, got a remaining record")
	}
}

func TestNewStoreStartsEmpty(t *testing.T) {
	// The DHT store is a rebuilt-from-peers cache, not a durable log:
	// a fresh Store never has anything to reload from disk.
	s := newTestStore(t, alwaysOwner{})
	if keys := s.Keys(); len(keys) != 0 {
		t.Fatalf("new store should start empty, got %v", keys)
	}
}
