// Package store is the per-node key-value engine holding the slice of
// the DHT's key space this node currently owns.
//
// This store:
//   - Keeps data purely in memory. The DHT's state is a cache rebuilt
//     from peer exchange — join, stabilization, replication, handoff —
//     not a durable system of record, so there is no on-disk log or
//     snapshot to replay on restart; a restarted node rejoins the ring
//     and repopulates from ApplyRemote/TransferRange like any other
//     topology change.
//   - Refuses writes and reads for keys outside this node's arc,
//     since the ring (not the store) is the source of truth for
//     ownership.
//   - Uses sync.RWMutex so many readers can read at the same time
//     while only one writer writes.
package store

import (
	"sync"
	"time"

	"chordkv/internal/ring"
)

// Ownership is the slice of ring.Engine the store needs: whether a key
// falls in this node's current arc, and a hook fired when the
// predecessor changes (handoff trigger, §4.5).
type Ownership interface {
	Owns(key ring.Identifier) bool
	OwnerHint(key ring.Identifier) ring.Peer
	OnPredecessorChange(fn func(old, new *ring.Peer))
}

// Store is the main storage object, safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	data   map[string]Record
	nodeID string

	ring Ownership

	replicate func(key string, rec Record)
}

// OnWrite registers fn to be called (fire-and-forget, after the local
// write has already been applied) whenever Put or Delete succeeds.
// Store.Replicator uses this to mirror writes to successors when
// replication is enabled; nil (the default) means no mirroring.
func (s *Store) OnWrite(fn func(key string, rec Record)) {
	if fn == nil {
		s.replicate = nil
		return
	}
	s.replicate = func(key string, rec Record) { go fn(key, rec) }
}

// New creates a Store gating every operation against ring's ownership
// view. There is nothing to load from disk: the map starts empty and
// is populated as the node joins the ring and peers push data via
// ApplyRemote/ApplyRemoteDelete (replication, handoff).
func New(nodeID string, ringEngine Ownership) (*Store, error) {
	s := &Store{
		data:   make(map[string]Record),
		nodeID: nodeID,
		ring:   ringEngine,
	}

	if ringEngine != nil {
		ringEngine.OnPredecessorChange(s.onPredecessorChange)
	}
	return s, nil
}

// ─── Public API ───────────────────────────────────────────────────────────────

// Put stores or updates key's value, bumping its version. Returns
// ring.NotOwnerError if this node does not currently own key.
func (s *Store) Put(key string, id ring.Identifier, value string) (Record, error) {
	if s.ring != nil && !s.ring.Owns(id) {
		return Record{}, s.notOwnerErr(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data[key].Version + 1
	r := Record{Value: value, Version: next, UpdatedAt: time.Now().UTC()}
	s.data[key] = r
	if s.replicate != nil {
		s.replicate(key, r)
	}
	return r, nil
}

// Get returns the value for a key. Tombstoned and missing keys both
// report ok==false. Returns ring.NotOwnerError if this node does not
// currently own key.
func (s *Store) Get(key string, id ring.Identifier) (Record, bool, error) {
	if s.ring != nil && !s.ring.Owns(id) {
		return Record{}, false, s.notOwnerErr(id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[key]
	if !ok || r.Tombstone {
		return Record{}, false, nil
	}
	return r, true, nil
}

// GetRaw returns the stored Record exactly as it exists, tombstones
// included, bypassing the ownership gate. Used for handoff and
// replication where the caller (not the current arc) decides what's
// in scope.
func (s *Store) GetRaw(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[key]
	return r, ok
}

// Delete performs a soft delete: instead of removing the key, it
// writes a new Record with Tombstone=true, so the delete itself can be
// replicated and handed off like any other write.
func (s *Store) Delete(key string, id ring.Identifier) error {
	if s.ring != nil && !s.ring.Owns(id) {
		return s.notOwnerErr(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data[key].Version + 1
	r := Record{Version: next, Tombstone: true, UpdatedAt: time.Now().UTC()}
	s.data[key] = r
	if s.replicate != nil {
		s.replicate(key, r)
	}
	return nil
}

// ApplyRemote installs a record received from another node — via
// replication or a range transfer during handoff — without touching
// the ownership gate (the sender is trusted to have computed that
// already). incoming wins only if it is Record.newer than what's here.
func (s *Store) ApplyRemote(key string, incoming Record) (applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[key]; ok && !incoming.newer(existing) {
		return false, nil
	}

	s.data[key] = incoming
	return true, nil
}

// ApplyRemoteDelete removes key from this store's local map outright,
// bypassing the ownership gate exactly like ApplyRemote. Unlike
// Delete, it leaves no tombstone: it exists for the sending side of a
// handoff (§4.5), to purge a key once it has been transferred to its
// new owner, so the old node stops answering for it instead of
// leaking an inert copy that reappears in the next RangeOwnedBy scan.
func (s *Store) ApplyRemoteDelete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns all non-tombstoned keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k, r := range s.data {
		if !r.Tombstone {
			keys = append(keys, k)
		}
	}
	return keys
}

// RangeOwnedBy returns every entry (tombstones included) whose key
// hashes to an identifier satisfying keep — used to select the slice
// of this store's data that must move to a new owner on handoff.
func (s *Store) RangeOwnedBy(keep func(id ring.Identifier) bool, hash func(key string) ring.Identifier) map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Record)
	for k, r := range s.data {
		if keep(hash(k)) {
			out[k] = r
		}
	}
	return out
}

// onPredecessorChange is registered with the ring engine at
// construction and does nothing. The engine keeps a single hook, so
// when internal/node registers its own hook afterwards (the one that
// drives the actual transfer-range handoff) it replaces this one.
func (s *Store) onPredecessorChange(old, new *ring.Peer) {}

func (s *Store) notOwnerErr(id ring.Identifier) error {
	return &ring.NotOwnerError{Expected: s.ring.OwnerHint(id)}
}

// Close exists for symmetry with the rest of the module's subsystems,
// which all expose a shutdown hook; the store holds no resources of
// its own to release.
func (s *Store) Close() error {
	return nil
}
