package ring

import "sync"

// State holds one peer's view of the ring: its own identity, its
// predecessor, its successor list, and its finger table.
//
// Every mutator here enforces the small invariants the spec assigns to
// C3 (self-loop guards, list truncation, elision of self). It does NOT
// enforce the larger Chord invariants (ownership arcs, finger
// tightness) — those are Engine's job, which is why State exposes raw
// mutators rather than "do the right thing" chord operations.
//
// State is safe for concurrent use, but each accessor takes the lock
// on its own, so chaining several accessors does not give a mutually
// consistent view (e.g. "predecessor and successor[0] as of the same
// instant"); FingersAndSuccessors is the one combined read.
type State struct {
	mu sync.RWMutex

	self Peer

	predecessor *Peer // nil means unknown

	successorListR int
	successorList  []Peer

	fingerTable     []Peer // length HashWidthM
	nextFingerToFix int
}

// NewState creates node state for self, with an empty finger table and
// a successor list capped at r entries (r>=1).
func NewState(self Peer, r int) *State {
	if r < 1 {
		r = 1
	}
	return &State{
		self:           self,
		successorListR: r,
		fingerTable:    make([]Peer, HashWidthM),
	}
}

// Self returns this node's own peer handle. Immutable after construction.
func (s *State) Self() Peer {
	return s.self
}

// Predecessor returns the current predecessor, or nil if unknown.
func (s *State) Predecessor() *Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.predecessor == nil {
		return nil
	}
	p := *s.predecessor
	return &p
}

// SetPredecessor installs p as the predecessor. A bug guard: a node is
// never its own predecessor once the ring has more than one member, so
// setting self as predecessor is treated as "no predecessor" instead
// (the spec's bootstrap case predecessor==self is represented instead
// as predecessor==nil plus successorList[0]==self; the two are
// equivalent for routing purposes and this avoids every caller needing
// a "but what if it's me" special case).
func (s *State) SetPredecessor(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p != nil && p.Equal(s.self) {
		s.predecessor = nil
		return
	}
	if p == nil {
		s.predecessor = nil
		return
	}
	cp := *p
	s.predecessor = &cp
}

// SuccessorList returns a copy of the current successor list,
// successorList[0] first (the primary successor).
func (s *State) SuccessorList() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Peer, len(s.successorList))
	copy(out, s.successorList)
	return out
}

// PrimarySuccessor returns successorList[0], or self if the list is
// empty (the bootstrap / fully-detached case collapses to a singleton
// ring).
func (s *State) PrimarySuccessor() Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.successorList) == 0 {
		return s.self
	}
	return s.successorList[0]
}

// UpdateSuccessorList replaces the successor list with list, eliding
// self if present and truncating to the configured width r.
func (s *State) UpdateSuccessorList(list []Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Peer, 0, s.successorListR)
	for _, p := range list {
		if p.Equal(s.self) {
			continue
		}
		if len(out) >= s.successorListR {
			break
		}
		out = append(out, p)
	}
	s.successorList = out
}

// EvictPrimarySuccessor drops successorList[0] (declared unreachable)
// and promotes successorList[1], per the successor-failover rule. It
// reports whether any successor remains.
func (s *State) EvictPrimarySuccessor() (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.successorList) == 0 {
		return false
	}
	s.successorList = s.successorList[1:]
	return len(s.successorList) > 0
}

// Finger returns finger_table[i].
func (s *State) Finger(i int) Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerTable[i]
}

// SetFinger replaces finger_table[i]. Fingers are best-effort: no
// invariant is enforced on whether p is "tighter" than the prior value.
func (s *State) SetFinger(i int, p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerTable[i] = p
}

// FingersAndSuccessors returns the finger table and successor list
// concatenated, for closest_preceding_finger's combined scan, read as
// one consistent snapshot.
func (s *State) FingersAndSuccessors() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Peer, 0, len(s.fingerTable)+len(s.successorList))
	out = append(out, s.fingerTable...)
	out = append(out, s.successorList...)
	return out
}

// NextFingerToFix returns the fix_fingers cursor and advances it,
// wrapping modulo HashWidthM.
func (s *State) NextFingerToFix() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.nextFingerToFix
	s.nextFingerToFix = (s.nextFingerToFix + 1) % HashWidthM
	return i
}

// Reset clears predecessor and successor list, used when a node
// detaches entirely and must re-bootstrap or form a singleton ring.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predecessor = nil
	s.successorList = nil
	s.nextFingerToFix = 0
}
