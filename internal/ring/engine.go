package ring

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// EngineConfig bundles the tunables §6 exposes as configuration.
type EngineConfig struct {
	SuccessorListR int
	StabilizeEvery time.Duration
	FixFingersEvery time.Duration
	CheckPredecessorEvery time.Duration
	RPCTimeout time.Duration

	// FormSingletonOnDetach controls what happens when successor
	// failover exhausts the successor list entirely: if true, the
	// node gives up on its remembered peers and forms a brand new
	// singleton ring; if false (default) it asks each remembered
	// bootstrap peer, once, for its successor and rejoins through the
	// first that answers, falling back to a singleton ring only if
	// none does. See the "bootstrap unreachable" open question in
	// SPEC_FULL.md.
	FormSingletonOnDetach bool
}

// DefaultEngineConfig returns the §6 defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SuccessorListR:        4,
		StabilizeEvery:        1000 * time.Millisecond,
		FixFingersEvery:       500 * time.Millisecond,
		CheckPredecessorEvery: 1000 * time.Millisecond,
		RPCTimeout:            300 * time.Millisecond,
	}
}

// Engine is the Chord protocol engine (C4): a single long-lived actor
// owning all mutable ring state for one node. Every state-mutating
// operation — join, notify, stabilize, fix_fingers, check_predecessor
// — is funneled through one goroutine so the invariants in state.go
// are never touched by two operations at once. Pure reads
// (find_successor, closest_preceding_finger) also run on that
// goroutine, matching the spec's "protocol handlers are logically
// serialized per peer" concurrency model (§5) — this is not a
// performance-oriented design, it is a correctness-oriented one that
// mirrors the original's single-threaded cooperative runtime.
type Engine struct {
	state  *State
	client PeerClient
	cfg    EngineConfig
	logger *log.Logger

	onPredecessorChange func(old, new *Peer)

	rememberedPeers []string

	cmds chan func()
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewEngine constructs an engine for self, not yet started.
func NewEngine(self Peer, client PeerClient, cfg EngineConfig, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		state:  NewState(self, cfg.SuccessorListR),
		client: client,
		cfg:    cfg,
		logger: logger,
		cmds:   make(chan func(), 64),
		quit:   make(chan struct{}),
	}
}

// State exposes the underlying ring state for read-only callers (the
// HTTP surface's /finger endpoint, tests).
func (e *Engine) State() *State { return e.state }

// Self returns this node's own peer handle. Immutable after
// construction, so this is safe to call without going through the
// actor goroutine.
func (e *Engine) Self() Peer { return e.state.Self() }

// OnPredecessorChange registers a hook invoked (from the actor
// goroutine, so it must not block) whenever SetPredecessor installs a
// genuinely new predecessor. internal/node uses this to trigger
// handoff (§4.5). Only one hook is kept: a later call replaces an
// earlier one.
func (e *Engine) OnPredecessorChange(fn func(old, new *Peer)) {
	e.onPredecessorChange = fn
}

// Start launches the actor loop and the three periodic tasks.
// Must be called once.
func (e *Engine) Start() {
	e.StartActor()

	e.wg.Add(3)
	go e.tick(e.cfg.StabilizeEvery, func() { e.exec(e.stabilizeLocked) })
	go e.tick(e.cfg.FixFingersEvery, func() { e.exec(e.fixFingersLocked) })
	go e.tick(e.cfg.CheckPredecessorEvery, func() { e.exec(e.checkPredecessorLocked) })
}

// StartActor launches only the command-processing goroutine, without
// the periodic timers. Tests drive stabilize/fix_fingers/
// check_predecessor deterministically via StabilizeOnce and friends
// instead of waiting on wall-clock ticks.
func (e *Engine) StartActor() {
	e.wg.Add(1)
	go e.run()
}

// StabilizeOnce runs one round of the stabilization protocol
// synchronously.
func (e *Engine) StabilizeOnce() { e.exec(e.stabilizeLocked) }

// FixFingersOnce advances the fix_fingers cursor by one entry
// synchronously.
func (e *Engine) FixFingersOnce() { e.exec(e.fixFingersLocked) }

// CheckPredecessorOnce pings the current predecessor synchronously.
func (e *Engine) CheckPredecessorOnce() { e.exec(e.checkPredecessorLocked) }

// Shutdown stops the actor loop and periodic tasks. Safe to call once.
func (e *Engine) Shutdown() {
	close(e.quit)
	e.wg.Wait()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) tick(every time.Duration, fn func()) {
	defer e.wg.Done()
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			fn()
		case <-e.quit:
			return
		}
	}
}

// exec runs fn on the actor goroutine and blocks until it completes.
// Every exported operation below is built on exec so that state
// mutation is always single-writer. fn must not itself call exec
// (it would deadlock against the very goroutine it's running on).
func (e *Engine) exec(fn func()) {
	select {
	case <-e.quit:
		return
	default:
	}
	done := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(done) }:
	case <-e.quit:
		return
	}
	select {
	case <-done:
	case <-e.quit:
	}
}

// ─── Join ───────────────────────────────────────────────────────────────────

// Join forms a new ring (bootstrap == nil) or joins an existing one
// through bootstrap, per §4.4.
func (e *Engine) Join(ctx context.Context, bootstrap *Peer) error {
	var joinErr error
	e.exec(func() {
		if bootstrap == nil {
			e.state.SetPredecessor(nil)
			e.state.UpdateSuccessorList([]Peer{e.state.Self()})
			for i := 0; i < HashWidthM; i++ {
				e.state.SetFinger(i, e.state.Self())
			}
			return
		}
		e.rememberedPeers = append(e.rememberedPeers, bootstrap.Endpoint)

		succ, err := e.client.FindSuccessor(ctx, bootstrap.Endpoint, e.state.Self().ID)
		if err != nil {
			joinErr = err
			return
		}
		e.state.UpdateSuccessorList([]Peer{succ})
		if list, err := e.client.GetSuccessorList(ctx, succ.Endpoint); err == nil {
			merged := append([]Peer{succ}, list...)
			e.state.UpdateSuccessorList(merged)
		}
		e.state.SetPredecessor(nil) // stabilization will learn it
	})
	return joinErr
}

// ─── find_successor / closest_preceding_finger ─────────────────────────────

// FindSuccessor resolves the peer responsible for id, hopping through
// the network as needed. Bounded to O(log n) hops in expectation; on
// total failure returns ErrLookupExhausted.
func (e *Engine) FindSuccessor(ctx context.Context, id Identifier) (Peer, error) {
	var result Peer
	var resultErr error
	e.exec(func() {
		result, resultErr = e.findSuccessorLocked(ctx, id)
	})
	return result, resultErr
}

func (e *Engine) findSuccessorLocked(ctx context.Context, id Identifier) (Peer, error) {
	self := e.state.Self()
	succ0 := e.state.PrimarySuccessor()

	if InArc(id, self.ID, succ0.ID, true) {
		return succ0, nil
	}

	visited := map[string]bool{self.Endpoint: true}
	candidates := e.state.FingersAndSuccessors()
	hopFailed := false

	for hop := 0; hop < HashWidthM; hop++ {
		n := e.closestPrecedingFingerAmong(candidates, id, visited)
		if n == nil || n.Equal(self) {
			if hopFailed {
				// Every closer candidate we tried was unreachable.
				return Peer{}, ErrLookupExhausted
			}
			// No closer peer known — we are, as far as we know, the
			// owner, even though the arc check above disagreed; this
			// happens transiently right after a topology change.
			// Stabilization will correct it; tell the caller the
			// truth we have.
			return succ0, nil
		}
		visited[n.Endpoint] = true

		reply, err := e.client.FindSuccessor(ctx, n.Endpoint, id)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, ErrUnreachable) && !errors.Is(err, ErrTimeout) {
			return Peer{}, err
		}
		// This hop failed; try the next-closer candidate.
		candidates = removePeer(candidates, *n)
		hopFailed = true
	}
	return Peer{}, ErrLookupExhausted
}

// closest_preceding_finger scans finger table and successor list
// together from the farthest entry down, returning the first peer
// whose id lies strictly between self and id. If none qualifies,
// returns self.
func (e *Engine) ClosestPrecedingFinger(id Identifier) Peer {
	var result Peer
	e.exec(func() {
		candidates := e.state.FingersAndSuccessors()
		p := e.closestPrecedingFingerAmong(candidates, id, nil)
		if p == nil {
			result = e.state.Self()
			return
		}
		result = *p
	})
	return result
}

func (e *Engine) closestPrecedingFingerAmong(candidates []Peer, id Identifier, skip map[string]bool) *Peer {
	self := e.state.Self()
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		if c.IsZero() || c.Equal(self) {
			continue
		}
		if skip != nil && skip[c.Endpoint] {
			continue
		}
		if InArc(c.ID, self.ID, id, false) {
			cp := c
			return &cp
		}
	}
	return nil
}

func removePeer(peers []Peer, target Peer) []Peer {
	out := make([]Peer, 0, len(peers))
	for _, p := range peers {
		if !p.Equal(target) {
			out = append(out, p)
		}
	}
	return out
}

// ─── notify ─────────────────────────────────────────────────────────────────

// Notify handles an incoming notify(P): P believes it might be our
// predecessor.
func (e *Engine) Notify(from Peer) {
	e.exec(func() { e.notifyLocked(from) })
}

func (e *Engine) notifyLocked(from Peer) {
	self := e.state.Self()
	if from.Equal(self) {
		return
	}
	old := e.state.Predecessor()
	shouldAdopt := old == nil || InArc(from.ID, old.ID, self.ID, false)
	if !shouldAdopt {
		return
	}
	e.state.SetPredecessor(&from)
	if e.onPredecessorChange != nil {
		e.onPredecessorChange(old, &from)
	}
}

// ─── stabilize ──────────────────────────────────────────────────────────────

func (e *Engine) stabilizeLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RPCTimeout)
	defer cancel()

	self := e.state.Self()
	succ := e.state.PrimarySuccessor()
	if succ.Equal(self) {
		// Our own predecessor is our successor's predecessor here; a
		// peer that notified us is the first successor we can adopt.
		pred := e.state.Predecessor()
		if pred == nil {
			return // singleton ring, nothing to stabilize against
		}
		e.state.UpdateSuccessorList([]Peer{*pred})
		succ = *pred
	}

	x, err := e.client.GetPredecessor(ctx, succ.Endpoint)
	if err != nil {
		e.handleSuccessorFailure(err)
		return
	}
	if x != nil && InArc(x.ID, self.ID, succ.ID, false) {
		e.state.UpdateSuccessorList([]Peer{*x})
		succ = *x
	}

	if err := e.client.Notify(ctx, succ.Endpoint, self); err != nil {
		e.handleSuccessorFailure(err)
		return
	}

	if list, err := e.client.GetSuccessorList(ctx, succ.Endpoint); err == nil {
		merged := append([]Peer{succ}, list...)
		e.state.UpdateSuccessorList(merged)
	}
}

// handleSuccessorFailure implements the successor-failover rule: on
// Unreachable, evict the head of the successor list and promote the
// next; if the list is exhausted, the node is detached.
func (e *Engine) handleSuccessorFailure(err error) {
	if !errors.Is(err, ErrUnreachable) {
		return // a remote error or timeout isn't "peer dead"
	}
	if ok := e.state.EvictPrimarySuccessor(); ok {
		return
	}
	e.handleDetachment()
}

func (e *Engine) handleDetachment() {
	if e.cfg.FormSingletonOnDetach || len(e.rememberedPeers) == 0 {
		e.logger.Printf("ring: detached, forming singleton ring")
		e.state.Reset()
		e.state.UpdateSuccessorList([]Peer{e.state.Self()})
		return
	}
	e.logger.Printf("ring: detached, will retry bootstrap against %d remembered peer(s)", len(e.rememberedPeers))
	e.state.Reset()
	self := e.state.Self()
	for _, endpoint := range e.rememberedPeers {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RPCTimeout)
		succ, err := e.client.FindSuccessor(ctx, endpoint, self.ID)
		cancel()
		if err == nil {
			e.state.UpdateSuccessorList([]Peer{succ})
			return
		}
	}
	// No remembered peer answered: the empty successor list leaves this
	// node running as a singleton ring.
	e.logger.Printf("ring: no remembered peer answered, continuing as a singleton ring")
}

// ─── fix_fingers ────────────────────────────────────────────────────────────

func (e *Engine) fixFingersLocked() {
	i := e.state.NextFingerToFix()
	target := e.state.Self().ID.AddPow2(i)
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RPCTimeout)
	defer cancel()
	p, err := e.findSuccessorLocked(ctx, target)
	if err != nil {
		return // errors swallowed; stale finger left in place
	}
	e.state.SetFinger(i, p)
}

// ─── ownership ──────────────────────────────────────────────────────────────

// Owns reports whether key falls within this node's currently known
// arc (predecessor, self]. An unknown predecessor is treated as "I own
// everything", matching the bootstrap/singleton-ring invariant.
func (e *Engine) Owns(key Identifier) bool {
	self := e.state.Self()
	pred := e.state.Predecessor()
	if pred == nil {
		return true
	}
	return InArc(key, pred.ID, self.ID, true)
}

// OwnerHint returns this node's best local guess at who owns key when
// Owns(key) is false, without performing a full lookup: the successor
// is the right answer whenever key lies just past this node's arc,
// which is the common case for a NotOwnerError right after a topology
// change. Callers that need a guaranteed-correct answer should run
// FindSuccessor instead.
func (e *Engine) OwnerHint(key Identifier) Peer {
	return e.State().PrimarySuccessor()
}

// ─── check_predecessor ──────────────────────────────────────────────────────

func (e *Engine) checkPredecessorLocked() {
	pred := e.state.Predecessor()
	if pred == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RPCTimeout)
	defer cancel()
	if err := e.client.Ping(ctx, pred.Endpoint); err != nil && errors.Is(err, ErrUnreachable) {
		e.state.SetPredecessor(nil)
	}
}
