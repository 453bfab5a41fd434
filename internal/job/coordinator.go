package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chordkv/internal/executor"
	"chordkv/internal/objectstore"
	"chordkv/internal/ring"
)

// Router is the slice of ring.Engine the coordinator needs to decide
// whether a job belongs to this peer or must be forwarded.
type Router interface {
	Self() ring.Peer
	FindSuccessor(ctx context.Context, id ring.Identifier) (ring.Peer, error)
}

// RemoteCoordinator forwards submit/status to the peer that owns a
// job, implemented over internal/rpc by internal/chordrpc.
type RemoteCoordinator interface {
	SubmitJob(ctx context.Context, endpoint string, rec Record) (ID, error)
	JobStatus(ctx context.Context, endpoint string, id ID) (Record, bool, error)
}

// Coordinator owns every job this peer is currently responsible for,
// matching the teacher's mutex-guarded-map concurrency idiom (see
// internal/store.Store). Execution itself runs on a disjoint Pool.
type Coordinator struct {
	mu   sync.Mutex
	jobs map[ID]*Record

	router Router
	remote RemoteCoordinator
	exec   executor.Executor
	store  objectstore.Store
	pool   *Pool
}

// Config bundles Coordinator's construction dependencies.
type Config struct {
	Router        Router
	Remote        RemoteCoordinator
	Executor      executor.Executor
	ObjectStore   objectstore.Store
	Workers       int
	QueueCapacity int
}

// NewCoordinator constructs a Coordinator with its own worker pool.
func NewCoordinator(cfg Config) *Coordinator {
	c := &Coordinator{
		jobs:   make(map[ID]*Record),
		router: cfg.Router,
		remote: cfg.Remote,
		exec:   cfg.Executor,
		store:  cfg.ObjectStore,
	}
	c.pool = NewPool(cfg.Workers, cfg.QueueCapacity, c.recordPanic)
	return c
}

// Submit computes the job's id, routes it to its owner, and either
// schedules it locally or forwards it. Two submissions with identical
// fields always resolve to the same id.
func (c *Coordinator) Submit(ctx context.Context, taskName, sourceBucket, destBucket, params string) (ID, error) {
	task, err := executor.ParseTask(taskName)
	if err != nil {
		return ID{}, err
	}

	id := ComputeID(taskName, sourceBucket, destBucket, params)
	owner, err := c.router.FindSuccessor(ctx, id)
	if err != nil {
		return ID{}, fmt.Errorf("route submit: %w", err)
	}

	if owner.Equal(c.router.Self()) {
		c.submitLocal(id, task, taskName, sourceBucket, destBucket, params)
		return id, nil
	}

	rec := Record{JobID: id, TaskName: taskName, SourceBucket: sourceBucket, DestBucket: destBucket, Params: params}
	return c.remote.SubmitJob(ctx, owner.Endpoint, rec)
}

// submitLocal implements the dedup rule: a second submit of an id
// already Pending, Running or Succeeded is a no-op; Failed is a legal
// re-attempt that resets to Pending.
func (c *Coordinator) submitLocal(id ID, task executor.Task, taskName, sourceBucket, destBucket, params string) {
	c.mu.Lock()
	existing, ok := c.jobs[id]
	if ok && (existing.State == StatePending || existing.State == StateRunning || existing.State == StateSucceeded) {
		c.mu.Unlock()
		return
	}

	rec := &Record{
		JobID:          id,
		TaskName:       taskName,
		SourceBucket:   sourceBucket,
		DestBucket:     destBucket,
		Params:         params,
		SubmittedAt:    time.Now().UTC(),
		State:          StatePending,
		AssignedPeerID: c.router.Self().Endpoint,
	}
	c.jobs[id] = rec
	c.mu.Unlock()

	if err := c.pool.Submit(id, func(ctx context.Context) { c.execute(ctx, id, task) }); err != nil {
		c.mu.Lock()
		rec.State = StateFailed
		rec.Error = err.Error()
		c.mu.Unlock()
	}
}

func (c *Coordinator) execute(ctx context.Context, id ID, task executor.Task) {
	c.mu.Lock()
	rec, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	rec.State = StateRunning
	rec.Progress = 0
	source := objectstore.Artifact{Bucket: rec.SourceBucket, Key: rec.JobID.Hex()}
	dest := objectstore.Artifact{Bucket: rec.DestBucket, Key: rec.JobID.Hex()}
	params := rec.Params
	c.mu.Unlock()

	progress := func(pct int) {
		c.mu.Lock()
		if r, ok := c.jobs[id]; ok && r.State == StateRunning {
			r.Progress = pct
		}
		c.mu.Unlock()
	}

	result, err := c.exec.Execute(ctx, task, c.store, source, dest, params, progress)

	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.jobs[id]
	if !ok {
		return // purged or handed off mid-execution
	}
	if err != nil {
		r.State = StateFailed
		r.Error = err.Error()
		return
	}
	r.State = StateSucceeded
	r.Progress = 100
	r.Result = &result
}

// recordPanic is the Pool's onPanic hook: a panic never gets to
// persist its own failure state, so the pool reports it here instead.
func (c *Coordinator) recordPanic(id ID, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.jobs[id]; ok {
		r.State = StateFailed
		r.Error = (&ExecutorFailedError{Reason: reason}).Error()
	}
}

// Status routes to the owning peer and returns its record, or
// StateUnknown if nobody (reachable) holds one.
func (c *Coordinator) Status(ctx context.Context, id ID) (Record, error) {
	owner, err := c.router.FindSuccessor(ctx, id)
	if err != nil {
		return Record{State: StateUnknown}, nil
	}
	if owner.Equal(c.router.Self()) {
		c.mu.Lock()
		defer c.mu.Unlock()
		rec, ok := c.jobs[id]
		if !ok {
			return Record{JobID: id, State: StateUnknown}, nil
		}
		return *rec, nil
	}
	rec, found, err := c.remote.JobStatus(ctx, owner.Endpoint, id)
	if err != nil || !found {
		return Record{JobID: id, State: StateUnknown}, nil
	}
	return rec, nil
}

// ListLocalJobs returns every job this peer currently holds, whether
// or not it still owns the corresponding key. The HTTP aggregator fans
// this out across the ring to build /all_jobs.
func (c *Coordinator) ListLocalJobs() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, 0, len(c.jobs))
	for _, r := range c.jobs {
		out = append(out, *r)
	}
	return out
}

// AdoptRecord installs rec as received from another peer, used when a
// submit_job RPC lands here because this peer owns the id. Respects
// the same dedup rule as a local submit.
func (c *Coordinator) AdoptRecord(rec Record) {
	task, err := executor.ParseTask(rec.TaskName)
	if err != nil {
		return
	}
	c.submitLocal(rec.JobID, task, rec.TaskName, rec.SourceBucket, rec.DestBucket, rec.Params)
}

// HandleOwnershipChange implements "ownership changes mid-execution"
// (§4.6): jobs still running are left to finish locally, and their
// final state is written only to this peer's own record — it is not
// sent to the new owner, so a Status routed to the new owner does not
// see it; any record not currently running is dropped so a stale copy
// doesn't shadow the new owner's view.
func (c *Coordinator) HandleOwnershipChange(stillOwned func(id ID) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, r := range c.jobs {
		if r.State == StateRunning {
			continue
		}
		if !stillOwned(id) {
			delete(c.jobs, id)
		}
	}
}
