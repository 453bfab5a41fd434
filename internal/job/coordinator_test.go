package job

import (
	"bytes"
	"context"
	"testing"
	"time"

	"chordkv/internal/executor"
	"chordkv/internal/objectstore"
	"chordkv/internal/ring"
)

// selfRouter always reports the job as locally owned — the coordinator
// tests below exercise submission/execution/dedup, not routing (ring's
// own tests cover find_successor).
type selfRouter struct{ self ring.Peer }

func (r selfRouter) Self() ring.Peer { return r.self }
func (r selfRouter) FindSuccessor(ctx context.Context, id ring.Identifier) (ring.Peer, error) {
	return r.self, nil
}

type noRemote struct{}

func (noRemote) SubmitJob(ctx context.Context, endpoint string, rec Record) (ID, error) {
	panic("not reachable in these tests")
}
func (noRemote) JobStatus(ctx context.Context, endpoint string, id ID) (Record, bool, error) {
	panic("not reachable in these tests")
}

func newTestCoordinator(t *testing.T) (*Coordinator, *objectstore.Memory) {
	t.Helper()
	store := objectstore.NewMemory("mem://test")
	store.PutObject(context.Background(), "in", "seed", bytes.NewReader([]byte("hello world")))
	c := NewCoordinator(Config{
		Router:        selfRouter{self: ring.Peer{Endpoint: "self:6501"}},
		Remote:        noRemote{},
		Executor:      executor.NewRegistry(),
		ObjectStore:   store,
		Workers:       2,
		QueueCapacity: 8,
	})
	return c, store
}

func waitForTerminal(t *testing.T, c *Coordinator, id ID) Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := c.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if rec.State == StateSucceeded || rec.State == StateFailed {
			return rec
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %v never reached a terminal state", id)
	return Record{}
}

func TestSubmitRunsToSuccess(t *testing.T) {
	c, store := newTestCoordinator(t)
	// The coordinator reads a job's source object under the job's id.
	store.PutObject(context.Background(), "in", ComputeID("map", "in", "out", "").Hex(), bytes.NewReader([]byte("hello world")))
	id, err := c.Submit(context.Background(), "map", "in", "out", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec := waitForTerminal(t, c, id)
	if rec.State != StateSucceeded {
		t.Fatalf("state = %v, want Succeeded (err=%q)", rec.State, rec.Error)
	}
	if rec.Result == nil {
		t.Fatalf("expected a result artifact")
	}
}

func TestSubmitUnknownTaskRejected(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, err := c.Submit(context.Background(), "not-a-task", "in", "out", "")
	if err == nil {
		t.Fatalf("expected ErrUnknownTask")
	}
}

func TestDuplicateSubmitDedups(t *testing.T) {
	c, store := newTestCoordinator(t)
	store.PutObject(context.Background(), "in", ComputeID("fit", "in", "out", "p").Hex(), bytes.NewReader([]byte("hello world")))
	id1, err := c.Submit(context.Background(), "fit", "in", "out", "p")
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	id2, err := c.Submit(context.Background(), "fit", "in", "out", "p")
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %v != %v", id1, id2)
	}
	waitForTerminal(t, c, id1)

	// A third submit after Succeeded is a no-op: still the same id,
	// and still exactly one job record.
	id3, err := c.Submit(context.Background(), "fit", "in", "out", "p")
	if err != nil || id3 != id1 {
		t.Fatalf("submit 3: id=%v err=%v", id3, err)
	}
	if got := len(c.ListLocalJobs()); got != 1 {
		t.Fatalf("local job count = %d, want 1", got)
	}
}

func TestFailedJobIsLegalReattempt(t *testing.T) {
	c, store := newTestCoordinator(t)
	_ = store // no "does-not-exist" bucket exists, so Execute will fail reading source

	id, err := c.Submit(context.Background(), "map", "does-not-exist", "out", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec := waitForTerminal(t, c, id)
	if rec.State != StateFailed {
		t.Fatalf("state = %v, want Failed", rec.State)
	}

	// Re-attempt: same id, should be accepted and reset to Pending/Running.
	id2, err := c.Submit(context.Background(), "map", "does-not-exist", "out", "")
	if err != nil || id2 != id {
		t.Fatalf("reattempt: id=%v err=%v", id2, err)
	}
}
