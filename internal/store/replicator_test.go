package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"chordkv/internal/ring"
)

type fakeSuccessors struct{ peers []ring.Peer }

func (f fakeSuccessors) SuccessorList() []ring.Peer { return f.peers }

type recordingPusher struct {
	mu   sync.Mutex
	sent map[string]map[string]Record // endpoint -> key -> record
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{sent: make(map[string]map[string]Record)}
}

func (p *recordingPusher) TransferRange(ctx context.Context, endpoint string, entries map[string]Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent[endpoint] == nil {
		p.sent[endpoint] = make(map[string]Record)
	}
	for k, r := range entries {
		p.sent[endpoint][k] = r
	}
	return nil
}

func (p *recordingPusher) got(endpoint, key string) (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.sent[endpoint][key]
	return r, ok
}

func TestReplicatorPushesToFirstKMinusOneSuccessors(t *testing.T) {
	peers := []ring.Peer{
		{Endpoint: "peer-a"}, {Endpoint: "peer-b"}, {Endpoint: "peer-c"},
	}
	pusher := newRecordingPusher()
	rep := NewReplicator(fakeSuccessors{peers}, pusher, 3, nil) // k=3 -> 2 successors

	rec := Record{Value: "hello", Version: 1, UpdatedAt: time.Now().UTC()}
	rep.Push("k1", rec)

	if _, ok := pusher.got("peer-a", "k1"); !ok {
		t.Fatalf("expected peer-a to receive the replica")
	}
	if _, ok := pusher.got("peer-b", "k1"); !ok {
		t.Fatalf("expected peer-b to receive the replica")
	}
	if _, ok := pusher.got("peer-c", "k1"); ok {
		t.Fatalf("peer-c should not receive a replica when k=3 caps width at 2")
	}
}

func TestReplicatorDisabledWhenKIsOne(t *testing.T) {
	pusher := newRecordingPusher()
	rep := NewReplicator(fakeSuccessors{[]ring.Peer{{Endpoint: "peer-a"}}}, pusher, 1, nil)

	rep.Push("k1", Record{Value: "v", Version: 1})

	if _, ok := pusher.got("peer-a", "k1"); ok {
		t.Fatalf("replication factor 1 must not push anywhere")
	}
}

func TestReplicatorCapsWidthToAvailableSuccessors(t *testing.T) {
	pusher := newRecordingPusher()
	rep := NewReplicator(fakeSuccessors{[]ring.Peer{{Endpoint: "only-one"}}}, pusher, 5, nil)

	rep.Push("k1", Record{Value: "v", Version: 1})

	if _, ok := pusher.got("only-one", "k1"); !ok {
		t.Fatalf("expected the single successor to receive the replica despite k=5")
	}
}
