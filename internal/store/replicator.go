package store

import (
	"context"
	"log"
	"sync"
	"time"

	"chordkv/internal/ring"
)

// SuccessorSource is the slice of ring.Engine the Replicator needs: the
// current successor list, in order, primary first.
type SuccessorSource interface {
	SuccessorList() []ring.Peer
}

// Pusher delivers a batch of records to a remote node's store,
// bypassing that node's ownership check — exactly TransferRange's
// contract, reused here instead of a separate replicate RPC.
type Pusher interface {
	TransferRange(ctx context.Context, endpoint string, entries map[string]Record) error
}

// Replicator mirrors every local_put/local_delete to the first k-1
// successors, fire-and-forget, when ReplicationFactor > 1. This is the
// teacher's quorum replication idiom (goroutine-per-peer, joined with
// a WaitGroup) adapted to push over the peer RPC transport instead
// of HTTP, and relaxed from "blocking write quorum" to "best-effort
// mirror" since nothing downstream of local_put treats a replica's ack
// as part of correctness — ownership, not quorum, is this system's
// source of truth.
type Replicator struct {
	successors SuccessorSource
	pusher     Pusher
	k          int
	timeout    time.Duration
	logger     *log.Logger
}

// NewReplicator creates a Replicator mirroring writes to the first k-1
// successors (k counts this node). k<=1 makes Push a no-op
// (replication disabled).
func NewReplicator(successors SuccessorSource, pusher Pusher, k int, logger *log.Logger) *Replicator {
	if logger == nil {
		logger = log.Default()
	}
	return &Replicator{successors: successors, pusher: pusher, k: k, timeout: 3 * time.Second, logger: logger}
}

// Push fans rec out to the first k-1 successors (k including self).
// Failures are logged, not returned: a replica falling behind is
// recovered by the normal handoff/TransferRange path the next time
// ownership shifts, not by retrying here.
func (r *Replicator) Push(key string, rec Record) {
	if r.k <= 1 || r.successors == nil || r.pusher == nil {
		return
	}
	targets := r.successors.SuccessorList()
	width := r.k - 1
	if width > len(targets) {
		width = len(targets)
	}
	if width <= 0 {
		return
	}

	var wg sync.WaitGroup
	for _, peer := range targets[:width] {
		wg.Add(1)
		go func(p ring.Peer) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			if err := r.pusher.TransferRange(ctx, p.Endpoint, map[string]Record{key: rec}); err != nil {
				r.logger.Printf("store: replicate %s to %s: %v", key, p.Endpoint, err)
			}
		}(peer)
	}
	wg.Wait()
}
