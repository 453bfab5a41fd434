// Package job implements the job coordinator (C6): computing a job's
// deterministic id, routing submissions and status queries to the
// peer that owns that id, and running owned jobs on a bounded worker
// pool disjoint from the networking goroutines.
package job

import (
	"errors"
	"fmt"
	"time"

	"chordkv/internal/objectstore"
	"chordkv/internal/ring"
)

// ID is a job's deterministic identifier: hash(task_name ||
// source_bucket || dest_bucket || params). Identical submissions
// collide onto the same ID, which is what makes dedup possible.
type ID = ring.Identifier

// ComputeID derives a job's ID from its defining fields.
func ComputeID(taskName, sourceBucket, destBucket, params string) ID {
	data := []byte(taskName + "\x00" + sourceBucket + "\x00" + destBucket + "\x00" + params)
	return ring.HashID(data)
}

// State is where a job sits in its lifecycle.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	// StateUnknown is never stored — it's what Status returns when no
	// peer holds a record for an id, e.g. during a handoff window.
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Record is one job's full descriptor, the specialization of a DHT
// record the spec names.
type Record struct {
	JobID          ID                   `json:"job_id"`
	TaskName       string               `json:"task_name"`
	SourceBucket   string               `json:"source_bucket"`
	DestBucket     string               `json:"dest_bucket"`
	Params         string               `json:"params"`
	SubmittedAt    time.Time            `json:"submitted_at"`
	State          State                `json:"state"`
	Progress       int                  `json:"progress"`
	Result         *objectstore.Artifact `json:"result,omitempty"`
	Error          string               `json:"error,omitempty"`
	AssignedPeerID string               `json:"assigned_peer_id"`
}

// Errors surfaced on the job record and to callers, per §7's taxonomy.
var (
	ErrOverloaded          = errors.New("job: pending queue at high-water mark")
	ErrArtifactUnavailable = errors.New("job: result artifact unavailable")
)

// ExecutorFailedError wraps a panic or a fatal executor error into the
// job record's Error field, distinct from a plain string so callers
// can errors.As it back out if they caught it directly.
type ExecutorFailedError struct {
	Reason string
}

func (e *ExecutorFailedError) Error() string {
	return fmt.Sprintf("executor failed: %s", e.Reason)
}
