package chordrpc

import (
	"time"

	"chordkv/internal/job"
	"chordkv/internal/objectstore"
	"chordkv/internal/ring"
)

func parseJobID(s string) (job.ID, error) { return ring.ParseIdentifier(s) }

type wireArtifact struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	URL    string `json:"url"`
}

type wireJobRecord struct {
	JobID          string        `json:"job_id"`
	TaskName       string        `json:"task_name"`
	SourceBucket   string        `json:"source_bucket"`
	DestBucket     string        `json:"dest_bucket"`
	Params         string        `json:"params"`
	SubmittedAt    int64         `json:"submitted_at_unix_nano"`
	State          string        `json:"state"`
	Progress       int           `json:"progress"`
	Result         *wireArtifact `json:"result,omitempty"`
	Error          string        `json:"error,omitempty"`
	AssignedPeerID string        `json:"assigned_peer_id"`
}

func stateToWire(s job.State) string { return s.String() }

func stateFromWire(s string) job.State {
	switch s {
	case "Pending":
		return job.StatePending
	case "Running":
		return job.StateRunning
	case "Succeeded":
		return job.StateSucceeded
	case "Failed":
		return job.StateFailed
	default:
		return job.StateUnknown
	}
}

func toWireJobRecord(r job.Record) wireJobRecord {
	w := wireJobRecord{
		JobID:          r.JobID.Hex(),
		TaskName:       r.TaskName,
		SourceBucket:   r.SourceBucket,
		DestBucket:     r.DestBucket,
		Params:         r.Params,
		SubmittedAt:    r.SubmittedAt.UnixNano(),
		State:          stateToWire(r.State),
		Progress:       r.Progress,
		Error:          r.Error,
		AssignedPeerID: r.AssignedPeerID,
	}
	if r.Result != nil {
		w.Result = &wireArtifact{Bucket: r.Result.Bucket, Key: r.Result.Key, URL: r.Result.URL}
	}
	return w
}

func fromWireJobRecord(w wireJobRecord) (job.Record, error) {
	id, err := parseJobID(w.JobID)
	if err != nil {
		return job.Record{}, err
	}
	r := job.Record{
		JobID:          id,
		TaskName:       w.TaskName,
		SourceBucket:   w.SourceBucket,
		DestBucket:     w.DestBucket,
		Params:         w.Params,
		SubmittedAt:    time.Unix(0, w.SubmittedAt).UTC(),
		State:          stateFromWire(w.State),
		Progress:       w.Progress,
		Error:          w.Error,
		AssignedPeerID: w.AssignedPeerID,
	}
	if w.Result != nil {
		r.Result = &objectstore.Artifact{Bucket: w.Result.Bucket, Key: w.Result.Key, URL: w.Result.URL}
	}
	return r, nil
}

type submitJobRequest struct {
	Record wireJobRecord `json:"record"`
}

type submitJobResponse struct {
	JobID string `json:"job_id"`
}

type jobStatusRequest struct {
	JobID string `json:"job_id"`
}

type jobStatusResponse struct {
	Record wireJobRecord `json:"record"`
	Found  bool          `json:"found"`
}

type listJobsResponse struct {
	Records []wireJobRecord `json:"records"`
}
