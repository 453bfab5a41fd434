package chordrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"chordkv/internal/job"
	"chordkv/internal/rpc"
)

// JobClient adapts rpc.Client to job.RemoteCoordinator.
type JobClient struct {
	rpc *rpc.Client
}

func NewJobClient(c *rpc.Client) *JobClient {
	return &JobClient{rpc: c}
}

var _ job.RemoteCoordinator = (*JobClient)(nil)

func (c *JobClient) SubmitJob(ctx context.Context, endpoint string, rec job.Record) (job.ID, error) {
	raw, err := c.rpc.Call(ctx, endpoint, rpc.KindSubmitJob, submitJobRequest{Record: toWireJobRecord(rec)})
	if err != nil {
		return job.ID{}, err
	}
	var resp submitJobResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return job.ID{}, fmt.Errorf("%w: %v", rpc.ErrFrameCorrupt, err)
	}
	return parseJobID(resp.JobID)
}

func (c *JobClient) JobStatus(ctx context.Context, endpoint string, id job.ID) (job.Record, bool, error) {
	raw, err := c.rpc.Call(ctx, endpoint, rpc.KindJobStatus, jobStatusRequest{JobID: id.Hex()})
	if err != nil {
		return job.Record{}, false, err
	}
	var resp jobStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return job.Record{}, false, fmt.Errorf("%w: %v", rpc.ErrFrameCorrupt, err)
	}
	if !resp.Found {
		return job.Record{}, false, nil
	}
	rec, err := fromWireJobRecord(resp.Record)
	return rec, err == nil, err
}

// ListJobs fetches endpoint's locally held job records, used by the
// HTTP surface's /all_jobs aggregation.
func (c *JobClient) ListJobs(ctx context.Context, endpoint string) ([]job.Record, error) {
	raw, err := c.rpc.Call(ctx, endpoint, rpc.KindListJobs, struct{}{})
	if err != nil {
		return nil, err
	}
	var resp listJobsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", rpc.ErrFrameCorrupt, err)
	}
	out := make([]job.Record, 0, len(resp.Records))
	for _, wr := range resp.Records {
		rec, err := fromWireJobRecord(wr)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
