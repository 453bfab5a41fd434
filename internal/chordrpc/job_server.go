package chordrpc

import (
	"encoding/json"

	"chordkv/internal/job"
	"chordkv/internal/rpc"
)

// RegisterJobHandlers wires submit_job/job_status/list_jobs onto
// server, dispatching into coord. A received submit_job is installed
// here through AdoptRecord without a fresh ownership lookup: the
// sender routed it to this peer, and AdoptRecord applies the same
// dedup rule as a local submit. job_status answers from this peer's
// local records only.
func RegisterJobHandlers(server *rpc.Server, coord *job.Coordinator) {
	server.Handle(rpc.KindSubmitJob, func(body json.RawMessage) (any, error) {
		var req submitJobRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: "bad submit_job request: " + err.Error()}
		}
		rec, err := fromWireJobRecord(req.Record)
		if err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: err.Error()}
		}
		coord.AdoptRecord(rec)
		return submitJobResponse{JobID: rec.JobID.Hex()}, nil
	})

	server.Handle(rpc.KindJobStatus, func(body json.RawMessage) (any, error) {
		var req jobStatusRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: "bad job_status request: " + err.Error()}
		}
		id, err := parseJobID(req.JobID)
		if err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: err.Error()}
		}
		found := true
		for _, r := range coord.ListLocalJobs() {
			if r.JobID == id {
				return jobStatusResponse{Record: toWireJobRecord(r), Found: true}, nil
			}
		}
		found = false
		return jobStatusResponse{Found: found}, nil
	})

	server.Handle(rpc.KindListJobs, func(json.RawMessage) (any, error) {
		recs := coord.ListLocalJobs()
		out := make([]wireJobRecord, len(recs))
		for i, r := range recs {
			out[i] = toWireJobRecord(r)
		}
		return listJobsResponse{Records: out}, nil
	})
}
