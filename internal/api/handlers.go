// Package api wires up the Gin HTTP router serving the external
// front-end: status, finger table, bucket listing, and job submission
// endpoints. It is unrelated to peer-to-peer traffic, which lives in
// internal/rpc.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chordkv/internal/job"
	"chordkv/internal/objectstore"
	"chordkv/internal/ring"
)

// JobSubmitter is the slice of job.Coordinator the HTTP surface needs.
type JobSubmitter interface {
	Submit(ctx context.Context, taskName, sourceBucket, destBucket, params string) (job.ID, error)
	Status(ctx context.Context, id job.ID) (job.Record, error)
	ListLocalJobs() []job.Record
}

// RingAggregator fans a request out across the ring, used only by
// /all_jobs; a single-peer deployment gets back just its own records.
type RingAggregator interface {
	ListJobs(ctx context.Context, endpoint string) ([]job.Record, error)
	Peers() []ring.Peer
}

// Handler holds every dependency the HTTP surface reads from.
type Handler struct {
	engine  *ring.Engine
	jobs    JobSubmitter
	objects objectstore.Store
	agg     RingAggregator

	objectStoreEndpoint string
}

// NewHandler creates a Handler.
func NewHandler(engine *ring.Engine, jobs JobSubmitter, objects objectstore.Store, agg RingAggregator, objectStoreEndpoint string) *Handler {
	return &Handler{engine: engine, jobs: jobs, objects: objects, agg: agg, objectStoreEndpoint: objectStoreEndpoint}
}

// Register mounts every route named in §6 on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.Dashboard)
	r.GET("/status", h.Status)
	r.GET("/finger", h.Finger)
	r.GET("/buckets", h.Buckets)
	r.POST("/add_job", h.AddJob)
	r.GET("/job_status/:job_id", h.JobStatus)
	r.GET("/all_jobs", h.AllJobs)
}

// Dashboard serves a placeholder page; the real dashboard template is
// out of scope (§1's Non-goals).
func (h *Handler) Dashboard(c *gin.Context) {
	c.String(http.StatusOK, "chordkv node")
}

// Status handles GET /status.
func (h *Handler) Status(c *gin.Context) {
	minio := "offline"
	if h.objectStoreEndpoint != "" {
		minio = "online"
	} else if h.objects != nil {
		minio = "online" // in-memory adapter counts as reachable
	}
	c.JSON(http.StatusOK, gin.H{
		"chord":        "online",
		"minio":        minio,
		"minioAddress": h.objectStoreEndpoint,
	})
}

// Finger handles GET /finger.
func (h *Handler) Finger(c *gin.Context) {
	ids := make([]string, ring.HashWidthM)
	for i := 0; i < ring.HashWidthM; i++ {
		ids[i] = h.engine.State().Finger(i).ID.Hex()
	}
	c.JSON(http.StatusOK, gin.H{"finger": ids})
}

// Buckets handles GET /buckets.
func (h *Handler) Buckets(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	buckets, err := h.objects.ListBuckets(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

// AddJob handles POST /add_job.
func (h *Handler) AddJob(c *gin.Context) {
	var body struct {
		Task         string `json:"task" binding:"required"`
		SourceBucket string `json:"source_bucket" binding:"required"`
		DestBucket   string `json:"dest_bucket" binding:"required"`
		Params       string `json:"params"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.jobs.Submit(c.Request.Context(), body.Task, body.SourceBucket, body.DestBucket, body.Params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id.Hex()})
}

// JobStatus handles GET /job_status/:job_id.
func (h *Handler) JobStatus(c *gin.Context) {
	id, err := ring.ParseIdentifier(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.jobs.Status(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"state": rec.State.String()}
	if rec.State == job.StateRunning {
		resp["progress"] = rec.Progress
	}
	if rec.Result != nil {
		resp["result"] = rec.Result.URL
	}
	if rec.Error != "" {
		resp["error"] = rec.Error
	}
	c.JSON(http.StatusOK, resp)
}

// AllJobs handles GET /all_jobs, fanning out to every peer this node
// currently knows about (successor list + predecessor) and merging
// with its own local records.
func (h *Handler) AllJobs(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	all := h.jobs.ListLocalJobs()
	if h.agg != nil {
		seen := map[string]bool{h.engine.State().Self().Endpoint: true}
		for _, p := range h.agg.Peers() {
			if p.IsZero() || seen[p.Endpoint] {
				continue
			}
			seen[p.Endpoint] = true
			recs, err := h.agg.ListJobs(ctx, p.Endpoint)
			if err != nil {
				continue // best-effort aggregation; an unreachable peer is just omitted
			}
			all = append(all, recs...)
		}
	}

	out := make([]gin.H, 0, len(all))
	for _, rec := range all {
		out = append(out, gin.H{
			"job_id": rec.JobID.Hex(),
			"state":  rec.State.String(),
			"task":   rec.TaskName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}
