// Package node wires every component into one running peer: the ring
// engine, the peer RPC listener and client, the DHT store, the job
// coordinator, and the HTTP surface. This is the one package allowed
// to depend on all the others — everywhere else in the module exists
// specifically to keep that dependency graph from becoming a cycle.
package node

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chordkv/internal/api"
	"chordkv/internal/chordrpc"
	"chordkv/internal/config"
	"chordkv/internal/executor"
	"chordkv/internal/job"
	"chordkv/internal/objectstore"
	"chordkv/internal/ring"
	"chordkv/internal/rpc"
	"chordkv/internal/store"
)

// Node is one running peer: every subsystem plus its lifecycle.
type Node struct {
	cfg config.Config

	engine    *ring.Engine
	rpcSrv    *rpc.Server
	rpcCli    *rpc.Client
	kv        *store.Store
	coord     *job.Coordinator
	objects   objectstore.Store
	httpSrv   *http.Server
	jobClient *chordrpc.JobClient
}

// Start builds and launches a Node: opens the RPC listener, the store,
// the job coordinator, joins the ring (or forms a new one), and starts
// the HTTP surface. Callers must call Shutdown when done.
func Start(ctx context.Context, cfg config.Config, nodeID string) (*Node, error) {
	self := ring.Peer{
		ID:       ring.HashID([]byte(nodeID)),
		Endpoint: fmt.Sprintf("0.0.0.0:%d", cfg.ListenPort),
	}

	engineCfg := ring.EngineConfig{
		SuccessorListR:        cfg.SuccessorListR,
		StabilizeEvery:        time.Duration(cfg.TStabilizeMs) * time.Millisecond,
		FixFingersEvery:       time.Duration(cfg.TFixFingersMs) * time.Millisecond,
		CheckPredecessorEvery: time.Duration(cfg.TCheckPredecessorMs) * time.Millisecond,
		RPCTimeout:            2 * time.Second,
		FormSingletonOnDetach: cfg.FormSingletonOnDetach,
	}

	rpcClient := rpc.NewClient(2 * time.Second)
	ringClient := chordrpc.NewRingClient(rpcClient)
	engine := ring.NewEngine(self, ringClient, engineCfg, log.Default())

	kv, err := store.New(nodeID, engine)
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}
	if cfg.ReplicationFactor > 1 {
		replicator := store.NewReplicator(engine.State(), chordrpc.NewStoreClient(rpcClient), cfg.ReplicationFactor, log.Default())
		kv.OnWrite(replicator.Push)
	}

	var objects objectstore.Store
	if cfg.ObjectStoreEndpoint == "" {
		objects = objectstore.NewMemory("mem://" + nodeID)
	} else {
		// No real object-store client (e.g. S3/minio) exists in this
		// module: the configured endpoint is not dialed, this branch
		// uses the in-memory adapter too, and the endpoint is only
		// reported by GET /status.
		objects = objectstore.NewMemory("mem://" + nodeID)
	}

	jobClient := chordrpc.NewJobClient(rpcClient)
	coord := job.NewCoordinator(job.Config{
		Router:        engine,
		Remote:        jobClient,
		Executor:      executor.NewRegistry(),
		ObjectStore:   objects,
		Workers:       cfg.WorkerPoolSize,
		QueueCapacity: cfg.QueueCapacity,
	})

	n := &Node{
		cfg: cfg, engine: engine, rpcCli: rpcClient, kv: kv, coord: coord,
		objects: objects, jobClient: jobClient,
	}

	n.rpcSrv = rpc.NewServer(log.Default())
	chordrpc.RegisterRingHandlers(n.rpcSrv, engine)
	chordrpc.RegisterStoreHandlers(n.rpcSrv, kv)
	chordrpc.RegisterJobHandlers(n.rpcSrv, coord)
	if err := n.rpcSrv.Serve(fmt.Sprintf(":%d", cfg.ListenPort)); err != nil {
		return nil, fmt.Errorf("node: serve rpc: %w", err)
	}

	if err := n.joinRing(ctx); err != nil {
		n.rpcSrv.Close()
		return nil, err
	}
	engine.Start()
	engine.OnPredecessorChange(n.onPredecessorChange)

	n.startHTTP()
	return n, nil
}

func (n *Node) joinRing(ctx context.Context) error {
	if n.cfg.BootstrapNode == "" {
		return n.engine.Join(ctx, nil)
	}

	bootstrap := &ring.Peer{Endpoint: n.cfg.BootstrapNode}
	const maxAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		joinCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := n.engine.Join(joinCtx, bootstrap)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
	}
	if n.cfg.FormSingletonOnBootstrapFailure {
		log.Printf("node: bootstrap %s unreachable after %d attempts, forming a new ring", n.cfg.BootstrapNode, maxAttempts)
		return n.engine.Join(ctx, nil)
	}
	return fmt.Errorf("node: bootstrap %s unreachable after %d attempts: %w", n.cfg.BootstrapNode, maxAttempts, lastErr)
}

// onPredecessorChange is the single hook engine.OnPredecessorChange
// supports; it drives both topology-change reactions this node needs
// to take, in order: hand off keys that fell outside the new arc
// (§4.5), then prune job records this node no longer owns (§4.6).
// The engine calls it on its actor goroutine, which must not block, so
// both reactions (the handoff makes an RPC) run on their own goroutine.
func (n *Node) onPredecessorChange(old, newPred *ring.Peer) {
	go func() {
		n.handoff(old, newPred)
		n.coord.HandleOwnershipChange(func(id job.ID) bool {
			return n.engine.Owns(id)
		})
	}()
}

// handoff implements §4.5's predecessor-change trigger: whenever this
// node's arc shrinks (a new predecessor appears between the old one
// and self), the keys that fell outside the new arc belong to the
// node now sitting between them and must be pushed over. The sender
// only deletes its own copies once the transfer RPC has succeeded —
// until then the old node keeps answering for them, so a mid-flight
// failure never loses data.
func (n *Node) handoff(old, newPred *ring.Peer) {
	if newPred == nil {
		return
	}
	self := n.engine.State().Self()
	moving := n.kv.RangeOwnedBy(func(id ring.Identifier) bool {
		return !ring.InArc(id, newPred.ID, self.ID, true)
	}, func(key string) ring.Identifier { return ring.HashID([]byte(key)) })
	if len(moving) == 0 {
		return
	}

	storeClient := chordrpc.NewStoreClient(n.rpcCli)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := storeClient.TransferRange(ctx, newPred.Endpoint, moving); err != nil {
		log.Printf("node: handoff to %s failed: %v", newPred.Endpoint, err)
		return
	}
	for key := range moving {
		n.kv.ApplyRemoteDelete(key)
	}
}

func (n *Node) startHTTP() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery())

	handler := api.NewHandler(n.engine, n.coord, n.objects, n, n.cfg.ObjectStoreEndpoint)
	handler.Register(router)

	n.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", n.cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := n.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("node: http server error: %v", err)
		}
	}()
}

// ListJobs and Peers implement api.RingAggregator, so /all_jobs can
// fan out without the api package importing chordrpc directly.
func (n *Node) ListJobs(ctx context.Context, endpoint string) ([]job.Record, error) {
	return n.jobClient.ListJobs(ctx, endpoint)
}

func (n *Node) Peers() []ring.Peer {
	st := n.engine.State()
	out := append([]ring.Peer{}, st.SuccessorList()...)
	if pred := st.Predecessor(); pred != nil {
		out = append(out, *pred)
	}
	return out
}

// Shutdown stops every subsystem in reverse order of startup.
func (n *Node) Shutdown(ctx context.Context) error {
	if n.httpSrv != nil {
		n.httpSrv.Shutdown(ctx)
	}
	n.engine.Shutdown()
	n.rpcSrv.Close()
	n.rpcCli.Close()
	return n.kv.Close()
}
