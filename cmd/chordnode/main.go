// cmd/chordnode is the main entrypoint for a Chord ring peer.
//
// Configuration is entirely via flags/environment so a single binary
// can serve any role in the ring.
//
// Example — form a new ring:
//
//	./chordnode --id node1 --listen-port 6501 --http-port 8001
//
// Example — join through an existing peer:
//
//	./chordnode --id node2 --listen-port 6502 --http-port 8002 \
//	            --bootstrap-node localhost:6501
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chordkv/internal/config"
	"chordkv/internal/node"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("FATAL: config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	n, err := node.Start(ctx, cfg, cfg.NodeID)
	cancel()
	if err != nil {
		log.Fatalf("FATAL: start node: %v", err)
	}

	log.Printf("node %s listening: rpc :%d, http :%d", cfg.NodeID, cfg.ListenPort, cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down node", cfg.NodeID)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := n.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
