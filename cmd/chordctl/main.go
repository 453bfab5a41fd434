// cmd/chordctl is the CLI entry-point built with Cobra.
//
// Usage:
//
//	chordctl status                                         --server http://localhost:8001
//	chordctl finger                                          --server http://localhost:8001
//	chordctl buckets                                         --server http://localhost:8001
//	chordctl add-job fit raw processed --params threshold=2  --server http://localhost:8001
//	chordctl job-status <job_id>                             --server http://localhost:8001
//	chordctl all-jobs                                        --server http://localhost:8001
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"chordkv/internal/client"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "chordctl",
		Short: "CLI client for a chordkv ring",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8001", "chordkv node HTTP address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(statusCmd(), fingerCmd(), bucketsCmd(), addJobCmd(), jobStatusCmd(), allJobsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── status ───────────────────────────────────────────────────────────────────

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Status(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── finger ───────────────────────────────────────────────────────────────────

func fingerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finger",
		Short: "Show this node's finger table",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Finger(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── buckets ──────────────────────────────────────────────────────────────────

func bucketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List object-store buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Buckets(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── add-job ──────────────────────────────────────────────────────────────────

func addJobCmd() *cobra.Command {
	var params string
	cmd := &cobra.Command{
		Use:   "add-job <task> <source-bucket> <dest-bucket>",
		Short: "Submit a processing job",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.AddJob(context.Background(), args[0], args[1], args[2], params)
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&params, "params", "", "task-specific parameter string")
	return cmd
}

// ─── job-status ───────────────────────────────────────────────────────────────

func jobStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job-status <job_id>",
		Short: "Poll a job's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.JobStatus(context.Background(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── all-jobs ─────────────────────────────────────────────────────────────────

func allJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all-jobs",
		Short: "List jobs known across the ring (best-effort fan-out)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.GetRaw(context.Background(), "/all_jobs")
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
