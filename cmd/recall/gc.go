// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recall-dev/recall/internal/gc"
)

func newGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Manage knowledge-store garbage collection",
	}

	cmd.PersistentFlags().String("address", "127.0.0.1:8787", "engine address")

	cmd.AddCommand(newGCRunCmd())
	cmd.AddCommand(newGCStatsCmd())

	return cmd
}

func newGCRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Trigger a full garbage-collection cycle",
		RunE:  runGCRun,
	}
}

func newGCStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge-store size statistics",
		RunE:  runGCStats,
	}
}

func runGCRun(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	client := newEngineClient(addr)
	var report gc.Report
	if err := client.postJSON("/api/v1/gc/run", nil, &report); err != nil {
		if errors.Is(err, ErrEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running. Start it with: recall serve\n", addr)
			return nil
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "expired:    %d\n", report.Expired)
	_, _ = fmt.Fprintf(out, "pruned:     %d\n", report.Pruned)
	_, _ = fmt.Fprintf(out, "duplicates: %d\n", report.Duplicates)
	_, _ = fmt.Fprintf(out, "orphans:    %d\n", report.Orphans)
	return nil
}

func runGCStats(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	client := newEngineClient(addr)
	var stats struct {
		Count       int64   `json:"count"`
		AvgValue    float64 `json:"avg_value"`
		OldestAt    string  `json:"oldest_at"`
		NewestAt    string  `json:"newest_at"`
		SizeBytes   int64   `json:"size_bytes"`
		MaxEntries  int     `json:"max_entries"`
		Utilization float64 `json:"utilization"`
	}
	if err := client.getJSON("/api/v1/gc/stats", &stats); err != nil {
		if errors.Is(err, ErrEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running. Start it with: recall serve\n", addr)
			return nil
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "solutions:   %d / %d (%.0f%% full)\n",
		stats.Count, stats.MaxEntries, stats.Utilization*100)
	_, _ = fmt.Fprintf(out, "avg value:   %.2f\n", stats.AvgValue)
	if stats.OldestAt != "" {
		_, _ = fmt.Fprintf(out, "oldest:      %s\n", stats.OldestAt)
	}
	if stats.NewestAt != "" {
		_, _ = fmt.Fprintf(out, "newest:      %s\n", stats.NewestAt)
	}
	_, _ = fmt.Fprintf(out, "size:        %d bytes\n", stats.SizeBytes)
	return nil
}
