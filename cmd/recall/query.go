// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recall-dev/recall/internal/router"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Route a query through a running engine",
		Long: "Send a query to a running recall engine and print the routed " +
			"search results, and optionally a generated response.",
		Args: cobra.MinimumNArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().String("address", "127.0.0.1:8787", "engine address")
	cmd.Flags().String("mode", "", "force a route: keyword, semantic, tree, hybrid, sql")
	cmd.Flags().Bool("generate", false, "generate a response from the retrieved context")
	cmd.Flags().Int("limit", 0, "maximum results to return (0 uses the engine default)")
	cmd.Flags().Bool("remote", false, "prefer the remote backend for generation")
	cmd.Flags().Bool("local", false, "prefer the local backend for generation")
	cmd.Flags().Bool("json", false, "print the raw JSON result")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	mode, _ := cmd.Flags().GetString("mode")
	generate, _ := cmd.Flags().GetBool("generate")
	limit, _ := cmd.Flags().GetInt("limit")
	remote, _ := cmd.Flags().GetBool("remote")
	local, _ := cmd.Flags().GetBool("local")
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	body := map[string]any{
		"query":    strings.Join(args, " "),
		"generate": generate,
	}
	if mode != "" {
		body["mode"] = mode
	}
	if limit > 0 {
		body["limit"] = limit
	}
	if remote {
		body["force_remote"] = true
	}
	if local {
		body["prefer_local"] = true
	}

	client := newEngineClient(addr)
	var result router.Result
	if err := client.postJSON("/api/v1/query", body, &result); err != nil {
		if errors.Is(err, ErrEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Engine at %s is not running. Start it with: recall serve\n", addr)
			return nil
		}
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(out, result)
	return nil
}

func printResult(out io.Writer, result router.Result) {
	_, _ = fmt.Fprintf(out, "route: %s  (%dms, interaction %s)\n",
		result.Route, result.LatencyMS, result.InteractionID)

	if result.Response != "" {
		_, _ = fmt.Fprintf(out, "\n%s\n", result.Response)
	}

	if len(result.Results) > 0 {
		_, _ = fmt.Fprintf(out, "\nresults:\n")
		for _, r := range result.Results {
			text := r.Text
			if len(text) > 120 {
				text = text[:117] + "..."
			}
			_, _ = fmt.Fprintf(out, "  %.3f  %s\n", r.Score, text)
		}
	}

	if result.Discovery != "" && result.Response == "" {
		_, _ = fmt.Fprintf(out, "\n%s\n", result.Discovery)
	}
	if result.GapRecorded {
		_, _ = fmt.Fprintln(out, "\n(no strong match found; recorded as a knowledge gap)")
	}
}
