// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/recall-dev/recall/internal/config"
)

// NewRootCmd creates the root recall command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recall",
		Short:         "Recall — hybrid knowledge coordination engine",
		Long:          "Recall routes queries across keyword, semantic, and hierarchical retrieval over a bounded store of learned solutions, with circuit-breaker guarded language-model generation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newServeCmd(),
		newQueryCmd(),
		newGCCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig resolves the config path (flag first, then discovery with
// bootstrap) and loads it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		if defaultPath, err := config.DefaultConfigPath(); err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				cfgPath = defaultPath
			} else if written := config.BootstrapConfig(); written != "" {
				cfgPath = written
			}
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(cfgPath)
	return cfg, nil
}

// setupLogging configures the process-wide slog default.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
