// Kestrel - Source-of-wealth risk assessment driven by a versioned rulepack.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var debug bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kestrel",
		Short:         "Source-of-wealth risk assessment engine",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(loggingConfig(os.Getenv, debug))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newValidateCmd())
	return root
}

// setupLogger installs the process logger. Logs go to stderr so that command
// output on stdout stays machine-readable.
func setupLogger(cfg domain.LoggingConfig) {
	slog.SetDefault(newLogger(os.Stderr, cfg))
}

func newLogger(w io.Writer, cfg domain.LoggingConfig) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
