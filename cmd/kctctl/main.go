// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command kctctl is the offline companion CLI for the curriculum
// engine. It runs the same validation rules the server runs, against
// local files, so curriculum authors can check content before
// submitting a version.
//
// # Usage
//
//	# Publish readiness for a content snapshot
//	kctctl readiness --content snapshot.json
//
//	# Mapping validation against class facts
//	kctctl mapping --content snapshot.json --classes classes.json
//
//	# Lint a validation policy file
//	kctctl policy lint custom_policy.yaml
//
//	# Diff two content snapshots
//	kctctl diff --base old.json --target new.json
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CurriculumEngine/pkg/logging"
)

// Exit codes. Scripts depend on the distinction between "the content
// failed validation" and "the tool itself failed".
const (
	ExitSuccess   = 0
	ExitViolation = 1
	ExitError     = 2
)

var (
	flagPolicyPath string
	flagJSONOutput bool
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "kctctl",
	Short: "Offline validation for curriculum content",
	Long: `kctctl runs the curriculum engine's validation rules against local
files: publish readiness checks, mapping validation against class
facts, policy linting, and content diffs.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPolicyPath, "policy", "",
		"validation policy YAML (default: embedded policy)")
	rootCmd.PersistentFlags().BoolVar(&flagJSONOutput, "json", false,
		"emit machine-readable JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")

	// Logging is configured after flag parsing so --verbose takes
	// effect.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := logging.LevelWarn
		if flagVerbose {
			level = logging.LevelDebug
		}
		logger := logging.New(logging.Config{Level: level, Service: "kctctl"})
		slog.SetDefault(logger.Slog())
	}
}
