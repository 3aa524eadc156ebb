// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
)

var readinessContentPath string

var readinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Run publish readiness checks on a content snapshot",
	Long: `Runs the content-category validation rules (hours consistency, CEFR
skill minimums, rubric requirements, resource minimums, broken links,
accessibility) and prints a readiness verdict.

Exit codes: 0 ready, 1 blocking issues found, 2 tool error.`,
	RunE: runReadiness,
}

func init() {
	readinessCmd.Flags().StringVar(&readinessContentPath, "content", "",
		"content snapshot JSON file (required)")
	readinessCmd.MarkFlagRequired("content")
	rootCmd.AddCommand(readinessCmd)
}

func runReadiness(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot(readinessContentPath)
	if err != nil {
		return err
	}
	policy, err := loadPolicy()
	if err != nil {
		return err
	}

	version := &lifecycle.CurriculumVersion{
		State:   lifecycle.StateDraft,
		Content: snap,
	}
	verdict := lifecycle.AssessReadiness(version, policy.Snapshot())

	if flagJSONOutput {
		if err := printJSON(verdict); err != nil {
			return err
		}
	} else {
		printReadinessText(verdict)
	}

	if !verdict.Ready {
		os.Exit(ExitViolation)
	}
	return nil
}

func printReadinessText(verdict lifecycle.Readiness) {
	if verdict.Ready {
		fmt.Println("READY: all checks passed")
	} else {
		fmt.Println("NOT READY")
	}
	for name, passed := range verdict.Checks {
		status := "pass"
		if !passed {
			status = "FAIL"
		}
		fmt.Printf("  %-24s %s\n", name, status)
	}
	for _, issue := range verdict.BlockingIssues {
		fmt.Printf("  blocking: %s\n", issue)
	}
	for _, warning := range verdict.Warnings {
		fmt.Printf("  warning:  %s\n", warning)
	}
}
