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
	"github.com/AleutianAI/CurriculumEngine/services/mapping"
)

var (
	mappingContentPath string
	mappingClassesPath string
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Validate a content snapshot against class facts",
	Long: `Runs mapping validation: the content snapshot is checked against each
class's level, modality, age group and scheduled hours, and the
aggregated risk level decides whether applying the version could
proceed.

Exit codes: 0 can proceed, 1 blocked, 2 tool error.`,
	RunE: runMapping,
}

func init() {
	mappingCmd.Flags().StringVar(&mappingContentPath, "content", "",
		"content snapshot JSON file (required)")
	mappingCmd.Flags().StringVar(&mappingClassesPath, "classes", "",
		"class facts JSON file, object or array (required)")
	mappingCmd.MarkFlagRequired("content")
	mappingCmd.MarkFlagRequired("classes")
	rootCmd.AddCommand(mappingCmd)
}

func runMapping(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot(mappingContentPath)
	if err != nil {
		return err
	}
	facts, err := loadClasses(mappingClassesPath)
	if err != nil {
		return err
	}
	if len(facts) == 0 {
		return fmt.Errorf("classes file contains no classes")
	}
	policy, err := loadPolicy()
	if err != nil {
		return err
	}

	version := &lifecycle.CurriculumVersion{
		State:   lifecycle.StatePublished,
		Content: snap,
	}
	report := mapping.Validate(version, policy.Snapshot(), facts...)

	if flagJSONOutput {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printReportText(report)
	}

	if !report.CanProceed {
		os.Exit(ExitViolation)
	}
	return nil
}

func printReportText(report mapping.Report) {
	fmt.Printf("risk: %s  can_proceed: %v  conflicts: %d\n",
		report.RiskLevel, report.CanProceed, len(report.Conflicts))
	for _, conflict := range report.Conflicts {
		fmt.Printf("  [%s] %s %s: %s\n",
			conflict.Severity, conflict.ClassID, conflict.Type, conflict.Message)
		if conflict.SuggestedFix != "" {
			fmt.Printf("           fix: %s\n", conflict.SuggestedFix)
		}
	}
}
