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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
)

var (
	diffBasePath   string
	diffTargetPath string
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Summarize the changes between two content snapshots",
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffBasePath, "base", "",
		"base content snapshot JSON file (required)")
	diffCmd.Flags().StringVar(&diffTargetPath, "target", "",
		"target content snapshot JSON file (required)")
	diffCmd.MarkFlagRequired("base")
	diffCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	base, err := loadSnapshot(diffBasePath)
	if err != nil {
		return err
	}
	target, err := loadSnapshot(diffTargetPath)
	if err != nil {
		return err
	}

	changes := lifecycle.Diff(target, base)
	if flagJSONOutput {
		return printJSON(changes)
	}
	if len(changes) == 0 {
		fmt.Println("no structural changes")
		return nil
	}
	for _, change := range changes {
		fmt.Printf("  %-8s %-16s %s\n", change.Type, change.Field, change.Description)
	}
	return nil
}
