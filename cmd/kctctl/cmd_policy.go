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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and lint validation policies",
}

var policyLintCmd = &cobra.Command{
	Use:   "lint <policy.yaml>",
	Short: "Check a validation policy file for errors",
	Long: `Parses the policy file and validates it: unknown categories or
severities, duplicate or empty rule ids, and malformed YAML are all
reported. A valid file prints the effective rule set after merging
over the embedded defaults.`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyLint,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective validation policy",
	RunE:  runPolicyShow,
}

func init() {
	policyCmd.AddCommand(policyLintCmd)
	policyCmd.AddCommand(policyShowCmd)
	rootCmd.AddCommand(policyCmd)
}

func runPolicyLint(cmd *cobra.Command, args []string) error {
	store, err := rules.NewStore(slog.Default())
	if err != nil {
		return err
	}
	if err := store.LoadFile(args[0]); err != nil {
		return fmt.Errorf("policy invalid: %w", err)
	}

	ruleSet := store.Snapshot()
	if flagJSONOutput {
		return printJSON(ruleSet)
	}
	fmt.Printf("policy OK: %d rules\n", len(ruleSet))
	printRulesText(ruleSet)
	return nil
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	store, err := loadPolicy()
	if err != nil {
		return err
	}
	ruleSet := store.Snapshot()
	if flagJSONOutput {
		return printJSON(ruleSet)
	}
	printRulesText(ruleSet)
	return nil
}

func printRulesText(ruleSet []rules.Rule) {
	for _, rule := range ruleSet {
		enabled := "enabled"
		if !rule.Enabled {
			enabled = "disabled"
		}
		fmt.Printf("  %-24s %-8s %-8s %s\n", rule.ID, rule.Category, rule.Severity, enabled)
	}
}
