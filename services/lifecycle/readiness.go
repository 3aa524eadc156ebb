// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lifecycle

import (
	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

// Check names in a readiness verdict. The set is fixed: dashboards key
// on these names.
const (
	CheckHours         = "hoursValidation"
	CheckCEFR          = "cefrCompleteness"
	CheckRubrics       = "rubricRequirements"
	CheckResources     = "resourceMinimums"
	CheckBrokenLinks   = "brokenLinks"
	CheckAccessibility = "accessibility"
)

// checkForRule maps canonical rule IDs to the readiness check they
// feed.
var checkForRule = map[string]string{
	rules.RuleHoursConsistency:  CheckHours,
	rules.RuleCEFRSkillMinimums: CheckCEFR,
	rules.RuleRubricRequirement: CheckRubrics,
	rules.RuleResourceMinimums:  CheckResources,
	rules.RuleBrokenLinks:       CheckBrokenLinks,
	rules.RuleAccessibility:     CheckAccessibility,
}

// Readiness is the publish-readiness verdict for one version.
type Readiness struct {
	// Ready is true iff every named check passed.
	Ready bool `json:"ready"`
	// BlockingIssues holds the message of every conflict that failed a
	// check.
	BlockingIssues []string `json:"blocking_issues,omitempty"`
	// Warnings holds non-blocking findings, surfaced for reviewers.
	Warnings []string `json:"warnings,omitempty"`
	// Checks maps each named check to pass/fail.
	Checks map[string]bool `json:"checks"`
}

// AssessReadiness runs the content and publish rules over a version's
// content and folds the conflicts into a fixed set of named checks.
//
// A check fails only on a high-severity conflict of its rule; warning
// findings are surfaced in Warnings but never block. Queried on demand
// - there is no cached readiness state anywhere.
func AssessReadiness(v *CurriculumVersion, rs []rules.Rule) Readiness {
	verdict := Readiness{
		Checks: map[string]bool{
			CheckHours:         true,
			CheckCEFR:          true,
			CheckRubrics:       true,
			CheckResources:     true,
			CheckBrokenLinks:   true,
			CheckAccessibility: true,
		},
	}

	for _, conflict := range rules.EvaluateContent(v.Content, rs) {
		if !conflict.Blocking() {
			verdict.Warnings = append(verdict.Warnings, conflict.Message)
			continue
		}
		verdict.BlockingIssues = append(verdict.BlockingIssues, conflict.Message)
		if check, ok := checkForRule[conflict.RuleID]; ok {
			verdict.Checks[check] = false
		}
	}

	verdict.Ready = len(verdict.BlockingIssues) == 0
	return verdict
}
