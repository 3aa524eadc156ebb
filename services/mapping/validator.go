// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mapping decides whether a published curriculum version can
// be applied to a running class.
//
// The validator aggregates mapping-rule conflicts into a
// severity-weighted go/no-go report. The scoring is deliberately
// simple and auditable: one unambiguous hard gate (any high-severity
// conflict blocks, and a CEFR level mismatch is always high) plus a
// conflict-count threshold for the medium/low split. It is not a
// weighted sum and must not become one - a bad level mapping is
// pedagogically unrecoverable while hours or modality gaps are
// operationally fixable, and the gate encodes exactly that.
package mapping

import (
	"time"

	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

// RiskLevel is the aggregated risk of applying a version to a class.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// mediumConflictThreshold is the conflict count above which a
// non-blocked mapping is rated medium instead of low.
const mediumConflictThreshold = 2

// Report is the apply-readiness verdict for (version, classes). It is
// derived state: recomputed on every call, never cached across content
// or policy changes. Conflicts keep the class they came from.
type Report struct {
	ClassID      string           `json:"class_id,omitempty"`
	KCTVersionID string           `json:"kct_version_id"`
	Conflicts    []rules.Conflict `json:"conflicts,omitempty"`
	CanProceed   bool             `json:"can_proceed"`
	RiskLevel    RiskLevel        `json:"risk_level"`
}

// AppliedRef identifies a previously applied version on a class.
type AppliedRef struct {
	KCTVersionID string `json:"kct_version_id"`
	VersionLabel string `json:"version_label"`
}

// AppliedVersion is the version-application record written onto a
// class when a mapping is applied. Previous keeps the class's own
// application history so a rollback can restore the prior version
// without consulting any rollout plan.
type AppliedVersion struct {
	KCTVersionID   string      `json:"kct_version_id"`
	VersionLabel   string      `json:"version_label"`
	AppliedAt      time.Time   `json:"applied_at"`
	AppliedBy      string      `json:"applied_by"`
	LastValidation *Report     `json:"last_validation,omitempty"`
	Previous       *AppliedRef `json:"previous,omitempty"`
}

// Validate runs the mapping rules for each class against the version's
// content and aggregates the conflicts into one report.
//
// Pure and deterministic: identical inputs produce an identical
// report. Each class is evaluated independently with its own facts;
// results are never shared between classes.
func Validate(version *lifecycle.CurriculumVersion, ruleSet []rules.Rule, facts ...rules.ClassFacts) Report {
	report := Report{KCTVersionID: version.ID}
	if len(facts) == 1 {
		report.ClassID = facts[0].ClassID
	}
	for _, f := range facts {
		report.Conflicts = append(report.Conflicts, rules.EvaluateMapping(version.Content, f, ruleSet)...)
	}
	report.RiskLevel, report.CanProceed = score(report.Conflicts)
	return report
}

// score reproduces the canonical risk rule:
//
//  1. any high-severity conflict => high risk, blocked, no engine-side
//     override
//  2. else more than two conflicts => medium risk, may proceed
//  3. else => low risk, may proceed
func score(conflicts []rules.Conflict) (RiskLevel, bool) {
	var highCount int
	for _, c := range conflicts {
		if c.Severity == rules.SeverityHigh {
			highCount++
		}
	}
	switch {
	case highCount > 0:
		return RiskHigh, false
	case len(conflicts) > mediumConflictThreshold:
		return RiskMedium, true
	default:
		return RiskLow, true
	}
}
