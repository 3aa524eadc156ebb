// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules implements the curriculum validation rule engine and
// the policy store that feeds it.
//
// # Description
//
// The engine is a pure function over (content, rules) or
// (content, class facts, rules). It performs no I/O, holds no state,
// and is safe to call concurrently from any number of goroutines.
// Each enabled rule independently inspects its subject and emits zero
// or more Conflicts; disabled rules are skipped entirely. Conflicts
// are returned in rule-declaration order - callers sort for display
// if they want a severity ordering.
//
// # Canonical Rules
//
// Content / publish category:
//   - hours_consistency: declared total hours vs the sum of unit
//     durations, with a configurable tolerance fraction.
//   - cefr_skill_minimums: per declared CEFR level, each core skill
//     must reach the configured unit coverage.
//   - rubric_requirement: any assessed unit must reference a rubric
//     with at least one criterion.
//   - resource_minimums: each unit needs at least one resource tagged
//     per skill the unit declares.
//   - broken_links: resource health; broken/restricted block, expired
//     warns.
//   - accessibility: resources should carry at least one of the
//     configured accessible formats.
//
// Mapping category:
//   - hours_fit: class scheduled hours vs the version's required hours.
//   - level_match: class CEFR level must fall inside the version's
//     declared level range. The one unconditional hard gate.
//   - modality_fit: delivery modality mismatch, always low severity,
//     never auto-fixable, always carries a suggested fix.
//   - age_group_fit: target age group mismatch, medium severity.
//   - resource_readiness: units with no resources at all are flagged
//     before a class go-live.
package rules

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/CurriculumEngine/services/content"
)

// Canonical rule identifiers. Policy files reference rules by these
// IDs; unknown IDs are ignored by the engine so a newer policy file
// does not break an older binary.
const (
	RuleHoursConsistency  = "hours_consistency"
	RuleCEFRSkillMinimums = "cefr_skill_minimums"
	RuleRubricRequirement = "rubric_requirement"
	RuleResourceMinimums  = "resource_minimums"
	RuleBrokenLinks       = "broken_links"
	RuleAccessibility     = "accessibility"
	RuleHoursFit          = "hours_fit"
	RuleLevelMatch        = "level_match"
	RuleModalityFit       = "modality_fit"
	RuleAgeGroupFit       = "age_group_fit"
	RuleResourceReadiness = "resource_readiness"
)

// ClassFacts are the real-world facts about a running class that
// mapping rules compare a version against. Supplied by the class
// persistence collaborator; the engine never looks facts up itself.
type ClassFacts struct {
	ClassID        string           `json:"class_id"`
	Level          string           `json:"level,omitempty"`
	Modality       content.Modality `json:"modality,omitempty"`
	AgeGroup       string           `json:"age_group,omitempty"`
	ScheduledHours float64          `json:"scheduled_hours"`
}

// EvaluateContent runs all enabled content and publish rules against a
// snapshot. Mapping and export rules in the slice are skipped.
func EvaluateContent(snap content.ContentSnapshot, rs []Rule) []Conflict {
	var conflicts []Conflict
	for _, r := range rs {
		if !r.Enabled {
			continue
		}
		if r.Category != CategoryContent && r.Category != CategoryPublish {
			continue
		}
		conflicts = append(conflicts, evaluateContentRule(snap, r)...)
	}
	return conflicts
}

// EvaluateMapping runs all enabled mapping rules against a snapshot
// and one class's facts. Every conflict is tagged with the class ID.
func EvaluateMapping(snap content.ContentSnapshot, facts ClassFacts, rs []Rule) []Conflict {
	var conflicts []Conflict
	for _, r := range rs {
		if !r.Enabled || r.Category != CategoryMapping {
			continue
		}
		found := evaluateMappingRule(snap, facts, r)
		for i := range found {
			found[i].ClassID = facts.ClassID
		}
		conflicts = append(conflicts, found...)
	}
	return conflicts
}

func evaluateContentRule(snap content.ContentSnapshot, r Rule) []Conflict {
	switch r.ID {
	case RuleHoursConsistency:
		return checkHoursConsistency(snap, r)
	case RuleCEFRSkillMinimums:
		return checkCEFRSkillMinimums(snap, r)
	case RuleRubricRequirement:
		return checkRubricRequirement(snap, r)
	case RuleResourceMinimums:
		return checkResourceMinimums(snap, r)
	case RuleBrokenLinks:
		return checkBrokenLinks(snap, r)
	case RuleAccessibility:
		return checkAccessibility(snap, r)
	default:
		return nil
	}
}

func evaluateMappingRule(snap content.ContentSnapshot, facts ClassFacts, r Rule) []Conflict {
	switch r.ID {
	case RuleHoursFit:
		return checkHoursFit(snap, facts, r)
	case RuleLevelMatch:
		return checkLevelMatch(snap, facts, r)
	case RuleModalityFit:
		return checkModalityFit(snap, facts, r)
	case RuleAgeGroupFit:
		return checkAgeGroupFit(snap, facts, r)
	case RuleResourceReadiness:
		return checkResourceReadiness(snap, facts, r)
	default:
		return nil
	}
}

// hoursDeviation applies the shared tolerance logic for hour checks:
// deviations inside tolerance pass, up to twice the tolerance are
// medium, beyond that high.
func hoursDeviation(actual, required, tolerance float64) (Severity, float64, bool) {
	if required <= 0 {
		return "", 0, false
	}
	deviation := (actual - required) / required
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation <= tolerance {
		return "", deviation, false
	}
	if deviation <= 2*tolerance {
		return SeverityMedium, deviation, true
	}
	return SeverityHigh, deviation, true
}

func checkHoursConsistency(snap content.ContentSnapshot, r Rule) []Conflict {
	tolerance := r.FloatConfig("tolerance_fraction", 0.05)
	unitHours := snap.UnitHours()
	// A missing declared total with real unit hours is not "in
	// tolerance", it is an unusable declaration.
	if snap.TotalHours <= 0 && unitHours > 0 {
		return []Conflict{{
			RuleID:   r.ID,
			Type:     ConflictHours,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("unit durations sum to %.1fh but the version declares %.1fh total",
				unitHours, snap.TotalHours),
			CurrentValue:  fmt.Sprintf("%.1f", unitHours),
			RequiredValue: fmt.Sprintf("%.1f", snap.TotalHours),
			SuggestedFix:  "set the declared total to the sum of unit durations",
			AutoFixable:   true,
		}}
	}
	sev, deviation, over := hoursDeviation(unitHours, snap.TotalHours, tolerance)
	if !over {
		return nil
	}
	return []Conflict{{
		RuleID:   r.ID,
		Type:     ConflictHours,
		Severity: sev,
		Message: fmt.Sprintf("unit durations sum to %.1fh but the version declares %.1fh (%.1f%% off, tolerance %.1f%%)",
			unitHours, snap.TotalHours, deviation*100, tolerance*100),
		CurrentValue:  fmt.Sprintf("%.1f", unitHours),
		RequiredValue: fmt.Sprintf("%.1f", snap.TotalHours),
		SuggestedFix:  "recalculate the declared total from unit durations or rebalance unit hours",
		AutoFixable:   true,
	}}
}

func checkCEFRSkillMinimums(snap content.ContentSnapshot, r Rule) []Conflict {
	minCoverage := r.FloatConfig("min_coverage", 0.8)
	coreSkills := r.StringsConfig("core_skills")
	if len(coreSkills) == 0 {
		coreSkills = []string{"listening", "speaking", "reading", "writing"}
	}
	total := snap.UnitCount()
	if total == 0 || len(snap.Levels) == 0 {
		return nil
	}

	tagged := make(map[string]int)
	for _, c := range snap.Courses {
		for _, u := range c.Units {
			for _, s := range u.Skills {
				tagged[strings.ToLower(s)]++
			}
		}
	}

	var conflicts []Conflict
	for _, level := range snap.Levels {
		for _, skill := range coreSkills {
			coverage := float64(tagged[strings.ToLower(skill)]) / float64(total)
			if coverage >= minCoverage {
				continue
			}
			conflicts = append(conflicts, Conflict{
				RuleID:   r.ID,
				Type:     ConflictSkills,
				Severity: r.Severity.ConflictSeverity(),
				Message: fmt.Sprintf("level %s: skill %q covered by %.0f%% of units, minimum is %.0f%%",
					level, skill, coverage*100, minCoverage*100),
				CurrentValue:  fmt.Sprintf("%.2f", coverage),
				RequiredValue: fmt.Sprintf("%.2f", minCoverage),
				SuggestedFix:  fmt.Sprintf("tag more units with the %q skill or add units targeting it", skill),
			})
		}
	}
	return conflicts
}

func checkRubricRequirement(snap content.ContentSnapshot, r Rule) []Conflict {
	var conflicts []Conflict
	for _, c := range snap.Courses {
		for _, u := range c.Units {
			if u.Assessment == nil {
				continue
			}
			if u.Assessment.RubricID != "" && len(u.Assessment.Criteria) > 0 {
				continue
			}
			conflicts = append(conflicts, Conflict{
				RuleID:        r.ID,
				Type:          ConflictRubric,
				Severity:      SeverityHigh,
				Message:       fmt.Sprintf("unit %q has an assessment without a rubric with at least one criterion", u.Title),
				CurrentValue:  u.Assessment.RubricID,
				RequiredValue: "rubric with >= 1 criterion",
				SuggestedFix:  "attach a grading rubric to the assessment or remove the assessment",
			})
		}
	}
	return conflicts
}

func checkResourceMinimums(snap content.ContentSnapshot, r Rule) []Conflict {
	minPerSkill := r.IntConfig("min_per_skill", 1)
	var conflicts []Conflict
	for _, c := range snap.Courses {
		for _, u := range c.Units {
			for _, skill := range u.Skills {
				var tagged int
				for _, res := range u.Resources {
					for _, tag := range res.SkillTags {
						if strings.EqualFold(tag, skill) {
							tagged++
							break
						}
					}
				}
				if tagged >= minPerSkill {
					continue
				}
				conflicts = append(conflicts, Conflict{
					RuleID:   r.ID,
					Type:     ConflictResources,
					Severity: r.Severity.ConflictSeverity(),
					Message: fmt.Sprintf("unit %q declares skill %q but has %d resource(s) tagged for it (minimum %d)",
						u.Title, skill, tagged, minPerSkill),
					CurrentValue:  fmt.Sprintf("%d", tagged),
					RequiredValue: fmt.Sprintf("%d", minPerSkill),
					SuggestedFix:  fmt.Sprintf("attach a resource tagged %q to unit %q", skill, u.Title),
				})
			}
		}
	}
	return conflicts
}

func checkBrokenLinks(snap content.ContentSnapshot, r Rule) []Conflict {
	var conflicts []Conflict
	for _, c := range snap.Courses {
		for _, u := range c.Units {
			for _, res := range u.Resources {
				var sev Severity
				switch res.HealthStatus {
				case content.HealthBroken, content.HealthRestricted:
					sev = SeverityHigh
				case content.HealthExpired:
					sev = SeverityMedium
				default:
					continue
				}
				conflicts = append(conflicts, Conflict{
					RuleID:        r.ID,
					Type:          ConflictResources,
					Severity:      sev,
					Message:       fmt.Sprintf("resource %q in unit %q is %s", res.Title, u.Title, res.HealthStatus),
					CurrentValue:  string(res.HealthStatus),
					RequiredValue: string(content.HealthHealthy),
					SuggestedFix:  "replace the resource or restore access to it",
				})
			}
		}
	}
	return conflicts
}

func checkAccessibility(snap content.ContentSnapshot, r Rule) []Conflict {
	required := r.StringsConfig("required_formats")
	if len(required) == 0 {
		required = []string{"captions", "transcript", "alt_text"}
	}
	var conflicts []Conflict
	for _, c := range snap.Courses {
		for _, u := range c.Units {
			for _, res := range u.Resources {
				if hasAnyFormat(res.Formats, required) {
					continue
				}
				conflicts = append(conflicts, Conflict{
					RuleID:   r.ID,
					Type:     ConflictAccessibility,
					Severity: r.Severity.ConflictSeverity(),
					Message: fmt.Sprintf("resource %q in unit %q has no accessible format (expected one of %s)",
						res.Title, u.Title, strings.Join(required, ", ")),
					CurrentValue:  strings.Join(res.Formats, ","),
					RequiredValue: strings.Join(required, "|"),
					SuggestedFix:  "add captions, a transcript, or alt text to the resource",
				})
			}
		}
	}
	return conflicts
}

func hasAnyFormat(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func checkHoursFit(snap content.ContentSnapshot, facts ClassFacts, r Rule) []Conflict {
	tolerance := r.FloatConfig("tolerance_fraction", 0.05)
	sev, deviation, over := hoursDeviation(facts.ScheduledHours, snap.TotalHours, tolerance)
	if !over {
		return nil
	}
	return []Conflict{{
		RuleID:   r.ID,
		Type:     ConflictHours,
		Severity: sev,
		Message: fmt.Sprintf("class has %.1fh scheduled but the version requires %.1fh (%.1f%% off, tolerance %.1f%%)",
			facts.ScheduledHours, snap.TotalHours, deviation*100, tolerance*100),
		CurrentValue:  fmt.Sprintf("%.1f", facts.ScheduledHours),
		RequiredValue: fmt.Sprintf("%.1f", snap.TotalHours),
		SuggestedFix:  "extend the class calendar or trim optional units before applying",
	}}
}

func checkLevelMatch(snap content.ContentSnapshot, facts ClassFacts, r Rule) []Conflict {
	if facts.Level == "" || len(snap.Levels) == 0 {
		return nil
	}
	if content.LevelInRange(facts.Level, snap.Levels) {
		return nil
	}
	// Always high: a bad CEFR mapping is pedagogically unrecoverable,
	// so this finding alone blocks the apply.
	return []Conflict{{
		RuleID:   r.ID,
		Type:     ConflictLevel,
		Severity: SeverityHigh,
		Message: fmt.Sprintf("class level %s is outside the version's declared range %s",
			facts.Level, strings.Join(snap.Levels, "-")),
		CurrentValue:  facts.Level,
		RequiredValue: strings.Join(snap.Levels, "-"),
		SuggestedFix:  "map a version whose level range covers the class, or move students to a matching class",
	}}
}

func checkModalityFit(snap content.ContentSnapshot, facts ClassFacts, r Rule) []Conflict {
	if snap.Modality == "" || facts.Modality == "" || snap.Modality == facts.Modality {
		return nil
	}
	return []Conflict{{
		RuleID:   r.ID,
		Type:     ConflictModality,
		Severity: SeverityLow,
		Message: fmt.Sprintf("version is designed for %s delivery but the class runs %s",
			snap.Modality, facts.Modality),
		CurrentValue:  string(facts.Modality),
		RequiredValue: string(snap.Modality),
		SuggestedFix:  fmt.Sprintf("adapt activities for %s delivery or reschedule the class as %s", facts.Modality, snap.Modality),
		AutoFixable:   false,
	}}
}

func checkAgeGroupFit(snap content.ContentSnapshot, facts ClassFacts, r Rule) []Conflict {
	if snap.AgeGroup == "" || facts.AgeGroup == "" || strings.EqualFold(snap.AgeGroup, facts.AgeGroup) {
		return nil
	}
	return []Conflict{{
		RuleID:        r.ID,
		Type:          ConflictAge,
		Severity:      SeverityMedium,
		Message:       fmt.Sprintf("version targets the %s age group but the class enrolls %s", snap.AgeGroup, facts.AgeGroup),
		CurrentValue:  facts.AgeGroup,
		RequiredValue: snap.AgeGroup,
		SuggestedFix:  "review age-sensitive activities before applying",
	}}
}

func checkResourceReadiness(snap content.ContentSnapshot, facts ClassFacts, r Rule) []Conflict {
	var bare int
	for _, c := range snap.Courses {
		for _, u := range c.Units {
			if len(u.Resources) == 0 {
				bare++
			}
		}
	}
	if bare == 0 {
		return nil
	}
	return []Conflict{{
		RuleID:        r.ID,
		Type:          ConflictResources,
		Severity:      r.Severity.ConflictSeverity(),
		Message:       fmt.Sprintf("%d unit(s) have no resources attached; the class would start without materials", bare),
		CurrentValue:  fmt.Sprintf("%d", bare),
		RequiredValue: "0",
		SuggestedFix:  "attach materials to every unit before go-live",
	}}
}
