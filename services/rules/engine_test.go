// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"reflect"
	"testing"

	"github.com/AleutianAI/CurriculumEngine/services/content"
)

// healthySnapshot builds a snapshot that passes every content rule.
func healthySnapshot() content.ContentSnapshot {
	resource := func(id string, skills ...string) content.Resource {
		return content.Resource{
			ID:           id,
			Title:        id,
			SkillTags:    skills,
			Formats:      []string{"captions"},
			HealthStatus: content.HealthHealthy,
		}
	}
	unit := func(id string, hours float64) content.Unit {
		return content.Unit{
			ID:            id,
			Title:         id,
			DurationHours: hours,
			Skills:        []string{"listening", "speaking", "reading", "writing"},
			Resources: []content.Resource{
				resource(id+"-r1", "listening", "speaking", "reading", "writing"),
			},
			Assessment: &content.Assessment{
				RubricID: "rb-" + id,
				Criteria: []content.RubricCriterion{{ID: "c1", Weight: 1}},
			},
		}
	}
	return content.ContentSnapshot{
		SchemaVersion: content.SchemaVersion,
		TotalHours:    40,
		Levels:        []string{"B1", "B2"},
		Modality:      content.ModalityOnline,
		AgeGroup:      "adult",
		Courses: []content.Course{
			{ID: "c1", Title: "Core", Units: []content.Unit{
				unit("u1", 10), unit("u2", 10), unit("u3", 10), unit("u4", 10),
			}},
		},
	}
}

func rule(id string, category Category, severity RuleSeverity, config map[string]any) Rule {
	return Rule{ID: id, Category: category, Severity: severity, Enabled: true, Config: config}
}

func contentRules() []Rule {
	return []Rule{
		rule(RuleHoursConsistency, CategoryContent, RuleError, map[string]any{"tolerance_fraction": 0.05}),
		rule(RuleCEFRSkillMinimums, CategoryContent, RuleError, map[string]any{"min_coverage": 0.8}),
		rule(RuleRubricRequirement, CategoryPublish, RuleError, nil),
		rule(RuleResourceMinimums, CategoryContent, RuleWarning, map[string]any{"min_per_skill": 1}),
		rule(RuleBrokenLinks, CategoryPublish, RuleError, nil),
		rule(RuleAccessibility, CategoryContent, RuleWarning, map[string]any{"required_formats": []any{"captions", "transcript"}}),
	}
}

func mappingRules() []Rule {
	return []Rule{
		rule(RuleHoursFit, CategoryMapping, RuleError, map[string]any{"tolerance_fraction": 0.05}),
		rule(RuleLevelMatch, CategoryMapping, RuleError, nil),
		rule(RuleModalityFit, CategoryMapping, RuleInfo, nil),
		rule(RuleAgeGroupFit, CategoryMapping, RuleWarning, nil),
		rule(RuleResourceReadiness, CategoryMapping, RuleWarning, nil),
	}
}

func fittingFacts() ClassFacts {
	return ClassFacts{
		ClassID:        "class-1",
		Level:          "B1",
		Modality:       content.ModalityOnline,
		AgeGroup:       "adult",
		ScheduledHours: 40,
	}
}

func TestEvaluateContentHealthySnapshotIsClean(t *testing.T) {
	conflicts := EvaluateContent(healthySnapshot(), contentRules())
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %d: %+v", len(conflicts), conflicts)
	}
}

func TestHoursConsistencyBands(t *testing.T) {
	tests := []struct {
		name       string
		totalHours float64
		wantCount  int
		wantSev    Severity
	}{
		// Units sum to 40h in the healthy snapshot.
		{"within tolerance", 41, 0, ""},
		{"twice tolerance is medium", 43, 1, SeverityMedium},
		{"beyond twice tolerance is high", 50, 1, SeverityHigh},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := healthySnapshot()
			snap.TotalHours = tc.totalHours
			conflicts := EvaluateContent(snap, []Rule{
				rule(RuleHoursConsistency, CategoryContent, RuleError,
					map[string]any{"tolerance_fraction": 0.05}),
			})
			if len(conflicts) != tc.wantCount {
				t.Fatalf("got %d conflicts, want %d", len(conflicts), tc.wantCount)
			}
			if tc.wantCount > 0 {
				if conflicts[0].Severity != tc.wantSev {
					t.Errorf("severity = %s, want %s", conflicts[0].Severity, tc.wantSev)
				}
				if conflicts[0].Type != ConflictHours {
					t.Errorf("type = %s, want %s", conflicts[0].Type, ConflictHours)
				}
				if !conflicts[0].AutoFixable {
					t.Error("hours consistency conflicts should be auto-fixable")
				}
			}
		})
	}
}

func TestHoursConsistencyZeroDeclaredTotal(t *testing.T) {
	hoursRule := []Rule{
		rule(RuleHoursConsistency, CategoryContent, RuleError,
			map[string]any{"tolerance_fraction": 0.05}),
	}

	// 40h of units against a missing declared total must not pass as
	// "within tolerance".
	snap := healthySnapshot()
	snap.TotalHours = 0
	conflicts := EvaluateContent(snap, hoursRule)
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1: %+v", len(conflicts), conflicts)
	}
	if conflicts[0].Severity != SeverityHigh {
		t.Errorf("severity = %s, want %s", conflicts[0].Severity, SeverityHigh)
	}
	if conflicts[0].Type != ConflictHours {
		t.Errorf("type = %s, want %s", conflicts[0].Type, ConflictHours)
	}

	snap.TotalHours = -3
	if got := EvaluateContent(snap, hoursRule); len(got) != 1 {
		t.Errorf("negative declared total: got %d conflicts, want 1", len(got))
	}

	// A snapshot with no unit hours at all has nothing to reconcile.
	empty := content.ContentSnapshot{}
	if got := EvaluateContent(empty, hoursRule); len(got) != 0 {
		t.Errorf("empty snapshot: got %d conflicts, want 0", len(got))
	}
}

func TestCEFRSkillMinimums(t *testing.T) {
	snap := healthySnapshot()
	// Drop "writing" from every unit: coverage 0% < 80%.
	for i := range snap.Courses[0].Units {
		snap.Courses[0].Units[i].Skills = []string{"listening", "speaking", "reading"}
	}
	conflicts := EvaluateContent(snap, []Rule{
		rule(RuleCEFRSkillMinimums, CategoryContent, RuleError,
			map[string]any{"min_coverage": 0.8}),
	})
	// One conflict per declared level (B1 and B2) for the missing skill.
	if len(conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2: %+v", len(conflicts), conflicts)
	}
	for _, c := range conflicts {
		if c.Type != ConflictSkills {
			t.Errorf("type = %s, want %s", c.Type, ConflictSkills)
		}
		if c.Severity != SeverityHigh {
			t.Errorf("severity = %s, want %s (rule severity error)", c.Severity, SeverityHigh)
		}
	}
}

func TestRubricRequirement(t *testing.T) {
	snap := healthySnapshot()
	snap.Courses[0].Units[0].Assessment = &content.Assessment{RubricID: "rb", Criteria: nil}
	snap.Courses[0].Units[1].Assessment = nil // ungraded unit is fine

	conflicts := EvaluateContent(snap, []Rule{
		rule(RuleRubricRequirement, CategoryPublish, RuleError, nil),
	})
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].Severity != SeverityHigh {
		t.Errorf("missing rubric must be high severity, got %s", conflicts[0].Severity)
	}
	if conflicts[0].Type != ConflictRubric {
		t.Errorf("type = %s, want %s", conflicts[0].Type, ConflictRubric)
	}
}

func TestBrokenLinksSeverities(t *testing.T) {
	snap := healthySnapshot()
	snap.Courses[0].Units[0].Resources[0].HealthStatus = content.HealthBroken
	snap.Courses[0].Units[1].Resources[0].HealthStatus = content.HealthExpired
	snap.Courses[0].Units[2].Resources[0].HealthStatus = content.HealthRestricted

	conflicts := EvaluateContent(snap, []Rule{
		rule(RuleBrokenLinks, CategoryPublish, RuleError, nil),
	})
	if len(conflicts) != 3 {
		t.Fatalf("got %d conflicts, want 3", len(conflicts))
	}
	bySev := map[Severity]int{}
	for _, c := range conflicts {
		bySev[c.Severity]++
	}
	if bySev[SeverityHigh] != 2 {
		t.Errorf("broken+restricted should be 2 high conflicts, got %d", bySev[SeverityHigh])
	}
	if bySev[SeverityMedium] != 1 {
		t.Errorf("expired should be 1 medium conflict, got %d", bySev[SeverityMedium])
	}
}

func TestAccessibilityAndResourceMinimums(t *testing.T) {
	snap := healthySnapshot()
	snap.Courses[0].Units[0].Resources[0].Formats = []string{"pdf"}
	snap.Courses[0].Units[1].Resources[0].SkillTags = []string{"listening"}

	conflicts := EvaluateContent(snap, []Rule{
		rule(RuleResourceMinimums, CategoryContent, RuleWarning, map[string]any{"min_per_skill": 1}),
		rule(RuleAccessibility, CategoryContent, RuleWarning, nil),
	})

	var access, resources int
	for _, c := range conflicts {
		switch c.Type {
		case ConflictAccessibility:
			access++
			if c.Severity != SeverityMedium {
				t.Errorf("warning-severity rule should yield medium conflicts, got %s", c.Severity)
			}
		case ConflictResources:
			resources++
		}
	}
	if access != 1 {
		t.Errorf("accessibility conflicts = %d, want 1", access)
	}
	// u2 declares four skills but its resource now tags only listening.
	if resources != 3 {
		t.Errorf("resource minimum conflicts = %d, want 3", resources)
	}
}

func TestDisabledRulesAreSkipped(t *testing.T) {
	snap := healthySnapshot()
	snap.TotalHours = 100 // wildly inconsistent

	r := rule(RuleHoursConsistency, CategoryContent, RuleError, nil)
	r.Enabled = false
	if got := EvaluateContent(snap, []Rule{r}); len(got) != 0 {
		t.Fatalf("disabled rule still produced %d conflicts", len(got))
	}
}

func TestEvaluateContentIgnoresMappingRules(t *testing.T) {
	snap := healthySnapshot()
	snap.Levels = []string{"C2"} // would trip level_match for a B1 class
	if got := EvaluateContent(snap, mappingRules()); len(got) != 0 {
		t.Fatalf("content evaluation ran mapping rules: %+v", got)
	}
}

func TestEvaluateMappingCleanFit(t *testing.T) {
	conflicts := EvaluateMapping(healthySnapshot(), fittingFacts(), mappingRules())
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}
}

func TestLevelMatchIsAlwaysHigh(t *testing.T) {
	facts := fittingFacts()
	facts.Level = "C2"
	conflicts := EvaluateMapping(healthySnapshot(), facts, mappingRules())
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Type != ConflictLevel || c.Severity != SeverityHigh {
		t.Errorf("level mismatch must be a high-severity level conflict, got %s/%s", c.Type, c.Severity)
	}
	if c.ClassID != "class-1" {
		t.Errorf("conflict not tagged with class id: %q", c.ClassID)
	}
	if !c.Blocking() {
		t.Error("high-severity conflict must be blocking")
	}
}

func TestModalityFitIsAdvisory(t *testing.T) {
	facts := fittingFacts()
	facts.Modality = content.ModalityOffline
	conflicts := EvaluateMapping(healthySnapshot(), facts, mappingRules())
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Severity != SeverityLow {
		t.Errorf("modality mismatch severity = %s, want %s", c.Severity, SeverityLow)
	}
	if c.AutoFixable {
		t.Error("modality mismatch must not be auto-fixable")
	}
	if c.SuggestedFix == "" {
		t.Error("modality mismatch must carry a suggested fix")
	}
	if c.Blocking() {
		t.Error("low-severity conflict must not be blocking")
	}
}

func TestAgeGroupFitIsMedium(t *testing.T) {
	facts := fittingFacts()
	facts.AgeGroup = "teen"
	conflicts := EvaluateMapping(healthySnapshot(), facts, mappingRules())
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].Severity != SeverityMedium {
		t.Errorf("age mismatch severity = %s, want %s", conflicts[0].Severity, SeverityMedium)
	}
}

func TestHoursFitBands(t *testing.T) {
	tests := []struct {
		name      string
		scheduled float64
		wantSev   Severity
		wantNone  bool
	}{
		{"exact", 40, "", true},
		{"inside tolerance", 41.5, "", true},
		{"medium band", 43, SeverityMedium, false},
		{"high band", 60, SeverityHigh, false},
		{"short by a lot", 20, SeverityHigh, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			facts := fittingFacts()
			facts.ScheduledHours = tc.scheduled
			conflicts := EvaluateMapping(healthySnapshot(), facts, []Rule{
				rule(RuleHoursFit, CategoryMapping, RuleError,
					map[string]any{"tolerance_fraction": 0.05}),
			})
			if tc.wantNone {
				if len(conflicts) != 0 {
					t.Fatalf("expected no conflicts, got %+v", conflicts)
				}
				return
			}
			if len(conflicts) != 1 {
				t.Fatalf("got %d conflicts, want 1", len(conflicts))
			}
			if conflicts[0].Severity != tc.wantSev {
				t.Errorf("severity = %s, want %s", conflicts[0].Severity, tc.wantSev)
			}
		})
	}
}

func TestResourceReadiness(t *testing.T) {
	snap := healthySnapshot()
	snap.Courses[0].Units[0].Resources = nil
	snap.Courses[0].Units[1].Resources = nil
	conflicts := EvaluateMapping(snap, fittingFacts(), []Rule{
		rule(RuleResourceReadiness, CategoryMapping, RuleWarning, nil),
	})
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].CurrentValue != "2" {
		t.Errorf("bare unit count = %q, want 2", conflicts[0].CurrentValue)
	}
}

func TestEvaluationIsDeterministic(t *testing.T) {
	snap := healthySnapshot()
	snap.TotalHours = 60
	snap.Courses[0].Units[0].Resources[0].HealthStatus = content.HealthBroken

	first := EvaluateContent(snap, contentRules())
	for i := 0; i < 5; i++ {
		again := EvaluateContent(snap, contentRules())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}

func TestUnknownRuleIDIsIgnored(t *testing.T) {
	got := EvaluateContent(healthySnapshot(), []Rule{
		rule("future_rule", CategoryContent, RuleError, nil),
	})
	if len(got) != 0 {
		t.Fatalf("unknown rule id produced conflicts: %+v", got)
	}
}
