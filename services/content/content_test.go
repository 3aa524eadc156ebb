// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package content

import (
	"testing"
)

func TestUnitHoursAndCount(t *testing.T) {
	snap := ContentSnapshot{
		Courses: []Course{
			{ID: "c1", Units: []Unit{
				{ID: "u1", DurationHours: 10.5},
				{ID: "u2", DurationHours: 4.5},
			}},
			{ID: "c2", Units: []Unit{
				{ID: "u3", DurationHours: 5},
			}},
		},
	}

	if got := snap.UnitHours(); got != 20 {
		t.Errorf("UnitHours() = %v, want 20", got)
	}
	if got := snap.UnitCount(); got != 3 {
		t.Errorf("UnitCount() = %v, want 3", got)
	}
}

func TestCEFRRank(t *testing.T) {
	tests := []struct {
		level   string
		rank    int
		wantErr bool
	}{
		{"A1", 1, false},
		{"a2", 2, false},
		{" B1 ", 3, false},
		{"C2", 6, false},
		{"D1", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			rank, err := CEFRRank(tc.level)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("CEFRRank(%q) expected error, got rank %d", tc.level, rank)
				}
				return
			}
			if err != nil {
				t.Fatalf("CEFRRank(%q) unexpected error: %v", tc.level, err)
			}
			if rank != tc.rank {
				t.Errorf("CEFRRank(%q) = %d, want %d", tc.level, rank, tc.rank)
			}
		})
	}
}

func TestLevelInRange(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		declared []string
		want     bool
	}{
		{"inside explicit set", "B2", []string{"B2", "C1"}, true},
		{"below range", "B1", []string{"B2", "C1"}, false},
		{"above range", "C2", []string{"B2", "C1"}, false},
		{"contiguous gap covered", "B1", []string{"A2", "B2"}, true},
		{"no declared levels matches all", "A1", nil, true},
		{"unknown level never matches", "X9", []string{"A1", "C2"}, false},
		{"only garbage declared matches all", "B1", []string{"??"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := LevelInRange(tc.level, tc.declared); got != tc.want {
				t.Errorf("LevelInRange(%q, %v) = %v, want %v", tc.level, tc.declared, got, tc.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := ContentSnapshot{
		SchemaVersion: SchemaVersion,
		Levels:        []string{"A1", "A2"},
		Courses: []Course{
			{ID: "c1", Units: []Unit{
				{
					ID:     "u1",
					Skills: []string{"reading"},
					Resources: []Resource{
						{
							ID:           "r1",
							HealthStatus: HealthHealthy,
							SkillTags:    []string{"listening"},
							Formats:      []string{"captions"},
						},
					},
					Assessment: &Assessment{
						RubricID: "rb1",
						Criteria: []RubricCriterion{{ID: "cr1", Weight: 1}},
					},
				},
			}},
		},
	}

	clone := original.Clone()
	clone.Levels[0] = "C2"
	clone.Courses[0].Units[0].Skills[0] = "writing"
	clone.Courses[0].Units[0].Resources[0].HealthStatus = HealthBroken
	clone.Courses[0].Units[0].Resources[0].SkillTags[0] = "writing"
	clone.Courses[0].Units[0].Resources[0].Formats[0] = "audio"
	clone.Courses[0].Units[0].Assessment.RubricID = "changed"

	if original.Levels[0] != "A1" {
		t.Error("clone shares Levels with original")
	}
	if original.Courses[0].Units[0].Skills[0] != "reading" {
		t.Error("clone shares unit skills with original")
	}
	if original.Courses[0].Units[0].Resources[0].HealthStatus != HealthHealthy {
		t.Error("clone shares resources with original")
	}
	if original.Courses[0].Units[0].Resources[0].SkillTags[0] != "listening" {
		t.Error("clone shares resource skill tags with original")
	}
	if original.Courses[0].Units[0].Resources[0].Formats[0] != "captions" {
		t.Error("clone shares resource formats with original")
	}
	if original.Courses[0].Units[0].Assessment.RubricID != "rb1" {
		t.Error("clone shares assessment with original")
	}
}
