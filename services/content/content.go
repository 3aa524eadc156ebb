// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package content defines the immutable curriculum content tree.
//
// A ContentSnapshot is the full course/unit structure of one curriculum
// (KCT) version. Snapshots are explicitly-versioned, strongly-typed
// structures rather than free-form maps so the rules engine can inspect
// them without type assertions. Once a version leaves draft state its
// snapshot never changes; edits happen on a cloned snapshot inside a
// new draft version.
package content

import (
	"fmt"
	"strings"
)

// SchemaVersion is the current snapshot schema version. Stored with
// every snapshot so older persisted payloads can be migrated explicitly.
const SchemaVersion = 1

// HealthStatus describes the link-check result for a resource.
type HealthStatus string

const (
	HealthHealthy    HealthStatus = "healthy"
	HealthExpired    HealthStatus = "expired"
	HealthRestricted HealthStatus = "restricted"
	HealthBroken     HealthStatus = "broken"
)

// Modality describes how a curriculum is intended to be delivered.
type Modality string

const (
	ModalityOnline  Modality = "online"
	ModalityOffline Modality = "offline"
	ModalityHybrid  Modality = "hybrid"
)

// RubricCriterion is one scored criterion on an assessment rubric.
type RubricCriterion struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Assessment links a unit to a grading rubric. A nil Assessment means
// the unit is ungraded; a non-nil Assessment must reference a rubric
// with at least one criterion to pass publish validation.
type Assessment struct {
	RubricID string            `json:"rubric_id"`
	Criteria []RubricCriterion `json:"criteria"`
}

// Resource is a teaching material attached to a unit.
type Resource struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Kind         string       `json:"kind,omitempty"`
	URL          string       `json:"url,omitempty"`
	SkillTags    []string     `json:"skill_tags,omitempty"`
	Formats      []string     `json:"formats,omitempty"`
	HealthStatus HealthStatus `json:"health_status"`
}

// Unit is one teachable unit inside a course.
type Unit struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	DurationHours float64     `json:"duration_hours"`
	Objectives    []string    `json:"objectives,omitempty"`
	Skills        []string    `json:"skills,omitempty"`
	Activities    []string    `json:"activities,omitempty"`
	Resources     []Resource  `json:"resources,omitempty"`
	Assessment    *Assessment `json:"assessment,omitempty"`
}

// Course groups units under one course of the curriculum.
type Course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Units []Unit `json:"units"`
}

// ContentSnapshot is the immutable content tree of one curriculum version.
type ContentSnapshot struct {
	SchemaVersion int      `json:"schema_version"`
	TotalHours    float64  `json:"total_hours"`
	Levels        []string `json:"levels,omitempty"`
	Modality      Modality `json:"modality,omitempty"`
	AgeGroup      string   `json:"age_group,omitempty"`
	Courses       []Course `json:"courses"`
}

// UnitHours returns the sum of unit durations across all courses.
func (s ContentSnapshot) UnitHours() float64 {
	var total float64
	for _, c := range s.Courses {
		for _, u := range c.Units {
			total += u.DurationHours
		}
	}
	return total
}

// UnitCount returns the number of units across all courses.
func (s ContentSnapshot) UnitCount() int {
	var n int
	for _, c := range s.Courses {
		n += len(c.Units)
	}
	return n
}

// Clone returns a deep copy of the snapshot. Used when a new draft
// version is created from a published base so the two versions never
// share mutable slices.
func (s ContentSnapshot) Clone() ContentSnapshot {
	out := s
	out.Levels = append([]string(nil), s.Levels...)
	out.Courses = make([]Course, len(s.Courses))
	for i, c := range s.Courses {
		cc := c
		cc.Units = make([]Unit, len(c.Units))
		for j, u := range c.Units {
			uu := u
			uu.Objectives = append([]string(nil), u.Objectives...)
			uu.Skills = append([]string(nil), u.Skills...)
			uu.Activities = append([]string(nil), u.Activities...)
			uu.Resources = make([]Resource, len(u.Resources))
			for k, r := range u.Resources {
				rr := r
				rr.SkillTags = append([]string(nil), r.SkillTags...)
				rr.Formats = append([]string(nil), r.Formats...)
				uu.Resources[k] = rr
			}
			if u.Assessment != nil {
				a := *u.Assessment
				a.Criteria = append([]RubricCriterion(nil), u.Assessment.Criteria...)
				uu.Assessment = &a
			}
			cc.Units[j] = uu
		}
		out.Courses[i] = cc
	}
	return out
}

// cefrOrder maps CEFR level names to a comparable rank.
var cefrOrder = map[string]int{
	"A1": 1, "A2": 2, "B1": 3, "B2": 4, "C1": 5, "C2": 6,
}

// CEFRRank returns the ordinal rank of a CEFR level (A1=1 .. C2=6).
// Returns an error for unknown levels so callers fail loudly instead
// of silently treating garbage as a non-match.
func CEFRRank(level string) (int, error) {
	rank, ok := cefrOrder[strings.ToUpper(strings.TrimSpace(level))]
	if !ok {
		return 0, fmt.Errorf("unknown CEFR level %q", level)
	}
	return rank, nil
}

// LevelInRange reports whether level falls within the span covered by
// declared levels. The declared set is treated as a contiguous range
// from its minimum to its maximum rank, so a version declaring
// ["B2","C1"] covers B2 and C1 but not B1. Unknown levels never match.
func LevelInRange(level string, declared []string) bool {
	if len(declared) == 0 {
		return true
	}
	rank, err := CEFRRank(level)
	if err != nil {
		return false
	}
	lo, hi := 0, 0
	for _, d := range declared {
		r, err := CEFRRank(d)
		if err != nil {
			continue
		}
		if lo == 0 || r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	if lo == 0 {
		return true
	}
	return rank >= lo && rank <= hi
}
