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
	"fmt"

	"github.com/AleutianAI/CurriculumEngine/services/content"
)

// ChangeType classifies a structural difference between two versions.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change is one structural difference shown to reviewers. Diffs are
// informational only and never gate a transition.
type Change struct {
	Type        ChangeType `json:"type"`
	Field       string     `json:"field"`
	OldValue    string     `json:"old_value"`
	NewValue    string     `json:"new_value"`
	Description string     `json:"description"`
}

// Diff structurally compares two content snapshots: course count,
// total hours (sum of unit durations across all courses), and unit
// count.
func Diff(current, previous content.ContentSnapshot) []Change {
	var changes []Change

	curCourses, prevCourses := len(current.Courses), len(previous.Courses)
	if curCourses != prevCourses {
		changes = append(changes, countChange("courses", "course", prevCourses, curCourses))
	}

	curHours, prevHours := current.UnitHours(), previous.UnitHours()
	if curHours != prevHours {
		changes = append(changes, Change{
			Type:        ChangeModified,
			Field:       "total_hours",
			OldValue:    fmt.Sprintf("%.1f", prevHours),
			NewValue:    fmt.Sprintf("%.1f", curHours),
			Description: fmt.Sprintf("total unit hours changed from %.1f to %.1f", prevHours, curHours),
		})
	}

	curUnits, prevUnits := current.UnitCount(), previous.UnitCount()
	if curUnits != prevUnits {
		changes = append(changes, countChange("units", "unit", prevUnits, curUnits))
	}

	return changes
}

func countChange(field, noun string, prev, cur int) Change {
	changeType := ChangeAdded
	verb := "added"
	delta := cur - prev
	if delta < 0 {
		changeType = ChangeRemoved
		verb = "removed"
		delta = -delta
	}
	return Change{
		Type:        changeType,
		Field:       field,
		OldValue:    fmt.Sprintf("%d", prev),
		NewValue:    fmt.Sprintf("%d", cur),
		Description: fmt.Sprintf("%d %s(s) %s", delta, noun, verb),
	}
}
