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
	"testing"
	"time"

	"github.com/AleutianAI/CurriculumEngine/services/content"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateDraft, StatePendingReview, true},
		{StatePendingReview, StateApproved, true},
		{StatePendingReview, StateDraft, true},
		{StateApproved, StatePublished, true},
		{StatePublished, StateArchived, true},
		{StateArchived, StatePublished, true},

		{StateDraft, StatePublished, false},
		{StateDraft, StateApproved, false},
		{StateDraft, StateArchived, false},
		{StateApproved, StateDraft, false},
		{StateApproved, StateArchived, false},
		{StatePublished, StateDraft, false},
		{StatePublished, StatePendingReview, false},
		{StateArchived, StateDraft, false},
		{StateArchived, StateArchived, false},
		{StatePendingReview, StatePublished, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StateDraft, StatePendingReview, StateApproved, StatePublished, StateArchived} {
		if !s.Valid() {
			t.Errorf("state %s should be valid", s)
		}
	}
	if State("retired").Valid() {
		t.Error("unknown state should not be valid")
	}
	if State("").Valid() {
		t.Error("empty state should not be valid")
	}
}

func TestNextLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"v1.2", "v1.3"},
		{"v1.0", "v1.1"},
		{"v12.9", "v12.10"},
		{"v2", "v2.1"},
		{"v1.2.3", "v1.2.3.1"},
		{"release-candidate", "release-candidate.1"},
		{"", ".1"},
	}
	for _, tc := range tests {
		if got := NextLabel(tc.in); got != tc.want {
			t.Errorf("NextLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVersionCloneIsDeep(t *testing.T) {
	now := time.Now().UTC()
	v := &CurriculumVersion{
		ID:          "v-1",
		FrameworkID: "fw-1",
		State:       StateApproved,
		Reviewers:   []string{"ana"},
		Decisions:   []ReviewDecision{{Reviewer: "ana", Decision: DecisionApprove, At: now}},
		Comments:    []Comment{{ID: "c-1", Author: "ana", Text: "looks good"}},
		ApprovedAt:  &now,
		Content: content.ContentSnapshot{
			Courses: []content.Course{{ID: "course-1"}},
		},
	}

	clone := v.Clone()
	clone.Reviewers[0] = "bob"
	clone.Decisions[0].Decision = DecisionReject
	clone.Comments[0].Resolved = true
	clone.Content.Courses[0].ID = "tampered"
	*clone.ApprovedAt = clone.ApprovedAt.Add(time.Hour)

	if v.Reviewers[0] != "ana" {
		t.Error("clone shares the reviewers slice")
	}
	if v.Decisions[0].Decision != DecisionApprove {
		t.Error("clone shares the decisions slice")
	}
	if v.Comments[0].Resolved {
		t.Error("clone shares the comments slice")
	}
	if v.Content.Courses[0].ID != "course-1" {
		t.Error("clone shares the content snapshot")
	}
	if !v.ApprovedAt.Equal(now) {
		t.Error("clone shares the approval timestamp")
	}
}

func TestHasReviewer(t *testing.T) {
	v := &CurriculumVersion{Reviewers: []string{"ana", "bob"}}
	if !v.HasReviewer("bob") {
		t.Error("registered reviewer not found")
	}
	if v.HasReviewer("carol") {
		t.Error("unregistered reviewer reported as present")
	}
}
