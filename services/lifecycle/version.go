// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lifecycle governs the immutable, reviewed versions of a
// curriculum (KCT) and the state machine that moves them from draft
// through review to publication and archive.
//
// A version's content is immutable once it leaves draft; edits always
// create a new draft version cloned from a base. Exactly one version
// per curriculum framework may be published at a time - publishing a
// version atomically retires the previously published one to archived
// (never deleted, so it stays available for rollback).
package lifecycle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/CurriculumEngine/services/content"
)

// State is a curriculum version's lifecycle status.
type State string

const (
	StateDraft         State = "draft"
	StatePendingReview State = "pending_review"
	StateApproved      State = "approved"
	StatePublished     State = "published"
	StateArchived      State = "archived"
)

// Valid reports whether the state is one of the known lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateDraft, StatePendingReview, StateApproved, StatePublished, StateArchived:
		return true
	default:
		return false
	}
}

// transitions is the full transition table. A (from, to) pair absent
// here is rejected by construction; there is no ad-hoc bypass.
var transitions = map[State][]State{
	StateDraft:         {StatePendingReview},
	StatePendingReview: {StateApproved, StateDraft},
	StateApproved:      {StatePublished},
	StatePublished:     {StateArchived},
	// Rollback path: an archived version may be re-published. It goes
	// through the same readiness guard as a first publication.
	StateArchived: {StatePublished},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Decision is a reviewer's verdict on a version under review.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ReviewDecision records one reviewer verdict.
type ReviewDecision struct {
	Reviewer string    `json:"reviewer"`
	Decision Decision  `json:"decision"`
	Comment  string    `json:"comment,omitempty"`
	At       time.Time `json:"at"`
}

// Comment is reviewer discussion attached to a version. Comments are
// append-only; resolution toggles freely but a comment is never
// deleted.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Resolved  bool      `json:"resolved"`
}

// CurriculumVersion is one immutable, reviewed snapshot of a
// curriculum framework's course/unit structure.
type CurriculumVersion struct {
	ID           string                  `json:"id"`
	FrameworkID  string                  `json:"framework_id"`
	VersionLabel string                  `json:"version_label"`
	State        State                   `json:"state"`
	CreatedBy    string                  `json:"created_by"`
	CreatedAt    time.Time               `json:"created_at"`
	ApprovedBy   string                  `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time              `json:"approved_at,omitempty"`
	PublishedAt  *time.Time              `json:"published_at,omitempty"`
	Changelog    string                  `json:"changelog,omitempty"`
	Reviewers    []string                `json:"reviewers,omitempty"`
	Decisions    []ReviewDecision        `json:"decisions,omitempty"`
	Comments     []Comment               `json:"comments,omitempty"`
	Content      content.ContentSnapshot `json:"content"`

	// Revision is the optimistic-concurrency token maintained by the
	// store. Two callers racing on the same version see one of them
	// fail with ErrRevisionMismatch instead of silently clobbering.
	Revision int64 `json:"revision"`
}

// HasReviewer reports whether the named reviewer is registered on the
// version.
func (v *CurriculumVersion) HasReviewer(name string) bool {
	for _, r := range v.Reviewers {
		if r == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the version. Stores hand out clones so
// callers can never mutate persisted state in place.
func (v *CurriculumVersion) Clone() *CurriculumVersion {
	out := *v
	out.Reviewers = append([]string(nil), v.Reviewers...)
	out.Decisions = append([]ReviewDecision(nil), v.Decisions...)
	out.Comments = append([]Comment(nil), v.Comments...)
	out.Content = v.Content.Clone()
	if v.ApprovedAt != nil {
		t := *v.ApprovedAt
		out.ApprovedAt = &t
	}
	if v.PublishedAt != nil {
		t := *v.PublishedAt
		out.PublishedAt = &t
	}
	return &out
}

// NextLabel bumps a version label's minor number: "v1.2" -> "v1.3".
// Labels that don't parse fall back to a ".1" suffix rather than
// failing the draft creation.
func NextLabel(label string) string {
	trimmed := strings.TrimPrefix(label, "v")
	parts := strings.Split(trimmed, ".")
	if len(parts) == 2 {
		major, majErr := strconv.Atoi(parts[0])
		minor, minErr := strconv.Atoi(parts[1])
		if majErr == nil && minErr == nil {
			return fmt.Sprintf("v%d.%d", major, minor+1)
		}
	}
	return label + ".1"
}
