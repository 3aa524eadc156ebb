// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rollout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/CurriculumEngine/services/mapping"
)

// Scope describes how wide a rollout plan reaches.
type Scope string

const (
	ScopeCampus  Scope = "campus"
	ScopeProgram Scope = "program"
	ScopeGlobal  Scope = "global"
)

// PlanStatus is a rollout plan's lifecycle status. Cancellation before
// execution is modeled as StatusFailed with zero targets attempted and
// a cancellation note - there is no separate terminal state.
type PlanStatus string

const (
	StatusDraft      PlanStatus = "draft"
	StatusScheduled  PlanStatus = "scheduled"
	StatusInProgress PlanStatus = "in_progress"
	StatusCompleted  PlanStatus = "completed"
	StatusFailed     PlanStatus = "failed"
)

// TargetState is the per-class progress state inside a plan.
type TargetState string

const (
	TargetPending   TargetState = "pending"
	TargetValidated TargetState = "validated"
	TargetApplied   TargetState = "applied"
	TargetFailed    TargetState = "failed"
	TargetSkipped   TargetState = "skipped"
)

// Terminal reports whether the target state is final.
func (s TargetState) Terminal() bool {
	return s == TargetApplied || s == TargetFailed || s == TargetSkipped
}

// Prerequisite is an externally-satisfied precondition for scheduling.
// The orchestrator only checks the boolean; the work behind it (QA
// sign-off, teacher training, ...) belongs to external collaborators.
type Prerequisite struct {
	Name      string `json:"name"`
	Satisfied bool   `json:"satisfied"`
}

// Plan is one scheduled, trackable, partially-abortable application of
// a published version across many classes.
type Plan struct {
	ID             string                     `json:"id"`
	KCTVersionID   string                     `json:"kct_version_id"`
	Scope          Scope                      `json:"scope"`
	TargetClassIDs []string                   `json:"target_class_ids"`
	ScheduledAt    time.Time                  `json:"scheduled_at"`
	Status         PlanStatus                 `json:"status"`
	PerTarget      map[string]TargetState     `json:"per_target"`
	TargetReports  map[string]*mapping.Report `json:"target_reports,omitempty"`
	TargetNotes    map[string]string          `json:"target_notes,omitempty"`
	Prerequisites  []Prerequisite             `json:"prerequisites,omitempty"`

	// Progress is the fraction of targets in a terminal state. It is
	// non-decreasing over the lifetime of an execution.
	Progress     float64 `json:"progress"`
	AppliedCount int     `json:"applied_count"`
	FailedCount  int     `json:"failed_count"`
	SkippedCount int     `json:"skipped_count"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	// Revision is the store's optimistic-concurrency token.
	Revision int64 `json:"revision"`
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	out := *p
	out.TargetClassIDs = append([]string(nil), p.TargetClassIDs...)
	out.Prerequisites = append([]Prerequisite(nil), p.Prerequisites...)
	out.PerTarget = make(map[string]TargetState, len(p.PerTarget))
	for k, v := range p.PerTarget {
		out.PerTarget[k] = v
	}
	out.TargetReports = make(map[string]*mapping.Report, len(p.TargetReports))
	for k, v := range p.TargetReports {
		if v != nil {
			r := *v
			out.TargetReports[k] = &r
		}
	}
	out.TargetNotes = make(map[string]string, len(p.TargetNotes))
	for k, v := range p.TargetNotes {
		out.TargetNotes[k] = v
	}
	return &out
}

var (
	// ErrPlanNotFound indicates the requested plan does not exist.
	ErrPlanNotFound = errors.New("rollout plan not found")

	// ErrClassNotFound indicates a target class record is missing.
	ErrClassNotFound = errors.New("class not found")

	// ErrPlanRevisionMismatch is the store's optimistic-concurrency
	// failure for plans.
	ErrPlanRevisionMismatch = errors.New("plan revision mismatch")

	// ErrCancelInFlight indicates a cancel attempt on a plan already
	// executing. Only not-yet-started targets can be skipped then.
	ErrCancelInFlight = errors.New("plan is already executing; skip individual targets instead")

	// ErrNoTargets indicates a plan created without target classes.
	ErrNoTargets = errors.New("rollout plan needs at least one target class")
)

// PlanStateError names a rejected plan status change.
type PlanStateError struct {
	PlanID string
	From   PlanStatus
	To     PlanStatus
}

func (e *PlanStateError) Error() string {
	return fmt.Sprintf("plan %s: transition %s -> %s is not allowed", e.PlanID, e.From, e.To)
}

// PrerequisiteUnsatisfiedError lists the prerequisites still open when
// scheduling was attempted.
type PrerequisiteUnsatisfiedError struct {
	PlanID  string
	Missing []string
}

func (e *PrerequisiteUnsatisfiedError) Error() string {
	return fmt.Sprintf("plan %s has unsatisfied prerequisites: %s",
		e.PlanID, strings.Join(e.Missing, ", "))
}
