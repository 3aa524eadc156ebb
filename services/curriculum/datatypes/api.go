// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the request and response bodies of the
// curriculum engine HTTP API.
package datatypes

import (
	"time"

	"github.com/AleutianAI/CurriculumEngine/services/content"
	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/mapping"
	"github.com/AleutianAI/CurriculumEngine/services/rollout"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

// CreateVersionRequest creates a new draft version. Exactly one of
// BaseVersionID or Content must be set: cloning an existing version or
// starting from explicit content.
type CreateVersionRequest struct {
	FrameworkID   string                   `json:"frameworkId" binding:"required,identifier"`
	Label         string                   `json:"label" binding:"omitempty,versionlabel"`
	BaseVersionID string                   `json:"baseVersionId"`
	Content       *content.ContentSnapshot `json:"content"`
	Changelog     string                   `json:"changelog"`
	Author        string                   `json:"author" binding:"required"`
}

// UpdateContentRequest replaces a draft version's content snapshot.
type UpdateContentRequest struct {
	Content *content.ContentSnapshot `json:"content" binding:"required"`
}

// TransitionRequest drives the version state machine.
type TransitionRequest struct {
	Actor string `json:"actor" binding:"required"`
	Note  string `json:"note"`
}

// ReviewerRequest registers a reviewer on a pending version.
type ReviewerRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
	Actor    string `json:"actor" binding:"required"`
}

// DecisionRequest records an approve or reject decision.
type DecisionRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Comment  string `json:"comment"`
}

// CommentRequest attaches a review comment to a version.
type CommentRequest struct {
	Author string `json:"author" binding:"required"`
	Body   string `json:"body" binding:"required"`
}

// ResolveCommentRequest sets a comment's resolution flag. Resolution
// toggles freely, so false reopens a resolved comment.
type ResolveCommentRequest struct {
	Resolved bool `json:"resolved"`
}

// VersionResponse is the wire form of a curriculum version.
type VersionResponse struct {
	Version *lifecycle.CurriculumVersion `json:"version"`
}

// VersionListResponse lists versions in a framework.
type VersionListResponse struct {
	Versions []*lifecycle.CurriculumVersion `json:"versions"`
	Count    int                            `json:"count"`
}

// ReadinessResponse reports publish readiness for a version.
type ReadinessResponse struct {
	VersionID string               `json:"versionId"`
	Readiness *lifecycle.Readiness `json:"readiness"`
}

// DiffResponse lists the changes between two versions.
type DiffResponse struct {
	BaseVersionID   string             `json:"baseVersionId"`
	TargetVersionID string             `json:"targetVersionId"`
	Changes         []lifecycle.Change `json:"changes"`
}

// ValidateMappingRequest validates a version against one or more
// classes without applying anything.
type ValidateMappingRequest struct {
	VersionID string             `json:"versionId" binding:"required"`
	Classes   []rules.ClassFacts `json:"classes" binding:"required,min=1"`
}

// MappingReportResponse carries a mapping validation report.
type MappingReportResponse struct {
	Report *mapping.Report `json:"report"`
}

// CreatePlanRequest creates a rollout plan in draft state.
type CreatePlanRequest struct {
	VersionID     string    `json:"versionId" binding:"required"`
	Scope         string    `json:"scope" binding:"required,oneof=campus program global"`
	Targets       []string  `json:"targets" binding:"required,min=1"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Prerequisites []string  `json:"prerequisites"`
	Author        string    `json:"author" binding:"required"`
}

// PrerequisiteRequest marks a named prerequisite satisfied or not.
type PrerequisiteRequest struct {
	Name      string `json:"name" binding:"required"`
	Satisfied bool   `json:"satisfied"`
	Actor     string `json:"actor" binding:"required"`
}

// SkipTargetRequest excludes a class from a plan.
type SkipTargetRequest struct {
	ClassID string `json:"classId" binding:"required"`
	Actor   string `json:"actor" binding:"required"`
}

// PlanResponse is the wire form of a rollout plan.
type PlanResponse struct {
	Plan *rollout.Plan `json:"plan"`
}

// PlanListResponse lists rollout plans.
type PlanListResponse struct {
	Plans []*rollout.Plan `json:"plans"`
	Count int             `json:"count"`
}

// PolicyResponse exposes the active validation rule set.
type PolicyResponse struct {
	Settings rules.Settings `json:"settings"`
	Rules    []rules.Rule   `json:"rules"`
}

// UpdatePolicyRequest replaces the active rule set.
type UpdatePolicyRequest struct {
	Rules []rules.Rule `json:"rules" binding:"required,min=1"`
	Actor string       `json:"actor" binding:"required"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
