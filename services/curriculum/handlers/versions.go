// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CurriculumEngine/services/content"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/datatypes"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/observability"
	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
)

// CreateVersion handles POST /v1/versions.
func CreateVersion(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateVersionRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.BaseVersionID == "" && req.Content == nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: "one of baseVersionId or content is required"})
			return
		}
		input := lifecycle.CreateDraftInput{
			FrameworkID:   req.FrameworkID,
			CreatedBy:     req.Author,
			Changelog:     req.Changelog,
			BaseVersionID: req.BaseVersionID,
			Label:         req.Label,
		}
		if req.Content != nil {
			input.Content = *req.Content
		}
		v, err := mgr.CreateDraft(c.Request.Context(), input)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		slog.Info("created draft version",
			"versionId", v.ID, "frameworkId", v.FrameworkID, "label", v.VersionLabel)
		c.JSON(http.StatusCreated, datatypes.VersionResponse{Version: v})
	}
}

// GetVersion handles GET /v1/versions/:versionId.
func GetVersion(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := mgr.Get(c.Request.Context(), c.Param("versionId"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// ListVersions handles GET /v1/frameworks/:frameworkId/versions.
func ListVersions(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		versions, err := mgr.List(c.Request.Context(), c.Param("frameworkId"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionListResponse{
			Versions: versions, Count: len(versions)})
	}
}

// UpdateVersionContent handles PUT /v1/versions/:versionId/content.
func UpdateVersionContent(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdateContentRequest
		if !bindJSON(c, &req) {
			return
		}
		var snap content.ContentSnapshot
		if req.Content != nil {
			snap = *req.Content
		}
		v, err := mgr.UpdateDraftContent(c.Request.Context(), c.Param("versionId"), snap)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// SubmitVersion handles POST /v1/versions/:versionId/submit.
func SubmitVersion(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TransitionRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := mgr.Submit(c.Request.Context(), c.Param("versionId"), req.Actor)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// AddReviewer handles POST /v1/versions/:versionId/reviewers.
func AddReviewer(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ReviewerRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := mgr.AddReviewer(c.Request.Context(), c.Param("versionId"), req.Reviewer)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// RecordDecision handles POST /v1/versions/:versionId/decisions.
func RecordDecision(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DecisionRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := mgr.RecordDecision(c.Request.Context(), c.Param("versionId"),
			req.Reviewer, lifecycle.Decision(req.Decision), req.Comment)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// PublishVersion handles POST /v1/versions/:versionId/publish.
func PublishVersion(mgr *lifecycle.Manager, metrics *observability.EngineMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TransitionRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := mgr.Publish(c.Request.Context(), c.Param("versionId"), req.Actor)
		if err != nil {
			if metrics != nil {
				metrics.PublishesTotal.WithLabelValues("blocked").Inc()
			}
			writeDomainError(c, err)
			return
		}
		if metrics != nil {
			metrics.PublishesTotal.WithLabelValues("published").Inc()
		}
		slog.Info("published version", "versionId", v.ID, "frameworkId", v.FrameworkID)
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// RollbackVersion handles POST /v1/versions/:versionId/rollback.
// The named version must be archived; it is re-published through the
// same readiness gate as a normal publish.
func RollbackVersion(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TransitionRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := mgr.Rollback(c.Request.Context(), c.Param("versionId"), req.Actor)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// ArchiveVersion handles POST /v1/versions/:versionId/archive.
func ArchiveVersion(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TransitionRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := mgr.Archive(c.Request.Context(), c.Param("versionId"), req.Actor)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// AddComment handles POST /v1/versions/:versionId/comments.
func AddComment(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CommentRequest
		if !bindJSON(c, &req) {
			return
		}
		v, err := mgr.AddComment(c.Request.Context(), c.Param("versionId"), req.Author, req.Body)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, datatypes.VersionResponse{Version: v})
	}
}

// ResolveComment handles POST /v1/versions/:versionId/comments/:commentId/resolve.
// The body is optional; an empty request resolves the comment, while
// {"resolved": false} reopens it.
func ResolveComment(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := datatypes.ResolveCommentRequest{Resolved: true}
		if c.Request.ContentLength > 0 {
			if !bindJSON(c, &req) {
				return
			}
		}
		v, err := mgr.ResolveComment(c.Request.Context(),
			c.Param("versionId"), c.Param("commentId"), req.Resolved)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.VersionResponse{Version: v})
	}
}

// VersionReadiness handles GET /v1/versions/:versionId/readiness.
func VersionReadiness(mgr *lifecycle.Manager, metrics *observability.EngineMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("versionId")
		r, err := mgr.Readiness(c.Request.Context(), id)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		if metrics != nil {
			outcome := "ready"
			if !r.Ready {
				outcome = "blocked"
			}
			metrics.ValidationsTotal.WithLabelValues("readiness", outcome).Inc()
		}
		c.JSON(http.StatusOK, datatypes.ReadinessResponse{VersionID: id, Readiness: &r})
	}
}

// DiffVersions handles GET /v1/versions/:versionId/diff/:baseId.
func DiffVersions(mgr *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Param("versionId")
		base := c.Param("baseId")
		changes, err := mgr.DiffAgainst(c.Request.Context(), target, base)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.DiffResponse{
			BaseVersionID: base, TargetVersionID: target, Changes: changes})
	}
}
