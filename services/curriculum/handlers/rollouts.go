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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CurriculumEngine/services/curriculum/datatypes"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/observability"
	"github.com/AleutianAI/CurriculumEngine/services/rollout"
)

// CreatePlan handles POST /v1/rollouts.
func CreatePlan(orch *rollout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreatePlanRequest
		if !bindJSON(c, &req) {
			return
		}
		plan, err := orch.CreatePlan(c.Request.Context(), rollout.CreatePlanInput{
			KCTVersionID:   req.VersionID,
			Scope:          rollout.Scope(req.Scope),
			TargetClassIDs: req.Targets,
			ScheduledAt:    req.ScheduledAt,
			Prerequisites:  req.Prerequisites,
			CreatedBy:      req.Author,
		})
		if err != nil {
			writeDomainError(c, err)
			return
		}
		slog.Info("created rollout plan",
			"planId", plan.ID, "versionId", plan.KCTVersionID, "targets", len(plan.TargetClassIDs))
		c.JSON(http.StatusCreated, datatypes.PlanResponse{Plan: plan})
	}
}

// GetPlan handles GET /v1/rollouts/:planId.
func GetPlan(orch *rollout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := orch.Get(c.Request.Context(), c.Param("planId"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.PlanResponse{Plan: plan})
	}
}

// ListPlans handles GET /v1/rollouts.
func ListPlans(orch *rollout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans, err := orch.List(c.Request.Context())
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.PlanListResponse{Plans: plans, Count: len(plans)})
	}
}

// MarkPrerequisite handles POST /v1/rollouts/:planId/prerequisites.
func MarkPrerequisite(orch *rollout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.PrerequisiteRequest
		if !bindJSON(c, &req) {
			return
		}
		plan, err := orch.MarkPrerequisite(c.Request.Context(),
			c.Param("planId"), req.Name, req.Satisfied)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.PlanResponse{Plan: plan})
	}
}

// SchedulePlan handles POST /v1/rollouts/:planId/schedule.
func SchedulePlan(orch *rollout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := orch.Schedule(c.Request.Context(), c.Param("planId"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.PlanResponse{Plan: plan})
	}
}

// ExecutePlan handles POST /v1/rollouts/:planId/execute. The call is
// synchronous: it returns once every target reached a terminal state.
// Clients wanting live progress should watch /v1/events/ws.
func ExecutePlan(orch *rollout.Orchestrator, metrics *observability.EngineMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		planID := c.Param("planId")
		if metrics != nil {
			metrics.ActiveRollouts.Inc()
			defer metrics.ActiveRollouts.Dec()
		}
		start := time.Now()
		plan, err := orch.Execute(c.Request.Context(), planID)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		if metrics != nil {
			metrics.RolloutDurationSeconds.Observe(time.Since(start).Seconds())
			metrics.RolloutTargetsTotal.WithLabelValues("applied").Add(float64(plan.AppliedCount))
			metrics.RolloutTargetsTotal.WithLabelValues("failed").Add(float64(plan.FailedCount))
			metrics.RolloutTargetsTotal.WithLabelValues("skipped").Add(float64(plan.SkippedCount))
		}
		slog.Info("rollout plan finished",
			"planId", planID, "status", plan.Status,
			"applied", plan.AppliedCount, "failed", plan.FailedCount, "skipped", plan.SkippedCount)
		c.JSON(http.StatusOK, datatypes.PlanResponse{Plan: plan})
	}
}

// CancelPlan handles POST /v1/rollouts/:planId/cancel.
func CancelPlan(orch *rollout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TransitionRequest
		if !bindJSON(c, &req) {
			return
		}
		plan, err := orch.Cancel(c.Request.Context(), c.Param("planId"), req.Actor)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.PlanResponse{Plan: plan})
	}
}

// SkipPlanTarget handles POST /v1/rollouts/:planId/skip.
func SkipPlanTarget(orch *rollout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SkipTargetRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := orch.SkipTarget(c.Request.Context(), c.Param("planId"), req.ClassID); err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "skipped", "classId": req.ClassID})
	}
}

// RollbackPlan handles POST /v1/rollouts/:planId/rollback.
func RollbackPlan(orch *rollout.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TransitionRequest
		if !bindJSON(c, &req) {
			return
		}
		plan, err := orch.Rollback(c.Request.Context(), c.Param("planId"), req.Actor)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.PlanResponse{Plan: plan})
	}
}
