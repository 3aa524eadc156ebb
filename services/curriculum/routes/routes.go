// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/CurriculumEngine/pkg/audit"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/handlers"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/observability"
	"github.com/AleutianAI/CurriculumEngine/pkg/validation"
	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/rollout"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

var validatorOnce sync.Once

// registerCustomValidators adds the engine's field validators to Gin's
// binding layer so request bodies are rejected before reaching the
// domain layer.
func registerCustomValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("versionlabel", func(fl validator.FieldLevel) bool {
		return validation.ValidateVersionLabel(fl.Field().String()) == nil
	})
	v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return validation.ValidateIdentifier(fl.Field().String()) == nil
	})
}

// SetupRoutes wires all curriculum engine endpoints onto the router.
func SetupRoutes(router *gin.Engine, mgr *lifecycle.Manager, orch *rollout.Orchestrator,
	policy *rules.Store, hub *audit.Hub, emitter audit.Emitter,
	metrics *observability.EngineMetrics) {

	validatorOnce.Do(registerCustomValidators)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		versions := v1.Group("/versions")
		{
			versions.POST("", handlers.CreateVersion(mgr))
			versions.GET("/:versionId", handlers.GetVersion(mgr))
			versions.PUT("/:versionId/content", handlers.UpdateVersionContent(mgr))
			versions.POST("/:versionId/submit", handlers.SubmitVersion(mgr))
			versions.POST("/:versionId/reviewers", handlers.AddReviewer(mgr))
			versions.POST("/:versionId/decisions", handlers.RecordDecision(mgr))
			versions.POST("/:versionId/publish", handlers.PublishVersion(mgr, metrics))
			versions.POST("/:versionId/rollback", handlers.RollbackVersion(mgr))
			versions.POST("/:versionId/archive", handlers.ArchiveVersion(mgr))
			versions.POST("/:versionId/comments", handlers.AddComment(mgr))
			versions.POST("/:versionId/comments/:commentId/resolve", handlers.ResolveComment(mgr))
			versions.GET("/:versionId/readiness", handlers.VersionReadiness(mgr, metrics))
			versions.GET("/:versionId/diff/:baseId", handlers.DiffVersions(mgr))
		}

		v1.GET("/frameworks/:frameworkId/versions", handlers.ListVersions(mgr))

		v1.POST("/mapping/validate", handlers.ValidateMapping(mgr, policy, metrics))

		rollouts := v1.Group("/rollouts")
		{
			rollouts.POST("", handlers.CreatePlan(orch))
			rollouts.GET("", handlers.ListPlans(orch))
			rollouts.GET("/:planId", handlers.GetPlan(orch))
			rollouts.POST("/:planId/prerequisites", handlers.MarkPrerequisite(orch))
			rollouts.POST("/:planId/schedule", handlers.SchedulePlan(orch))
			rollouts.POST("/:planId/execute", handlers.ExecutePlan(orch, metrics))
			rollouts.POST("/:planId/cancel", handlers.CancelPlan(orch))
			rollouts.POST("/:planId/skip", handlers.SkipPlanTarget(orch))
			rollouts.POST("/:planId/rollback", handlers.RollbackPlan(orch))
		}

		policyGroup := v1.Group("/policy")
		{
			policyGroup.GET("", handlers.GetPolicy(policy))
			policyGroup.PUT("", handlers.UpdatePolicy(policy, emitter))
		}

		v1.GET("/events/ws", handlers.StreamEvents(hub))
	}
}
