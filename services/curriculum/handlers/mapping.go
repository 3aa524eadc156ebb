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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/CurriculumEngine/services/curriculum/datatypes"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/observability"
	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/mapping"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

// ValidateMapping handles POST /v1/mapping/validate. It is a dry run:
// the report is computed fresh and nothing is applied or persisted.
func ValidateMapping(mgr *lifecycle.Manager, policy *rules.Store,
	metrics *observability.EngineMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ValidateMappingRequest
		if !bindJSON(c, &req) {
			return
		}
		version, err := mgr.Get(c.Request.Context(), req.VersionID)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		report := mapping.Validate(version, policy.Snapshot(), req.Classes...)
		trace.SpanFromContext(c.Request.Context()).SetAttributes(
			attribute.String("curriculum.version_id", req.VersionID),
			attribute.Int("curriculum.class_count", len(req.Classes)),
			attribute.String("curriculum.risk_level", string(report.RiskLevel)))
		if metrics != nil {
			outcome := "ok"
			if !report.CanProceed {
				outcome = "blocked"
			}
			metrics.ValidationsTotal.WithLabelValues("mapping", outcome).Inc()
			for _, conflict := range report.Conflicts {
				metrics.ConflictsTotal.WithLabelValues(string(conflict.Severity)).Inc()
			}
		}
		status := http.StatusOK
		if !report.CanProceed {
			status = http.StatusConflict
		}
		c.JSON(status, datatypes.MappingReportResponse{Report: &report})
	}
}
