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

	"github.com/AleutianAI/CurriculumEngine/pkg/audit"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/datatypes"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

// GetPolicy handles GET /v1/policy.
func GetPolicy(policy *rules.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.PolicyResponse{
			Settings: policy.Settings(),
			Rules:    policy.Snapshot(),
		})
	}
}

// UpdatePolicy handles PUT /v1/policy. The new rule set takes effect
// for every subsequent validation; in-flight evaluations keep the
// snapshot they started with.
func UpdatePolicy(policy *rules.Store, emitter audit.Emitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdatePolicyRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := policy.Update(req.Rules); err != nil {
			c.JSON(http.StatusUnprocessableEntity,
				datatypes.ErrorResponse{Error: err.Error()})
			return
		}
		slog.Info("validation policy updated", "rules", len(req.Rules), "actor", req.Actor)
		if emitter != nil {
			emitter.Emit(c.Request.Context(), audit.New(audit.EventPolicyUpdated, req.Actor, "policy",
				map[string]any{"ruleCount": len(req.Rules)}))
		}
		c.JSON(http.StatusOK, datatypes.PolicyResponse{
			Settings: policy.Settings(),
			Rules:    policy.Snapshot(),
		})
	}
}
