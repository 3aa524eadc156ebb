// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers of the curriculum
// engine API. Each handler is a constructor closing over its
// dependencies and returning a gin.HandlerFunc.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CurriculumEngine/services/curriculum/datatypes"
	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/rollout"
)

// writeDomainError maps domain errors onto HTTP status codes and a
// uniform JSON error body. Unknown errors become a 500 without leaking
// internals.
func writeDomainError(c *gin.Context, err error) {
	var (
		invalidTransition *lifecycle.InvalidTransitionError
		publishBlocked    *lifecycle.PublishBlockedError
		concurrentMod     *lifecycle.ConcurrentModificationError
		planState         *rollout.PlanStateError
		prereq            *rollout.PrerequisiteUnsatisfiedError
	)

	switch {
	case errors.Is(err, lifecycle.ErrNotFound),
		errors.Is(err, rollout.ErrPlanNotFound),
		errors.Is(err, rollout.ErrClassNotFound):
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: err.Error()})
	case errors.As(err, &publishBlocked):
		c.JSON(http.StatusConflict, datatypes.ErrorResponse{
			Error:   "publish blocked by readiness checks",
			Details: publishBlocked.BlockingIssues,
		})
	case errors.As(err, &concurrentMod):
		c.JSON(http.StatusConflict, datatypes.ErrorResponse{Error: err.Error()})
	case errors.As(err, &invalidTransition),
		errors.As(err, &planState),
		errors.Is(err, lifecycle.ErrContentFrozen),
		errors.Is(err, rollout.ErrCancelInFlight):
		c.JSON(http.StatusConflict, datatypes.ErrorResponse{Error: err.Error()})
	case errors.As(err, &prereq):
		c.JSON(http.StatusPreconditionFailed, datatypes.ErrorResponse{
			Error:   "unsatisfied prerequisites",
			Details: prereq.Missing,
		})
	case errors.Is(err, lifecycle.ErrEmptyContent),
		errors.Is(err, lifecycle.ErrUnknownReviewer),
		errors.Is(err, rollout.ErrNoTargets):
		c.JSON(http.StatusUnprocessableEntity, datatypes.ErrorResponse{Error: err.Error()})
	default:
		slog.Error("unhandled error in handler", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError,
			datatypes.ErrorResponse{Error: "internal error"})
	}
}

// bindJSON binds and reports a 400 on failure. Returns false when the
// request was already answered.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}
