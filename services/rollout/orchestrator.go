// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rollout schedules and executes the application of a
// published curriculum version across many target classes.
//
// # Description
//
// A rollout plan moves draft -> scheduled -> in_progress ->
// completed/failed. Execution validates and applies each target class
// independently on a bounded worker pool: one class failing its
// mapping validation degrades that single target to failed and the
// plan keeps going. Partial success is not failure - a plan only ends
// failed when zero targets were applied.
//
// # Concurrency
//
// Targets within one plan are independent and idempotent per class, so
// they run concurrently with no ordering guarantee. Every target gets
// a fresh facts read and a fresh mapping validation; caching a report
// across targets would be a correctness bug. Plan progress updates are
// serialized through a per-execution mutex and are non-decreasing.
package rollout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/CurriculumEngine/pkg/audit"
	"github.com/AleutianAI/CurriculumEngine/pkg/validation"
	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/mapping"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PlanStore is the plan persistence boundary. Implementations return
// clones and enforce optimistic revisions on Put.
type PlanStore interface {
	GetPlan(ctx context.Context, id string) (*Plan, error)
	PutPlan(ctx context.Context, plan *Plan) error
	ListPlans(ctx context.Context) ([]*Plan, error)
}

// ClassStore is the class persistence boundary (external collaborator
// in production, badger-backed in this repo).
type ClassStore interface {
	GetClass(ctx context.Context, id string) (*mapping.ClassRecord, error)
	PutClass(ctx context.Context, record *mapping.ClassRecord) error
}

// VersionReader is the narrow slice of the version store the
// orchestrator needs.
type VersionReader interface {
	GetVersion(ctx context.Context, id string) (*lifecycle.CurriculumVersion, error)
}

// Orchestrator drives rollout plans.
type Orchestrator struct {
	plans    PlanStore
	classes  ClassStore
	versions VersionReader
	policy   *rules.Store
	emitter  audit.Emitter
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	planLocks map[string]*sync.Mutex
	// skips holds operator skip requests for in-flight executions,
	// keyed by plan then class. Workers consult it right before
	// starting a target.
	skips map[string]map[string]bool
}

// New wires a rollout orchestrator.
func New(plans PlanStore, classes ClassStore, versions VersionReader, policy *rules.Store, emitter audit.Emitter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = audit.SlogEmitter{Logger: logger}
	}
	return &Orchestrator{
		plans:     plans,
		classes:   classes,
		versions:  versions,
		policy:    policy,
		emitter:   emitter,
		logger:    logger,
		now:       time.Now,
		planLocks: make(map[string]*sync.Mutex),
		skips:     make(map[string]map[string]bool),
	}
}

func (o *Orchestrator) planLock(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.planLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.planLocks[id] = lock
	}
	return lock
}

// CreatePlanInput describes a new rollout plan.
type CreatePlanInput struct {
	KCTVersionID   string
	Scope          Scope
	TargetClassIDs []string
	ScheduledAt    time.Time
	Prerequisites  []string
	CreatedBy      string
}

// CreatePlan creates a draft plan after checking the version exists.
func (o *Orchestrator) CreatePlan(ctx context.Context, input CreatePlanInput) (*Plan, error) {
	if len(input.TargetClassIDs) == 0 {
		return nil, ErrNoTargets
	}
	if err := validation.ValidateIdentifiers(input.TargetClassIDs); err != nil {
		return nil, fmt.Errorf("target class ids: %w", err)
	}
	if _, err := o.versions.GetVersion(ctx, input.KCTVersionID); err != nil {
		return nil, fmt.Errorf("load version %s: %w", input.KCTVersionID, err)
	}

	targets := dedupe(input.TargetClassIDs)
	plan := &Plan{
		ID:             uuid.NewString(),
		KCTVersionID:   input.KCTVersionID,
		Scope:          input.Scope,
		TargetClassIDs: targets,
		ScheduledAt:    input.ScheduledAt,
		Status:         StatusDraft,
		PerTarget:      make(map[string]TargetState, len(targets)),
		TargetReports:  make(map[string]*mapping.Report),
		TargetNotes:    make(map[string]string),
		CreatedBy:      input.CreatedBy,
		CreatedAt:      o.now().UTC(),
	}
	for _, id := range targets {
		plan.PerTarget[id] = TargetPending
	}
	for _, name := range input.Prerequisites {
		plan.Prerequisites = append(plan.Prerequisites, Prerequisite{Name: name})
	}

	if err := o.plans.PutPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	o.logger.InfoContext(ctx, "rollout plan created",
		"plan_id", plan.ID, "version_id", plan.KCTVersionID, "targets", len(targets))
	return plan, nil
}

// MarkPrerequisite records a prerequisite as satisfied (or not).
// Prerequisite work happens outside the engine; this is bookkeeping.
func (o *Orchestrator) MarkPrerequisite(ctx context.Context, planID, name string, satisfied bool) (*Plan, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != StatusDraft && plan.Status != StatusScheduled {
		return nil, fmt.Errorf("plan %s is %s; prerequisites are frozen", planID, plan.Status)
	}
	for i := range plan.Prerequisites {
		if plan.Prerequisites[i].Name == name {
			plan.Prerequisites[i].Satisfied = satisfied
			if err := o.putPlan(ctx, plan); err != nil {
				return nil, err
			}
			return plan, nil
		}
	}
	return nil, fmt.Errorf("plan %s has no prerequisite %q", planID, name)
}

// Schedule moves a draft plan to scheduled. Every prerequisite must be
// satisfied first.
func (o *Orchestrator) Schedule(ctx context.Context, planID string) (*Plan, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != StatusDraft {
		return nil, &PlanStateError{PlanID: planID, From: plan.Status, To: StatusScheduled}
	}

	var missing []string
	for _, p := range plan.Prerequisites {
		if !p.Satisfied {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &PrerequisiteUnsatisfiedError{PlanID: planID, Missing: missing}
	}

	plan.Status = StatusScheduled
	if err := o.putPlan(ctx, plan); err != nil {
		return nil, err
	}
	o.emitter.Emit(ctx, audit.New(audit.EventRolloutScheduled, plan.CreatedBy, plan.ID, map[string]any{
		"version_id": plan.KCTVersionID,
		"targets":    len(plan.TargetClassIDs),
	}))
	return plan, nil
}

// Cancel aborts a plan that has not started executing. Cancellation is
// terminal: the plan ends failed with zero targets attempted. A plan
// already in progress cannot be cancelled - skip its remaining targets
// instead.
func (o *Orchestrator) Cancel(ctx context.Context, planID, actor string) (*Plan, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	switch plan.Status {
	case StatusScheduled, StatusDraft:
		// proceed
	case StatusInProgress:
		return nil, ErrCancelInFlight
	default:
		return nil, &PlanStateError{PlanID: planID, From: plan.Status, To: StatusFailed}
	}

	plan.Status = StatusFailed
	for _, id := range plan.TargetClassIDs {
		plan.PerTarget[id] = TargetSkipped
		plan.TargetNotes[id] = "plan cancelled before execution"
	}
	plan.SkippedCount = len(plan.TargetClassIDs)
	if err := o.putPlan(ctx, plan); err != nil {
		return nil, err
	}
	o.emitter.Emit(ctx, audit.New(audit.EventRolloutCancelled, actor, plan.ID, map[string]any{
		"version_id": plan.KCTVersionID,
	}))
	return plan, nil
}

// SkipTarget removes a target from the remaining work. On a draft or
// scheduled plan the target is marked skipped immediately; on an
// in-progress plan the request is honored if the worker has not picked
// the target up yet.
func (o *Orchestrator) SkipTarget(ctx context.Context, planID, classID string) error {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.plans.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	state, ok := plan.PerTarget[classID]
	if !ok {
		return fmt.Errorf("plan %s has no target %s", planID, classID)
	}

	switch plan.Status {
	case StatusDraft, StatusScheduled:
		if state.Terminal() {
			return fmt.Errorf("target %s is already %s", classID, state)
		}
		plan.PerTarget[classID] = TargetSkipped
		plan.TargetNotes[classID] = "skipped by operator"
		plan.SkippedCount++
		return o.putPlan(ctx, plan)
	case StatusInProgress:
		o.mu.Lock()
		if o.skips[planID] == nil {
			o.skips[planID] = make(map[string]bool)
		}
		o.skips[planID][classID] = true
		o.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("plan %s is %s; nothing to skip", planID, plan.Status)
	}
}

// Execute runs a scheduled plan to completion. Blocks until every
// target reached a terminal state or ctx is cancelled.
func (o *Orchestrator) Execute(ctx context.Context, planID string) (*Plan, error) {
	lock := o.planLock(planID)
	lock.Lock()
	plan, err := o.plans.GetPlan(ctx, planID)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	if plan.Status != StatusScheduled {
		lock.Unlock()
		return nil, &PlanStateError{PlanID: planID, From: plan.Status, To: StatusInProgress}
	}

	version, err := o.versions.GetVersion(ctx, plan.KCTVersionID)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("load version %s: %w", plan.KCTVersionID, err)
	}
	if version.State != lifecycle.StatePublished {
		lock.Unlock()
		return nil, fmt.Errorf("version %s is %s; only published versions roll out", version.ID, version.State)
	}

	plan.Status = StatusInProgress
	if err := o.putPlan(ctx, plan); err != nil {
		lock.Unlock()
		return nil, err
	}
	lock.Unlock()

	ruleSet := o.policy.Snapshot()
	workers := o.policy.Settings().RolloutWorkers

	// pending targets only: targets skipped while the plan was
	// scheduled stay skipped.
	var queue []string
	for _, id := range plan.TargetClassIDs {
		if !plan.PerTarget[id].Terminal() {
			queue = append(queue, id)
		}
	}

	var planMu sync.Mutex // serializes plan mutation + persistence
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, classID := range queue {
		group.Go(func() error {
			o.runTarget(groupCtx, plan, &planMu, version, ruleSet, classID)
			return nil
		})
	}
	_ = group.Wait()

	planMu.Lock()
	defer planMu.Unlock()
	if plan.AppliedCount == 0 && plan.FailedCount > 0 {
		plan.Status = StatusFailed
	} else {
		plan.Status = StatusCompleted
	}
	if err := o.putPlan(ctx, plan); err != nil {
		return nil, err
	}

	o.mu.Lock()
	delete(o.skips, planID)
	o.mu.Unlock()

	o.emitter.Emit(ctx, audit.New(audit.EventRolloutCompleted, plan.CreatedBy, plan.ID, map[string]any{
		"version_id": plan.KCTVersionID,
		"status":     string(plan.Status),
		"applied":    plan.AppliedCount,
		"failed":     plan.FailedCount,
		"skipped":    plan.SkippedCount,
	}))
	o.logger.InfoContext(ctx, "rollout finished",
		"plan_id", plan.ID, "status", plan.Status,
		"applied", plan.AppliedCount, "failed", plan.FailedCount, "skipped", plan.SkippedCount)
	return plan.Clone(), nil
}

// runTarget validates and applies one target class. Target failures
// are recorded on the plan, never returned: one class must not abort
// the others.
func (o *Orchestrator) runTarget(ctx context.Context, plan *Plan, planMu *sync.Mutex, version *lifecycle.CurriculumVersion, ruleSet []rules.Rule, classID string) {
	if o.skipRequested(plan.ID, classID) {
		o.finishTarget(ctx, plan, planMu, classID, TargetSkipped, nil, "skipped by operator")
		return
	}

	record, err := o.classes.GetClass(ctx, classID)
	if err != nil {
		o.finishTarget(ctx, plan, planMu, classID, TargetFailed, nil, fmt.Sprintf("load class: %v", err))
		return
	}

	// Fresh validation with this target's own facts, every time.
	report := mapping.Validate(version, ruleSet, record.Facts)
	o.emitter.Emit(ctx, audit.New(audit.EventMappingValidated, plan.CreatedBy, classID, map[string]any{
		"plan_id":     plan.ID,
		"version_id":  version.ID,
		"can_proceed": report.CanProceed,
		"risk_level":  string(report.RiskLevel),
		"conflicts":   len(report.Conflicts),
	}))
	if !report.CanProceed {
		o.finishTarget(ctx, plan, planMu, classID, TargetFailed, &report, "mapping validation blocked")
		return
	}

	planMu.Lock()
	plan.PerTarget[classID] = TargetValidated
	planMu.Unlock()

	applied := mapping.AppliedVersion{
		KCTVersionID:   version.ID,
		VersionLabel:   version.VersionLabel,
		AppliedAt:      o.now().UTC(),
		AppliedBy:      plan.CreatedBy,
		LastValidation: &report,
	}
	if record.Applied != nil {
		applied.Previous = &mapping.AppliedRef{
			KCTVersionID: record.Applied.KCTVersionID,
			VersionLabel: record.Applied.VersionLabel,
		}
	}
	record.Applied = &applied
	if err := o.classes.PutClass(ctx, record); err != nil {
		o.finishTarget(ctx, plan, planMu, classID, TargetFailed, &report, fmt.Sprintf("write applied version: %v", err))
		return
	}

	o.finishTarget(ctx, plan, planMu, classID, TargetApplied, &report, "")
}

// finishTarget records a terminal target state and refreshes progress.
func (o *Orchestrator) finishTarget(ctx context.Context, plan *Plan, planMu *sync.Mutex, classID string, state TargetState, report *mapping.Report, note string) {
	planMu.Lock()
	plan.PerTarget[classID] = state
	if report != nil {
		plan.TargetReports[classID] = report
	}
	if note != "" {
		plan.TargetNotes[classID] = note
	}
	switch state {
	case TargetApplied:
		plan.AppliedCount++
	case TargetFailed:
		plan.FailedCount++
	case TargetSkipped:
		plan.SkippedCount++
	}
	terminal := plan.AppliedCount + plan.FailedCount + plan.SkippedCount
	plan.Progress = float64(terminal) / float64(len(plan.TargetClassIDs))
	progress := plan.Progress
	if err := o.putPlan(ctx, plan); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist rollout progress",
			"plan_id", plan.ID, "class_id", classID, "error", err)
	}
	planMu.Unlock()

	eventType := audit.EventRolloutTargetApplied
	switch state {
	case TargetFailed:
		eventType = audit.EventRolloutTargetFailed
	case TargetSkipped:
		eventType = audit.EventRolloutTargetSkipped
	}
	o.emitter.Emit(ctx, audit.New(eventType, plan.CreatedBy, classID, map[string]any{
		"plan_id":    plan.ID,
		"version_id": plan.KCTVersionID,
		"note":       note,
		"progress":   progress,
	}))
}

// Rollback restores every applied target of a completed plan to the
// version that class ran before, read from the class's own application
// history rather than from the plan. Targets that originally failed or
// were skipped are never touched.
func (o *Orchestrator) Rollback(ctx context.Context, planID, actor string) (*Plan, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != StatusCompleted {
		return nil, fmt.Errorf("plan %s is %s; only completed plans can be rolled back", planID, plan.Status)
	}

	for _, classID := range plan.TargetClassIDs {
		if plan.PerTarget[classID] != TargetApplied {
			continue
		}
		record, err := o.classes.GetClass(ctx, classID)
		if err != nil {
			plan.TargetNotes[classID] = fmt.Sprintf("rollback failed: %v", err)
			continue
		}
		var note string
		if record.Applied == nil || record.Applied.Previous == nil {
			note = "rolled back: class had no prior version, mapping cleared"
			record.Applied = nil
		} else {
			prev := record.Applied.Previous
			record.Applied = &mapping.AppliedVersion{
				KCTVersionID: prev.KCTVersionID,
				VersionLabel: prev.VersionLabel,
				AppliedAt:    o.now().UTC(),
				AppliedBy:    actor,
			}
			note = fmt.Sprintf("rolled back to %s", prev.VersionLabel)
		}
		if err := o.classes.PutClass(ctx, record); err != nil {
			// The class still runs the rolled-out version; the target
			// stays applied so the counters keep matching PerTarget.
			plan.TargetNotes[classID] = fmt.Sprintf("rollback failed: %v", err)
			continue
		}
		plan.PerTarget[classID] = TargetSkipped
		plan.TargetNotes[classID] = note
		plan.AppliedCount--
		plan.SkippedCount++
	}

	if err := o.putPlan(ctx, plan); err != nil {
		return nil, err
	}
	o.emitter.Emit(ctx, audit.New(audit.EventRolloutRolledBack, actor, plan.ID, map[string]any{
		"version_id": plan.KCTVersionID,
	}))
	return plan, nil
}

// Get returns one plan.
func (o *Orchestrator) Get(ctx context.Context, planID string) (*Plan, error) {
	return o.plans.GetPlan(ctx, planID)
}

// List returns all plans.
func (o *Orchestrator) List(ctx context.Context) ([]*Plan, error) {
	return o.plans.ListPlans(ctx)
}

func (o *Orchestrator) skipRequested(planID, classID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.skips[planID][classID]
}

// putPlan persists a plan, translating revision failures.
func (o *Orchestrator) putPlan(ctx context.Context, plan *Plan) error {
	err := o.plans.PutPlan(ctx, plan)
	if errors.Is(err, ErrPlanRevisionMismatch) {
		return fmt.Errorf("plan %s: %w", plan.ID, err)
	}
	if err != nil {
		return err
	}
	plan.Revision++
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
