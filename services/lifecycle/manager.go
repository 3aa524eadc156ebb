// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/CurriculumEngine/pkg/audit"
	"github.com/AleutianAI/CurriculumEngine/pkg/validation"
	"github.com/AleutianAI/CurriculumEngine/services/content"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
	"github.com/google/uuid"
)

// Store is the version persistence boundary. Implementations must
// return clones (callers may mutate results), enforce optimistic
// revisions on Put (ErrRevisionMismatch on a stale write), and make
// PutVersions atomic: either every version in the batch is written or
// none are.
type Store interface {
	GetVersion(ctx context.Context, id string) (*CurriculumVersion, error)
	PutVersions(ctx context.Context, versions ...*CurriculumVersion) error
	ListVersions(ctx context.Context, frameworkID string) ([]*CurriculumVersion, error)
}

// Manager drives curriculum versions through the lifecycle state
// machine.
//
// # Thread Safety
//
// All operations on a single version are serialized through a
// per-version mutex, so concurrent approve/reject on the same version
// are mutually exclusive. Publication additionally holds a per-
// framework mutex because it touches two versions (the one being
// published and the one being retired). The store's revision check is
// the backstop for callers that bypass the manager.
type Manager struct {
	store   Store
	policy  *rules.Store
	emitter audit.Emitter
	logger  *slog.Logger
	now     func() time.Time

	mu             sync.Mutex
	versionLocks   map[string]*sync.Mutex
	frameworkLocks map[string]*sync.Mutex
}

// NewManager wires a lifecycle manager. A nil emitter falls back to
// the structured log; a nil logger falls back to slog.Default.
func NewManager(store Store, policy *rules.Store, emitter audit.Emitter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = audit.SlogEmitter{Logger: logger}
	}
	return &Manager{
		store:          store,
		policy:         policy,
		emitter:        emitter,
		logger:         logger,
		now:            time.Now,
		versionLocks:   make(map[string]*sync.Mutex),
		frameworkLocks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) versionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.versionLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.versionLocks[id] = lock
	}
	return lock
}

func (m *Manager) frameworkLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.frameworkLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.frameworkLocks[id] = lock
	}
	return lock
}

// CreateDraftInput describes a new draft version.
type CreateDraftInput struct {
	FrameworkID string
	CreatedBy   string
	Changelog   string
	// BaseVersionID, when set, clones content and bumps the label from
	// an existing version. Otherwise Content and Label are used as-is.
	BaseVersionID string
	Label         string
	Content       content.ContentSnapshot
}

// CreateDraft creates a new draft version, either from scratch or
// cloned from a base version.
func (m *Manager) CreateDraft(ctx context.Context, input CreateDraftInput) (*CurriculumVersion, error) {
	if err := validation.ValidateIdentifier(input.FrameworkID); err != nil {
		return nil, fmt.Errorf("framework id: %w", err)
	}

	v := &CurriculumVersion{
		ID:          uuid.NewString(),
		FrameworkID: input.FrameworkID,
		State:       StateDraft,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   m.now().UTC(),
		Changelog:   input.Changelog,
	}

	if input.BaseVersionID != "" {
		base, err := m.store.GetVersion(ctx, input.BaseVersionID)
		if err != nil {
			return nil, fmt.Errorf("load base version: %w", err)
		}
		if base.FrameworkID != input.FrameworkID {
			return nil, fmt.Errorf("base version %s belongs to framework %s, not %s",
				base.ID, base.FrameworkID, input.FrameworkID)
		}
		v.Content = base.Content.Clone()
		v.VersionLabel = NextLabel(base.VersionLabel)
	} else {
		v.Content = input.Content.Clone()
		if input.Label == "" {
			v.VersionLabel = "v1.0"
		} else {
			label, err := validation.SanitizeLabel(input.Label)
			if err != nil {
				return nil, err
			}
			v.VersionLabel = label
		}
	}
	if v.Content.SchemaVersion == 0 {
		v.Content.SchemaVersion = content.SchemaVersion
	}

	if err := m.store.PutVersions(ctx, v); err != nil {
		return nil, fmt.Errorf("persist draft: %w", err)
	}
	m.logger.InfoContext(ctx, "draft version created",
		"version_id", v.ID, "framework_id", v.FrameworkID, "label", v.VersionLabel)
	return v, nil
}

// UpdateDraftContent replaces a draft's content snapshot. Content is
// frozen the moment the version leaves draft.
func (m *Manager) UpdateDraftContent(ctx context.Context, versionID string, snap content.ContentSnapshot) (*CurriculumVersion, error) {
	lock := m.versionLock(versionID)
	lock.Lock()
	defer lock.Unlock()

	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.State != StateDraft {
		return nil, ErrContentFrozen
	}
	v.Content = snap.Clone()
	if v.Content.SchemaVersion == 0 {
		v.Content.SchemaVersion = content.SchemaVersion
	}
	if err := m.put(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Submit moves a draft into review. The only guard is non-empty
// content; review itself is the quality gate.
func (m *Manager) Submit(ctx context.Context, versionID, actor string) (*CurriculumVersion, error) {
	return m.transition(ctx, versionID, StatePendingReview, actor, func(v *CurriculumVersion) error {
		if len(v.Content.Courses) == 0 {
			return ErrEmptyContent
		}
		return nil
	})
}

// AddReviewer registers a reviewer on a version.
func (m *Manager) AddReviewer(ctx context.Context, versionID, reviewer string) (*CurriculumVersion, error) {
	lock := m.versionLock(versionID)
	lock.Lock()
	defer lock.Unlock()

	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if !v.HasReviewer(reviewer) {
		v.Reviewers = append(v.Reviewers, reviewer)
		if err := m.put(ctx, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// RecordDecision records a reviewer verdict on a version in review.
// An approve decision moves the version to approved; a reject moves it
// back to draft and appends the rejection comment to the discussion.
func (m *Manager) RecordDecision(ctx context.Context, versionID, reviewer string, decision Decision, comment string) (*CurriculumVersion, error) {
	lock := m.versionLock(versionID)
	lock.Lock()
	defer lock.Unlock()

	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.State != StatePendingReview {
		target := StateApproved
		if decision == DecisionReject {
			target = StateDraft
		}
		return nil, &InvalidTransitionError{VersionID: v.ID, From: v.State, To: target}
	}
	if !v.HasReviewer(reviewer) {
		return nil, ErrUnknownReviewer
	}

	now := m.now().UTC()
	v.Decisions = append(v.Decisions, ReviewDecision{
		Reviewer: reviewer,
		Decision: decision,
		Comment:  comment,
		At:       now,
	})

	from := v.State
	switch decision {
	case DecisionApprove:
		v.State = StateApproved
		v.ApprovedBy = reviewer
		v.ApprovedAt = &now
	case DecisionReject:
		v.State = StateDraft
		if comment != "" {
			v.Comments = append(v.Comments, Comment{
				ID:        uuid.NewString(),
				Author:    reviewer,
				Text:      comment,
				CreatedAt: now,
			})
		}
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	if err := m.put(ctx, v); err != nil {
		return nil, err
	}
	m.emitTransition(ctx, v, from, reviewer)
	return v, nil
}

// Publish moves an approved (or archived, for rollback) version to
// published. The readiness gate runs against the current policy every
// time - a rolled-back version is re-validated, not grandfathered.
// The previously published version of the framework is retired to
// archived in the same atomic store write.
func (m *Manager) Publish(ctx context.Context, versionID, actor string) (*CurriculumVersion, error) {
	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	fwLock := m.frameworkLock(v.FrameworkID)
	fwLock.Lock()
	defer fwLock.Unlock()

	// Re-read under the framework lock; another publish may have just
	// changed the framework's published set.
	v, err = m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(v.State, StatePublished) {
		return nil, &InvalidTransitionError{VersionID: v.ID, From: v.State, To: StatePublished}
	}

	verdict := AssessReadiness(v, m.policy.Snapshot())
	if !verdict.Ready {
		return nil, &PublishBlockedError{VersionID: v.ID, BlockingIssues: verdict.BlockingIssues}
	}

	from := v.State
	now := m.now().UTC()
	v.State = StatePublished
	v.PublishedAt = &now

	batch := []*CurriculumVersion{v}
	prev, err := m.publishedVersion(ctx, v.FrameworkID, v.ID)
	if err != nil {
		return nil, err
	}
	var prevFrom State
	if prev != nil {
		prevFrom = prev.State
		prev.State = StateArchived
		batch = append(batch, prev)
	}

	if err := m.put(ctx, batch...); err != nil {
		return nil, err
	}

	m.emitTransition(ctx, v, from, actor)
	if prev != nil {
		m.emitTransition(ctx, prev, prevFrom, actor)
	}
	m.logger.InfoContext(ctx, "version published",
		"version_id", v.ID, "framework_id", v.FrameworkID, "label", v.VersionLabel,
		"retired_version_id", versionIDOrNone(prev))
	return v, nil
}

// Rollback re-publishes an archived version. It is Publish with an
// extra guard that the target really is an archived prior version.
func (m *Manager) Rollback(ctx context.Context, versionID, actor string) (*CurriculumVersion, error) {
	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.State != StateArchived {
		return nil, &InvalidTransitionError{VersionID: v.ID, From: v.State, To: StatePublished}
	}
	return m.Publish(ctx, versionID, actor)
}

// Archive manually archives a published version.
func (m *Manager) Archive(ctx context.Context, versionID, actor string) (*CurriculumVersion, error) {
	return m.transition(ctx, versionID, StateArchived, actor, nil)
}

// AddComment appends a reviewer comment. Comments may be created while
// the version is under review or approved.
func (m *Manager) AddComment(ctx context.Context, versionID, author, text string) (*CurriculumVersion, error) {
	lock := m.versionLock(versionID)
	lock.Lock()
	defer lock.Unlock()

	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.State != StatePendingReview && v.State != StateApproved {
		return nil, fmt.Errorf("comments can only be added during review or approval, version is %s", v.State)
	}
	v.Comments = append(v.Comments, Comment{
		ID:        uuid.NewString(),
		Author:    author,
		Text:      text,
		CreatedAt: m.now().UTC(),
	})
	if err := m.put(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ResolveComment toggles a comment's resolved flag. Comments are never
// deleted.
func (m *Manager) ResolveComment(ctx context.Context, versionID, commentID string, resolved bool) (*CurriculumVersion, error) {
	lock := m.versionLock(versionID)
	lock.Lock()
	defer lock.Unlock()

	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	for i := range v.Comments {
		if v.Comments[i].ID == commentID {
			v.Comments[i].Resolved = resolved
			if err := m.put(ctx, v); err != nil {
				return nil, err
			}
			return v, nil
		}
	}
	return nil, fmt.Errorf("comment %s not found on version %s", commentID, versionID)
}

// Readiness assesses publish readiness for a version on demand.
func (m *Manager) Readiness(ctx context.Context, versionID string) (Readiness, error) {
	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return Readiness{}, err
	}
	return AssessReadiness(v, m.policy.Snapshot()), nil
}

// DiffAgainst computes the structural diff of a version against
// another version of the same framework (typically its predecessor).
func (m *Manager) DiffAgainst(ctx context.Context, versionID, previousID string) ([]Change, error) {
	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	prev, err := m.store.GetVersion(ctx, previousID)
	if err != nil {
		return nil, err
	}
	if v.FrameworkID != prev.FrameworkID {
		return nil, fmt.Errorf("versions %s and %s belong to different frameworks", versionID, previousID)
	}
	return Diff(v.Content, prev.Content), nil
}

// Get returns one version.
func (m *Manager) Get(ctx context.Context, versionID string) (*CurriculumVersion, error) {
	return m.store.GetVersion(ctx, versionID)
}

// List returns all versions of a framework.
func (m *Manager) List(ctx context.Context, frameworkID string) ([]*CurriculumVersion, error) {
	return m.store.ListVersions(ctx, frameworkID)
}

// transition performs a guarded single-version state change under the
// version lock.
func (m *Manager) transition(ctx context.Context, versionID string, to State, actor string, guard func(*CurriculumVersion) error) (*CurriculumVersion, error) {
	lock := m.versionLock(versionID)
	lock.Lock()
	defer lock.Unlock()

	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(v.State, to) {
		return nil, &InvalidTransitionError{VersionID: v.ID, From: v.State, To: to}
	}
	if guard != nil {
		if err := guard(v); err != nil {
			return nil, err
		}
	}

	from := v.State
	v.State = to
	if err := m.put(ctx, v); err != nil {
		return nil, err
	}
	m.emitTransition(ctx, v, from, actor)
	return v, nil
}

// put persists versions, translating the store's revision failure into
// the caller-facing concurrency error.
func (m *Manager) put(ctx context.Context, versions ...*CurriculumVersion) error {
	err := m.store.PutVersions(ctx, versions...)
	if errors.Is(err, ErrRevisionMismatch) {
		return &ConcurrentModificationError{VersionID: versions[0].ID}
	}
	if err != nil {
		return fmt.Errorf("persist version: %w", err)
	}
	// Refresh in-memory revisions so callers holding the returned
	// struct can keep mutating through the manager.
	for _, v := range versions {
		v.Revision++
	}
	return nil
}

func (m *Manager) publishedVersion(ctx context.Context, frameworkID, excludeID string) (*CurriculumVersion, error) {
	versions, err := m.store.ListVersions(ctx, frameworkID)
	if err != nil {
		return nil, fmt.Errorf("list framework versions: %w", err)
	}
	for _, v := range versions {
		if v.State == StatePublished && v.ID != excludeID {
			return v, nil
		}
	}
	return nil, nil
}

func (m *Manager) emitTransition(ctx context.Context, v *CurriculumVersion, from State, actor string) {
	m.emitter.Emit(ctx, audit.New(audit.EventVersionTransitioned, actor, v.ID, map[string]any{
		"framework_id": v.FrameworkID,
		"label":        v.VersionLabel,
		"from":         string(from),
		"to":           string(v.State),
	}))
}

func versionIDOrNone(v *CurriculumVersion) string {
	if v == nil {
		return "none"
	}
	return v.ID
}
