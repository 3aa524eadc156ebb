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
	"sync"
	"testing"

	"github.com/AleutianAI/CurriculumEngine/services/content"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with the same contract the badger
// store implements: clone on read, revision check on write, atomic
// batches.
type memStore struct {
	mu       sync.Mutex
	versions map[string]*CurriculumVersion
}

func newMemStore() *memStore {
	return &memStore{versions: make(map[string]*CurriculumVersion)}
}

func (s *memStore) GetVersion(_ context.Context, id string) (*CurriculumVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v.Clone(), nil
}

func (s *memStore) PutVersions(_ context.Context, versions ...*CurriculumVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range versions {
		if existing, ok := s.versions[v.ID]; ok && existing.Revision != v.Revision {
			return ErrRevisionMismatch
		}
	}
	for _, v := range versions {
		stored := v.Clone()
		stored.Revision++
		s.versions[v.ID] = stored
	}
	return nil
}

func (s *memStore) ListVersions(_ context.Context, frameworkID string) ([]*CurriculumVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*CurriculumVersion
	for _, v := range s.versions {
		if v.FrameworkID == frameworkID {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func publishableSnapshot() content.ContentSnapshot {
	unit := func(id string, hours float64) content.Unit {
		return content.Unit{
			ID:            id,
			Title:         id,
			DurationHours: hours,
			Skills:        []string{"listening", "speaking", "reading", "writing"},
			Resources: []content.Resource{{
				ID:           id + "-r1",
				Title:        id + " resource",
				SkillTags:    []string{"listening", "speaking", "reading", "writing"},
				Formats:      []string{"captions"},
				HealthStatus: content.HealthHealthy,
			}},
			Assessment: &content.Assessment{
				RubricID: "rb-" + id,
				Criteria: []content.RubricCriterion{{ID: "c1", Weight: 1}},
			},
		}
	}
	return content.ContentSnapshot{
		SchemaVersion: content.SchemaVersion,
		TotalHours:    40,
		Levels:        []string{"B1", "B2"},
		Modality:      content.ModalityOnline,
		AgeGroup:      "adult",
		Courses: []content.Course{
			{ID: "c1", Title: "Core", Units: []content.Unit{
				unit("u1", 10), unit("u2", 10), unit("u3", 10), unit("u4", 10),
			}},
		},
	}
}

func newTestManager(t *testing.T) (*Manager, *memStore) {
	t.Helper()
	policy, err := rules.NewStore(nil)
	require.NoError(t, err)
	store := newMemStore()
	return NewManager(store, policy, nil, nil), store
}

// advance walks a fresh draft with publishable content to the given
// state.
func advance(t *testing.T, m *Manager, to State) *CurriculumVersion {
	t.Helper()
	ctx := context.Background()

	v, err := m.CreateDraft(ctx, CreateDraftInput{
		FrameworkID: "kct-a1",
		CreatedBy:   "maria",
		Content:     publishableSnapshot(),
	})
	require.NoError(t, err)
	if to == StateDraft {
		return v
	}

	v, err = m.Submit(ctx, v.ID, "maria")
	require.NoError(t, err)
	if to == StatePendingReview {
		return v
	}

	_, err = m.AddReviewer(ctx, v.ID, "lena")
	require.NoError(t, err)
	v, err = m.RecordDecision(ctx, v.ID, "lena", DecisionApprove, "")
	require.NoError(t, err)
	if to == StateApproved {
		return v
	}

	v, err = m.Publish(ctx, v.ID, "maria")
	require.NoError(t, err)
	return v
}

func TestCreateDraftFromScratch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	v, err := m.CreateDraft(ctx, CreateDraftInput{
		FrameworkID: "kct-a1",
		CreatedBy:   "maria",
		Changelog:   "initial structure",
		Content:     publishableSnapshot(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, StateDraft, v.State)
	assert.Equal(t, "v1.0", v.VersionLabel)
	assert.Equal(t, "maria", v.CreatedBy)
	assert.False(t, v.CreatedAt.IsZero())
}

func TestCreateDraftRejectsBadFrameworkID(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.CreateDraft(context.Background(), CreateDraftInput{
		FrameworkID: "kct a1!",
		CreatedBy:   "maria",
	})
	assert.Error(t, err)
}

func TestCreateDraftFromBaseClonesAndBumpsLabel(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	base := advance(t, m, StateDraft)

	next, err := m.CreateDraft(ctx, CreateDraftInput{
		FrameworkID:   "kct-a1",
		CreatedBy:     "maria",
		BaseVersionID: base.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "v1.1", next.VersionLabel)
	assert.Equal(t, base.Content.UnitCount(), next.Content.UnitCount())

	// The clone is independent of the base.
	next.Content.Courses[0].Title = "tampered"
	got, err := m.Get(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, "Core", got.Content.Courses[0].Title)
}

func TestCreateDraftFromBaseRejectsWrongFramework(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	base := advance(t, m, StateDraft)

	_, err := m.CreateDraft(ctx, CreateDraftInput{
		FrameworkID:   "kct-b2",
		CreatedBy:     "maria",
		BaseVersionID: base.ID,
	})
	assert.Error(t, err)
}

func TestSubmitRequiresContent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	v, err := m.CreateDraft(ctx, CreateDraftInput{FrameworkID: "kct-a1", CreatedBy: "maria"})
	require.NoError(t, err)

	_, err = m.Submit(ctx, v.ID, "maria")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestContentFrozenAfterSubmit(t *testing.T) {
	m, _ := newTestManager(t)
	v := advance(t, m, StatePendingReview)

	_, err := m.UpdateDraftContent(context.Background(), v.ID, publishableSnapshot())
	assert.ErrorIs(t, err, ErrContentFrozen)
}

func TestDecisionRequiresRegisteredReviewer(t *testing.T) {
	m, _ := newTestManager(t)
	v := advance(t, m, StatePendingReview)

	_, err := m.RecordDecision(context.Background(), v.ID, "stranger", DecisionApprove, "")
	assert.ErrorIs(t, err, ErrUnknownReviewer)
}

func TestDecisionOutsideReviewIsRejected(t *testing.T) {
	m, _ := newTestManager(t)
	v := advance(t, m, StateDraft)

	_, err := m.RecordDecision(context.Background(), v.ID, "lena", DecisionApprove, "")
	var ite *InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
}

func TestRejectionReturnsToDraftWithComment(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	v := advance(t, m, StatePendingReview)

	_, err := m.AddReviewer(ctx, v.ID, "lena")
	require.NoError(t, err)
	v, err = m.RecordDecision(ctx, v.ID, "lena", DecisionReject, "unit 3 has no rubric")
	require.NoError(t, err)

	assert.Equal(t, StateDraft, v.State)
	require.Len(t, v.Decisions, 1)
	assert.Equal(t, DecisionReject, v.Decisions[0].Decision)
	require.Len(t, v.Comments, 1)
	assert.Equal(t, "unit 3 has no rubric", v.Comments[0].Text)
	assert.Equal(t, "lena", v.Comments[0].Author)

	// Back in draft the content is editable again.
	_, err = m.UpdateDraftContent(ctx, v.ID, publishableSnapshot())
	assert.NoError(t, err)
}

func TestPublishHappyPath(t *testing.T) {
	m, _ := newTestManager(t)
	v := advance(t, m, StatePublished)

	assert.Equal(t, StatePublished, v.State)
	require.NotNil(t, v.PublishedAt)
	assert.Equal(t, "lena", v.ApprovedBy)
	require.NotNil(t, v.ApprovedAt)
}

func TestPublishBlockedByReadiness(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	snap := publishableSnapshot()
	snap.TotalHours = 80 // twice the actual unit hours

	v, err := m.CreateDraft(ctx, CreateDraftInput{
		FrameworkID: "kct-a1",
		CreatedBy:   "maria",
		Content:     snap,
	})
	require.NoError(t, err)
	_, err = m.Submit(ctx, v.ID, "maria")
	require.NoError(t, err)
	_, err = m.AddReviewer(ctx, v.ID, "lena")
	require.NoError(t, err)
	_, err = m.RecordDecision(ctx, v.ID, "lena", DecisionApprove, "")
	require.NoError(t, err)

	_, err = m.Publish(ctx, v.ID, "maria")
	var blocked *PublishBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.NotEmpty(t, blocked.BlockingIssues)

	// Still approved; nothing was written.
	got, err := m.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StateApproved, got.State)
}

func TestPublishRetiresPreviousVersionAtomically(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first := advance(t, m, StatePublished)
	second := advance(t, m, StatePublished)

	got, err := m.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StateArchived, got.State, "previous published version should be retired")

	versions, err := m.List(ctx, "kct-a1")
	require.NoError(t, err)
	published := 0
	for _, v := range versions {
		if v.State == StatePublished {
			published++
			assert.Equal(t, second.ID, v.ID)
		}
	}
	assert.Equal(t, 1, published, "exactly one published version per framework")
}

func TestRollbackRepublishesArchivedVersion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first := advance(t, m, StatePublished)
	second := advance(t, m, StatePublished)

	rolled, err := m.Rollback(ctx, first.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, StatePublished, rolled.State)

	got, err := m.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StateArchived, got.State, "rollback retires the replaced version")
}

func TestRollbackRequiresArchivedState(t *testing.T) {
	m, _ := newTestManager(t)
	v := advance(t, m, StatePublished)

	_, err := m.Rollback(context.Background(), v.ID, "ops")
	var ite *InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
}

func TestArchivePublishedVersion(t *testing.T) {
	m, _ := newTestManager(t)
	v := advance(t, m, StatePublished)

	v, err := m.Archive(context.Background(), v.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, StateArchived, v.State)
}

func TestCommentsDuringReview(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	v := advance(t, m, StatePendingReview)

	v, err := m.AddComment(ctx, v.ID, "lena", "unit 2 pacing seems tight")
	require.NoError(t, err)
	require.Len(t, v.Comments, 1)
	assert.False(t, v.Comments[0].Resolved)

	v, err = m.ResolveComment(ctx, v.ID, v.Comments[0].ID, true)
	require.NoError(t, err)
	assert.True(t, v.Comments[0].Resolved)

	_, err = m.ResolveComment(ctx, v.ID, "no-such-comment", true)
	assert.Error(t, err)
}

func TestCommentsRejectedOnDraft(t *testing.T) {
	m, _ := newTestManager(t)
	v := advance(t, m, StateDraft)

	_, err := m.AddComment(context.Background(), v.ID, "lena", "too early")
	assert.Error(t, err)
}

func TestConcurrentModificationSurfacesAsTypedError(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	v := advance(t, m, StateDraft)

	// Simulate a racing writer bumping the stored revision.
	raced, err := store.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, store.PutVersions(ctx, raced))

	stale := v.Clone()
	stale.Changelog = "stale edit"
	err = m.put(ctx, stale)
	var cme *ConcurrentModificationError
	assert.ErrorAs(t, err, &cme)
}

func TestGetUnknownVersion(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiffAgainstRejectsCrossFramework(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.CreateDraft(ctx, CreateDraftInput{FrameworkID: "kct-a1", CreatedBy: "maria", Content: publishableSnapshot()})
	require.NoError(t, err)
	b, err := m.CreateDraft(ctx, CreateDraftInput{FrameworkID: "kct-b2", CreatedBy: "maria", Content: publishableSnapshot()})
	require.NoError(t, err)

	_, err = m.DiffAgainst(ctx, a.ID, b.ID)
	assert.Error(t, err)
}

func TestDiffAgainstReportsStructuralChanges(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	base := advance(t, m, StateDraft)

	snap := publishableSnapshot()
	snap.Courses[0].Units = snap.Courses[0].Units[:3]
	next, err := m.CreateDraft(ctx, CreateDraftInput{
		FrameworkID: "kct-a1",
		CreatedBy:   "maria",
		Label:       "v1.1",
		Content:     snap,
	})
	require.NoError(t, err)

	changes, err := m.DiffAgainst(ctx, next.ID, base.ID)
	require.NoError(t, err)
	// One unit dropped: both the unit count and the hours total move.
	require.Len(t, changes, 2)

	fields := map[string]ChangeType{}
	for _, c := range changes {
		fields[c.Field] = c.Type
	}
	assert.Equal(t, ChangeModified, fields["total_hours"])
	assert.Equal(t, ChangeRemoved, fields["units"])
}

func TestReadinessVerdict(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	v := advance(t, m, StateDraft)
	verdict, err := m.Readiness(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, verdict.Ready)
	assert.Empty(t, verdict.BlockingIssues)
	for check, pass := range verdict.Checks {
		assert.True(t, pass, "check %s should pass", check)
	}

	snap := publishableSnapshot()
	snap.TotalHours = 80
	snap.Courses[0].Units[0].Resources[0].HealthStatus = content.HealthBroken
	bad, err := m.CreateDraft(ctx, CreateDraftInput{
		FrameworkID: "kct-a1",
		CreatedBy:   "maria",
		Content:     snap,
	})
	require.NoError(t, err)

	verdict, err = m.Readiness(ctx, bad.ID)
	require.NoError(t, err)
	assert.False(t, verdict.Ready)
	assert.False(t, verdict.Checks[CheckHours])
	assert.False(t, verdict.Checks[CheckBrokenLinks])
	assert.True(t, verdict.Checks[CheckRubrics])
	assert.NotEmpty(t, verdict.BlockingIssues)
}

func TestReadinessWarningsDoNotBlock(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	snap := publishableSnapshot()
	// Strip a format the accessibility rule wants; the rule is a
	// warning in the default policy so readiness still passes.
	for i := range snap.Courses[0].Units {
		snap.Courses[0].Units[i].Resources[0].Formats = nil
	}
	v, err := m.CreateDraft(ctx, CreateDraftInput{
		FrameworkID: "kct-a1",
		CreatedBy:   "maria",
		Content:     snap,
	})
	require.NoError(t, err)

	verdict, err := m.Readiness(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, verdict.Ready)
	assert.NotEmpty(t, verdict.Warnings)
}

func TestRepublishGoesThroughReadinessGate(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	first := advance(t, m, StatePublished)
	advance(t, m, StatePublished)

	// Corrupt the archived version behind the manager's back so the
	// rollback readiness check has something to find.
	raw, err := store.GetVersion(ctx, first.ID)
	require.NoError(t, err)
	raw.Content.TotalHours = 500
	require.NoError(t, store.PutVersions(ctx, raw))

	_, err = m.Rollback(ctx, first.ID, "ops")
	var blocked *PublishBlockedError
	assert.ErrorAs(t, err, &blocked)
}

var _ Store = (*memStore)(nil)
