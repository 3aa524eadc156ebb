// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"

	"github.com/AleutianAI/CurriculumEngine/services/content"
	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/mapping"
	"github.com/AleutianAI/CurriculumEngine/services/rollout"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testVersion(id, frameworkID string) *lifecycle.CurriculumVersion {
	return &lifecycle.CurriculumVersion{
		ID:           id,
		FrameworkID:  frameworkID,
		VersionLabel: "v1.0",
		State:        lifecycle.StateDraft,
		CreatedBy:    "maria",
		Content: content.ContentSnapshot{
			SchemaVersion: content.SchemaVersion,
			TotalHours:    40,
			Levels:        []string{"B1"},
			Courses: []content.Course{{
				ID: "c1", Title: "Core",
				Units: []content.Unit{{ID: "u1", DurationHours: 40}},
			}},
		},
	}
}

func TestVersionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	v := testVersion("ver-1", "kct-a1")
	require.NoError(t, store.PutVersions(ctx, v))

	got, err := store.GetVersion(ctx, "ver-1")
	require.NoError(t, err)
	assert.Equal(t, "kct-a1", got.FrameworkID)
	assert.Equal(t, lifecycle.StateDraft, got.State)
	assert.Equal(t, int64(1), got.Revision, "store bumps the revision on write")
	assert.Equal(t, "Core", got.Content.Courses[0].Title)
}

func TestGetVersionNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetVersion(context.Background(), "missing")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestVersionRevisionEnforcement(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	v := testVersion("ver-1", "kct-a1")
	require.NoError(t, store.PutVersions(ctx, v))

	// A create against an existing key is stale.
	dup := testVersion("ver-1", "kct-a1")
	err := store.PutVersions(ctx, dup)
	assert.ErrorIs(t, err, lifecycle.ErrRevisionMismatch)

	// Reading yields the current revision; writing with it succeeds.
	cur, err := store.GetVersion(ctx, "ver-1")
	require.NoError(t, err)
	cur.Changelog = "tightened unit 1"
	require.NoError(t, store.PutVersions(ctx, cur))

	// The same revision cannot be used twice.
	cur.Changelog = "stale write"
	err = store.PutVersions(ctx, cur)
	assert.ErrorIs(t, err, lifecycle.ErrRevisionMismatch)
}

func TestPutVersionsBatchIsAtomic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := testVersion("ver-a", "kct-a1")
	require.NoError(t, store.PutVersions(ctx, a))

	// Batch where the second write is stale: neither may land.
	fresh, err := store.GetVersion(ctx, "ver-a")
	require.NoError(t, err)
	fresh.State = lifecycle.StatePublished

	stale := testVersion("ver-a", "kct-a1") // revision 0 against existing key
	b := testVersion("ver-b", "kct-a1")

	err = store.PutVersions(ctx, b, stale)
	require.ErrorIs(t, err, lifecycle.ErrRevisionMismatch)

	_, err = store.GetVersion(ctx, "ver-b")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound, "failed batch must not write any version")

	// A consistent batch lands both.
	require.NoError(t, store.PutVersions(ctx, fresh, b))
	got, err := store.GetVersion(ctx, "ver-a")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatePublished, got.State)
	_, err = store.GetVersion(ctx, "ver-b")
	assert.NoError(t, err)
}

func TestListVersionsFiltersByFramework(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutVersions(ctx,
		testVersion("ver-1", "kct-a1"),
		testVersion("ver-2", "kct-a1"),
		testVersion("ver-3", "kct-b2"),
	))

	got, err := store.ListVersions(ctx, "kct-a1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, v := range got {
		assert.Equal(t, "kct-a1", v.FrameworkID)
	}

	empty, err := store.ListVersions(ctx, "kct-none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPlanRoundTripAndRevision(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	plan := &rollout.Plan{
		ID:             "plan-1",
		KCTVersionID:   "ver-1",
		Scope:          rollout.ScopeCampus,
		TargetClassIDs: []string{"class-1", "class-2"},
		Status:         rollout.StatusDraft,
		PerTarget: map[string]rollout.TargetState{
			"class-1": rollout.TargetPending,
			"class-2": rollout.TargetPending,
		},
		TargetReports: map[string]*mapping.Report{},
		TargetNotes:   map[string]string{},
		CreatedBy:     "ops",
	}
	require.NoError(t, store.PutPlan(ctx, plan))

	got, err := store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, rollout.StatusDraft, got.Status)
	assert.Equal(t, int64(1), got.Revision)
	assert.Equal(t, rollout.TargetPending, got.PerTarget["class-2"])

	// Stale write rejected.
	err = store.PutPlan(ctx, plan)
	assert.ErrorIs(t, err, rollout.ErrPlanRevisionMismatch)

	got.Status = rollout.StatusScheduled
	require.NoError(t, store.PutPlan(ctx, got))

	_, err = store.GetPlan(ctx, "missing")
	assert.ErrorIs(t, err, rollout.ErrPlanNotFound)

	plans, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestClassRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &mapping.ClassRecord{
		ClassID: "class-1",
		Facts: rules.ClassFacts{
			ClassID:        "class-1",
			Level:          "B1",
			ScheduledHours: 40,
		},
	}
	require.NoError(t, store.PutClass(ctx, rec))

	got, err := store.GetClass(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, "B1", got.Facts.Level)
	assert.Nil(t, got.Applied)

	// Class writes are last-writer-wins; no revision gate.
	got.Applied = &mapping.AppliedVersion{KCTVersionID: "ver-1", VersionLabel: "v1.0"}
	require.NoError(t, store.PutClass(ctx, got))
	again, err := store.GetClass(ctx, "class-1")
	require.NoError(t, err)
	require.NotNil(t, again.Applied)
	assert.Equal(t, "ver-1", again.Applied.KCTVersionID)

	_, err = store.GetClass(ctx, "missing")
	assert.ErrorIs(t, err, rollout.ErrClassNotFound)

	classes, err := store.ListClasses(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 1)
}

func TestKeyspacesDoNotCollide(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutVersions(ctx, testVersion("x", "kct-a1")))
	require.NoError(t, store.PutClass(ctx, &mapping.ClassRecord{ClassID: "x"}))

	_, err := store.GetPlan(ctx, "x")
	assert.ErrorIs(t, err, rollout.ErrPlanNotFound)
	_, err = store.GetVersion(ctx, "x")
	assert.NoError(t, err)
	_, err = store.GetClass(ctx, "x")
	assert.NoError(t, err)
}
