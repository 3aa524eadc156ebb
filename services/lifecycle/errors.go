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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the requested version does not exist.
	ErrNotFound = errors.New("version not found")

	// ErrRevisionMismatch indicates an optimistic-concurrency failure
	// in the store. Stores return it from Put when the caller's
	// revision is stale.
	ErrRevisionMismatch = errors.New("version revision mismatch")

	// ErrEmptyContent indicates a submit attempt on a version with no
	// courses.
	ErrEmptyContent = errors.New("version has no courses; nothing to review")

	// ErrUnknownReviewer indicates a decision from someone not
	// registered as a reviewer on the version.
	ErrUnknownReviewer = errors.New("reviewer is not registered on this version")

	// ErrContentFrozen indicates an edit attempt on a version that has
	// left draft state.
	ErrContentFrozen = errors.New("content is immutable outside draft; create a new version")
)

// InvalidTransitionError names the exact (from, to) pair that was
// rejected so callers can render an actionable message without
// re-deriving state.
type InvalidTransitionError struct {
	VersionID string
	From      State
	To        State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("version %s: transition %s -> %s is not allowed", e.VersionID, e.From, e.To)
}

// PublishBlockedError carries the blocking issues that failed the
// readiness gate. The caller fixes content and resubmits, or uses an
// explicit, separately-audited override outside this engine.
type PublishBlockedError struct {
	VersionID      string
	BlockingIssues []string
}

func (e *PublishBlockedError) Error() string {
	return fmt.Sprintf("version %s is not ready to publish: %s",
		e.VersionID, strings.Join(e.BlockingIssues, "; "))
}

// ConcurrentModificationError indicates two callers raced on the same
// version. The loser retries against the now-current state.
type ConcurrentModificationError struct {
	VersionID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("version %s was modified concurrently; retry with current state", e.VersionID)
}
