// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/AleutianAI/CurriculumEngine/services/rules/enforcement"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Settings are the store-level tunables that do not belong to any one
// rule.
type Settings struct {
	// RolloutWorkers is the default worker pool size for rollout
	// execution. Individual plans cannot exceed it.
	RolloutWorkers int `yaml:"rollout_workers" json:"rollout_workers"`
}

// PolicyFile is the on-disk (and embedded) policy document shape.
type PolicyFile struct {
	Settings Settings `yaml:"settings"`
	Rules    []Rule   `yaml:"rules"`
}

// Store holds the active rule set and tunables.
//
// # Description
//
// The store is the single owner of validation rules. The engine reads
// rule snapshots from it and never mutates them; mutation happens only
// through explicit policy updates (Update, LoadFile, or a Watch
// reload). Rules keep their declared order across loads because the
// engine's output ordering is defined by it.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Snapshot returns a copied
// slice, so callers can hold results across a concurrent reload.
type Store struct {
	mu       sync.RWMutex
	rules    []Rule
	settings Settings
	logger   *slog.Logger
}

// NewStore creates a store seeded from the embedded default policy.
//
// Returns an error if the embedded YAML is malformed - that is a build
// defect, not a runtime condition.
func NewStore(logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var file PolicyFile
	if err := yaml.Unmarshal(enforcement.DefaultValidationPolicy, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded policy file: %w", err)
	}
	if err := validatePolicy(file); err != nil {
		return nil, fmt.Errorf("embedded policy is invalid: %w", err)
	}
	if file.Settings.RolloutWorkers <= 0 {
		file.Settings.RolloutWorkers = 4
	}
	return &Store{rules: file.Rules, settings: file.Settings, logger: logger}, nil
}

// LoadFile merges a policy override file over the current rule set.
// Rules in the file replace same-id rules in place (keeping their
// declared position); new ids are appended in file order. Settings are
// replaced wholesale when the file declares them.
func (s *Store) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	var file PolicyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := validatePolicy(file); err != nil {
		return fmt.Errorf("policy file %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[string]int, len(s.rules))
	for i, r := range s.rules {
		byID[r.ID] = i
	}
	for _, r := range file.Rules {
		if i, ok := byID[r.ID]; ok {
			s.rules[i] = r
		} else {
			s.rules = append(s.rules, r)
		}
	}
	if file.Settings.RolloutWorkers > 0 {
		s.settings.RolloutWorkers = file.Settings.RolloutWorkers
	}
	s.logger.Info("policy file loaded", "path", path, "rules", len(file.Rules))
	return nil
}

// Snapshot returns a copy of the active rules in declaration order.
func (s *Store) Snapshot() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Rule returns the active rule with the given id.
func (s *Store) Rule(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Settings returns the current store-level tunables.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the full rule set. This is the admin surface; the
// engine itself never calls it.
func (s *Store) Update(rs []Rule) error {
	if err := validatePolicy(PolicyFile{Rules: rs}); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make([]Rule, len(rs))
	copy(s.rules, rs)
	s.logger.Info("policy rules updated", "rules", len(rs))
	return nil
}

// Watch hot-reloads the policy file whenever it changes on disk.
// Blocks until ctx is cancelled. A reload that fails to parse keeps
// the previous rule set and logs the error.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch policy file %s: %w", path, err)
	}
	s.logger.Info("watching policy file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.LoadFile(path); err != nil {
				s.logger.Error("policy reload failed, keeping previous rules", "path", path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("policy watcher error", "error", err)
		}
	}
}

func validatePolicy(file PolicyFile) error {
	seen := make(map[string]bool, len(file.Rules))
	for _, r := range file.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule with empty id")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		if r.Category == "" {
			return fmt.Errorf("rule %q has no category", r.ID)
		}
		if r.Severity == "" {
			return fmt.Errorf("rule %q has no severity", r.ID)
		}
	}
	return nil
}
