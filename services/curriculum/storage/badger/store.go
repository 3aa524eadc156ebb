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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/mapping"
	"github.com/AleutianAI/CurriculumEngine/services/rollout"
	"github.com/dgraph-io/badger/v4"
)

// Key prefixes. Every record type gets its own keyspace so prefix
// scans stay cheap.
const (
	prefixVersion = "version/"
	prefixPlan    = "plan/"
	prefixClass   = "class/"
)

// Store is the badger-backed persistence layer. It implements
// lifecycle.Store, rollout.PlanStore, and rollout.ClassStore.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	gcStop chan struct{}
}

// Open opens the store with the given configuration.
func Open(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger, gcStop: make(chan struct{})}
	if cfg.GCInterval > 0 {
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Close stops background GC and closes the database.
func (s *Store) Close() error {
	close(s.gcStop)
	return s.db.Close()
}

func (s *Store) gcLoop(interval time.Duration, discardRatio float64) {
	if discardRatio <= 0 {
		discardRatio = 0.5
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to collect.
			if err := s.db.RunValueLogGC(discardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC failed", "error", err)
			}
		}
	}
}

// =============================================================================
// Versions (lifecycle.Store)
// =============================================================================

// GetVersion loads one curriculum version.
func (s *Store) GetVersion(ctx context.Context, id string) (*lifecycle.CurriculumVersion, error) {
	var v lifecycle.CurriculumVersion
	err := s.get(prefixVersion+id, &v)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// PutVersions writes a batch of versions atomically in one badger
// transaction, enforcing the optimistic revision on each.
func (s *Store) PutVersions(ctx context.Context, versions ...*lifecycle.CurriculumVersion) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, v := range versions {
			key := []byte(prefixVersion + v.ID)
			if err := checkRevision(txn, key, v.Revision, func(raw []byte) (int64, error) {
				var stored lifecycle.CurriculumVersion
				if err := json.Unmarshal(raw, &stored); err != nil {
					return 0, err
				}
				return stored.Revision, nil
			}); err != nil {
				if errors.Is(err, errStaleRevision) {
					return fmt.Errorf("version %s: %w", v.ID, lifecycle.ErrRevisionMismatch)
				}
				return err
			}

			record := v.Clone()
			record.Revision = v.Revision + 1
			raw, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("marshal version %s: %w", v.ID, err)
			}
			if err := txn.Set(key, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListVersions returns every version of a framework.
func (s *Store) ListVersions(ctx context.Context, frameworkID string) ([]*lifecycle.CurriculumVersion, error) {
	var out []*lifecycle.CurriculumVersion
	err := s.scan(prefixVersion, func(raw []byte) error {
		var v lifecycle.CurriculumVersion
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if v.FrameworkID == frameworkID {
			out = append(out, &v)
		}
		return nil
	})
	return out, err
}

// =============================================================================
// Rollout plans (rollout.PlanStore)
// =============================================================================

// GetPlan loads one rollout plan.
func (s *Store) GetPlan(ctx context.Context, id string) (*rollout.Plan, error) {
	var p rollout.Plan
	err := s.get(prefixPlan+id, &p)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", rollout.ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PutPlan writes one plan, enforcing its optimistic revision.
func (s *Store) PutPlan(ctx context.Context, plan *rollout.Plan) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixPlan + plan.ID)
		if err := checkRevision(txn, key, plan.Revision, func(raw []byte) (int64, error) {
			var stored rollout.Plan
			if err := json.Unmarshal(raw, &stored); err != nil {
				return 0, err
			}
			return stored.Revision, nil
		}); err != nil {
			if errors.Is(err, errStaleRevision) {
				return fmt.Errorf("plan %s: %w", plan.ID, rollout.ErrPlanRevisionMismatch)
			}
			return err
		}

		record := plan.Clone()
		record.Revision = plan.Revision + 1
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal plan %s: %w", plan.ID, err)
		}
		return txn.Set(key, raw)
	})
}

// ListPlans returns every rollout plan.
func (s *Store) ListPlans(ctx context.Context) ([]*rollout.Plan, error) {
	var out []*rollout.Plan
	err := s.scan(prefixPlan, func(raw []byte) error {
		var p rollout.Plan
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		out = append(out, &p)
		return nil
	})
	return out, err
}

// =============================================================================
// Class records (rollout.ClassStore)
// =============================================================================

// GetClass loads one class record.
func (s *Store) GetClass(ctx context.Context, id string) (*mapping.ClassRecord, error) {
	var c mapping.ClassRecord
	err := s.get(prefixClass+id, &c)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", rollout.ErrClassNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PutClass writes one class record. Class writes are last-writer-wins:
// the class entity is owned by the external collaborator and the
// engine only maintains the applied-version field, so no revision is
// enforced here.
func (s *Store) PutClass(ctx context.Context, record *mapping.ClassRecord) error {
	raw, err := json.Marshal(record.Clone())
	if err != nil {
		return fmt.Errorf("marshal class %s: %w", record.ClassID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixClass+record.ClassID), raw)
	})
}

// ListClasses returns every class record.
func (s *Store) ListClasses(ctx context.Context) ([]*mapping.ClassRecord, error) {
	var out []*mapping.ClassRecord
	err := s.scan(prefixClass, func(raw []byte) error {
		var c mapping.ClassRecord
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
		out = append(out, &c)
		return nil
	})
	return out, err
}

// =============================================================================
// Internals
// =============================================================================

var errStaleRevision = errors.New("stale revision")

// checkRevision enforces the optimistic revision inside a transaction.
// Revision 0 means "create": the key must not exist yet.
func checkRevision(txn *badger.Txn, key []byte, revision int64, extract func([]byte) (int64, error)) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		if revision != 0 {
			return errStaleRevision
		}
		return nil
	}
	if err != nil {
		return err
	}
	var stored int64
	if err := item.Value(func(raw []byte) error {
		stored, err = extract(raw)
		return err
	}); err != nil {
		return err
	}
	if stored != revision {
		return errStaleRevision
	}
	return nil
}

func (s *Store) get(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, out)
		})
	})
}

func (s *Store) scan(prefix string, visit func(raw []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(visit); err != nil {
				return err
			}
		}
		return nil
	})
}
