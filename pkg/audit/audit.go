// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit provides the structured event channel the engine emits
// on.
//
// The engine records every consequential state change (version
// transitions, mapping validations, rollout target outcomes, policy
// overrides) as an Event. What happens to events is the consumer's
// business: the default emitter writes them to the structured log, the
// HTTP service additionally fans them out to websocket subscribers,
// and enterprise deployments can plug in their own Emitter for
// compliance pipelines.
//
// Emitters must never block the caller for long; the engine treats
// emission as fire-and-forget.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the engine.
const (
	EventVersionTransitioned  = "version.transitioned"
	EventMappingValidated     = "mapping.validated"
	EventMappingOverride      = "mapping.override"
	EventRolloutScheduled     = "rollout.scheduled"
	EventRolloutTargetApplied = "rollout.target.applied"
	EventRolloutTargetFailed  = "rollout.target.failed"
	EventRolloutTargetSkipped = "rollout.target.skipped"
	EventRolloutCompleted     = "rollout.completed"
	EventRolloutCancelled     = "rollout.cancelled"
	EventRolloutRolledBack    = "rollout.rolled_back"
	EventPolicyUpdated        = "policy.updated"
)

// Event is one structured audit record.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Actor   string         `json:"actor,omitempty"`
	Subject string         `json:"subject"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// New builds an event with a fresh ID and timestamp.
func New(eventType, actor, subject string, fields map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		At:      time.Now().UTC(),
		Actor:   actor,
		Subject: subject,
		Fields:  fields,
	}
}

// Emitter consumes engine events.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// SlogEmitter writes events to a structured logger. This is the
// default sink when no external audit pipeline is configured.
type SlogEmitter struct {
	Logger *slog.Logger
}

// Emit logs the event at info level with its fields flattened.
func (e SlogEmitter) Emit(ctx context.Context, event Event) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"event_id", event.ID,
		"event_type", event.Type,
		"subject", event.Subject,
	}
	if event.Actor != "" {
		attrs = append(attrs, "actor", event.Actor)
	}
	for k, v := range event.Fields {
		attrs = append(attrs, k, v)
	}
	logger.InfoContext(ctx, "audit event", attrs...)
}

// Multi fans one event out to several emitters in order.
type Multi []Emitter

// Emit delivers the event to every emitter.
func (m Multi) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		e.Emit(ctx, event)
	}
}

// Hub is an in-process fan-out of events to subscribers. The websocket
// progress feed subscribes here. Slow subscribers drop events rather
// than blocking the engine.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered; events overflowing
// the buffer are dropped for that subscriber.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Emit delivers the event to all current subscribers without blocking.
func (h *Hub) Emit(ctx context.Context, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
			// subscriber is behind, drop
		}
	}
}
