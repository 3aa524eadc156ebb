// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the curriculum
// engine service.
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting. All metric operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "curriculum"

// EngineMetrics holds all Prometheus metrics for the engine service.
// Initialize once at startup via NewEngineMetrics().
type EngineMetrics struct {
	// ValidationsTotal counts rule-engine evaluations.
	// Labels: kind (readiness, mapping), outcome (ready, blocked, ok)
	ValidationsTotal *prometheus.CounterVec

	// ConflictsTotal counts conflicts found, by severity.
	// Labels: severity (high, medium, low)
	ConflictsTotal *prometheus.CounterVec

	// PublishesTotal counts publish attempts.
	// Labels: outcome (published, blocked, invalid)
	PublishesTotal *prometheus.CounterVec

	// RolloutTargetsTotal counts terminal rollout target states.
	// Labels: state (applied, failed, skipped)
	RolloutTargetsTotal *prometheus.CounterVec

	// RolloutDurationSeconds measures end-to-end execution time of a
	// rollout plan.
	RolloutDurationSeconds prometheus.Histogram

	// ActiveRollouts tracks plans currently executing.
	ActiveRollouts prometheus.Gauge
}

// NewEngineMetrics registers and returns the engine metrics.
//
// Call exactly once per process: promauto panics on duplicate
// registration. Tests that need metrics should use
// NewEngineMetricsWithRegistry with a private registry.
func NewEngineMetrics() *EngineMetrics {
	return NewEngineMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewEngineMetricsWithRegistry registers the metrics on a caller-owned
// registry.
func NewEngineMetricsWithRegistry(reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)
	return &EngineMetrics{
		ValidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "validations_total",
			Help:      "Rule-engine evaluations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ConflictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conflicts_total",
			Help:      "Validation conflicts found, by severity.",
		}, []string{"severity"}),
		PublishesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publishes_total",
			Help:      "Publish attempts by outcome.",
		}, []string{"outcome"}),
		RolloutTargetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rollout_targets_total",
			Help:      "Terminal rollout target states.",
		}, []string{"state"}),
		RolloutDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "rollout_duration_seconds",
			Help:      "End-to-end rollout plan execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ActiveRollouts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_rollouts",
			Help:      "Rollout plans currently executing.",
		}),
	}
}
