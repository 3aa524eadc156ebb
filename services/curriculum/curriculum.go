// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package curriculum provides the curriculum engine HTTP service.
//
// This package contains the main Service type that coordinates all
// components of the engine: the version lifecycle manager, the mapping
// validator, the rollout orchestrator, the validation policy store,
// Badger persistence, and observability infrastructure.
//
// # Usage
//
//	cfg := curriculum.Config{Port: 12220, DataDir: "./data"}
//	svc, err := curriculum.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package curriculum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/CurriculumEngine/pkg/audit"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/observability"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum/routes"
	storage "github.com/AleutianAI/CurriculumEngine/services/curriculum/storage/badger"
	"github.com/AleutianAI/CurriculumEngine/services/lifecycle"
	"github.com/AleutianAI/CurriculumEngine/services/rollout"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the curriculum engine service.
//
// # Description
//
// Service abstracts the engine lifecycle, enabling testing and
// alternative implementations. Run() blocks and should only be called
// once per instance.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Close releases the Badger store and tracer resources. Safe to
	// call after Run() returns.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds curriculum engine configuration options.
//
// All fields are optional; New() applies defaults for zero values.
type Config struct {
	// Port is the HTTP server port. Default: 12220
	Port int

	// DataDir is the Badger database directory.
	// Default: "./data/curriculum"
	DataDir string

	// InMemory runs the store without disk persistence. Intended for
	// tests and demos.
	InMemory bool

	// PolicyPath points at an operator-provided validation policy
	// YAML. When set, the file is loaded over the embedded defaults
	// and watched for changes. Optional.
	PolicyPath string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "curriculum-otel-collector:4317". Set EnableTracing
	// to actually export spans.
	OTelEndpoint string

	// EnableTracing turns on OTLP trace export. Off by default so a
	// standalone engine does not need a collector.
	EnableTracing bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	GinMode string
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/curriculum"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "curriculum-otel-collector:4317"
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *storage.Store
	policy        *rules.Store
	manager       *lifecycle.Manager
	orchestrator  *rollout.Orchestrator
	hub           *audit.Hub
	metrics       *observability.EngineMetrics
	tracerCleanup func(context.Context)
	watchCancel   context.CancelFunc
}

// New creates a curriculum engine Service with the given configuration.
//
// # Description
//
// New initializes all engine components:
//  1. Applies default configuration for missing values
//  2. Opens the Badger store (on disk or in memory)
//  3. Loads the validation policy (embedded defaults, then PolicyPath)
//  4. Wires the lifecycle manager and rollout orchestrator
//  5. Initializes Prometheus metrics and, if enabled, OTLP tracing
//  6. Sets up HTTP routes
//
// # Outputs
//
//   - Service: Ready-to-run engine service
//   - error: Non-nil if initialization fails
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	logger := slog.Default()

	var storeCfg storage.Config
	if s.config.InMemory {
		storeCfg = storage.InMemoryConfig()
	} else {
		storeCfg = storage.DefaultConfig(s.config.DataDir)
	}
	storeCfg.Logger = logger

	store, err := storage.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	s.store = store

	s.policy, err = rules.NewStore(logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load validation policy: %w", err)
	}
	if s.config.PolicyPath != "" {
		if err := s.policy.LoadFile(s.config.PolicyPath); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to load policy file: %w", err)
		}
		watchCtx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel
		// Watch blocks until the context is cancelled.
		go func() {
			if err := s.policy.Watch(watchCtx, s.config.PolicyPath); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("policy file watch unavailable, hot reload disabled", "error", err)
			}
		}()
	}

	// Audit events reach both the structured log and live WebSocket
	// subscribers.
	s.hub = audit.NewHub()
	emitter := audit.Multi{audit.SlogEmitter{Logger: logger}, s.hub}

	s.manager = lifecycle.NewManager(s.store, s.policy, emitter, logger)
	s.orchestrator = rollout.New(s.store, s.store, s.store, s.policy, emitter, logger)

	s.metrics = observability.NewEngineMetrics()

	if s.config.EnableTracing {
		cleanup, err := s.initTracer()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	s.initRouter(emitter)
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.Close()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting curriculum engine server", "port", s.config.Port)
	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Close releases all resources held by the service. Idempotent.
func (s *service) Close() error {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
	if s.store != nil {
		err := s.store.Close()
		s.store = nil
		return err
	}
	return nil
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing with an
// OTLP gRPC exporter. Uses an insecure connection, appropriate for
// internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("curriculum-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter(emitter audit.Emitter) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	if s.config.EnableTracing {
		s.router.Use(otelgin.Middleware("curriculum-service"))
	}

	routes.SetupRoutes(s.router, s.manager, s.orchestrator, s.policy, s.hub, emitter, s.metrics)
}
