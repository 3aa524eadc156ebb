// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command curriculum starts the curriculum engine HTTP server.
//
// This is the main entry point for the containerized engine service.
// It reads configuration from environment variables and starts the
// server.
//
// # Environment Variables
//
//   - CURRICULUM_PORT: HTTP server port (default: 12220)
//   - CURRICULUM_DATA_DIR: Badger database directory (default: ./data/curriculum)
//   - CURRICULUM_POLICY_PATH: validation policy YAML overriding the embedded defaults (optional)
//   - CURRICULUM_LOG_DIR: directory for JSON log files (optional)
//   - CURRICULUM_ENABLE_TRACING: "true" to export OTLP traces (default: false)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: curriculum-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o curriculum ./cmd/curriculum
//
//	# Run
//	./curriculum
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/CurriculumEngine/pkg/logging"
	"github.com/AleutianAI/CurriculumEngine/services/curriculum"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("CURRICULUM_LOG_DIR"),
		Service: "curriculum",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := curriculum.Config{
		Port:          getEnvInt("CURRICULUM_PORT", 12220),
		DataDir:       getEnvString("CURRICULUM_DATA_DIR", "./data/curriculum"),
		PolicyPath:    os.Getenv("CURRICULUM_POLICY_PATH"),
		EnableTracing: os.Getenv("CURRICULUM_ENABLE_TRACING") == "true",
		OTelEndpoint:  getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "curriculum-otel-collector:4317"),
	}

	slog.Info("Starting curriculum engine",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"policy_path", cfg.PolicyPath,
	)

	svc, err := curriculum.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create curriculum engine: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Curriculum engine error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
