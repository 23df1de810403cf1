// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command analyzer-server starts the HTIF discourse analysis HTTP server.
//
// This is the main entry point for the containerized analyzer service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ANALYZER_PORT: HTTP server port (default: 12310)
//   - ANALYZER_PROFILE_PATH: Industry profile YAML (default: ./config/industry_profiles.yaml)
//   - ANALYZER_EXPORT_DIR: Export directory for result artifacts (default: ./exports)
//   - ANALYZER_ALLOWED_ORIGINS: Comma-separated CORS allowlist (default: any origin)
//   - ANALYZER_RATE_LIMIT_RPS: Per-client requests per second (default: 5)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	# Build
//	go build -o analyzer-server ./cmd/analyzer-server
//
//	# Run
//	./analyzer-server
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/resonanz-lab/htif/services/analyzer"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := analyzer.Config{
		Port:           getEnvInt("ANALYZER_PORT", 12310),
		ProfilePath:    getEnvString("ANALYZER_PROFILE_PATH", "./config/industry_profiles.yaml"),
		ExportDir:      getEnvString("ANALYZER_EXPORT_DIR", "./exports"),
		OTelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AllowedOrigins: splitCSV(os.Getenv("ANALYZER_ALLOWED_ORIGINS")),
		RateLimitRPS:   getEnvFloat("ANALYZER_RATE_LIMIT_RPS", 5),
		WatchProfiles:  true,
	}

	slog.Info("Starting analyzer",
		"port", cfg.Port,
		"profile_path", cfg.ProfilePath,
		"export_dir", cfg.ExportDir,
	)

	svc, err := analyzer.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Analyzer error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// splitCSV splits a comma-separated list, dropping empty entries.
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
