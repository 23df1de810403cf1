// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analyzer assembles the discourse analysis service.
//
// # Description
//
// This package wires the analysis components together: the module
// registry, the pipeline, the Mirror auditor, industry profiles,
// result exports, HTTP routing, and observability. cmd/analyzer-server
// is a thin shell around New and Run.
//
// # Usage
//
//	cfg := analyzer.Config{Port: 12310}
//	svc, err := analyzer.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
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

	"github.com/resonanz-lab/htif/pkg/logging"
	"github.com/resonanz-lab/htif/services/analyzer/domain"
	"github.com/resonanz-lab/htif/services/analyzer/export"
	"github.com/resonanz-lab/htif/services/analyzer/handlers"
	"github.com/resonanz-lab/htif/services/analyzer/middleware"
	"github.com/resonanz-lab/htif/services/analyzer/mirror"
	"github.com/resonanz-lab/htif/services/analyzer/observability"
	"github.com/resonanz-lab/htif/services/analyzer/pipeline"
	"github.com/resonanz-lab/htif/services/analyzer/registry"
	"github.com/resonanz-lab/htif/services/analyzer/routes"
)

// Service is the analyzer lifecycle contract.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the configured Gin engine for integration tests.
	Router() *gin.Engine
}

// Config holds analyzer configuration. All fields have defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// ProfilePath is the industry profile YAML file.
	// Default: "./config/industry_profiles.yaml"
	ProfilePath string

	// ExportDir is where analysis artifacts are written. Empty disables
	// exports. Default: "./exports"
	ExportDir string

	// OTelEndpoint is the OpenTelemetry collector endpoint. Empty
	// disables tracing export.
	OTelEndpoint string

	// AllowedOrigins restricts CORS. Empty permits any origin.
	AllowedOrigins []string

	// RateLimitRPS and RateLimitBurst shape the per-client limit on the
	// analyze endpoint. Defaults: 5 rps, burst 10.
	RateLimitRPS   float64
	RateLimitBurst int

	// WatchProfiles enables hot reload of the profile file.
	// Default: true
	WatchProfiles bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.ProfilePath == "" {
		cfg.ProfilePath = "./config/industry_profiles.yaml"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "./exports"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 10
	}
	return cfg
}

type service struct {
	config        Config
	logger        *logging.Logger
	router        *gin.Engine
	profiles      *domain.Provider
	cancelWatch   context.CancelFunc
	tracerCleanup func(context.Context)
}

// New creates a ready-to-run analyzer Service.
//
// Initialization order: logging, tracing, metrics, profiles, pipeline,
// exporter, router. Tracing and exports are optional; a failure there
// degrades the service instead of aborting startup.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	logger := logging.New(logging.Config{Service: "analyzer"})
	s.logger = logger

	if s.config.OTelEndpoint != "" {
		cleanup, err := initTracer(s.config.OTelEndpoint)
		if err != nil {
			logger.Warn("tracer init failed, continuing without export", "error", err)
		} else {
			s.tracerCleanup = cleanup
		}
	}

	metrics := observability.InitMetrics()

	s.profiles = domain.NewProvider(s.config.ProfilePath, logger.Slog())
	if s.config.WatchProfiles {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelWatch = cancel
		if err := s.profiles.Watch(ctx); err != nil {
			logger.Warn("profile watcher failed, hot reload disabled", "error", err)
		}
	}

	pipe, err := pipeline.New(registry.New(), mirror.New(), logger.Slog())
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	var exporter *export.Exporter
	if s.config.ExportDir != "" {
		exporter, err = export.New(s.config.ExportDir, logger.Slog())
		if err != nil {
			logger.Warn("export dir unavailable, exports disabled", "error", err)
			exporter = nil
		}
	}

	s.initRouter(handlers.Deps{
		Pipeline: pipe,
		Profiles: s.profiles,
		Exporter: exporter,
		Metrics:  metrics,
		Logger:   logger.Slog(),
	})

	return s, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a
// server error, then drains in-flight requests.
func (s *service) Run() error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("analyzer server listening", "port", s.config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received, draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) initRouter(deps handlers.Deps) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware("analyzer-service"))
	s.router.Use(middleware.CORS(s.config.AllowedOrigins))

	limiter := middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
	routes.SetupRoutes(s.router, deps, limiter)
}

func (s *service) cleanup() {
	if s.cancelWatch != nil {
		s.cancelWatch()
	}
	s.profiles.Close()
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

// initTracer sets up the OTLP trace exporter.
//
// Uses an insecure gRPC connection, appropriate for collectors on
// internal networks.
func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("analyzer-service")))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}
