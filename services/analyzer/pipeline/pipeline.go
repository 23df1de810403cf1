// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline sequences annotation modules over a record batch.
//
// # Description
//
// The pipeline executes a caller-supplied, ordered list of module names
// against a batch, isolating per-module failures: an unknown name or a
// failing module is recorded in the run report and the remaining
// modules continue with the batch as it was. After all modules ran, the
// Mirror audit always runs over the result, even when earlier modules
// failed, because auditing an incomplete batch is itself informative.
// Nothing escapes a run as an error; every failure path terminates in a
// structured report field.
//
// # Concurrency
//
// Modules run strictly sequentially because later modules depend on
// fields written by earlier ones (KPI derivation needs the extracted
// quote and ambivalence fields). The batch is mutated in place along
// the chain and is not safe for concurrent access during a run.
// Distinct batches may run concurrently on the same Pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
	"github.com/resonanz-lab/htif/services/analyzer/mirror"
	"github.com/resonanz-lab/htif/services/analyzer/registry"
)

var (
	tracer = otel.Tracer("htif.pipeline")
	meter  = otel.Meter("htif.pipeline")
)

// ErrInvalidInput is returned by New for nil dependencies.
var ErrInvalidInput = errors.New("pipeline: invalid input")

// Pipeline runs configured module orders over record batches.
type Pipeline struct {
	registry *registry.Registry
	auditor  *mirror.Auditor
	logger   *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce     sync.Once
	moduleLatency   metric.Float64Histogram
	moduleSuccesses metric.Int64Counter
	moduleFailures  metric.Int64Counter
	runLatency      metric.Float64Histogram
}

// New creates a Pipeline.
//
// Inputs:
//
//	reg - The module registry. Must not be nil.
//	aud - The Mirror auditor. Must not be nil.
//	logger - Logger for run logs. If nil, uses slog.Default().
func New(reg *registry.Registry, aud *mirror.Auditor, logger *slog.Logger) (*Pipeline, error) {
	if reg == nil || aud == nil {
		return nil, ErrInvalidInput
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry: reg,
		auditor:  aud,
		logger:   logger,
	}, nil
}

// initMetrics lazily initializes metrics. Failures degrade gracefully:
// execution continues without instrumentation.
func (p *Pipeline) initMetrics() {
	p.metricsOnce.Do(func() {
		var err error
		p.moduleLatency, err = meter.Float64Histogram("pipeline_module_duration_seconds",
			metric.WithDescription("Time spent executing each annotation module"),
			metric.WithUnit("s"),
		)
		if err != nil {
			p.logger.Warn("metric init failed", "metric", "module_latency", "error", err)
		}
		p.moduleSuccesses, err = meter.Int64Counter("pipeline_module_success_total",
			metric.WithDescription("Number of successful module executions"),
		)
		if err != nil {
			p.logger.Warn("metric init failed", "metric", "module_successes", "error", err)
		}
		p.moduleFailures, err = meter.Int64Counter("pipeline_module_failure_total",
			metric.WithDescription("Number of failed module executions"),
		)
		if err != nil {
			p.logger.Warn("metric init failed", "metric", "module_failures", "error", err)
		}
		p.runLatency, err = meter.Float64Histogram("pipeline_run_duration_seconds",
			metric.WithDescription("Total pipeline run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			p.logger.Warn("metric init failed", "metric", "run_latency", "error", err)
		}
	})
}

// moduleOutcome classifies one module invocation.
type moduleOutcome int

const (
	outcomeSuccess moduleOutcome = iota
	outcomeNotFound
	outcomeFailed
)

// moduleResult is the typed result of one module invocation. The
// pipeline switches on Outcome instead of relying on a broad catch-all.
type moduleResult struct {
	name    string
	outcome moduleOutcome

	// batch is the (possibly replaced) batch after a successful run.
	batch []datatypes.Record

	// err is set for outcomeFailed.
	err error
}

// Run executes the module order against the batch and returns the
// complete result. Run never returns an error: configuration problems,
// module failures, and audit failures all end up as report fields.
//
// Ordering is significant and caller-supplied; the pipeline does not
// reorder or deduplicate. An "insights" step is appended when the
// order omits it.
func (p *Pipeline) Run(ctx context.Context, records []datatypes.Record, moduleOrder []string, topic, mode string) *datatypes.Result {
	p.initMetrics()
	runID := uuid.NewString()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "Pipeline.Run",
		trace.WithAttributes(
			attribute.String("pipeline.run_id", runID),
			attribute.Int("pipeline.records", len(records)),
			attribute.Int("pipeline.modules", len(moduleOrder)),
			attribute.String("pipeline.topic", topic),
		),
	)
	defer span.End()

	logger := p.logger.With("run_id", runID)

	if len(records) == 0 {
		logger.Warn("pipeline run skipped, empty batch")
		return &datatypes.Result{
			RunID: runID,
			Data:  []datatypes.Record{},
			ModuleReport: &datatypes.RunReport{
				Modules: map[string]string{},
				Error:   "no entries provided",
			},
			MirrorReport: &datatypes.MirrorReport{
				Status:      datatypes.MirrorStatusSkipped,
				Anomalies:   []datatypes.Anomaly{},
				Reflections: []string{"No data to mirror."},
				Timestamp:   time.Now().UTC().Format(time.RFC3339),
			},
		}
	}

	if !slices.Contains(moduleOrder, registry.ModuleInsights) {
		moduleOrder = append(slices.Clone(moduleOrder), registry.ModuleInsights)
	}

	report := datatypes.NewRunReport()
	rc := datatypes.RunContext{Topic: topic, Mode: mode, Report: report}

	logger.Info("pipeline run started",
		"records", len(records),
		"modules", len(moduleOrder),
		"topic", topic,
		"mode", mode,
	)

	for _, name := range moduleOrder {
		res := p.runModule(ctx, name, records, rc)
		switch res.outcome {
		case outcomeNotFound:
			report.Modules[name] = datatypes.StatusNotFound
			logger.Warn("module not found", "module", name)

		case outcomeFailed:
			report.Modules[name] = "error: " + res.err.Error()
			logger.Error("module failed", "module", name, "error", res.err)
			// The batch continues unmodified by this module. Partial
			// in-place mutations on records it already touched are
			// allowed to remain.

		case outcomeSuccess:
			if res.batch != nil {
				records = res.batch
			}
			if _, exists := report.Modules[name]; !exists {
				report.Modules[name] = datatypes.StatusSuccess
			}
		}
	}

	// The Mirror always runs, even over a partially annotated batch.
	mirrorReport := p.runAudit(ctx, records)

	elapsed := time.Since(start)
	if p.runLatency != nil {
		p.runLatency.Record(ctx, elapsed.Seconds())
	}
	span.SetAttributes(
		attribute.String("pipeline.mirror_status", mirrorReport.Status),
		attribute.Float64("pipeline.confidence", mirrorReport.Confidence),
	)
	logger.Info("pipeline run finished",
		"duration_ms", elapsed.Milliseconds(),
		"mirror_status", mirrorReport.Status,
		"confidence", mirrorReport.Confidence,
		"flagged_rows", mirrorReport.FlaggedRows,
	)

	return &datatypes.Result{
		RunID:        runID,
		Data:         records,
		ModuleReport: report,
		MirrorReport: mirrorReport,
	}
}

// runModule resolves and invokes one module, converting panics and
// errors into a typed result.
func (p *Pipeline) runModule(ctx context.Context, name string, batch []datatypes.Record, rc datatypes.RunContext) (res moduleResult) {
	res = moduleResult{name: name}

	mod, ok := p.registry.Lookup(name)
	if !ok {
		res.outcome = outcomeNotFound
		return res
	}

	ctx, span := tracer.Start(ctx, "Pipeline.Module",
		trace.WithAttributes(attribute.String("module.name", name)),
	)
	defer span.End()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.outcome = outcomeFailed
			res.err = fmt.Errorf("module panicked: %v", r)
			span.RecordError(res.err)
			span.SetStatus(codes.Error, res.err.Error())
			if p.moduleFailures != nil {
				p.moduleFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("module", name)))
			}
		}
		if p.moduleLatency != nil {
			p.moduleLatency.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("module", name)))
		}
	}()

	out, err := mod.Annotate(ctx, batch, rc)
	if err != nil {
		res.outcome = outcomeFailed
		res.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if p.moduleFailures != nil {
			p.moduleFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("module", name)))
		}
		return res
	}

	res.outcome = outcomeSuccess
	res.batch = out
	if p.moduleSuccesses != nil {
		p.moduleSuccesses.Add(ctx, 1, metric.WithAttributes(attribute.String("module", name)))
	}
	return res
}

// runAudit invokes the Mirror auditor, converting any panic into an
// error-status report so the audit never aborts the run.
func (p *Pipeline) runAudit(ctx context.Context, batch []datatypes.Record) (report *datatypes.MirrorReport) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("mirror audit failed", "error", r)
			report = &datatypes.MirrorReport{
				Status:      datatypes.MirrorStatusError,
				Anomalies:   []datatypes.Anomaly{},
				Reflections: []string{"Mirror audit could not run."},
				Error:       fmt.Sprint(r),
				Timestamp:   time.Now().UTC().Format(time.RFC3339),
			}
		}
	}()
	return p.auditor.Run(ctx, batch)
}
