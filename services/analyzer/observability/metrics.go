// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics for the analyzer service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring analysis
// runs. Metrics include:
//   - Run counters (by mirror status)
//   - Module failure counters (by module name)
//   - Mirror flag counters (by flag category)
//   - Confidence gauge of the latest run
//   - Run duration histograms
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "htif"

// Subsystem for analysis run metrics
const analysisSubsystem = "analysis"

// AnalysisMetrics holds all Prometheus metrics for analysis runs.
//
// # Description
//
// Provides counters, histograms, and a gauge for monitoring pipeline
// throughput and Mirror audit quality. Initialize once at startup via
// InitMetrics(), or per-registry via NewAnalysisMetrics() in tests.
//
// # Thread Safety
//
// All operations are thread-safe.
type AnalysisMetrics struct {
	// RunsTotal counts analysis runs by final mirror status.
	// Labels: status (ok, inconsistencies_found, low_confidence, ...)
	RunsTotal *prometheus.CounterVec

	// ModuleFailuresTotal counts module executions that errored or
	// panicked. Labels: module
	ModuleFailuresTotal *prometheus.CounterVec

	// MirrorFlagsTotal counts flags raised by the Mirror audit.
	// Labels: flag (out_of_range, z_score_gt_3, above_p90x1.25, scissor)
	MirrorFlagsTotal *prometheus.CounterVec

	// LastConfidence reports the confidence level of the most recent
	// run. Useful for alerting on sustained low-confidence batches.
	LastConfidence prometheus.Gauge

	// RunDurationSeconds measures end-to-end analysis time, including
	// preprocessing, all modules, and the Mirror audit.
	// Labels: status
	RunDurationSeconds *prometheus.HistogramVec

	// RecordsProcessedTotal counts records that entered the pipeline
	// after preprocessing.
	RecordsProcessedTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of AnalysisMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AnalysisMetrics

var initOnce sync.Once

// InitMetrics initializes the default metrics instance against the
// global Prometheus registry. Safe to call more than once; only the
// first call registers.
func InitMetrics() *AnalysisMetrics {
	initOnce.Do(func() {
		DefaultMetrics = NewAnalysisMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}

// NewAnalysisMetrics creates and registers the analysis metrics on the
// given registerer. Tests pass a fresh prometheus.NewRegistry() to
// avoid duplicate-registration panics across cases.
func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	factory := promauto.With(reg)

	return &AnalysisMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "runs_total",
				Help:      "Total number of analysis runs by mirror status",
			},
			[]string{"status"},
		),

		ModuleFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "module_failures_total",
				Help:      "Total module executions that errored or panicked",
			},
			[]string{"module"},
		),

		MirrorFlagsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "mirror_flags_total",
				Help:      "Total consistency flags raised by the mirror audit",
			},
			[]string{"flag"},
		),

		LastConfidence: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "last_confidence",
				Help:      "Confidence level of the most recent analysis run",
			},
		),

		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "run_duration_seconds",
				Help:      "End-to-end analysis run duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0},
			},
			[]string{"status"},
		),

		RecordsProcessedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "records_processed_total",
				Help:      "Total records that entered the pipeline after preprocessing",
			},
		),
	}
}

// =============================================================================
// Recording Helpers
// =============================================================================

// ObserveRun records the outcome of one completed analysis run.
//
// Inputs:
//
//	status - The final mirror status of the run.
//	confidence - The mirror confidence level in [0, 1].
//	records - Number of records processed.
//	seconds - Total run duration.
func (m *AnalysisMetrics) ObserveRun(status string, confidence float64, records int, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.LastConfidence.Set(confidence)
	m.RunDurationSeconds.WithLabelValues(status).Observe(seconds)
	m.RecordsProcessedTotal.Add(float64(records))
}

// ObserveModuleFailure records a failed module execution.
func (m *AnalysisMetrics) ObserveModuleFailure(module string) {
	if m == nil {
		return
	}
	m.ModuleFailuresTotal.WithLabelValues(module).Inc()
}

// ObserveMirrorFlags records the per-field flag counts of a mirror
// report. Flag labels use category names, not field-qualified tokens,
// to keep cardinality bounded.
func (m *AnalysisMetrics) ObserveMirrorFlags(outOfRange, zScore, aboveP90, scissor int) {
	if m == nil {
		return
	}
	m.MirrorFlagsTotal.WithLabelValues("out_of_range").Add(float64(outOfRange))
	m.MirrorFlagsTotal.WithLabelValues("z_score_gt_3").Add(float64(zScore))
	m.MirrorFlagsTotal.WithLabelValues("above_p90x1.25").Add(float64(aboveP90))
	m.MirrorFlagsTotal.WithLabelValues("scissor").Add(float64(scissor))
}
