// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the analyzer service.
//
// This file contains the pipeline run report and result types returned
// to callers of the analysis pipeline.
package datatypes

// Module status strings recorded in the run report. A module's entry is
// either StatusSuccess, StatusNotFound, or an error message prefixed
// with "error: ".
const (
	StatusSuccess  = "success"
	StatusNotFound = "module not found"
)

// RunContext carries the per-run parameters handed to context-aware
// modules, plus the run report modules may write into (the insights
// module records its summary there).
type RunContext struct {
	// Topic is the discourse topic passed to topic-aware modules.
	Topic string

	// Mode selects preprocessing behavior upstream ("auto" or "manual").
	// The pipeline itself treats it as opaque.
	Mode string

	// Report is the run report being built for this invocation.
	// Never nil during a pipeline run.
	Report *RunReport
}

// RunReport accumulates per-module status for one pipeline invocation.
//
// Modules maps module name to a status string; every name in the
// configured module order gets exactly one entry. Insights is populated
// by the insights module when it runs.
type RunReport struct {
	// Modules maps module name -> StatusSuccess, StatusNotFound, or an
	// error message.
	Modules map[string]string `json:"modules"`

	// Insights is the summary produced by the insights module, nil if
	// the module did not run.
	Insights *InsightSummary `json:"insights,omitempty"`

	// Error is set instead of Modules entries when the run could not
	// start at all (empty input batch).
	Error string `json:"error,omitempty"`
}

// NewRunReport returns an empty report ready for status entries.
func NewRunReport() *RunReport {
	return &RunReport{Modules: make(map[string]string)}
}

// InsightSummary is the advisory text reduced from batch-level KPI
// means by the insights module.
type InsightSummary struct {
	// ExecutiveSummary is an ordered list of fixed-template sentences
	// reporting the batch means.
	ExecutiveSummary []string `json:"executive_summary"`

	// RecommendedActions lists one recommendation per satisfied
	// threshold, in a fixed order.
	RecommendedActions []string `json:"recommended_actions"`
}

// Result is the caller-visible outcome of one pipeline invocation.
type Result struct {
	// RunID uniquely identifies this invocation in logs and traces.
	RunID string `json:"run_id"`

	// Data is the annotated batch, same order and length as the input.
	Data []Record `json:"data"`

	// ModuleReport records the status of every configured module.
	ModuleReport *RunReport `json:"module_report"`

	// MirrorReport is the consistency audit over the annotated batch.
	// Always present: skipped, error, and no_data states are reports,
	// not absences.
	MirrorReport *MirrorReport `json:"mirror_report"`
}
