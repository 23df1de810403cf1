// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the analyzer service.
//
// This file contains the Mirror audit report types. The Mirror is the
// self-consistency pass run after annotation; its report is the trust
// gate for the whole batch.
package datatypes

// Mirror report status values.
const (
	// MirrorStatusOK means no flags were raised.
	MirrorStatusOK = "ok"

	// MirrorStatusInconsistencies means at least one record was flagged
	// but confidence is still acceptable.
	MirrorStatusInconsistencies = "inconsistencies_found"

	// MirrorStatusLowConfidence means confidence dropped below 0.6.
	// Takes precedence over MirrorStatusInconsistencies.
	MirrorStatusLowConfidence = "low_confidence"

	// MirrorStatusNoData means the audited batch was empty.
	MirrorStatusNoData = "no_data"

	// MirrorStatusSkipped means the pipeline short-circuited before the
	// audit could run (empty input batch).
	MirrorStatusSkipped = "skipped"

	// MirrorStatusError means the audit itself failed.
	MirrorStatusError = "error"
)

// FieldReport holds the batch statistics and outlier counts for one
// tracked field.
type FieldReport struct {
	// Count is the number of numeric values observed for the field.
	Count int `json:"count"`

	// Mean is the arithmetic mean over the numeric values.
	Mean float64 `json:"mean"`

	// Std is the population standard deviation, 0 when Count < 2.
	Std float64 `json:"std"`

	Min float64 `json:"min"`
	Max float64 `json:"max"`

	// P10 and P90 are nearest-rank percentiles over the sorted values.
	P10 float64 `json:"p10"`
	P90 float64 `json:"p90"`

	// OutOfRange counts values outside the declared valid range.
	OutOfRange int `json:"out_of_range"`

	// ZScoreGt3 counts values with |z| > 3 (only counted when Std > 0).
	ZScoreGt3 int `json:"z_score_gt_3"`

	// AboveP90x125 counts values exceeding P90 * 1.25.
	AboveP90x125 int `json:"above_p90x1_25"`

	// RangeMin and RangeMax echo the declared valid range. Ranges are
	// policy, never derived from the observed data.
	RangeMin float64 `json:"range_min"`
	RangeMax float64 `json:"range_max"`
}

// Anomaly is one flagged record captured into the bounded anomaly
// sample of a Mirror report.
type Anomaly struct {
	// Index is the record's position in the batch.
	Index int `json:"index"`

	// Flags lists every flag token the record triggered.
	Flags []string `json:"flags"`

	// Text is the record text truncated to 500 characters.
	Text string `json:"text"`

	// Values snapshots the tracked field values at audit time.
	Values map[string]any `json:"values"`
}

// ConfidenceBreakdown decomposes the Mirror confidence into its three
// contributing signals, each in [0,1].
type ConfidenceBreakdown struct {
	// RangeConsistency is 1 minus the share of out-of-range values.
	RangeConsistency float64 `json:"range_consistency"`

	// Stability is 1 minus the share of |z| > 3 values.
	Stability float64 `json:"stability"`

	// MoralEmotionBalance is 1 minus the shear index.
	MoralEmotionBalance float64 `json:"moral_emotion_balance"`
}

// MirrorReport is the outcome of one consistency audit.
//
// One instance per run. Statistics are exact over the full batch; only
// the anomaly sample is bounded.
type MirrorReport struct {
	// Status is one of the MirrorStatus* values.
	Status string `json:"status"`

	// Checked is the number of records audited.
	Checked int `json:"checked"`

	// Fields maps tracked field name -> its batch statistics.
	Fields map[string]FieldReport `json:"fields,omitempty"`

	// Anomalies is a sample of flagged records, capped at 100 entries
	// regardless of batch size.
	Anomalies []Anomaly `json:"anomalies"`

	// Reflections is an ordered sequence of human-readable statements
	// about the audit outcome.
	Reflections []string `json:"reflections"`

	// Confidence estimates batch-wide annotation trustworthiness,
	// clamped to [0,1].
	Confidence float64 `json:"confidence_level"`

	// Breakdown decomposes Confidence; nil for skipped/error reports.
	Breakdown *ConfidenceBreakdown `json:"confidence_breakdown,omitempty"`

	// ShearIndex is the mean number of scissor (divergence) triggers
	// per record, rounded to 3 decimals.
	ShearIndex float64 `json:"shear_index"`

	// FlaggedRows is the number of records whose mirror_flags is not
	// ["ok"].
	FlaggedRows int `json:"flagged_rows"`

	// Timestamp is the audit completion time, RFC 3339 UTC.
	Timestamp string `json:"timestamp"`

	// Error carries the failure message for MirrorStatusError reports.
	Error string `json:"error,omitempty"`
}
