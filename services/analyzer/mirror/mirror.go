// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mirror implements the consistency audit ("Mirror") run after
// annotation completes.
//
// # Description
//
// The Mirror validates the statistical plausibility of the metrics the
// pipeline produced, independent of any single metric's correctness.
// Per run it computes field-level statistics for every tracked field,
// re-tests each record against those batch statistics and the scissor
// divergence rules, and reduces the triggered flags into a shear index,
// a confidence score in [0,1], and human-readable reflections. Every
// record ends up carrying a mirror_flags list (["ok"] or the specific
// flag tokens) and a copy of the batch-wide shear index.
//
// # Thread Safety
//
// An Auditor is stateless across runs and safe for concurrent use on
// distinct batches. The audited batch must not be mutated concurrently
// with Run.
package mirror

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

var tracer = otel.Tracer("htif.mirror")

// Auditor runs consistency audits with a fixed field and rule
// configuration. Configuration is immutable after construction.
type Auditor struct {
	fields []TrackedField
	rules  []ScissorRule
}

// New returns an Auditor with the default tracked fields and scissor
// rules.
func New() *Auditor {
	return NewWithConfig(DefaultTrackedFields(), DefaultScissorRules())
}

// NewWithConfig returns an Auditor with a custom configuration. Used
// by tests and deployments that track additional score fields.
func NewWithConfig(fields []TrackedField, rules []ScissorRule) *Auditor {
	return &Auditor{fields: fields, rules: rules}
}

// Run audits the batch and returns the Mirror report.
//
// Run is single-pass over a snapshot taken after annotation: field
// statistics first, then per-record evaluation against those batch
// statistics, then the aggregate indices. Records are mutated in place
// (mirror_flags, shear_index_local); the report's statistics are exact
// over the full batch while the anomaly sample is capped.
func (a *Auditor) Run(ctx context.Context, batch []datatypes.Record) *datatypes.MirrorReport {
	_, span := tracer.Start(ctx, "Mirror.Run")
	defer span.End()

	if len(batch) == 0 {
		span.SetAttributes(attribute.Int("mirror.checked", 0))
		return &datatypes.MirrorReport{
			Status:      datatypes.MirrorStatusNoData,
			Checked:     0,
			Fields:      map[string]datatypes.FieldReport{},
			Anomalies:   []datatypes.Anomaly{},
			Reflections: []string{"No entries provided."},
			Confidence:  0.0,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
	}

	// Field statistics over the full batch.
	fieldReports := make(map[string]datatypes.FieldReport, len(a.fields))
	batchStats := make(map[string]fieldStats, len(a.fields))
	totalValues := 0
	for _, f := range a.fields {
		var nums []float64
		for _, r := range batch {
			if !r.Has(f.Name) {
				continue
			}
			totalValues++
			if v, ok := r.Float(f.Name); ok {
				nums = append(nums, v)
			}
		}

		st := computeStats(nums)
		outOfRange, z3, aboveP90 := countOutliers(nums, f.Min, f.Max, st)
		batchStats[f.Name] = st
		fieldReports[f.Name] = datatypes.FieldReport{
			Count:        st.count,
			Mean:         st.mean,
			Std:          st.std,
			Min:          st.min,
			Max:          st.max,
			P10:          st.p10,
			P90:          st.p90,
			OutOfRange:   outOfRange,
			ZScoreGt3:    z3,
			AboveP90x125: aboveP90,
			RangeMin:     f.Min,
			RangeMax:     f.Max,
		}
	}

	// Per-record evaluation against the batch statistics.
	var anomalies []datatypes.Anomaly
	totalFlags := 0
	scissorTotal := 0
	flaggedRows := 0

	for idx, r := range batch {
		var flags []string

		for _, f := range a.fields {
			v, ok := r.Float(f.Name)
			if !ok {
				continue
			}
			st := batchStats[f.Name]
			if v < f.Min-rangeEps || v > f.Max+rangeEps {
				flags = append(flags, f.Name+":out_of_range")
			}
			if st.std > 0 && math.Abs((v-st.mean)/(st.std+rangeEps)) > 3.0 {
				flags = append(flags, f.Name+":z_score_gt_3")
			}
			if v > st.p90*1.25 {
				flags = append(flags, f.Name+":above_p90x1.25")
			}
		}

		scissorHits := a.applyScissorRules(r)
		scissorTotal += len(scissorHits)
		flags = append(flags, scissorHits...)

		if len(flags) > 0 {
			totalFlags += len(flags)
			flaggedRows++
			r.Set(datatypes.FieldMirrorFlags, flags)
			if len(anomalies) < MaxAnomalyExamples {
				anomalies = append(anomalies, datatypes.Anomaly{
					Index:  idx,
					Flags:  flags,
					Text:   truncate(r.Text(), textExcerptLen),
					Values: a.snapshotValues(r),
				})
			}
		} else {
			r.Set(datatypes.FieldMirrorFlags, []string{"ok"})
		}
	}

	checked := len(batch)

	// Aggregate indices.
	shearIndex := round3(float64(scissorTotal) / float64(checked))
	avgFlagsPerRow := float64(totalFlags) / float64(checked)
	confidence := clamp01(1.0 - math.Min(1.0, avgFlagsPerRow))

	outOfRangeSum, zScoreSum := 0, 0
	for _, fr := range fieldReports {
		outOfRangeSum += fr.OutOfRange
		zScoreSum += fr.ZScoreGt3
	}
	denom := float64(totalValues)
	if denom == 0 {
		denom = 1
	}
	breakdown := &datatypes.ConfidenceBreakdown{
		RangeConsistency:    round3(1 - float64(outOfRangeSum)/denom),
		Stability:           round3(1 - float64(zScoreSum)/denom),
		MoralEmotionBalance: round3(1 - shearIndex),
	}

	// Status. The low-confidence check runs after, and takes precedence
	// over, the inconsistencies check.
	status := datatypes.MirrorStatusOK
	if totalFlags > 0 {
		status = datatypes.MirrorStatusInconsistencies
	}
	if confidence < lowConfidenceThreshold {
		status = datatypes.MirrorStatusLowConfidence
	}

	reflections := []string{
		fmt.Sprintf("%d entries checked.", checked),
		fmt.Sprintf("Total flag count: %d.", totalFlags),
		fmt.Sprintf("Estimated analysis confidence: %v.", round2(confidence)),
		fmt.Sprintf("Shear Index (value/moral divergence): %v.", shearIndex),
	}
	switch {
	case confidence < 0.5:
		reflections = append(reflections, "Low analytical confidence: dataset shows fragmented coherence or measurement uncertainty.")
	case shearIndex > 0.3:
		reflections = append(reflections, "Strong emotional-moral divergence detected: discourse may be polarized or ironic.")
	case confidence > 0.8 && shearIndex < 0.1:
		reflections = append(reflections, "High internal stability: emotional and moral signals appear balanced.")
	default:
		reflections = append(reflections, "Minor inconsistencies observed, overall coherence maintained.")
	}

	// Share the batch-wide shear index with every record for downstream
	// consumers.
	for _, r := range batch {
		r.Set(datatypes.FieldShearIndex, shearIndex)
	}

	if anomalies == nil {
		anomalies = []datatypes.Anomaly{}
	}

	span.SetAttributes(
		attribute.Int("mirror.checked", checked),
		attribute.Int("mirror.flagged_rows", flaggedRows),
		attribute.Float64("mirror.confidence", confidence),
		attribute.Float64("mirror.shear_index", shearIndex),
	)

	return &datatypes.MirrorReport{
		Status:      status,
		Checked:     checked,
		Fields:      fieldReports,
		Anomalies:   anomalies,
		Reflections: reflections,
		Confidence:  round3(confidence),
		Breakdown:   breakdown,
		ShearIndex:  shearIndex,
		FlaggedRows: flaggedRows,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// applyScissorRules returns the divergence flags the record triggers,
// in rule order. Both fields must be numeric for a rule to apply.
func (a *Auditor) applyScissorRules(r datatypes.Record) []string {
	var flags []string
	for _, rule := range a.rules {
		lv, lok := r.Float(rule.Left)
		rv, rok := r.Float(rule.Right)
		if lok && rok && lv >= rule.LeftHigh && rv <= rule.RightLow {
			flags = append(flags, rule.Flag)
		}
	}
	return flags
}

// snapshotValues captures the raw tracked field values of a record for
// the anomaly sample. Missing fields snapshot as nil.
func (a *Auditor) snapshotValues(r datatypes.Record) map[string]any {
	values := make(map[string]any, len(a.fields))
	for _, f := range a.fields {
		values[f.Name] = r[f.Name]
	}
	return values
}

// truncate bounds s to at most n runes, never splitting a multibyte
// character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
