// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package kpi derives composite numeric scores from fields already
// present on a record.
//
// # Description
//
// Every function here is pure and deterministic: it reads annotation
// fields defensively (missing inputs read as 0), rounds to 2 decimal
// places, and never mutates anything except through the kpi_calculate
// module, which stamps all scores onto each record in the batch.
//
// The KPI module must run after quote extraction and emotion analysis
// in the configured module order, because quote_density and the valence
// metrics feed on their output fields.
//
// # Thread Safety
//
// The score functions are pure. The Module mutates the batch it is
// given; it relies on the pipeline's strictly sequential execution.
package kpi

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

// Field names written by the kpi_calculate module and read by the
// Mirror and insights layers.
const (
	FieldQuoteDensity     = "quote_density"
	FieldAmbivalence      = "ambivalence_score"
	FieldResonance        = "resonance_score"
	FieldEmotionDominance = "emotion_dominance"
	FieldValenceShift     = "valence_shift"
	FieldConflictIndex    = "conflict_index"
	FieldStrategicHeat    = "strategic_heat"
)

// Input field names populated by upstream annotators.
const (
	FieldEmotionScores  = "emotion_scores"
	FieldValenceBalance = "valence_balance"
)

// QuoteDensity is the ratio of the quote's word count to the full
// text's word count. Returns 0 when the text has no words. Higher
// values mean a pithier record.
func QuoteDensity(r datatypes.Record) float64 {
	textLen := len(strings.Fields(r.Text()))
	if textLen == 0 {
		return 0
	}
	quoteLen := len(strings.Fields(r.String(datatypes.FieldQuote)))
	return round2(float64(quoteLen) / float64(textLen))
}

// ResonanceScore is quote_density x ambivalence_score, a hint at
// strategic relevance.
func ResonanceScore(r datatypes.Record) float64 {
	qd := r.FloatOr(FieldQuoteDensity, 0)
	amb := r.FloatOr(FieldAmbivalence, 0)
	return round2(qd * amb)
}

// EmotionDominance measures how dominant the strongest emotion is
// relative to the runner-ups: top1 / sum(top3) over the emotion score
// mapping. Returns 0 for an empty mapping or a zero sum. 1 means one
// emotion clearly dominates, values near 1/3 mean an even spread.
func EmotionDominance(r datatypes.Record) float64 {
	scores := r.FloatMap(FieldEmotionScores)
	if len(scores) == 0 {
		return 0
	}

	vals := make([]float64, 0, len(scores))
	for _, v := range scores {
		vals = append(vals, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	if len(vals) > 3 {
		vals = vals[:3]
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	if sum == 0 {
		return 0
	}
	return round2(vals[0] / sum)
}

// ValenceShift measures the balance between positive and negative
// valence shares: min(pos,neg)/max(pos,neg). Returns 0 when both are
// zero. Values near 1 indicate emotional conflict (equally strong
// positive and negative), values near 0 a one-sided valence.
func ValenceShift(r datatypes.Record) float64 {
	vb := r.FloatMap(FieldValenceBalance)
	pos := vb["pos"]
	neg := vb["neg"]

	if math.Max(pos, neg) == 0 {
		return 0
	}
	return round2(math.Min(pos, neg) / math.Max(pos, neg))
}

// ConflictIndex is resonance_score x ambivalence_score, a signal for
// tension-loaded records.
func ConflictIndex(r datatypes.Record) float64 {
	resonance := r.FloatOr(FieldResonance, 0)
	amb := r.FloatOr(FieldAmbivalence, 0)
	return round2(resonance * amb)
}

// StrategicHeat is the master relevance KPI: the mean of quote density,
// ambivalence, and valence conflict.
func StrategicHeat(r datatypes.Record) float64 {
	qd := r.FloatOr(FieldQuoteDensity, 0)
	amb := r.FloatOr(FieldAmbivalence, 0)
	vs := ValenceShift(r)
	return round2((qd + amb + vs) / 3)
}

// Module is the kpi_calculate pipeline module.
type Module struct{}

// NewModule returns the kpi_calculate module.
func NewModule() *Module { return &Module{} }

// Name implements registry.Module.
func (*Module) Name() string { return "kpi_calculate" }

// ContextAware implements registry.Module. KPI derivation needs no
// topic context.
func (*Module) ContextAware() bool { return false }

// Annotate stamps all KPI fields onto every record in the batch.
//
// The ambivalence score is defaulted to 0 first so every downstream
// consumer sees the field, then the composite scores are derived in
// dependency order (resonance before conflict).
func (*Module) Annotate(_ context.Context, batch []datatypes.Record, _ datatypes.RunContext) ([]datatypes.Record, error) {
	for _, r := range batch {
		r.Set(FieldQuoteDensity, QuoteDensity(r))
		r.Set(FieldAmbivalence, r.FloatOr(FieldAmbivalence, 0))

		r.Set(FieldResonance, ResonanceScore(r))
		r.Set(FieldEmotionDominance, EmotionDominance(r))
		r.Set(FieldValenceShift, ValenceShift(r))
		r.Set(FieldConflictIndex, ConflictIndex(r))
		r.Set(FieldStrategicHeat, StrategicHeat(r))
	}
	return batch, nil
}

// round2 rounds to 2 decimal places, half to even.
func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}
