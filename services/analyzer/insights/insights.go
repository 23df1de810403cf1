// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package insights reduces aggregated KPI metrics into short advisory
// text: an executive summary of batch means and a fixed-order list of
// recommended actions.
//
// The insights module is always the last annotation step; the domain
// profile provider appends it when a profile omits it.
package insights

import (
	"context"
	"fmt"
	"math"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
	"github.com/resonanz-lab/htif/services/analyzer/kpi"
)

// Recommendation thresholds over the batch means.
const (
	// heatThreshold flags a strategically relevant topic.
	heatThreshold = 0.7

	// ambivalenceThreshold flags a discourse needing differentiated
	// communication.
	ambivalenceThreshold = 0.5
)

// Summarize computes batch means of strategic heat, ambivalence, and
// valence shares, and renders them into summary sentences plus
// recommendations.
//
// Heat and ambivalence means are taken over the records that carry the
// field; valence shares are averaged over all records with missing
// fields defaulting to 0. An empty batch yields a single "no data"
// summary and no recommendations.
func Summarize(batch []datatypes.Record) *datatypes.InsightSummary {
	if len(batch) == 0 {
		return &datatypes.InsightSummary{
			ExecutiveSummary:   []string{"No data available."},
			RecommendedActions: []string{},
		}
	}

	var heats, ambs []float64
	var posSum, negSum float64
	for _, r := range batch {
		if v, ok := r.Float(kpi.FieldStrategicHeat); ok {
			heats = append(heats, v)
		}
		if v, ok := r.Float(kpi.FieldAmbivalence); ok {
			ambs = append(ambs, v)
		}
		vb := r.FloatMap(kpi.FieldValenceBalance)
		posSum += vb["pos"]
		negSum += vb["neg"]
	}

	avgHeat := round2(mean(heats))
	avgAmb := round2(mean(ambs))
	avgPos := round2(posSum / float64(len(batch)))
	avgNeg := round2(negSum / float64(len(batch)))

	summary := []string{
		fmt.Sprintf("Strategic heat is at %v.", avgHeat),
		fmt.Sprintf("Average ambivalence: %v.", avgAmb),
		fmt.Sprintf("Valence balance: %.0f%% positive, %.0f%% negative.", avgPos*100, avgNeg*100),
	}

	var actions []string
	if avgHeat > heatThreshold {
		actions = append(actions, "Topic is strategically relevant - escalate to the crisis board.")
	}
	if avgAmb > ambivalenceThreshold {
		actions = append(actions, "High ambivalence - differentiate the communication strategy.")
	}
	if avgNeg > avgPos {
		actions = append(actions, "Negativity dominates - proactively set a positive narrative.")
	}
	if len(actions) == 0 {
		actions = append(actions, "No critical signals - continue monitoring.")
	}

	return &datatypes.InsightSummary{
		ExecutiveSummary:   summary,
		RecommendedActions: actions,
	}
}

// Module is the insights pipeline module. It annotates nothing; its
// output goes into the run report.
type Module struct{}

// NewModule returns the insights module.
func NewModule() *Module { return &Module{} }

// Name implements registry.Module.
func (*Module) Name() string { return "insights" }

// ContextAware implements registry.Module.
func (*Module) ContextAware() bool { return false }

// Annotate writes the insight summary into the run report and returns
// the batch unchanged.
func (*Module) Annotate(_ context.Context, batch []datatypes.Record, rc datatypes.RunContext) ([]datatypes.Record, error) {
	summary := Summarize(batch)
	if rc.Report != nil {
		rc.Report.Insights = summary
	}
	return batch, nil
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}
