// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insights

import (
	"context"
	"strings"
	"testing"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
	"github.com/resonanz-lab/htif/services/analyzer/kpi"
)

func TestSummarizeEmptyBatch(t *testing.T) {
	s := Summarize(nil)
	if len(s.ExecutiveSummary) != 1 || s.ExecutiveSummary[0] != "No data available." {
		t.Errorf("empty batch summary = %v", s.ExecutiveSummary)
	}
	if len(s.RecommendedActions) != 0 {
		t.Errorf("empty batch actions = %v, want none", s.RecommendedActions)
	}
}

func TestSummarizeQuietBatch(t *testing.T) {
	batch := []datatypes.Record{
		{kpi.FieldStrategicHeat: 0.1, kpi.FieldAmbivalence: 0.1,
			kpi.FieldValenceBalance: map[string]any{"pos": 0.6, "neg": 0.1}},
		{kpi.FieldStrategicHeat: 0.2, kpi.FieldAmbivalence: 0.2,
			kpi.FieldValenceBalance: map[string]any{"pos": 0.5, "neg": 0.2}},
	}

	s := Summarize(batch)
	if len(s.ExecutiveSummary) != 3 {
		t.Fatalf("summary has %d sentences, want 3", len(s.ExecutiveSummary))
	}
	if len(s.RecommendedActions) != 1 {
		t.Fatalf("actions = %v, want single monitoring recommendation", s.RecommendedActions)
	}
	if !strings.Contains(s.RecommendedActions[0], "monitoring") {
		t.Errorf("quiet batch recommendation = %q", s.RecommendedActions[0])
	}
}

func TestSummarizeAllThresholds(t *testing.T) {
	batch := []datatypes.Record{
		{kpi.FieldStrategicHeat: 0.9, kpi.FieldAmbivalence: 0.8,
			kpi.FieldValenceBalance: map[string]any{"pos": 0.1, "neg": 0.7}},
	}

	s := Summarize(batch)
	if len(s.RecommendedActions) != 3 {
		t.Fatalf("actions = %v, want all three recommendations", s.RecommendedActions)
	}

	// Fixed order: heat, ambivalence, negativity.
	if !strings.Contains(s.RecommendedActions[0], "crisis board") {
		t.Errorf("action[0] = %q", s.RecommendedActions[0])
	}
	if !strings.Contains(s.RecommendedActions[1], "ambivalence") {
		t.Errorf("action[1] = %q", s.RecommendedActions[1])
	}
	if !strings.Contains(s.RecommendedActions[2], "narrative") {
		t.Errorf("action[2] = %q", s.RecommendedActions[2])
	}
}

func TestSummarizeMissingFieldsDefaultToZero(t *testing.T) {
	// Records without KPI fields must not fail and must not distort the
	// valence means (which run over all records).
	batch := []datatypes.Record{
		{kpi.FieldValenceBalance: map[string]any{"pos": 1.0, "neg": 0.0}},
		{},
	}

	s := Summarize(batch)
	if !strings.Contains(s.ExecutiveSummary[2], "50% positive") {
		t.Errorf("valence sentence = %q", s.ExecutiveSummary[2])
	}
}

func TestModuleWritesReport(t *testing.T) {
	m := NewModule()
	report := datatypes.NewRunReport()
	batch := []datatypes.Record{{kpi.FieldStrategicHeat: 0.5}}

	out, err := m.Annotate(context.Background(), batch, datatypes.RunContext{Report: report})
	if err != nil {
		t.Fatalf("Annotate() error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("batch length changed: %d", len(out))
	}
	if report.Insights == nil {
		t.Fatal("insights summary not written to run report")
	}
	if len(report.Insights.ExecutiveSummary) != 3 {
		t.Errorf("summary sentences = %d, want 3", len(report.Insights.ExecutiveSummary))
	}
}

func TestModuleMetadata(t *testing.T) {
	m := NewModule()
	if m.Name() != "insights" {
		t.Errorf("Name() = %q", m.Name())
	}
	if m.ContextAware() {
		t.Error("insights module must not be context-aware")
	}
}
