// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mirror

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

func cleanBatch(n int) []datatypes.Record {
	batch := make([]datatypes.Record, n)
	for i := range batch {
		batch[i] = datatypes.Record{
			"text":              "a calm and unremarkable comment",
			"emotion_score":     0.5,
			"moral_intensity":   0.5,
			"toxicity_score":    0.1,
			"stance_confidence": 0.8,
			"ambivalence_score": 0.3,
			"resonance_score":   0.2,
		}
	}
	return batch
}

func TestRunEmptyBatch(t *testing.T) {
	report := New().Run(context.Background(), nil)

	if report.Status != datatypes.MirrorStatusNoData {
		t.Errorf("status = %q, want no_data", report.Status)
	}
	if report.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0", report.Confidence)
	}
	if report.Checked != 0 {
		t.Errorf("checked = %d, want 0", report.Checked)
	}
	if len(report.Fields) != 0 {
		t.Errorf("fields = %v, want none", report.Fields)
	}
	if len(report.Reflections) != 1 {
		t.Errorf("reflections = %v", report.Reflections)
	}
}

func TestRunCleanBatch(t *testing.T) {
	batch := cleanBatch(5)
	report := New().Run(context.Background(), batch)

	if report.Status != datatypes.MirrorStatusOK {
		t.Errorf("status = %q, want ok", report.Status)
	}
	if report.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", report.Confidence)
	}
	if report.FlaggedRows != 0 {
		t.Errorf("flagged_rows = %d, want 0", report.FlaggedRows)
	}
	if report.ShearIndex != 0.0 {
		t.Errorf("shear_index = %v, want 0", report.ShearIndex)
	}

	// High stability reflection: confidence > 0.8 and shear < 0.1.
	last := report.Reflections[len(report.Reflections)-1]
	if !strings.Contains(last, "High internal stability") {
		t.Errorf("qualitative reflection = %q", last)
	}

	// Every record gets exactly ["ok"] and the shared shear index.
	for i, r := range batch {
		flags, ok := r[datatypes.FieldMirrorFlags].([]string)
		if !ok || len(flags) != 1 || flags[0] != "ok" {
			t.Errorf("record %d mirror_flags = %v, want [ok]", i, r[datatypes.FieldMirrorFlags])
		}
		if v, _ := r.Float(datatypes.FieldShearIndex); v != 0.0 {
			t.Errorf("record %d shear_index_local = %v", i, v)
		}
	}
}

func TestRunScissorDivergence(t *testing.T) {
	// Batch of 3: one record triggers the emotion-vs-moral rule, the
	// rest carry no tracked fields.
	batch := []datatypes.Record{
		{"text": "neutral"},
		{"text": "outraged but value-free", "emotion_score": 0.9, "moral_intensity": 0.1},
		{"text": "neutral"},
	}

	report := New().Run(context.Background(), batch)

	if report.FlaggedRows != 1 {
		t.Errorf("flagged_rows = %d, want 1", report.FlaggedRows)
	}
	if report.ShearIndex != 0.333 {
		t.Errorf("shear_index = %v, want 0.333", report.ShearIndex)
	}

	flags, _ := batch[1][datatypes.FieldMirrorFlags].([]string)
	found := false
	for _, f := range flags {
		if f == "scissor_emotion_vs_moral" {
			found = true
		}
	}
	if !found {
		t.Errorf("record flags = %v, want scissor_emotion_vs_moral", flags)
	}

	if len(report.Anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(report.Anomalies))
	}
	if report.Anomalies[0].Index != 1 {
		t.Errorf("anomaly index = %d, want 1", report.Anomalies[0].Index)
	}
	if report.Status != datatypes.MirrorStatusInconsistencies {
		t.Errorf("status = %q, want inconsistencies_found", report.Status)
	}
}

func TestShearIndexExact(t *testing.T) {
	// Two scissor triggers on one record (emotion vs moral AND emotion
	// vs stance confidence), over a batch of 4.
	batch := []datatypes.Record{
		{"emotion_score": 0.9, "moral_intensity": 0.1, "stance_confidence": 0.2},
		{}, {}, {},
	}

	report := New().Run(context.Background(), batch)

	// 0.9 >= 0.7 && 0.1 <= 0.3 -> emotion_vs_moral
	// 0.9 >= 0.6 && 0.2 <= 0.4 -> emotion_vs_stance_conf
	if report.ShearIndex != 0.5 {
		t.Errorf("shear_index = %v, want 2/4 = 0.5", report.ShearIndex)
	}
}

func TestConfidenceClamped(t *testing.T) {
	tests := []struct {
		name  string
		batch []datatypes.Record
	}{
		{"single record", cleanBatch(1)},
		{"identical values", cleanBatch(10)},
		{
			"everything out of range",
			[]datatypes.Record{
				{"emotion_score": 7.0, "moral_intensity": -3.0, "toxicity_score": 9.0},
				{"emotion_score": 8.0, "moral_intensity": -2.0, "toxicity_score": 9.5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := New().Run(context.Background(), tt.batch)
			if report.Confidence < 0.0 || report.Confidence > 1.0 {
				t.Errorf("confidence = %v, outside [0,1]", report.Confidence)
			}
		})
	}
}

func TestLowConfidenceOverridesInconsistencies(t *testing.T) {
	// Every record out of range on one field: one flag per record, so
	// avg flags per row >= 1 and confidence floors at 0.
	batch := make([]datatypes.Record, 4)
	for i := range batch {
		batch[i] = datatypes.Record{"emotion_score": 5.0}
	}

	report := New().Run(context.Background(), batch)

	if report.Status != datatypes.MirrorStatusLowConfidence {
		t.Errorf("status = %q, want low_confidence", report.Status)
	}
	if report.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0", report.Confidence)
	}
	last := report.Reflections[len(report.Reflections)-1]
	if !strings.Contains(last, "Low analytical confidence") {
		t.Errorf("qualitative reflection = %q", last)
	}
}

func TestFlagsOkXorSpecific(t *testing.T) {
	batch := []datatypes.Record{
		{"emotion_score": 0.9, "moral_intensity": 0.1},
		{"emotion_score": 0.5, "moral_intensity": 0.5},
		{},
	}

	New().Run(context.Background(), batch)

	for i, r := range batch {
		flags, ok := r[datatypes.FieldMirrorFlags].([]string)
		if !ok || len(flags) == 0 {
			t.Fatalf("record %d has no mirror_flags", i)
		}
		isOk := len(flags) == 1 && flags[0] == "ok"
		hasSpecific := false
		for _, f := range flags {
			if f != "ok" {
				hasSpecific = true
			}
		}
		if isOk == hasSpecific {
			t.Errorf("record %d flags = %v, want [ok] XOR specific tokens", i, flags)
		}
	}
}

func TestIdempotentOnUnmodifiedBatch(t *testing.T) {
	batch := []datatypes.Record{
		{"emotion_score": 0.9, "moral_intensity": 0.1, "text": "one"},
		{"emotion_score": 0.4, "moral_intensity": 0.5, "text": "two"},
		{"text": "three"},
	}

	a := New()
	first := a.Run(context.Background(), batch)
	second := a.Run(context.Background(), batch)

	if !reflect.DeepEqual(first.Fields, second.Fields) {
		t.Error("field statistics differ between identical runs")
	}
	if first.ShearIndex != second.ShearIndex {
		t.Errorf("shear index differs: %v vs %v", first.ShearIndex, second.ShearIndex)
	}
	if first.Confidence != second.Confidence {
		t.Errorf("confidence differs: %v vs %v", first.Confidence, second.Confidence)
	}
	if first.FlaggedRows != second.FlaggedRows {
		t.Errorf("flagged rows differ: %d vs %d", first.FlaggedRows, second.FlaggedRows)
	}
}

func TestAnomalySampleCapped(t *testing.T) {
	// 500 records, all out of range: the sample is capped at 100 while
	// the statistics stay exact over the full batch.
	batch := make([]datatypes.Record, 500)
	for i := range batch {
		batch[i] = datatypes.Record{"emotion_score": 2.0}
	}

	report := New().Run(context.Background(), batch)

	if len(report.Anomalies) != MaxAnomalyExamples {
		t.Errorf("anomalies = %d, want %d", len(report.Anomalies), MaxAnomalyExamples)
	}
	if report.FlaggedRows != 500 {
		t.Errorf("flagged_rows = %d, want 500", report.FlaggedRows)
	}
	if report.Fields["emotion_score"].Count != 500 {
		t.Errorf("field count = %d, want 500", report.Fields["emotion_score"].Count)
	}
	if report.Fields["emotion_score"].OutOfRange != 500 {
		t.Errorf("out_of_range = %d, want 500", report.Fields["emotion_score"].OutOfRange)
	}
}

func TestAnomalyTextTruncated(t *testing.T) {
	batch := []datatypes.Record{{
		"text":          strings.Repeat("x", 2000),
		"emotion_score": 3.0,
	}}

	report := New().Run(context.Background(), batch)

	if len(report.Anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(report.Anomalies))
	}
	if got := len(report.Anomalies[0].Text); got != 500 {
		t.Errorf("anomaly text length = %d, want 500", got)
	}
}

func TestAnomalyTextTruncatedOnRuneBoundary(t *testing.T) {
	// Multibyte text: the excerpt is capped at 500 characters and must
	// stay valid UTF-8, so the cut cannot land inside a rune.
	batch := []datatypes.Record{{
		"text":          strings.Repeat("ü", 600),
		"emotion_score": 3.0,
	}}

	report := New().Run(context.Background(), batch)

	if len(report.Anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(report.Anomalies))
	}
	excerpt := report.Anomalies[0].Text
	if got := utf8.RuneCountInString(excerpt); got != 500 {
		t.Errorf("anomaly text runes = %d, want 500", got)
	}
	if !utf8.ValidString(excerpt) {
		t.Error("anomaly text is not valid UTF-8")
	}
}

func TestDeclaredRangesNotDerived(t *testing.T) {
	// Observed values far below the declared range must not move it.
	batch := []datatypes.Record{
		{"emotion_score": 0.01},
		{"emotion_score": 0.02},
	}

	report := New().Run(context.Background(), batch)

	fr := report.Fields["emotion_score"]
	if fr.RangeMin != 0.0 || fr.RangeMax != 1.0 {
		t.Errorf("declared range = [%v,%v], want [0,1]", fr.RangeMin, fr.RangeMax)
	}
}

func TestConfidenceBreakdown(t *testing.T) {
	// 4 values present on one field, 1 out of range.
	batch := []datatypes.Record{
		{"emotion_score": 0.2},
		{"emotion_score": 0.3},
		{"emotion_score": 0.4},
		{"emotion_score": 1.8},
	}

	report := New().Run(context.Background(), batch)

	if report.Breakdown == nil {
		t.Fatal("breakdown missing")
	}
	if report.Breakdown.RangeConsistency != 0.75 {
		t.Errorf("range_consistency = %v, want 0.75", report.Breakdown.RangeConsistency)
	}
	if report.Breakdown.MoralEmotionBalance != 1.0 {
		t.Errorf("moral_emotion_balance = %v, want 1.0", report.Breakdown.MoralEmotionBalance)
	}
}

func TestNonNumericValuesSkipped(t *testing.T) {
	batch := []datatypes.Record{
		{"emotion_score": "not a number"},
		{"emotion_score": true},
		{"emotion_score": 0.5},
	}

	report := New().Run(context.Background(), batch)

	if got := report.Fields["emotion_score"].Count; got != 1 {
		t.Errorf("numeric count = %d, want 1", got)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 0.9, 0},
		{"single", []float64{0.4}, 0.9, 0.4},
		{"p90 of ten", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9},
		{"p10 of ten", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 2},
		// 0.9 * 5 = 4.5: the half resolves to the even index 4.
		{"p90 of six ties to even", []float64{0, 0, 0, 0, 0.4, 1.0}, 0.9, 0.4},
		// 0.1 * 5 = 0.5 resolves to index 0.
		{"p10 of six ties to even", []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}, 0.1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.sorted, tt.p); got != tt.want {
				t.Errorf("percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestRunSixRecordP90Outlier(t *testing.T) {
	// Six values put p90 on the half index 4.5, which resolves to 0.4
	// at index 4. The 1.0 record then exceeds p90 * 1.25 = 0.5 and must
	// be flagged; picking index 5 instead would read p90 = 1.0 and miss
	// the outlier entirely.
	values := []float64{0, 0, 0, 0, 0.4, 1.0}
	batch := make([]datatypes.Record, len(values))
	for i, v := range values {
		batch[i] = datatypes.Record{"emotion_score": v}
	}

	report := New().Run(context.Background(), batch)

	if got := report.Fields["emotion_score"].P90; got != 0.4 {
		t.Errorf("p90 = %v, want 0.4", got)
	}
	if report.FlaggedRows != 1 {
		t.Errorf("flagged_rows = %d, want 1", report.FlaggedRows)
	}
	if got := report.Fields["emotion_score"].AboveP90x125; got != 1 {
		t.Errorf("above_p90x1.25 = %d, want 1", got)
	}
	if report.Confidence != 0.833 {
		t.Errorf("confidence = %v, want 0.833", report.Confidence)
	}
	if report.Status != datatypes.MirrorStatusInconsistencies {
		t.Errorf("status = %q, want inconsistencies_found", report.Status)
	}

	flags, _ := batch[5][datatypes.FieldMirrorFlags].([]string)
	if len(flags) != 1 || flags[0] != "emotion_score:above_p90x1.25" {
		t.Errorf("record flags = %v, want [emotion_score:above_p90x1.25]", flags)
	}
}

func TestStdZeroForDegenerateInputs(t *testing.T) {
	if st := computeStats([]float64{0.7}); st.std != 0 {
		t.Errorf("std of single value = %v, want 0", st.std)
	}
	if st := computeStats([]float64{0.5, 0.5, 0.5}); st.std != 0 {
		t.Errorf("std of identical values = %v, want 0", st.std)
	}
}
