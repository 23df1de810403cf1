// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mirror

// TrackedField declares one audited field and its valid range.
//
// Ranges are policy, fixed at configuration time; they are never
// recomputed from observed data.
type TrackedField struct {
	Name string
	Min  float64
	Max  float64
}

// ScissorRule is a pairwise divergence rule: a record triggers Flag
// when Left >= LeftHigh and Right <= RightLow, signaling a semantic
// mismatch between two annotation signals.
type ScissorRule struct {
	Left        string
	Right       string
	LeftHigh    float64
	RightLow    float64
	Flag        string
	Description string
}

// DefaultTrackedFields lists the audited score fields in evaluation
// order. All scores are shares in [0,1].
func DefaultTrackedFields() []TrackedField {
	return []TrackedField{
		{Name: "emotion_score", Min: 0, Max: 1},
		{Name: "moral_intensity", Min: 0, Max: 1},
		{Name: "toxicity_score", Min: 0, Max: 1},
		{Name: "stance_confidence", Min: 0, Max: 1},
		{Name: "ambivalence_score", Min: 0, Max: 1},
		{Name: "resonance_score", Min: 0, Max: 1},
	}
}

// DefaultScissorRules returns the divergence rules evaluated per
// record, in order.
func DefaultScissorRules() []ScissorRule {
	return []ScissorRule{
		{
			Left: "emotion_score", Right: "moral_intensity",
			LeftHigh: 0.7, RightLow: 0.3,
			Flag:        "scissor_emotion_vs_moral",
			Description: "High affect but low moral salience: potential value/emotion divergence.",
		},
		{
			Left: "emotion_score", Right: "toxicity_score",
			LeftHigh: 0.7, RightLow: 0.5,
			Flag:        "scissor_emotion_plus_toxicity",
			Description: "High affect paired with toxicity: heated discourse pocket.",
		},
		{
			Left: "moral_intensity", Right: "stance_confidence",
			LeftHigh: 0.6, RightLow: 0.4,
			Flag:        "scissor_moral_vs_stance_conf",
			Description: "Strong moral signal with low stance confidence: classification uncertainty.",
		},
		{
			Left: "emotion_score", Right: "stance_confidence",
			LeftHigh: 0.6, RightLow: 0.4,
			Flag:        "scissor_emotion_vs_stance_conf",
			Description: "Strong emotional signal with low stance confidence: interpretation ambiguity.",
		},
	}
}

const (
	// MaxAnomalyExamples bounds the anomaly sample independent of batch
	// size. Batch statistics stay exact over the full batch.
	MaxAnomalyExamples = 100

	// textExcerptLen bounds the text excerpt captured per anomaly.
	textExcerptLen = 500

	// lowConfidenceThreshold switches the report status to
	// low_confidence, overriding inconsistencies_found.
	lowConfidenceThreshold = 0.6

	// rangeEps tolerates float noise at the declared range borders.
	rangeEps = 1e-9
)
