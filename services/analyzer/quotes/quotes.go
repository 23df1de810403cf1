// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package quotes extracts the most quotable sentence from each record.
//
// The heuristic picks the longest sentence that carries actual words;
// texts without a usable sentence fall back to a cleaned excerpt. The
// extracted quote feeds the quote_density KPI downstream.
package quotes

import (
	"context"
	"regexp"
	"strings"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

const (
	// minSentenceLen filters out fragments; shorter sentences are never
	// selected as quotes.
	minSentenceLen = 10

	// fallbackLen bounds the cleaned excerpt used when no sentence
	// qualifies.
	fallbackLen = 120
)

var (
	// sentencePattern matches one sentence including its terminal
	// punctuation; line breaks always end a sentence.
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

	// wordChar matches any word character, used to drop pure emoji or
	// punctuation sentences.
	wordChar = regexp.MustCompile(`\w`)

	// nonText strips everything except word characters, whitespace, and
	// basic punctuation for the fallback excerpt.
	nonText = regexp.MustCompile(`[^\w\s.,!?ßäöüÄÖÜ-]`)
)

// Extract returns the most quotable sentence from text: the longest
// sentence of more than minSentenceLen characters that contains at
// least one word character. When no sentence qualifies, a cleaned
// excerpt of at most fallbackLen characters is returned. Empty or
// whitespace-only input yields "".
func Extract(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var candidates []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if len(s) > minSentenceLen && wordChar.MatchString(s) {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		fallback := nonText.ReplaceAllString(strings.TrimSpace(text), "")
		if len(fallback) > fallbackLen {
			fallback = fallback[:fallbackLen]
		}
		return fallback
	}

	best := candidates[0]
	for _, s := range candidates[1:] {
		if len(s) > len(best) {
			best = s
		}
	}
	return best
}

// Module is the quote_extraction pipeline module.
type Module struct{}

// NewModule returns the quote_extraction module.
func NewModule() *Module { return &Module{} }

// Name implements registry.Module.
func (*Module) Name() string { return "quote_extraction" }

// ContextAware implements registry.Module.
func (*Module) ContextAware() bool { return false }

// Annotate adds a quote field to every record. Extraction never fails;
// nil records are skipped.
func (*Module) Annotate(_ context.Context, batch []datatypes.Record, _ datatypes.RunContext) ([]datatypes.Record, error) {
	for _, r := range batch {
		if r == nil {
			continue
		}
		r.Set(datatypes.FieldQuote, Extract(r.Text()))
	}
	return batch, nil
}
