// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package preprocess normalizes raw record text before annotation.
//
// Scraped input arrives with HTML entities, markup fragments, and
// padding whitespace that would skew every downstream classifier.
// Clean runs before the pipeline: it unescapes entities, strips tags,
// trims, and then handles records left without any text according to
// the batch mode. In "auto" mode empty records are dropped; in
// "manual" mode they are kept and flagged so a reviewer can decide.
package preprocess

import (
	"html"
	"regexp"
	"strings"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

// ModeAuto drops text-less records, ModeManual keeps and flags them.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// FieldWarning marks records kept despite having no usable text.
const FieldWarning = "preprocessing_warning"

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// CleanText normalizes one text value: HTML entities are unescaped,
// markup is stripped, and surrounding whitespace removed.
func CleanText(text string) string {
	text = html.UnescapeString(text)
	text = tagPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Clean normalizes the batch in place and applies the empty-text
// policy for the given mode. The returned slice is the surviving
// batch; nil records never survive.
func Clean(records []datatypes.Record, mode string) ([]datatypes.Record, datatypes.PreprocessStats) {
	stats := datatypes.PreprocessStats{OriginalTotal: len(records)}

	kept := make([]datatypes.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			stats.RemovedEntries++
			continue
		}

		cleaned := CleanText(r.Text())
		r.Set(datatypes.FieldText, cleaned)

		if cleaned == "" {
			if mode == ModeManual {
				r.Set(FieldWarning, true)
				stats.WarningsFlagged++
				kept = append(kept, r)
			} else {
				stats.RemovedEntries++
			}
			continue
		}
		kept = append(kept, r)
	}

	stats.FinalTotal = len(kept)
	return kept, stats
}
