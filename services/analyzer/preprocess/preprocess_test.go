// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package preprocess

import (
	"testing"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"entities", "Tom &amp; Jerry &lt;3", "Tom & Jerry <3"},
		{"tags stripped", "<p>hello <b>world</b></p>", "hello  world"},
		{"whitespace trimmed", "  \n hello \t ", "hello"},
		{"only markup", "<div><br/></div>", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanAutoDropsEmpty(t *testing.T) {
	batch := []datatypes.Record{
		{"text": "<p>usable</p>"},
		{"text": "   "},
		{"other": "no text at all"},
		nil,
	}

	kept, stats := Clean(batch, ModeAuto)

	if len(kept) != 1 {
		t.Fatalf("len(kept) = %d, want 1", len(kept))
	}
	if kept[0].Text() != "usable" {
		t.Errorf("text = %q", kept[0].Text())
	}
	if stats.OriginalTotal != 4 || stats.RemovedEntries != 3 || stats.FinalTotal != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.WarningsFlagged != 0 {
		t.Errorf("auto mode should not flag, stats = %+v", stats)
	}
}

func TestCleanManualFlagsEmpty(t *testing.T) {
	batch := []datatypes.Record{
		{"text": "usable"},
		{"text": "<br/>"},
	}

	kept, stats := Clean(batch, ModeManual)

	if len(kept) != 2 {
		t.Fatalf("len(kept) = %d, want 2", len(kept))
	}
	if v, ok := kept[1][FieldWarning].(bool); !ok || !v {
		t.Errorf("empty record not flagged: %v", kept[1])
	}
	if kept[0].Has(FieldWarning) {
		t.Error("usable record must not be flagged")
	}
	if stats.WarningsFlagged != 1 || stats.RemovedEntries != 0 || stats.FinalTotal != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCleanManualStillDropsNil(t *testing.T) {
	kept, stats := Clean([]datatypes.Record{nil, {"text": "x"}}, ModeManual)

	if len(kept) != 1 || stats.RemovedEntries != 1 {
		t.Errorf("kept = %v, stats = %+v", kept, stats)
	}
}

func TestCleanNormalizesInPlace(t *testing.T) {
	r := datatypes.Record{"text": " <b>bold claim</b> "}
	kept, _ := Clean([]datatypes.Record{r}, ModeAuto)

	if kept[0].Text() != "bold claim" {
		t.Errorf("text = %q", kept[0].Text())
	}
	if r.Text() != "bold claim" {
		t.Error("normalization should mutate the original record")
	}
}
