// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	e, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestWriteJSONRoundTrip(t *testing.T) {
	e := newTestExporter(t)
	result := &datatypes.Result{
		RunID: "run-1234",
		Data:  []datatypes.Record{{"text": "hello", "emotion_score": 0.4}},
		ModuleReport: &datatypes.RunReport{
			Modules: map[string]string{"kpi_calculate": "success"},
		},
	}

	name, err := e.WriteJSON(result)
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.HasPrefix(name, "analysis_") || !strings.HasSuffix(name, "_run-1234.json") {
		t.Errorf("unexpected filename %q", name)
	}

	data, err := os.ReadFile(filepath.Join(e.Dir(), name))
	if err != nil {
		t.Fatal(err)
	}
	var decoded datatypes.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("exported file is not valid JSON: %v", err)
	}
	if decoded.RunID != "run-1234" || len(decoded.Data) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteCSVColumnsAndCells(t *testing.T) {
	e := newTestExporter(t)
	records := []datatypes.Record{
		{"text": "first", "emotion_score": 0.5, "mirror_flags": []string{"ok"}},
		{"text": "second", "quote": "a quote"},
	}

	name, err := e.WriteCSV("run-1", records)
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(filepath.Join(e.Dir(), name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want header + 2", len(rows))
	}

	wantHeader := []string{"emotion_score", "mirror_flags", "quote", "text"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v, want %v", rows[0], wantHeader)
	}
	// Nested values are JSON-encoded into their cell.
	if rows[1][1] != `["ok"]` {
		t.Errorf("mirror_flags cell = %q", rows[1][1])
	}
	if rows[1][0] != "0.5" {
		t.Errorf("emotion_score cell = %q", rows[1][0])
	}
	// Fields absent from a record leave the cell empty.
	if rows[2][0] != "" {
		t.Errorf("missing field cell = %q, want empty", rows[2][0])
	}
}

func TestResolve(t *testing.T) {
	e := newTestExporter(t)
	name, err := e.WriteCSV("run-2", []datatypes.Record{{"text": "x"}})
	if err != nil {
		t.Fatal(err)
	}

	path, err := e.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", name, err)
	}
	if filepath.Dir(path) != e.Dir() {
		t.Errorf("resolved path %q outside export dir", path)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	e := newTestExporter(t)

	for _, name := range []string{
		"../etc/passwd",
		"..%2F..%2Fetc%2Fpasswd",
		"/etc/passwd",
		"analysis_20250101T000000Z_x.json/../../secret",
		"random.csv",
		"analysis_20250101T000000Z_x.txt",
		"",
	} {
		if _, err := e.Resolve(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestResolveMissingArtifact(t *testing.T) {
	e := newTestExporter(t)

	_, err := e.Resolve("analysis_20250101T000000Z_ghost.json")
	if err == nil || errors.Is(err, ErrInvalidName) {
		t.Errorf("missing artifact err = %v, want not-found error", err)
	}
}
