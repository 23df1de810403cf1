// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package export persists analysis results as downloadable artifacts.
//
// # Description
//
// Every run can be exported twice: a JSON file carrying the complete
// result (annotated records plus module and mirror reports) and a CSV
// flattening of the records for spreadsheet work. Filenames embed a
// UTC timestamp and the run ID, so exports never collide and sort
// chronologically. Resolve guards the download path: only filenames
// this package generated are served, which closes the directory
// traversal hole that serving user-supplied paths would open.
//
// # Thread Safety
//
// Exporter is stateless apart from the target directory and safe for
// concurrent use.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

// exportName matches filenames generated by this package. Resolve
// accepts nothing else.
var exportName = regexp.MustCompile(`^analysis_[0-9]{8}T[0-9]{6}Z_[a-zA-Z0-9-]+\.(json|csv)$`)

// ErrInvalidName is returned by Resolve for names this package did not
// generate, including any path traversal attempt.
var ErrInvalidName = fmt.Errorf("export: invalid artifact name")

// Exporter writes analysis artifacts into a single directory.
type Exporter struct {
	dir    string
	logger *slog.Logger
}

// New creates an Exporter, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{dir: dir, logger: logger}, nil
}

// Dir returns the export directory.
func (e *Exporter) Dir() string { return e.dir }

func (e *Exporter) filename(runID, ext string) string {
	ts := time.Now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("analysis_%s_%s.%s", ts, runID, ext)
}

// WriteJSON writes the full result as pretty-printed JSON and returns
// the generated filename.
func (e *Exporter) WriteJSON(result *datatypes.Result) (string, error) {
	name := e.filename(result.RunID, "json")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write json export: %w", err)
	}

	e.logger.Info("json export written", "file", name, "records", len(result.Data))
	return name, nil
}

// WriteCSV flattens the records into a CSV table and returns the
// generated filename. Columns are the sorted union of all record
// fields; nested values are JSON-encoded into their cell.
func (e *Exporter) WriteCSV(runID string, records []datatypes.Record) (string, error) {
	name := e.filename(runID, "csv")

	f, err := os.Create(filepath.Join(e.dir, name))
	if err != nil {
		return "", fmt.Errorf("create csv export: %w", err)
	}
	defer f.Close()

	columns := columnUnion(records)
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			v, ok := r[col]
			if !ok || v == nil {
				continue
			}
			row[i] = cell(v)
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv export: %w", err)
	}

	e.logger.Info("csv export written", "file", name, "records", len(records))
	return name, nil
}

// Resolve maps a previously returned artifact name to its absolute
// path, rejecting anything that is not a generated export name.
func (e *Exporter) Resolve(name string) (string, error) {
	if !exportName.MatchString(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(e.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("export artifact: %w", err)
	}
	return path, nil
}

// columnUnion returns the sorted union of all field names.
func columnUnion(records []datatypes.Record) []string {
	seen := map[string]bool{}
	for _, r := range records {
		for k := range r {
			seen[k] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

// cell renders one value for CSV output.
func cell(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
