// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
)

// maxUploadBytes caps batch file uploads at 20 MiB.
const maxUploadBytes = 20 << 20

// requestFromUpload builds an AnalyzeRequest from a multipart upload.
// The file part must be named "file" and carry a .json or .csv
// extension; industry, topic, and mode arrive as plain form fields.
func requestFromUpload(c *gin.Context) (datatypes.AnalyzeRequest, error) {
	req := datatypes.AnalyzeRequest{
		Industry: c.PostForm("industry"),
		Topic:    c.PostForm("topic"),
		Mode:     c.PostForm("mode"),
	}

	header, err := c.FormFile("file")
	if err != nil {
		return req, fmt.Errorf("missing file upload")
	}
	if header.Size > maxUploadBytes {
		return req, fmt.Errorf("file exceeds %d byte limit", maxUploadBytes)
	}

	f, err := header.Open()
	if err != nil {
		return req, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	reader := io.LimitReader(f, maxUploadBytes)

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".json":
		req.Records, err = ParseJSONRecords(reader)
	case ".csv":
		req.Records, err = ParseCSVRecords(reader)
	default:
		return req, fmt.Errorf("unsupported file type %q, expected .json or .csv", filepath.Ext(header.Filename))
	}
	return req, err
}

// ParseJSONRecords accepts either a bare array of records or an object
// with a "records" array, matching the JSON body shape. The CLI uses
// the same parser for offline batch files.
func ParseJSONRecords(r io.Reader) ([]datatypes.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	var records []datatypes.Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var wrapper struct {
		Records []datatypes.Record `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Records == nil {
		return nil, fmt.Errorf("file is not a JSON record array")
	}
	return wrapper.Records, nil
}

// ParseCSVRecords treats the first row as field names. Cells that
// parse as numbers become float64 so score fields keep their type.
func ParseCSVRecords(r io.Reader) ([]datatypes.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("csv needs a header row and at least one record")
	}

	header := rows[0]
	records := make([]datatypes.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(datatypes.Record, len(header))
		for i, col := range header {
			if i >= len(row) || row[i] == "" {
				continue
			}
			if v, err := strconv.ParseFloat(row[i], 64); err == nil {
				rec[col] = v
			} else {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
