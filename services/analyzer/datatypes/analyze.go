// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the analyzer service.
//
// This file contains request and response types for the /v1/analyze
// endpoint.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxBatchSize is the maximum number of records per analyze request.
	// Batches beyond this are rejected before any module runs.
	MaxBatchSize = 5000

	// DefaultTopic is used when a request does not name a topic.
	DefaultTopic = "klima"

	// DefaultMode is the default preprocessing mode.
	DefaultMode = "auto"
)

// analyzeValidate is the shared validator instance for analyze datatypes.
var analyzeValidate = validator.New()

// AnalyzeRequest is the JSON body accepted by POST /v1/analyze.
//
// Records may alternatively arrive as a multipart file upload (.json or
// .csv); in that case the handler builds this struct itself before
// validation.
type AnalyzeRequest struct {
	// Records is the raw input batch. Records without a text field are
	// filtered out before the pipeline runs.
	Records []Record `json:"records" validate:"required,max=5000"`

	// Industry selects the domain profile (module order). Empty falls
	// back to the profile provider's default.
	Industry string `json:"industry"`

	// Topic is handed to topic-aware modules. Defaults to DefaultTopic.
	Topic string `json:"topic"`

	// Mode selects preprocessing behavior. Defaults to DefaultMode.
	Mode string `json:"mode" validate:"omitempty,oneof=auto manual"`
}

// Validate checks the request against its declared constraints and
// fills in defaults for optional fields.
func (r *AnalyzeRequest) Validate() error {
	if r.Topic == "" {
		r.Topic = DefaultTopic
	}
	if r.Mode == "" {
		r.Mode = DefaultMode
	}
	if r.Industry == "" {
		r.Industry = r.Topic
	}
	return analyzeValidate.Struct(r)
}

// AnalyzeResponse is the JSON body returned by POST /v1/analyze.
type AnalyzeResponse struct {
	Message     string `json:"message"`
	RecordCount int    `json:"record_count"`

	// CSVURL and JSONURL point at the exported result files, empty when
	// export is disabled.
	CSVURL  string `json:"csv_url,omitempty"`
	JSONURL string `json:"json_url,omitempty"`

	// Preprocessing summarizes the cleanup pass applied to the input.
	Preprocessing *PreprocessStats `json:"preprocessing,omitempty"`

	// Result is the full pipeline outcome (annotated records, module
	// report, mirror report).
	Result *Result `json:"result"`
}

// PreprocessStats summarizes one preprocessing pass over a batch.
type PreprocessStats struct {
	OriginalTotal   int `json:"original_total"`
	RemovedEntries  int `json:"removed_entries"`
	WarningsFlagged int `json:"warnings_flagged"`
	FinalTotal      int `json:"final_total"`
}
