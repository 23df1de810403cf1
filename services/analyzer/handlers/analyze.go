// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides HTTP handlers for the analyzer service.
//
// # Description
//
// The analyze handler is the service's main entry point: it accepts a
// record batch (JSON body or file upload), cleans it, resolves the
// industry's module order, runs the pipeline, exports the result, and
// returns the full report. Failures inside the pipeline never surface
// as HTTP errors; only unusable input does.
package handlers

import (
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
	"github.com/resonanz-lab/htif/services/analyzer/domain"
	"github.com/resonanz-lab/htif/services/analyzer/export"
	"github.com/resonanz-lab/htif/services/analyzer/observability"
	"github.com/resonanz-lab/htif/services/analyzer/pipeline"
	"github.com/resonanz-lab/htif/services/analyzer/preprocess"
)

var tracer = otel.Tracer("htif.handlers")

// Deps bundles the collaborators handlers need. Exporter may be nil,
// which disables result exports; Metrics may be nil, which disables
// instrumentation.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Profiles *domain.Provider
	Exporter *export.Exporter
	Metrics  *observability.AnalysisMetrics
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// HandleAnalyze returns the handler for POST /v1/analyze.
//
// # Description
//
// Accepts either an application/json body (datatypes.AnalyzeRequest)
// or a multipart upload with a .json/.csv file plus form fields
// industry, topic, and mode. Responds 400 for malformed input, 422
// when preprocessing leaves no usable records, and 200 with the full
// analysis result otherwise.
func HandleAnalyze(deps Deps) gin.HandlerFunc {
	logger := deps.logger()

	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAnalyze")
		defer span.End()

		var req datatypes.AnalyzeRequest
		if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
			parsed, err := requestFromUpload(c)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			req = parsed
		} else if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.Int("analyze.records_in", len(req.Records)),
			attribute.String("analyze.industry", req.Industry),
			attribute.String("analyze.mode", req.Mode),
		)

		records, stats := preprocess.Clean(req.Records, req.Mode)
		if len(records) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":         "no usable records after preprocessing",
				"preprocessing": stats,
			})
			return
		}

		order := deps.Profiles.ModulesFor(req.Industry)
		start := time.Now()
		result := deps.Pipeline.Run(ctx, records, order, req.Topic, req.Mode)
		recordMetrics(deps.Metrics, result, time.Since(start))

		resp := datatypes.AnalyzeResponse{
			Message:       "analysis complete",
			RecordCount:   len(result.Data),
			Preprocessing: &stats,
			Result:        result,
		}
		if deps.Exporter != nil {
			if name, err := deps.Exporter.WriteJSON(result); err != nil {
				logger.Error("json export failed", "run_id", result.RunID, "error", err)
			} else {
				resp.JSONURL = "/v1/downloads/" + name
			}
			if name, err := deps.Exporter.WriteCSV(result.RunID, result.Data); err != nil {
				logger.Error("csv export failed", "run_id", result.RunID, "error", err)
			} else {
				resp.CSVURL = "/v1/downloads/" + name
			}
		}

		span.SetAttributes(attribute.String("analyze.run_id", result.RunID))
		c.JSON(http.StatusOK, resp)
	}
}

// recordMetrics translates one run result into metric observations.
func recordMetrics(m *observability.AnalysisMetrics, result *datatypes.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	report := result.MirrorReport
	m.ObserveRun(report.Status, report.Confidence, len(result.Data), elapsed.Seconds())

	for module, status := range result.ModuleReport.Modules {
		if strings.HasPrefix(status, "error:") {
			m.ObserveModuleFailure(module)
		}
	}

	var outOfRange, zScore, aboveP90 int
	for _, f := range report.Fields {
		outOfRange += f.OutOfRange
		zScore += f.ZScoreGt3
		aboveP90 += f.AboveP90x125
	}
	scissor := int(math.Round(report.ShearIndex * float64(report.Checked)))
	m.ObserveMirrorFlags(outOfRange, zScore, aboveP90, scissor)
}
