// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
	"github.com/resonanz-lab/htif/services/analyzer/domain"
	"github.com/resonanz-lab/htif/services/analyzer/export"
	"github.com/resonanz-lab/htif/services/analyzer/handlers"
	"github.com/resonanz-lab/htif/services/analyzer/mirror"
	"github.com/resonanz-lab/htif/services/analyzer/pipeline"
	"github.com/resonanz-lab/htif/services/analyzer/preprocess"
	"github.com/resonanz-lab/htif/services/analyzer/registry"
)

func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	logger := cliLogger()

	records, err := loadBatchFile(args[0])
	if err != nil {
		return err
	}

	req := datatypes.AnalyzeRequest{
		Records:  records,
		Industry: flagIndustry,
		Topic:    flagTopic,
		Mode:     flagMode,
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	cleaned, stats := preprocess.Clean(req.Records, req.Mode)
	if len(cleaned) == 0 {
		return fmt.Errorf("no usable records after preprocessing (%d read, %d removed)",
			stats.OriginalTotal, stats.RemovedEntries)
	}

	profiles := domain.NewProvider(flagProfiles, logger)
	pipe, err := pipeline.New(registry.New(), mirror.New(), logger)
	if err != nil {
		return err
	}

	order := profiles.ModulesFor(req.Industry)
	result := pipe.Run(context.Background(), cleaned, order, req.Topic, req.Mode)

	if flagOut != "" {
		exporter, err := export.New(flagOut, logger)
		if err != nil {
			return fmt.Errorf("export dir: %w", err)
		}
		jsonName, err := exporter.WriteJSON(result)
		if err != nil {
			return err
		}
		csvName, err := exporter.WriteCSV(result.RunID, result.Data)
		if err != nil {
			return err
		}
		fmt.Printf("exports: %s, %s\n", filepath.Join(flagOut, jsonName), filepath.Join(flagOut, csvName))
	}

	printSummary(result, stats)
	return nil
}

// cliLogger keeps pipeline logs off the terminal unless asked for.
func cliLogger() *slog.Logger {
	if flagQuiet {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// loadBatchFile reads records from a .json or .csv file.
func loadBatchFile(path string) ([]datatypes.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return handlers.ParseJSONRecords(f)
	case ".csv":
		return handlers.ParseCSVRecords(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q, expected .json or .csv", filepath.Ext(path))
	}
}

func printSummary(result *datatypes.Result, stats datatypes.PreprocessStats) {
	report := result.MirrorReport

	fmt.Printf("run %s: %d records analyzed (%d read, %d removed, %d flagged)\n",
		result.RunID, len(result.Data),
		stats.OriginalTotal, stats.RemovedEntries, stats.WarningsFlagged)
	fmt.Printf("mirror: status=%s confidence=%.3f shear=%.3f flagged_rows=%d\n",
		report.Status, report.Confidence, report.ShearIndex, report.FlaggedRows)
	for _, line := range report.Reflections {
		fmt.Printf("  %s\n", line)
	}

	for module, status := range result.ModuleReport.Modules {
		if status != datatypes.StatusSuccess {
			fmt.Printf("module %s: %s\n", module, status)
		}
	}
	if result.ModuleReport.Insights != nil {
		for _, line := range result.ModuleReport.Insights.ExecutiveSummary {
			fmt.Println(line)
		}
		for _, action := range result.ModuleReport.Insights.RecommendedActions {
			fmt.Printf("  - %s\n", action)
		}
	}
}
