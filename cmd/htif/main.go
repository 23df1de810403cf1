// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command htif is the offline CLI for the discourse analysis pipeline.
//
// It runs the same pipeline the analyzer server exposes over HTTP, but
// against local batch files, which is how analysts iterate on profiles
// and batches without a deployment.
//
//	htif analyze batch.json --industry klima
//	htif analyze comments.csv --mode manual --out ./exports
//	htif profiles validate ./config/industry_profiles.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "htif",
		Short: "A CLI for the HTIF discourse analysis pipeline",
		Long: `htif runs text batches through annotation modules, derives
communication KPIs, and audits the results for internal consistency.`,
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [batch file]",
		Short: "Run a local .json or .csv batch through the analysis pipeline",
		Long: `Reads a record batch from a local file, cleans it, runs the
industry's module order plus the consistency audit, writes JSON and CSV
exports, and prints a run summary.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyzeCommand,
	}
	flagIndustry string
	flagTopic    string
	flagMode     string
	flagProfiles string
	flagOut      string
	flagQuiet    bool

	profilesCmd = &cobra.Command{
		Use:   "profiles",
		Short: "Inspect and validate industry profile files",
	}
	profilesValidateCmd = &cobra.Command{
		Use:   "validate [profile file]",
		Short: "Validate a profile file against the known module names",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfilesValidateCommand,
	}
	profilesListCmd = &cobra.Command{
		Use:   "list [profile file]",
		Short: "Print the resolved module order per industry",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfilesListCommand,
	}
)

func init() {
	analyzeCmd.Flags().StringVar(&flagIndustry, "industry", "", "industry profile to apply (default: topic)")
	analyzeCmd.Flags().StringVar(&flagTopic, "topic", "", "analysis topic handed to context-aware modules")
	analyzeCmd.Flags().StringVar(&flagMode, "mode", "auto", "preprocessing mode: auto drops empty records, manual flags them")
	analyzeCmd.Flags().StringVar(&flagProfiles, "profiles", "./config/industry_profiles.yaml", "industry profile file")
	analyzeCmd.Flags().StringVar(&flagOut, "out", "./exports", "export directory (empty disables exports)")
	analyzeCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress everything except the summary line")

	profilesCmd.AddCommand(profilesValidateCmd)
	profilesCmd.AddCommand(profilesListCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(profilesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
