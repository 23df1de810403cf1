// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package domain

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/resonanz-lab/htif/services/analyzer/registry"
)

const testProfiles = `
default_modules:
  - quote_extraction
  - kpi_calculate

industries:
  klima:
    modules:
      - emotion_analysis
      - stance_detection
      - quote_extraction
      - kpi_calculate
      - insights
  pharma:
    modules:
      - quote_extraction
      - kpi_calculate
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "industry_profiles.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestModulesForConfiguredIndustry(t *testing.T) {
	p := NewProvider(writeProfiles(t, testProfiles), nil)

	got := p.ModulesFor("klima")
	want := []string{"emotion_analysis", "stance_detection", "quote_extraction", "kpi_calculate", "insights"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ModulesFor(klima) = %v, want %v", got, want)
	}
}

func TestModulesForAppendsInsights(t *testing.T) {
	p := NewProvider(writeProfiles(t, testProfiles), nil)

	got := p.ModulesFor("pharma")
	if got[len(got)-1] != registry.ModuleInsights {
		t.Errorf("order must end with insights, got %v", got)
	}
}

func TestModulesForIsCaseInsensitive(t *testing.T) {
	p := NewProvider(writeProfiles(t, testProfiles), nil)

	if !reflect.DeepEqual(p.ModulesFor(" Klima "), p.ModulesFor("klima")) {
		t.Error("resolution should ignore case and surrounding whitespace")
	}
}

func TestModulesForUnknownIndustryUsesDefaults(t *testing.T) {
	p := NewProvider(writeProfiles(t, testProfiles), nil)

	got := p.ModulesFor("unconfigured")
	want := []string{"quote_extraction", "kpi_calculate", "insights"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ModulesFor(unconfigured) = %v, want %v", got, want)
	}
}

func TestMissingFileFallsBack(t *testing.T) {
	p := NewProvider(filepath.Join(t.TempDir(), "nope.yaml"), nil)

	got := p.ModulesFor("klima")
	if !reflect.DeepEqual(got, []string{registry.ModuleInsights}) {
		t.Errorf("fallback order = %v, want insights only", got)
	}
}

func TestReloadRejectsUnknownModule(t *testing.T) {
	path := writeProfiles(t, testProfiles)
	p := NewProvider(path, nil)

	bad := "industries:\n  klima:\n    modules:\n      - definitely_not_a_module\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err == nil {
		t.Fatal("expected validation error for unknown module name")
	}

	// The previous table survives a failed reload.
	got := p.ModulesFor("klima")
	if len(got) != 5 || got[0] != "emotion_analysis" {
		t.Errorf("previous profiles lost after failed reload: %v", got)
	}
}

func TestReloadRejectsEmptyModuleList(t *testing.T) {
	path := writeProfiles(t, "industries:\n  klima:\n    modules: []\n")
	p := NewProvider(path, nil)

	if got := p.ModulesFor("klima"); !reflect.DeepEqual(got, []string{registry.ModuleInsights}) {
		t.Errorf("invalid file should leave provider in fallback mode, got %v", got)
	}
}

func TestIndustriesSorted(t *testing.T) {
	p := NewProvider(writeProfiles(t, testProfiles), nil)

	if got := p.Industries(); !reflect.DeepEqual(got, []string{"klima", "pharma"}) {
		t.Errorf("Industries() = %v", got)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeProfiles(t, testProfiles)
	p := NewProvider(path, nil)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	updated := "industries:\n  klima:\n    modules:\n      - kpi_calculate\n      - insights\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	want := []string{"kpi_calculate", "insights"}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reflect.DeepEqual(p.ModulesFor("klima"), want) {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Errorf("profiles not reloaded, ModulesFor(klima) = %v", p.ModulesFor("klima"))
}
