// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry maps module names to the annotation capabilities
// available to the pipeline.
//
// # Description
//
// The registry is assembled once at configuration time and read-only
// afterwards. Built-in modules (quote extraction, KPI derivation,
// insights) are registered by New; the ML classifiers are opaque
// external collaborators plugged in via Register or the Func adapter
// before the first pipeline run. An unknown name at run time is a
// caller error surfaced by the pipeline as a "module not found" status,
// never a fatal condition.
//
// # Thread Safety
//
// A Registry is safe for concurrent reads after construction. Register
// must not be called concurrently with pipeline runs.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/resonanz-lab/htif/services/analyzer/datatypes"
	"github.com/resonanz-lab/htif/services/analyzer/insights"
	"github.com/resonanz-lab/htif/services/analyzer/kpi"
	"github.com/resonanz-lab/htif/services/analyzer/quotes"
)

// Canonical module names. Built-ins ship with this repository; the
// remaining names identify external classifier collaborators that a
// deployment registers before use.
const (
	// Built-in modules.
	ModuleQuotes   = "quote_extraction"
	ModuleKPI      = "kpi_calculate"
	ModuleInsights = "insights"

	// External classifier modules (behavior-opaque annotators).
	ModuleEmotion           = "emotion_analysis"
	ModuleIrony             = "irony_detect"
	ModuleStance            = "stance_detection"
	ModuleFraming           = "framing_detect"
	ModuleMoral             = "moral_detect"
	ModuleIdentity          = "identity_analysis"
	ModuleVerbalAggression  = "verbal_aggression_detect"
	ModuleNarrativeRoles    = "narrative_roles"
	ModuleNarrativeClusters = "narrative_clusters"
)

// Module is one unit of annotation capability. Annotate may mutate the
// batch in place and/or return a replacement slice; it may fail, and
// the pipeline isolates that failure.
type Module interface {
	// Name is the module's registry key.
	Name() string

	// ContextAware reports whether the module needs the run topic to
	// analyze correctly.
	ContextAware() bool

	// Annotate runs the module over the batch.
	Annotate(ctx context.Context, batch []datatypes.Record, rc datatypes.RunContext) ([]datatypes.Record, error)
}

// Registry holds the available modules by name.
type Registry struct {
	modules map[string]Module
}

// New returns a registry with the built-in modules registered.
func New() *Registry {
	r := NewEmpty()
	for _, m := range []Module{
		quotes.NewModule(),
		kpi.NewModule(),
		insights.NewModule(),
	} {
		// Built-in names cannot collide.
		_ = r.Register(m)
	}
	return r
}

// NewEmpty returns a registry with no modules, for tests and fully
// custom deployments.
func NewEmpty() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module under its name. Registering a duplicate name
// is a configuration error.
func (r *Registry) Register(m Module) error {
	name := m.Name()
	if name == "" {
		return fmt.Errorf("module has an empty name")
	}
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("module %q is already registered", name)
	}
	r.modules[name] = m
	return nil
}

// Lookup resolves a module by name.
func (r *Registry) Lookup(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// ContextAware reports whether the named module requires topic context.
// Unknown names report false.
func (r *Registry) ContextAware(name string) bool {
	m, ok := r.modules[name]
	return ok && m.ContextAware()
}

// Names returns all registered module names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnnotateFunc adapts a plain function to the Module interface via
// Func.
type AnnotateFunc func(ctx context.Context, batch []datatypes.Record, rc datatypes.RunContext) ([]datatypes.Record, error)

// Func wraps an annotation function as a Module. This is how external
// classifiers (HTTP-backed or in-process) are plugged in:
//
//	reg.Register(registry.Func(registry.ModuleStance, true, stanceClient.Annotate))
func Func(name string, contextAware bool, fn AnnotateFunc) Module {
	return &funcModule{name: name, contextAware: contextAware, fn: fn}
}

type funcModule struct {
	name         string
	contextAware bool
	fn           AnnotateFunc
}

func (m *funcModule) Name() string       { return m.name }
func (m *funcModule) ContextAware() bool { return m.contextAware }

func (m *funcModule) Annotate(ctx context.Context, batch []datatypes.Record, rc datatypes.RunContext) ([]datatypes.Record, error) {
	return m.fn(ctx, batch, rc)
}
