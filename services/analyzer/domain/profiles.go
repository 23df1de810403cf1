// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package domain resolves industry names to module execution orders.
//
// # Description
//
// Analysis depth depends on the vertical: a political-discourse batch
// needs stance and framing classifiers that a product-feedback batch
// does not. Profiles are declared in a YAML file mapping industry keys
// to ordered module lists and are validated against the canonical
// module names at load time. Resolution never fails: an unknown
// industry falls back to the default profile, and a missing or invalid
// profile file falls back to the minimal insights-only order so the
// pipeline can always run.
//
// # Thread Safety
//
// Provider is safe for concurrent use. Reload (manual or via the
// fsnotify watcher) swaps the profile table under a write lock.
package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/resonanz-lab/htif/services/analyzer/registry"
)

// reloadDebounce batches rapid editor write events into one reload.
const reloadDebounce = 200 * time.Millisecond

// fallbackOrder is the order used when no profile can be resolved.
// Insights alone still yields a usable (if shallow) report.
var fallbackOrder = []string{registry.ModuleInsights}

// knownModules is the set of canonical module names a profile may
// reference.
var knownModules = map[string]bool{
	registry.ModuleQuotes:            true,
	registry.ModuleKPI:               true,
	registry.ModuleInsights:          true,
	registry.ModuleEmotion:           true,
	registry.ModuleIrony:             true,
	registry.ModuleStance:            true,
	registry.ModuleFraming:           true,
	registry.ModuleMoral:             true,
	registry.ModuleIdentity:          true,
	registry.ModuleVerbalAggression:  true,
	registry.ModuleNarrativeRoles:    true,
	registry.ModuleNarrativeClusters: true,
}

// Profile is one industry's module order.
type Profile struct {
	// Modules is the ordered module list for this industry.
	Modules []string `yaml:"modules" validate:"required,min=1,dive,required"`
}

// profileFile is the on-disk YAML layout.
type profileFile struct {
	// DefaultModules is used for industries without an explicit entry.
	DefaultModules []string `yaml:"default_modules"`

	// Industries maps lowercase industry keys to profiles.
	Industries map[string]Profile `yaml:"industries" validate:"required,min=1,dive"`
}

var profileValidate = validator.New()

// Provider resolves industries to module orders from a YAML profile
// file, optionally hot-reloading on file changes.
type Provider struct {
	path   string
	logger *slog.Logger

	mu         sync.RWMutex
	industries map[string]Profile
	defaults   []string

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewProvider creates a Provider and performs the initial load.
//
// A load failure is logged, not returned: the provider starts in
// fallback mode and recovers on the next successful reload.
func NewProvider(path string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := p.Reload(); err != nil {
		logger.Warn("profile load failed, using fallback order", "path", path, "error", err)
	}
	return p
}

// Reload re-reads and validates the profile file, replacing the
// current table on success and leaving it untouched on failure.
func (p *Provider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse profiles: %w", err)
	}
	if err := profileValidate.Struct(&file); err != nil {
		return fmt.Errorf("validate profiles: %w", err)
	}
	for industry, profile := range file.Industries {
		for _, name := range profile.Modules {
			if !knownModules[name] {
				return fmt.Errorf("profile %q references unknown module %q", industry, name)
			}
		}
	}
	for _, name := range file.DefaultModules {
		if !knownModules[name] {
			return fmt.Errorf("default profile references unknown module %q", name)
		}
	}

	// Normalize keys so resolution is case-insensitive.
	industries := make(map[string]Profile, len(file.Industries))
	for industry, profile := range file.Industries {
		industries[strings.ToLower(strings.TrimSpace(industry))] = profile
	}

	p.mu.Lock()
	p.industries = industries
	p.defaults = file.DefaultModules
	p.mu.Unlock()

	p.logger.Info("industry profiles loaded", "path", p.path, "industries", len(industries))
	return nil
}

// ModulesFor returns the module order for an industry. The returned
// slice is a copy and always ends with an insights step.
//
// Resolution: exact industry profile, then default_modules, then the
// insights-only fallback. ModulesFor never returns an empty order.
func (p *Provider) ModulesFor(industry string) []string {
	p.mu.RLock()
	profile, ok := p.industries[strings.ToLower(strings.TrimSpace(industry))]
	defaults := p.defaults
	p.mu.RUnlock()

	var order []string
	switch {
	case ok:
		order = slices.Clone(profile.Modules)
	case len(defaults) > 0:
		order = slices.Clone(defaults)
	default:
		order = slices.Clone(fallbackOrder)
	}

	if !slices.Contains(order, registry.ModuleInsights) {
		order = append(order, registry.ModuleInsights)
	}
	return order
}

// Industries returns the configured industry keys, sorted.
func (p *Provider) Industries() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.industries))
	for k := range p.industries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Watch starts hot reloading until ctx is canceled or Close is called.
//
// The parent directory is watched, not the file itself, because most
// editors and config mounts replace the file via rename. Reloads are
// debounced; a failed reload keeps the previous table.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}
	p.watcher = watcher

	go p.watchLoop(ctx)
	return nil
}

func (p *Provider) watchLoop(ctx context.Context) {
	defer p.watcher.Close()

	var timer *time.Timer
	target := filepath.Clean(p.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if err := p.Reload(); err != nil {
					p.logger.Warn("profile reload failed, keeping previous profiles", "error", err)
				}
			})

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("profile watcher error", "error", err)
		}
	}
}

// Close stops the watcher, if started.
func (p *Provider) Close() {
	p.stopOnce.Do(func() { close(p.done) })
}
