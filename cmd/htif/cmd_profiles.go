// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/resonanz-lab/htif/services/analyzer/domain"
)

func runProfilesValidateCommand(cmd *cobra.Command, args []string) error {
	p := domain.NewProvider(args[0], cliLogger())
	if err := p.Reload(); err != nil {
		return fmt.Errorf("profile file invalid: %w", err)
	}
	fmt.Printf("ok: %d industries configured\n", len(p.Industries()))
	return nil
}

func runProfilesListCommand(cmd *cobra.Command, args []string) error {
	p := domain.NewProvider(args[0], cliLogger())
	if err := p.Reload(); err != nil {
		return fmt.Errorf("profile file invalid: %w", err)
	}
	for _, industry := range p.Industries() {
		fmt.Printf("%s: %s\n", industry, strings.Join(p.ModulesFor(industry), " -> "))
	}
	return nil
}
