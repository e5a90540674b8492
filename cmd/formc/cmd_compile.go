// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/formengine/internal/compile"
	"github.com/AleutianAI/formengine/internal/config"
	"github.com/AleutianAI/formengine/internal/registry"
)

func loadDefinition(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var def map[string]any
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return def, nil
}

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Lower a form definition into an Artefact and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			cfg, err := config.Load(filepath.Dir(definitionPath))
			if err != nil {
				return err
			}

			def, err := loadDefinition(definitionPath)
			if err != nil {
				return err
			}

			var cache *compile.Cache
			if cfg.CachePath != "" {
				cache, err = compile.OpenCache(cfg.CachePath, logger)
				if err != nil {
					return err
				}
				defer cache.Close()
			}

			artefact, hash, err := compile.CompileCached(cache, def, registry.NewFunctions(), registry.NewComponents(), logger)
			if err != nil {
				return err
			}
			fmt.Printf("compiled %s: %d nodes, %d steps, %d pseudo-nodes (hash %s)\n",
				definitionPath, artefact.Nodes.Len(), compile.CountSteps(artefact.Root), artefact.Pseudo.Count(), hash)
			return nil
		},
	}
}
