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
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/formengine/internal/compile"
	"github.com/AleutianAI/formengine/internal/eval"
	"github.com/AleutianAI/formengine/internal/ginadapter"
	"github.com/AleutianAI/formengine/internal/registry"
	"github.com/AleutianAI/formengine/internal/router"
)

// validateCmd compiles the definition and, if that succeeds, mounts it
// against a throwaway router to surface DuplicateRoute failures too.
// Compile stops at its first error and the mount step is skipped when
// compilation fails, so a run reports a single error.
func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Compile and mount a form definition, reporting the first error found",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(definitionPath)
			if err != nil {
				return err
			}

			var errs []error

			artefact, err := compile.Compile(def, registry.NewFunctions(), registry.NewComponents(), slog.Default())
			if err != nil {
				errs = append(errs, err)
			} else {
				evaluator := eval.New()
				adapter := ginadapter.New(nil)
				r := router.New(adapter, artefact, evaluator, "/", slog.Default())
				if _, err := r.Mount(); err != nil {
					errs = append(errs, err)
				}
			}

			if len(errs) > 0 {
				joined := errors.Join(errs...)
				fmt.Println("validation failed:")
				fmt.Println(joined)
				return joined
			}

			fmt.Println("ok")
			return nil
		},
	}
}
