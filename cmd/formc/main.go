// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command formc compiles, validates, serves, and inspects form
// definitions against the form engine core.
//
// Usage:
//
//	formc compile  -f form.json
//	formc validate -f form.json
//	formc serve    -f form.json --addr :8080 --base /forms
//	formc inspect  -f form.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// definitionPath holds the -f/--file flag value shared by every
// subcommand that needs to load a form definition.
var definitionPath string

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "formc",
		Short:         "Compile, validate, serve, and inspect form definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&definitionPath, "file", "f", "form.json", "path to the JSON form definition")
	root.AddCommand(compileCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(inspectCmd())
	return root
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formc:", err)
		os.Exit(1)
	}
}
