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
	"os"
	"path/filepath"
	"testing"
)

func writeSampleDefinition(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "form.json")
	body := `{
		"type": "JOURNEY", "code": "root", "path": "/apply", "title": "Apply",
		"steps": [
			{"type": "STEP", "path": "/name", "title": "Name"}
		]
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefinition_ParsesJSON(t *testing.T) {
	path := writeSampleDefinition(t)
	def, err := loadDefinition(path)
	if err != nil {
		t.Fatalf("loadDefinition() error = %v", err)
	}
	if def["code"] != "root" {
		t.Errorf("code = %v, want root", def["code"])
	}
}

func TestLoadDefinition_MissingFileIsAnError(t *testing.T) {
	_, err := loadDefinition(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("loadDefinition() error = nil, want error for missing file")
	}
}

func TestLoadDefinition_InvalidJSONIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := loadDefinition(path)
	if err == nil {
		t.Fatal("loadDefinition() error = nil, want parse error")
	}
}

func TestRootCmd_CompileSucceeds(t *testing.T) {
	path := writeSampleDefinition(t)
	definitionPath = path
	root := rootCmd()
	root.SetArgs([]string{"compile", "-f", path})
	root.SetOut(os.Stdout)
	if err := root.Execute(); err != nil {
		t.Fatalf("formc compile error = %v", err)
	}
}

func TestRootCmd_ValidateSucceeds(t *testing.T) {
	path := writeSampleDefinition(t)
	definitionPath = path
	root := rootCmd()
	root.SetArgs([]string{"validate", "-f", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("formc validate error = %v", err)
	}
}

func TestRootCmd_ValidateReportsDuplicateRoutes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.json")
	body := `{
		"type": "JOURNEY", "code": "root", "path": "/apply", "title": "Apply",
		"steps": [
			{"type": "STEP", "path": "/name", "title": "Name"},
			{"type": "STEP", "path": "/name", "title": "Name Again"}
		]
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	definitionPath = path
	root := rootCmd()
	root.SetArgs([]string{"validate", "-f", path})
	if err := root.Execute(); err == nil {
		t.Fatal("formc validate error = nil, want duplicate route error")
	}
}

func TestRootCmd_UnknownSubcommandFails(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"bogus"})
	if err := root.Execute(); err == nil {
		t.Fatal("formc bogus error = nil, want unknown command error")
	}
}
