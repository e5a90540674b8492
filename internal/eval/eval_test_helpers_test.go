// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"testing"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/factory"
	"github.com/AleutianAI/formengine/internal/ids"
	"github.com/AleutianAI/formengine/internal/registry"
)

// newTestSetup wires a fresh compile-time factory, registries, and a
// request-scoped Context over req, all sharing the same node/metadata
// registries so nodes built via fac are resolvable through ec.
func newTestSetup(t *testing.T, req StepRequest) (*Evaluator, *Context, *factory.Factory, *registry.Functions) {
	t.Helper()
	alloc := ids.New()
	meta := registry.NewMetadata()
	nodes := registry.NewNodes()
	fns := registry.NewFunctions()
	components := registry.NewComponents()
	fac := factory.New(alloc, ids.CompileAST, meta, nodes)
	ec := NewContext(nodes, meta, fns, components, alloc, req)
	return New(), ec, fac, fns
}

func build(t *testing.T, fac *factory.Factory, def map[string]any) *ast.Node {
	t.Helper()
	node, err := fac.CreateNode(def)
	if err != nil {
		t.Fatalf("CreateNode(%v) error = %v", def, err)
	}
	return node
}

func countingFunction(calls *int, result any, err error) registry.FunctionFunc {
	return func(args []any, ctx any) (any, error) {
		*calls++
		return result, err
	}
}
