// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pseudofactory

import (
	"testing"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/factory"
	"github.com/AleutianAI/formengine/internal/ids"
	"github.com/AleutianAI/formengine/internal/registry"
)

func newTestFactory() (*Factory, *registry.Metadata, *registry.Nodes) {
	alloc := ids.New()
	meta := registry.NewMetadata()
	nodes := registry.NewNodes()
	return New(alloc, ids.CompilePseudo, meta, nodes), meta, nodes
}

func TestFactory_PostDeduplicatesByFieldCode(t *testing.T) {
	f, _, nodes := newTestFactory()

	a := f.Post("email")
	b := f.Post("email")
	if a != b {
		t.Fatalf("Post(email) returned distinct nodes on repeat calls: %p vs %p", a, b)
	}
	if f.Post("name") == a {
		t.Fatal("Post(name) should not reuse Post(email)'s node")
	}
	if nodes.Len() != 2 {
		t.Errorf("nodes.Len() = %d, want 2", nodes.Len())
	}
}

func TestFactory_AnswerCarriesFieldDefault(t *testing.T) {
	f, _, _ := newTestFactory()
	field := &ast.Node{
		ID:      "compile-ast:1",
		Kind:    ast.KindBlock,
		Subtype: ast.BlockField,
		Properties: ast.Properties{
			"code":         ast.NewPrimitive("email"),
			"defaultValue": ast.NewPrimitive("nobody@example.com"),
		},
	}
	node := f.Answer(field)
	if node.Subtype != ast.PseudoAnswer {
		t.Fatalf("Subtype = %q, want %q", node.Subtype, ast.PseudoAnswer)
	}
	def, ok := node.Properties.Get("default")
	if !ok {
		t.Fatal("Answer pseudo-node missing default")
	}
	prim, ok := def.(ast.Primitive)
	if !ok || prim.Raw != "nobody@example.com" {
		t.Errorf("default = %v, want nobody@example.com", def)
	}
}

func TestFactory_AnswerWithoutFieldStillSynthesizes(t *testing.T) {
	f, _, _ := newTestFactory()
	node := f.Answer(nil)
	if node == nil || node.Subtype != ast.PseudoAnswer {
		t.Fatalf("Answer(nil) = %v, want a PseudoAnswer node", node)
	}
	if _, ok := node.Properties.Get("default"); ok {
		t.Error("Answer(nil) should carry no default")
	}
}

func TestFactory_DataQueryParamsAreDistinctNamespaces(t *testing.T) {
	f, _, _ := newTestFactory()
	d := f.Data("profile")
	q := f.Query("profile")
	p := f.Params("profile")
	if d.ID == q.ID || q.ID == p.ID || d.ID == p.ID {
		t.Fatalf("same key in different namespaces collided: data=%s query=%s params=%s", d.ID, q.ID, p.ID)
	}
	if d.Subtype != ast.PseudoData || q.Subtype != ast.PseudoQuery || p.Subtype != ast.PseudoParams {
		t.Errorf("unexpected subtypes: %s %s %s", d.Subtype, q.Subtype, p.Subtype)
	}
}

func TestFactory_Count(t *testing.T) {
	f, _, _ := newTestFactory()
	f.Post("a")
	f.Post("a")
	f.Post("b")
	f.Data("x")
	if got := f.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}

func TestWire_ReferenceWithoutBaseSynthesizesAndRecordsEdge(t *testing.T) {
	astFactory := factory.New(ids.New(), ids.CompileAST, registry.NewMetadata(), registry.NewNodes())
	refNode, err := astFactory.CreateNode(map[string]any{
		"type": ast.ExprReference,
		"path": []any{"post", "email"},
	})
	if err != nil {
		t.Fatalf("CreateNode(REFERENCE) error = %v", err)
	}

	f, meta, _ := newTestFactory()
	f.Wire(refNode, nil)

	edges := f.cache
	if len(edges) != 1 {
		t.Fatalf("len(f.cache) = %d, want 1", len(edges))
	}
	pseudo := edges["post:email"]
	if pseudo == nil {
		t.Fatal("expected a post:email pseudo-node to be synthesized")
	}

	depEdges := meta.EdgesFrom(pseudo.ID)
	if len(depEdges) != 1 || depEdges[0].To != refNode.ID {
		t.Errorf("EdgesFrom(pseudo) = %+v, want one edge to %s", depEdges, refNode.ID)
	}
}

func TestWire_ReferenceWithBaseIsSkippedButBaseIsStillWired(t *testing.T) {
	astFactory := factory.New(ids.New(), ids.CompileAST, registry.NewMetadata(), registry.NewNodes())
	refNode, err := astFactory.CreateNode(map[string]any{
		"type": ast.ExprReference,
		"base": map[string]any{
			"type": ast.ExprReference,
			"path": []any{"data", "profile"},
		},
	})
	if err != nil {
		t.Fatalf("CreateNode(REFERENCE with base) error = %v", err)
	}

	f, _, _ := newTestFactory()
	f.Wire(refNode, nil)

	if f.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (only the nested base reference synthesizes a pseudo-node)", f.Count())
	}
}

func TestWire_UnrecognizedNamespaceIsIgnored(t *testing.T) {
	astFactory := factory.New(ids.New(), ids.CompileAST, registry.NewMetadata(), registry.NewNodes())
	refNode, err := astFactory.CreateNode(map[string]any{
		"type": ast.ExprReference,
		"path": []any{"session", "userId"},
	})
	if err != nil {
		t.Fatalf("CreateNode(REFERENCE) error = %v", err)
	}

	f, _, _ := newTestFactory()
	f.Wire(refNode, nil)

	if f.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 for an unrecognized namespace", f.Count())
	}
}

func TestWire_AnswerResolvesAgainstFieldsByCode(t *testing.T) {
	astFactory := factory.New(ids.New(), ids.CompileAST, registry.NewMetadata(), registry.NewNodes())
	field, err := astFactory.CreateNode(map[string]any{
		"type": "BLOCK", "variant": "TextInput", "code": "email", "defaultValue": "nobody@example.com",
	})
	if err != nil {
		t.Fatalf("CreateNode(BLOCK) error = %v", err)
	}
	refNode, err := astFactory.CreateNode(map[string]any{
		"type": ast.ExprReference,
		"path": []any{"answers", "email"},
	})
	if err != nil {
		t.Fatalf("CreateNode(REFERENCE) error = %v", err)
	}

	f, _, _ := newTestFactory()
	f.Wire(refNode, map[string]*ast.Node{"email": field})

	pseudo := f.cache["answers:email"]
	if pseudo == nil {
		t.Fatal("expected answers:email pseudo-node")
	}
	def, ok := pseudo.Properties.Get("default")
	if !ok {
		t.Fatal("expected default carried from field block")
	}
	if prim, ok := def.(ast.Primitive); !ok || prim.Raw != "nobody@example.com" {
		t.Errorf("default = %v, want nobody@example.com", def)
	}
}
