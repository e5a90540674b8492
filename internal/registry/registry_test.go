// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"errors"
	"testing"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
)

func TestMetadata_ParentLinkAcyclicity(t *testing.T) {
	m := NewMetadata()
	m.AttachToParent("step:1", "journey:1")
	m.AttachToParent("block:1", "step:1")

	// A second attach attempt for an already-parented node is ignored,
	// so each node keeps exactly one parent.
	m.AttachToParent("block:1", "journey:1")

	p, ok := m.AttachedToParentNode("block:1")
	if !ok || p != "step:1" {
		t.Fatalf("block:1 parent = (%q, %v), want (step:1, true)", p, ok)
	}

	chain := m.AncestorChain("block:1")
	want := []string{"block:1", "step:1", "journey:1"}
	if len(chain) != len(want) {
		t.Fatalf("AncestorChain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("AncestorChain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}
}

func TestMetadata_ChildrenOrder(t *testing.T) {
	m := NewMetadata()
	m.AttachToParent("block:1", "step:1")
	m.AttachToParent("block:2", "step:1")
	m.AttachToParent("block:3", "step:1")

	got := m.Children("step:1")
	want := []string{"block:1", "block:2", "block:3"}
	if len(got) != len(want) {
		t.Fatalf("Children = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Children[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNodes_GetRoundTrip(t *testing.T) {
	n := NewNodes()
	node := &ast.Node{ID: "compile-ast:1", Kind: ast.KindStep}
	n.Add(node)

	got, ok := n.Get("compile-ast:1")
	if !ok || got != node {
		t.Fatalf("Get returned (%v, %v), want (%v, true)", got, ok, node)
	}
	if _, ok := n.Get("compile-ast:999"); ok {
		t.Error("Get of unknown id should be (nil, false)")
	}
}

func TestFunctions_RegisterDuplicateFails(t *testing.T) {
	f := NewFunctions()
	fn := FunctionFunc(func(args []any, ctx any) (any, error) { return nil, nil })

	if err := f.Register("isEmpty", fn); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	err := f.Register("isEmpty", fn)
	if !errors.Is(err, errs.ErrRegistryDuplicate) {
		t.Fatalf("second Register() error = %v, want RegistryDuplicate", err)
	}
}

func TestFunctions_RegisterValidation(t *testing.T) {
	f := NewFunctions()
	if err := f.Register("x", nil); !errors.Is(err, errs.ErrRegistryValidation) {
		t.Fatalf("Register with nil fn error = %v, want RegistryValidation", err)
	}
	if err := f.Register("", FunctionFunc(func(a []any, c any) (any, error) { return nil, nil })); !errors.Is(err, errs.ErrRegistryValidation) {
		t.Fatalf("Register with empty name error = %v, want RegistryValidation", err)
	}
}

func TestFunctions_Get(t *testing.T) {
	f := NewFunctions()
	fn := FunctionFunc(func(args []any, ctx any) (any, error) { return "ok", nil })
	if err := f.Register("echo", fn); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := f.Get("echo")
	if !ok {
		t.Fatal("Get(echo) not found")
	}
	v, err := got.Evaluate(nil, nil)
	if err != nil || v != "ok" {
		t.Fatalf("Evaluate() = (%v, %v), want (ok, nil)", v, err)
	}

	if _, ok := f.Get("missing"); ok {
		t.Error("Get(missing) should not be found")
	}
}

func TestComponents_RegisterDuplicateFails(t *testing.T) {
	c := NewComponents()
	if err := c.Register("TextInput", "renderer-a"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := c.Register("TextInput", "renderer-b"); !errors.Is(err, errs.ErrRegistryDuplicate) {
		t.Fatalf("second Register() error = %v, want RegistryDuplicate", err)
	}
}
