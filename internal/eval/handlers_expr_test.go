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
	"context"
	"testing"

	"github.com/AleutianAI/formengine/internal/registry"
)

func TestEvalReference_NavigatesPostNamespace(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{Post: map[string]any{"email": "a@b.com"}})
	node := build(t, fac, map[string]any{"type": "REFERENCE", "path": []any{"post", "email"}})

	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != "a@b.com" {
		t.Fatalf("REFERENCE(post.email) = %v, want a@b.com", v)
	}
}

func TestEvalReference_NavigatesQueryAndParams(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{
		Query:  map[string]any{"ref": "campaign"},
		Params: map[string]string{"id": "42"},
	})
	q := build(t, fac, map[string]any{"type": "REFERENCE", "path": []any{"query", "ref"}})
	p := build(t, fac, map[string]any{"type": "REFERENCE", "path": []any{"params", "id"}})

	v, _, err := e.Invoke(context.Background(), ec, q.ID)
	if err != nil || v != "campaign" {
		t.Fatalf("REFERENCE(query.ref) = (%v, %v), want campaign", v, err)
	}
	v, _, err = e.Invoke(context.Background(), ec, p.ID)
	if err != nil || v != "42" {
		t.Fatalf("REFERENCE(params.id) = (%v, %v), want 42", v, err)
	}
}

func TestEvalReference_MissingPathSegmentYieldsNil(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{Post: map[string]any{}})
	node := build(t, fac, map[string]any{"type": "REFERENCE", "path": []any{"post", "missing"}})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != nil {
		t.Fatalf("REFERENCE(post.missing) = %v, want nil", v)
	}
}

func TestEvalFormat_SubstitutesPositionalArguments(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{
		"type":      "FORMAT",
		"template":  "Hello %1, you are %2",
		"arguments": []any{"Bob", 30.0},
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != "Hello Bob, you are 30" {
		t.Fatalf("FORMAT result = %q, want %q", v, "Hello Bob, you are 30")
	}
}

func TestEvalPipeline_ThreadsValueThroughSteps(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	if err := fns.Register("double", registry.FunctionFunc(func(args []any, ctx any) (any, error) {
		n, _ := args[0].(float64)
		return n * 2, nil
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type":  "PIPELINE",
		"input": 5.0,
		"steps": []any{
			map[string]any{"type": "FUNCTION", "name": "double", "functionType": "Transformer"},
			map[string]any{"type": "FUNCTION", "name": "double", "functionType": "Transformer"},
		},
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != 20.0 {
		t.Fatalf("PIPELINE(5 |> double |> double) = %v, want 20", v)
	}
}

func TestEvalValidation_WhenTrueFails(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{
		"type":    "VALIDATION",
		"when":    true,
		"message": "required",
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	outcome, ok := v.(ValidationOutcome)
	if !ok || !outcome.Failed || outcome.Message != "required" {
		t.Fatalf("VALIDATION(when=true) = %+v, want Failed=true Message=required", v)
	}
}

func TestEvalValidation_WhenFalsePasses(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{
		"type":    "VALIDATION",
		"when":    false,
		"message": "required",
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	outcome, ok := v.(ValidationOutcome)
	if !ok || outcome.Failed {
		t.Fatalf("VALIDATION(when=false) = %+v, want Failed=false", v)
	}
}

func TestEvalCollection_InstantiatesTemplatePerItem(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{
		"type":       "COLLECTION",
		"collection": []any{1.0, 2.0, 3.0},
		"template":   map[string]any{"type": "REFERENCE", "path": []any{"item"}},
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	got, ok := v.([]any)
	if !ok || len(got) != 3 {
		t.Fatalf("COLLECTION result = %v, want 3 items", v)
	}
	seen := map[float64]bool{}
	for _, item := range got {
		seen[item.(float64)] = true
	}
	for _, want := range []float64{1.0, 2.0, 3.0} {
		if !seen[want] {
			t.Errorf("COLLECTION result missing item %v: got %v", want, got)
		}
	}
}

func TestEvalCollection_EmptySourceUsesFallback(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{
		"type":       "COLLECTION",
		"collection": []any{},
		"template":   map[string]any{"type": "REFERENCE", "path": []any{"item"}},
		"fallback":   "empty",
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != "empty" {
		t.Fatalf("COLLECTION(empty source) = %v, want fallback value", v)
	}
}

func TestEvalIterate_Map(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	if err := fns.Register("double", registry.FunctionFunc(func(args []any, ctx any) (any, error) {
		n, _ := args[0].(float64)
		return n * 2, nil
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type":     "ITERATE",
		"input":    []any{1.0, 2.0, 3.0},
		"operator": "MAP",
		"yield": map[string]any{
			"type":         "FUNCTION",
			"name":         "double",
			"functionType": "Transformer",
			"arguments":    []any{map[string]any{"type": "REFERENCE", "path": []any{"item"}}},
		},
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	got, ok := v.([]any)
	if !ok || len(got) != 3 {
		t.Fatalf("ITERATE MAP result = %v, want 3 items", v)
	}
	sum := 0.0
	for _, item := range got {
		sum += item.(float64)
	}
	if sum != 12.0 {
		t.Fatalf("ITERATE MAP doubled sum = %v, want 12 (2+4+6)", sum)
	}
}

func TestEvalIterate_Filter(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	if err := fns.Register("isEven", registry.FunctionFunc(func(args []any, ctx any) (any, error) {
		n, _ := args[0].(float64)
		return int(n)%2 == 0, nil
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type":     "ITERATE",
		"input":    []any{1.0, 2.0, 3.0, 4.0},
		"operator": "FILTER",
		"predicate": map[string]any{
			"type":      "TEST",
			"subject":   map[string]any{"type": "REFERENCE", "path": []any{"item"}},
			"condition": map[string]any{"type": "FUNCTION", "name": "isEven", "functionType": "Condition"},
		},
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	got, ok := v.([]any)
	if !ok || len(got) != 2 || got[0] != 2.0 || got[1] != 4.0 {
		t.Fatalf("ITERATE FILTER result = %v, want [2 4]", v)
	}
}

func TestEvalIterate_Find(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	if err := fns.Register("isEven", registry.FunctionFunc(func(args []any, ctx any) (any, error) {
		n, _ := args[0].(float64)
		return int(n)%2 == 0, nil
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type":     "ITERATE",
		"input":    []any{1.0, 2.0, 3.0, 4.0},
		"operator": "FIND",
		"predicate": map[string]any{
			"type":      "TEST",
			"subject":   map[string]any{"type": "REFERENCE", "path": []any{"item"}},
			"condition": map[string]any{"type": "FUNCTION", "name": "isEven", "functionType": "Condition"},
		},
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != 2.0 {
		t.Fatalf("ITERATE FIND result = %v, want 2 (first even)", v)
	}
}

func TestEvalNext_WhenFalseDoesNotApply(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{"type": "NEXT", "goto": "/next", "when": false})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != nil {
		t.Fatalf("NEXT(when=false) = %v, want nil (does not apply)", v)
	}
}
