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
	"errors"
	"testing"

	"github.com/AleutianAI/formengine/internal/registry"
)

func TestEvalAnd_ShortCircuitsOnFirstFalsy(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	secondCalls := 0
	if err := fns.Register("never", countingFunction(&secondCalls, true, nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type": "AND",
		"operands": []any{
			false,
			map[string]any{"type": "FUNCTION", "name": "never", "functionType": "Condition"},
		},
	})

	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != false {
		t.Fatalf("AND result = %v, want false", v)
	}
	if secondCalls != 0 {
		t.Errorf("second operand evaluated %d times, want 0 (short-circuit)", secondCalls)
	}
}

func TestEvalOr_ShortCircuitsOnFirstTruthy(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	secondCalls := 0
	if err := fns.Register("never", countingFunction(&secondCalls, true, nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type": "OR",
		"operands": []any{
			true,
			map[string]any{"type": "FUNCTION", "name": "never", "functionType": "Condition"},
		},
	})

	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != true {
		t.Fatalf("OR result = %v, want true", v)
	}
	if secondCalls != 0 {
		t.Errorf("second operand evaluated %d times, want 0 (short-circuit)", secondCalls)
	}
}

func TestEvalNot_OfFailureIsTrue(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	if err := fns.Register("boom", registry.FunctionFunc(func(args []any, ctx any) (any, error) {
		return nil, errors.New("boom")
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type":    "NOT",
		"operand": map[string]any{"type": "FUNCTION", "name": "boom", "functionType": "Condition"},
	})

	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != true {
		t.Fatalf("NOT of a failing operand = %v, want true", v)
	}
}

func TestEvalXor_FlipsOncePerTruthyOperand(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{"type": "XOR", "operands": []any{true, true, false}})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != false {
		t.Fatalf("XOR(true,true,false) = %v, want false", v)
	}
}

func TestEvalConditional_Defaults(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{"type": "CONDITIONAL", "predicate": true})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != true {
		t.Fatalf("CONDITIONAL(predicate=true) = %v, want true (default thenValue)", v)
	}
}

func TestEvalConditional_SelectsBranch(t *testing.T) {
	e, ec, fac, _ := newTestSetup(t, StepRequest{})
	node := build(t, fac, map[string]any{
		"type": "CONDITIONAL", "predicate": false,
		"thenValue": "yes", "elseValue": "no",
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != "no" {
		t.Fatalf("CONDITIONAL(predicate=false) = %v, want no", v)
	}
}

func TestEvalTest_AppliesRegisteredConditionFunction(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	if err := fns.Register("isPositive", registry.FunctionFunc(func(args []any, ctx any) (any, error) {
		n, _ := args[0].(float64)
		return n > 0, nil
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type":      "TEST",
		"subject":   5.0,
		"condition": map[string]any{"type": "FUNCTION", "name": "isPositive", "functionType": "Condition"},
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != true {
		t.Fatalf("TEST(5 isPositive) = %v, want true", v)
	}
}

func TestEvalTest_Negate(t *testing.T) {
	e, ec, fac, fns := newTestSetup(t, StepRequest{})
	if err := fns.Register("isPositive", registry.FunctionFunc(func(args []any, ctx any) (any, error) {
		n, _ := args[0].(float64)
		return n > 0, nil
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node := build(t, fac, map[string]any{
		"type":      "TEST",
		"subject":   5.0,
		"condition": map[string]any{"type": "FUNCTION", "name": "isPositive", "functionType": "Condition"},
		"negate":    true,
	})
	v, evalErr, err := e.Invoke(context.Background(), ec, node.ID)
	if err != nil || evalErr != nil {
		t.Fatalf("Invoke() = (%v, %v, %v)", v, evalErr, err)
	}
	if v != false {
		t.Fatalf("negated TEST(5 isPositive) = %v, want false", v)
	}
}
