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

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
)

func registerLogicHandlers(e *Evaluator) {
	e.Register(ast.KindExpression, ast.ExprConditional, Handler{Eval: evalConditional})
	e.Register(ast.KindExpression, ast.ExprTest, Handler{Eval: evalTest})
	e.Register(ast.KindExpression, ast.ExprNot, Handler{Eval: evalNot})
	e.Register(ast.KindExpression, ast.ExprAnd, Handler{Eval: evalAnd})
	e.Register(ast.KindExpression, ast.ExprOr, Handler{Eval: evalOr})
	e.Register(ast.KindExpression, ast.ExprXor, Handler{Eval: evalXor})
}

// evalPredicateOperand evaluates v as a predicate operand: a recoverable
// EvalError is recovered into false at the operand boundary, per
// spec.md §4.4 ("a failed subexpression is treated as falsy"). Only a
// fatal error escapes.
func (e *Evaluator) evalPredicateOperand(ctx context.Context, ec *Context, v ast.Value) (bool, error) {
	val, evalErr, fatalErr := e.evalValue(ctx, ec, v)
	if fatalErr != nil {
		return false, fatalErr
	}
	if evalErr != nil {
		return false, nil
	}
	return truthy(val), nil
}

func evalConditional(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	predicate, ok := node.Properties.Get("predicate")
	if !ok {
		return nil, nil, nil
	}
	cond, err := e.evalPredicateOperand(ctx, ec, predicate)
	if err != nil {
		return nil, nil, err
	}
	branch := "elseValue"
	if cond {
		branch = "thenValue"
	}
	v, ok := node.Properties.Get(branch)
	if !ok {
		return cond, nil, nil
	}
	return e.evalValue(ctx, ec, v)
}

func evalTest(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	subjectProp, _ := node.Properties.Get("subject")
	subject, evalErr, fatalErr := e.evalValue(ctx, ec, subjectProp)
	if fatalErr != nil {
		return nil, nil, fatalErr
	}
	negate := node.Properties.Bool("negate", false)
	if evalErr != nil {
		// The subject itself failed: treated as falsy before negate is
		// applied, matching NOT-of-failure's "failure is falsy" rule.
		return negate, nil, nil
	}

	condition, ok := node.Properties.Get("condition")
	if !ok {
		return negate, nil, nil
	}

	result, err := e.evalConditionValue(ctx, ec, condition, subject)
	if err != nil {
		return nil, nil, err
	}

	if negate {
		result = !result
	}
	return result, nil, nil
}

// evalConditionValue evaluates TEST's condition, threading subject in as
// the implicit first argument when condition is a FUNCTION node; any
// other expression shape is evaluated normally and coerced to a bool.
func (e *Evaluator) evalConditionValue(ctx context.Context, ec *Context, condition ast.Value, subject any) (bool, error) {
	if nv, ok := condition.(ast.NodeValue); ok && nv.Node != nil && nv.Node.Kind == ast.KindExpression && nv.Node.Subtype == ast.ExprFunction {
		val, evalErr, fatalErr := e.evalFunctionCall(ctx, ec, nv.Node, subject, true)
		if fatalErr != nil {
			return false, fatalErr
		}
		if evalErr != nil {
			return false, nil
		}
		return truthy(val), nil
	}
	return e.evalPredicateOperand(ctx, ec, condition)
}

func evalNot(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	operand, ok := node.Properties.Get("operand")
	if !ok {
		return true, nil, nil
	}
	v, err := e.evalPredicateOperand(ctx, ec, operand)
	if err != nil {
		return nil, nil, err
	}
	return !v, nil, nil
}

func evalAnd(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	for _, operand := range node.Properties.Array("operands") {
		v, err := e.evalPredicateOperand(ctx, ec, operand)
		if err != nil {
			return nil, nil, err
		}
		if !v {
			return false, nil, nil
		}
	}
	return true, nil, nil
}

func evalOr(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	for _, operand := range node.Properties.Array("operands") {
		v, err := e.evalPredicateOperand(ctx, ec, operand)
		if err != nil {
			return nil, nil, err
		}
		if v {
			return true, nil, nil
		}
	}
	return false, nil, nil
}

func evalXor(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	result := false
	for _, operand := range node.Properties.Array("operands") {
		v, err := e.evalPredicateOperand(ctx, ec, operand)
		if err != nil {
			return nil, nil, err
		}
		if v {
			result = !result
		}
	}
	return result, nil, nil
}
