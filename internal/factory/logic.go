// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package factory

import (
	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
)

// createLogic builds the conditional expression and the four predicate
// shapes (spec.md §4.4).
func (f *Factory) createLogic(tag string, obj map[string]any) (*ast.Node, error) {
	switch tag {
	case ast.ExprConditional:
		return f.createConditional(obj)
	case ast.ExprTest:
		return f.createTest(obj)
	case ast.ExprNot:
		return f.createNot(obj)
	case ast.ExprAnd, ast.ExprOr, ast.ExprXor:
		return f.createBoolOp(tag, obj)
	default:
		return nil, errs.UnknownNodeType(tag, obj)
	}
}

func (f *Factory) createConditional(obj map[string]any) (*ast.Node, error) {
	predRaw, ok := obj["predicate"]
	if !ok {
		return nil, errs.InvalidNode("predicate", "missing", obj)
	}
	predicate, err := f.transformValue(predRaw)
	if err != nil {
		return nil, err
	}

	thenVal, hasThen := obj["thenValue"]
	elseVal, hasElse := obj["elseValue"]

	var thenTV, elseTV ast.Value
	if hasThen {
		thenTV, err = f.transformValue(thenVal)
		if err != nil {
			return nil, err
		}
	} else {
		thenTV = ast.NewPrimitive(true)
	}
	if hasElse {
		elseTV, err = f.transformValue(elseVal)
		if err != nil {
			return nil, err
		}
	} else {
		elseTV = ast.NewPrimitive(false)
	}

	props := ast.Properties{
		"predicate": predicate,
		"thenValue": thenTV,
		"elseValue": elseTV,
	}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprConditional, Properties: props}, nil
}

func (f *Factory) createTest(obj map[string]any) (*ast.Node, error) {
	subjectRaw, hasSubject := obj["subject"]
	conditionRaw, hasCondition := obj["condition"]
	if !hasSubject || !hasCondition {
		return nil, errs.InvalidNode("subject and condition", "TEST missing one or both", obj)
	}

	subject, err := f.transformValue(subjectRaw)
	if err != nil {
		return nil, err
	}
	condition, err := f.transformValue(conditionRaw)
	if err != nil {
		return nil, err
	}
	negate := false
	if v, ok := obj["negate"].(bool); ok {
		negate = v
	}

	props := ast.Properties{
		"subject":   subject,
		"condition": condition,
		"negate":    ast.NewPrimitive(negate),
	}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprTest, Properties: props}, nil
}

func (f *Factory) createNot(obj map[string]any) (*ast.Node, error) {
	operandRaw, ok := obj["operand"]
	if !ok {
		return nil, errs.InvalidNode("operand", "missing", obj)
	}
	operand, err := f.transformValue(operandRaw)
	if err != nil {
		return nil, err
	}
	props := ast.Properties{"operand": operand}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprNot, Properties: props}, nil
}

func (f *Factory) createBoolOp(tag string, obj map[string]any) (*ast.Node, error) {
	operandsRaw, ok := obj["operands"].([]any)
	if !ok || len(operandsRaw) == 0 {
		return nil, errs.InvalidNode("non-empty operands array", tag+" has empty or missing operands", obj)
	}
	operands, err := f.transformValue(operandsRaw)
	if err != nil {
		return nil, err
	}
	props := ast.Properties{"operands": operands}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: tag, Properties: props}, nil
}
