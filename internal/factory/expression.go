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

// createExpression lowers REFERENCE, FORMAT, PIPELINE, COLLECTION,
// ITERATE, VALIDATION, FUNCTION, and NEXT expressions (spec.md §4.5).
func (f *Factory) createExpression(tag string, obj map[string]any) (*ast.Node, error) {
	switch tag {
	case ast.ExprReference:
		return f.createReference(obj)
	case ast.ExprFormat:
		return f.createFormat(obj)
	case ast.ExprPipeline:
		return f.createPipeline(obj)
	case ast.ExprCollection:
		return f.createCollection(obj)
	case ast.ExprIterate:
		return f.createIterate(obj)
	case ast.ExprValidation:
		return f.createValidation(obj)
	case ast.ExprFunction:
		return f.createFunction(obj)
	case ast.ExprNext:
		return f.createNext(obj)
	default:
		return nil, errs.UnknownNodeType(tag, obj)
	}
}

func (f *Factory) createReference(obj map[string]any) (*ast.Node, error) {
	pathRaw, hasPath := obj["path"]
	baseRaw, hasBase := obj["base"]

	props := ast.Properties{}

	if hasBase {
		base, err := f.transformValue(baseRaw)
		if err != nil {
			return nil, err
		}
		props["base"] = base
		// With base present, an empty path is valid (it returns base).
		if hasPath {
			path, err := f.transformValue(pathRaw)
			if err != nil {
				return nil, err
			}
			props["path"] = path
		} else {
			props["path"] = ast.NewArrayValue(nil)
		}
	} else {
		pathArr, ok := pathRaw.([]any)
		if !hasPath || !ok || len(pathArr) == 0 {
			return nil, errs.InvalidNode("non-empty path (no base given)", "REFERENCE missing path", obj)
		}
		path, err := f.transformValue(pathArr)
		if err != nil {
			return nil, err
		}
		props["path"] = path
	}

	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprReference, Properties: props}, nil
}

func (f *Factory) createFormat(obj map[string]any) (*ast.Node, error) {
	template, _ := obj["template"].(string)
	if template == "" {
		return nil, errs.InvalidNode("template", "missing or empty", obj)
	}
	props := ast.Properties{"template": ast.NewPrimitive(template)}
	if args, ok := obj["arguments"]; ok {
		tv, err := f.transformValue(args)
		if err != nil {
			return nil, err
		}
		props["arguments"] = tv
	}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprFormat, Properties: props}, nil
}

func (f *Factory) createPipeline(obj map[string]any) (*ast.Node, error) {
	inputRaw, ok := obj["input"]
	if !ok {
		return nil, errs.InvalidNode("input", "missing", obj)
	}
	input, err := f.transformValue(inputRaw)
	if err != nil {
		return nil, err
	}
	props := ast.Properties{"input": input}
	if steps, ok := obj["steps"]; ok {
		tv, err := f.transformValue(steps)
		if err != nil {
			return nil, err
		}
		props["steps"] = tv
	}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprPipeline, Properties: props}, nil
}

func (f *Factory) createCollection(obj map[string]any) (*ast.Node, error) {
	collectionRaw, ok := obj["collection"]
	if !ok {
		return nil, errs.InvalidNode("collection", "missing", obj)
	}
	collection, err := f.transformValue(collectionRaw)
	if err != nil {
		return nil, err
	}

	props := ast.Properties{"collection": collection}

	// The per-item template is kept raw (untransformed JSON) per
	// spec.md §3: it is instantiated fresh per item at request time,
	// not pre-built into AST at compile time.
	if tmpl, ok := obj["template"]; ok {
		props["template"] = ast.NewRawJSON(tmpl)
	}
	if fallbackRaw, ok := obj["fallback"]; ok {
		fallback, err := f.transformValue(fallbackRaw)
		if err != nil {
			return nil, err
		}
		props["fallback"] = fallback
	}

	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprCollection, Properties: props}, nil
}

func (f *Factory) createIterate(obj map[string]any) (*ast.Node, error) {
	inputRaw, ok := obj["input"]
	if !ok {
		return nil, errs.InvalidNode("input", "missing", obj)
	}
	input, err := f.transformValue(inputRaw)
	if err != nil {
		return nil, err
	}

	operator, _ := obj["operator"].(string)
	if operator != ast.IterateMap && operator != ast.IterateFilter && operator != ast.IterateFind {
		return nil, errs.InvalidNode("operator in {MAP, FILTER, FIND}", operator, obj)
	}

	props := ast.Properties{
		"input":    input,
		"operator": ast.NewPrimitive(operator),
	}
	// yield (MAP's per-item template) and predicate (FILTER/FIND) are
	// both kept raw, instantiated per item at request time.
	if yield, ok := obj["yield"]; ok {
		props["yield"] = ast.NewRawJSON(yield)
	}
	if predicate, ok := obj["predicate"]; ok {
		props["predicate"] = ast.NewRawJSON(predicate)
	}

	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprIterate, Properties: props}, nil
}

func (f *Factory) createValidation(obj map[string]any) (*ast.Node, error) {
	whenRaw, ok := obj["when"]
	if !ok {
		return nil, errs.InvalidNode("when", "missing", obj)
	}
	when, err := f.transformValue(whenRaw)
	if err != nil {
		return nil, err
	}

	messageRaw, ok := obj["message"]
	if !ok {
		return nil, errs.InvalidNode("message", "missing", obj)
	}
	message, err := f.transformValue(messageRaw)
	if err != nil {
		return nil, err
	}

	submissionOnly := false
	if v, ok := obj["submissionOnly"].(bool); ok {
		submissionOnly = v
	}

	props := ast.Properties{
		"when":           when,
		"message":        message,
		"submissionOnly": ast.NewPrimitive(submissionOnly),
	}
	if details, ok := obj["details"]; ok {
		tv, err := f.transformValue(details)
		if err != nil {
			return nil, err
		}
		props["details"] = tv
	}

	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprValidation, Properties: props}, nil
}

func (f *Factory) createFunction(obj map[string]any) (*ast.Node, error) {
	name, _ := obj["name"].(string)
	if name == "" {
		return nil, errs.InvalidNode("name", "missing or empty", obj)
	}
	funcType, _ := obj["functionType"].(string)
	switch funcType {
	case ast.FuncCondition, ast.FuncTransformer, ast.FuncEffect, ast.FuncGenerator:
	default:
		return nil, errs.InvalidNode("functionType in {Condition, Transformer, Effect, Generator}", funcType, obj)
	}

	props := ast.Properties{
		"name":         ast.NewPrimitive(name),
		"functionType": ast.NewPrimitive(funcType),
	}
	if args, ok := obj["arguments"]; ok {
		tv, err := f.transformValue(args)
		if err != nil {
			return nil, err
		}
		props["arguments"] = tv
	} else {
		props["arguments"] = ast.NewArrayValue(nil)
	}

	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprFunction, Properties: props}, nil
}

func (f *Factory) createNext(obj map[string]any) (*ast.Node, error) {
	gotoRaw, ok := obj["goto"]
	if !ok {
		return nil, errs.InvalidNode("goto", "missing", obj)
	}
	gotoVal, err := f.transformValue(gotoRaw)
	if err != nil {
		return nil, err
	}
	props := ast.Properties{"goto": gotoVal}
	if whenRaw, ok := obj["when"]; ok {
		when, err := f.transformValue(whenRaw)
		if err != nil {
			return nil, err
		}
		props["when"] = when
	}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindExpression, Subtype: ast.ExprNext, Properties: props}, nil
}
