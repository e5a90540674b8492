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
)

// RenderBlock is one step block lowered to the shape the adapter's
// component renderer consumes: its variant, resolved opaque params, and
// (for field blocks) its current value and any attached field errors.
type RenderBlock struct {
	Code    string
	Variant string
	IsField bool
	Hidden  bool
	Value   any
	Params  map[string]any
	Errors  []FieldError
}

// RenderModel is the materialized result of evaluating a step, handed
// off to the adapter's render call (spec.md §4.7 "evaluate(context)").
type RenderModel struct {
	Blocks []RenderBlock
	Valid  bool
}

// Evaluate walks step's blocks, resolving each to a RenderBlock. Prior
// SUBMIT validation failures are distributed onto their field blocks by
// code.
func Evaluate(ctx context.Context, e *Evaluator, ec *Context, step *ast.Node, fieldErrors []FieldError) (RenderModel, error) {
	errsByCode := make(map[string][]FieldError)
	for _, fe := range fieldErrors {
		errsByCode[fe.FieldCode] = append(errsByCode[fe.FieldCode], fe)
	}

	model := RenderModel{Valid: len(fieldErrors) == 0}
	blocksProp, ok := step.Properties.Get("blocks")
	if !ok {
		return model, nil
	}
	arr, ok := blocksProp.(ast.ArrayValue)
	if !ok {
		return model, nil
	}

	for _, bv := range arr.Items {
		nv, ok := bv.(ast.NodeValue)
		if !ok || nv.Node == nil {
			continue
		}
		rb, err := evaluateBlock(ctx, e, ec, nv.Node, errsByCode)
		if err != nil {
			return RenderModel{}, err
		}
		model.Blocks = append(model.Blocks, rb)
	}
	return model, nil
}

func evaluateBlock(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node, errsByCode map[string][]FieldError) (RenderBlock, error) {
	rb := RenderBlock{
		Variant: node.Properties.String("variant"),
		IsField: node.Subtype == ast.BlockField,
	}

	if rb.IsField {
		rb.Code = node.Properties.String("code")
		rb.Errors = errsByCode[rb.Code]

		if hiddenProp, ok := node.Properties.Get("hidden"); ok {
			hidden, err := e.evalPredicateOperand(ctx, ec, hiddenProp)
			if err != nil {
				return RenderBlock{}, err
			}
			rb.Hidden = hidden
		}

		val, err := materializeFieldValue(ctx, e, ec, rb.Code, node)
		if err != nil {
			return RenderBlock{}, err
		}
		rb.Value = val
	}

	if paramsProp, ok := node.Properties.Get("params"); ok {
		if ov, ok := paramsProp.(ast.ObjectValue); ok {
			params := make(map[string]any, len(ov.Fields))
			for k, v := range ov.Fields {
				val, evalErr, fatalErr := e.evalValue(ctx, ec, v)
				if fatalErr != nil {
					return RenderBlock{}, fatalErr
				}
				if evalErr != nil {
					continue
				}
				params[k] = val
			}
			rb.Params = params
		}
	}

	return rb, nil
}

// materializeFieldValue resolves a field block's current value: the
// request's own POST body takes precedence (re-displaying what the user
// just submitted on a validation failure), then the answers namespace,
// then the block's own default.
func materializeFieldValue(ctx context.Context, e *Evaluator, ec *Context, code string, field *ast.Node) (any, error) {
	if v, ok := ec.Request.Post[code]; ok {
		return v, nil
	}
	if answers, ok := ec.answers(); ok {
		if v, ok := answers[code]; ok {
			return v, nil
		}
	}
	defProp, ok := field.Properties.Get("defaultValue")
	if !ok {
		return nil, nil
	}
	val, evalErr, fatalErr := e.evalValue(ctx, ec, defProp)
	if fatalErr != nil {
		return nil, fatalErr
	}
	if evalErr != nil {
		return nil, nil
	}
	return val, nil
}
