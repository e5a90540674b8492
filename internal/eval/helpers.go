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
	"fmt"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
)

// truthy is the predicate coercion every Logic handler shares: nil and
// false are falsy, the zero value of every other primitive type is
// truthy (spec.md §4.4 only special-cases the absence of a value and
// the boolean itself — it does not fall back to a language's broader
// falsy-value rules).
func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// evalValue evaluates a Properties bag value in ec: primitives and raw
// JSON fragments pass through unchanged, a nested node is invoked, and
// arrays/objects recurse pointwise, stopping at the first recoverable
// or fatal error encountered among their elements.
func (e *Evaluator) evalValue(ctx context.Context, ec *Context, v ast.Value) (any, *errs.EvalError, error) {
	switch vv := v.(type) {
	case ast.Primitive:
		return vv.Raw, nil, nil
	case ast.RawJSON:
		return vv.Raw, nil, nil
	case ast.NodeValue:
		if vv.Node == nil {
			return nil, nil, nil
		}
		return e.Invoke(ctx, ec, vv.Node.ID)
	case ast.ArrayValue:
		out := make([]any, 0, len(vv.Items))
		for _, item := range vv.Items {
			val, evalErr, fatalErr := e.evalValue(ctx, ec, item)
			if fatalErr != nil {
				return nil, nil, fatalErr
			}
			if evalErr != nil {
				return nil, evalErr, nil
			}
			out = append(out, val)
		}
		return out, nil, nil
	case ast.ObjectValue:
		out := make(map[string]any, len(vv.Fields))
		for k, item := range vv.Fields {
			val, evalErr, fatalErr := e.evalValue(ctx, ec, item)
			if fatalErr != nil {
				return nil, nil, fatalErr
			}
			if evalErr != nil {
				return nil, evalErr, nil
			}
			out[k] = val
		}
		return out, nil, nil
	default:
		return nil, nil, fmt.Errorf("eval: unrecognized value shape %T", v)
	}
}

// evalFunctionCall evaluates a FUNCTION node's arguments and invokes the
// host function registered under its name. When hasImplicit is true,
// implicit is prepended to the evaluated argument list: TEST's subject
// and PIPELINE's threaded value both reach the function this way,
// ahead of the node's own declared arguments. A host function returning
// an error becomes a recoverable EvalError (spec.md §7.3): only an
// unregistered function name is unrecoverable.
func (e *Evaluator) evalFunctionCall(ctx context.Context, ec *Context, node *ast.Node, implicit any, hasImplicit bool) (any, *errs.EvalError, error) {
	name := node.Properties.String("name")
	fn, ok := ec.Functions.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("eval: unregistered function %q at node %s", name, node.ID)
	}

	args := make([]any, 0, len(node.Properties.Array("arguments"))+1)
	if hasImplicit {
		args = append(args, implicit)
	}
	for _, argVal := range node.Properties.Array("arguments") {
		val, evalErr, fatalErr := e.evalValue(ctx, ec, argVal)
		if fatalErr != nil {
			return nil, nil, fatalErr
		}
		if evalErr != nil {
			return nil, evalErr, nil
		}
		args = append(args, val)
	}

	result, err := fn.Evaluate(args, ec)
	if err != nil {
		return nil, errs.NewEvalError(node.ID, err.Error()), nil
	}
	return result, nil, nil
}
