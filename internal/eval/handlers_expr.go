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
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
	"github.com/AleutianAI/formengine/internal/pseudofactory"
)

func registerExpressionHandlers(e *Evaluator) {
	e.Register(ast.KindExpression, ast.ExprReference, Handler{Eval: evalReference})
	e.Register(ast.KindExpression, ast.ExprFormat, Handler{Eval: evalFormat})
	e.Register(ast.KindExpression, ast.ExprPipeline, Handler{Eval: evalPipeline})
	e.Register(ast.KindExpression, ast.ExprCollection, Handler{Eval: evalCollection})
	e.Register(ast.KindExpression, ast.ExprIterate, Handler{Eval: evalIterate})
	e.Register(ast.KindExpression, ast.ExprValidation, Handler{Eval: evalValidation})
	e.Register(ast.KindExpression, ast.ExprFunction, Handler{Eval: evalFunction, Async: true})
	e.Register(ast.KindExpression, ast.ExprNext, Handler{Eval: evalNext})
}

// navigate steps cur through a single path segment: a map key for
// object values, a numeric index for arrays. Any other shape, or a
// segment that doesn't resolve, yields nil rather than an error — a
// REFERENCE into a value that isn't there is a normal "no value",
// matched by ANSWER/DATA defaults further up the call chain.
func navigate(cur any, seg any) any {
	switch c := cur.(type) {
	case map[string]any:
		key, _ := seg.(string)
		return c[key]
	case []any:
		idx, ok := asIndex(seg)
		if !ok || idx < 0 || idx >= len(c) {
			return nil
		}
		return c[idx]
	default:
		return nil
	}
}

func asIndex(seg any) (int, bool) {
	switch v := seg.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func evalReference(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	pathVals := node.Properties.Array("path")

	var cur any
	start := 0
	if baseProp, hasBase := node.Properties.Get("base"); hasBase {
		v, evalErr, fatalErr := e.evalValue(ctx, ec, baseProp)
		if fatalErr != nil {
			return nil, nil, fatalErr
		}
		if evalErr != nil {
			return nil, evalErr, nil
		}
		cur = v
	} else {
		if len(pathVals) == 0 {
			return nil, nil, nil
		}
		headVal, evalErr, fatalErr := e.evalValue(ctx, ec, pathVals[0])
		if fatalErr != nil {
			return nil, nil, fatalErr
		}
		if evalErr != nil {
			return nil, evalErr, nil
		}
		ns, _ := headVal.(string)

		resolved := false
		if len(pathVals) > 1 && ec.Pseudo != nil {
			if pseudoNS, ok := pseudofactory.ParseNamespace(ns); ok {
				keyVal, evalErr, fatalErr := e.evalValue(ctx, ec, pathVals[1])
				if fatalErr != nil {
					return nil, nil, fatalErr
				}
				if evalErr != nil {
					return nil, evalErr, nil
				}
				key, _ := keyVal.(string)
				if pseudoNode, found := ec.Pseudo.Lookup(pseudoNS, key); found {
					v, evalErr, fatalErr := e.Invoke(ctx, ec, pseudoNode.ID)
					if fatalErr != nil {
						return nil, nil, fatalErr
					}
					if evalErr != nil {
						return nil, evalErr, nil
					}
					cur = v
					start = 2
					resolved = true
				}
			}
		}
		if !resolved {
			cur = ec.resolveNamespace(ns, node.ID)
			start = 1
		}
	}

	for _, seg := range pathVals[start:] {
		segVal, evalErr, fatalErr := e.evalValue(ctx, ec, seg)
		if fatalErr != nil {
			return nil, nil, fatalErr
		}
		if evalErr != nil {
			return nil, evalErr, nil
		}
		cur = navigate(cur, segVal)
	}
	return cur, nil, nil
}

func evalFormat(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	template := node.Properties.String("template")
	var args []any
	for _, argVal := range node.Properties.Array("arguments") {
		v, evalErr, fatalErr := e.evalValue(ctx, ec, argVal)
		if fatalErr != nil {
			return nil, nil, fatalErr
		}
		if evalErr != nil {
			return nil, evalErr, nil
		}
		args = append(args, v)
	}
	return substitutePlaceholders(template, args), nil, nil
}

// substitutePlaceholders replaces every "%1", "%2", ... in template with
// the corresponding 1-indexed argument, per spec.md §4.5. A placeholder
// beyond the argument list is left untouched.
func substitutePlaceholders(template string, args []any) string {
	out := template
	for i, arg := range args {
		placeholder := "%" + strconv.Itoa(i+1)
		out = strings.ReplaceAll(out, placeholder, fmt.Sprint(arg))
	}
	return out
}

func evalPipeline(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	cur, evalErr, fatalErr := e.evalValue(ctx, ec, mustGet(node, "input"))
	if fatalErr != nil {
		return nil, nil, fatalErr
	}
	if evalErr != nil {
		return nil, evalErr, nil
	}

	for _, step := range node.Properties.Array("steps") {
		if nv, ok := step.(ast.NodeValue); ok && nv.Node != nil && nv.Node.Kind == ast.KindExpression && nv.Node.Subtype == ast.ExprFunction {
			v, se, fe := e.evalFunctionCall(ctx, ec, nv.Node, cur, true)
			if fe != nil {
				return nil, nil, fe
			}
			if se != nil {
				return nil, se, nil
			}
			cur = v
			continue
		}
		v, se, fe := e.evalValue(ctx, ec, step)
		if fe != nil {
			return nil, nil, fe
		}
		if se != nil {
			return nil, se, nil
		}
		cur = v
	}
	return cur, nil, nil
}

func mustGet(node *ast.Node, key string) ast.Value {
	v, _ := node.Properties.Get(key)
	return v
}

// instantiateItem lowers a COLLECTION/ITERATE per-item raw template into
// a fresh runtime-ast node via the context's request-local factory,
// records item as that node's in-scope value, and invokes it.
func instantiateItem(ctx context.Context, e *Evaluator, ec *Context, rawTemplate any, item any) (any, *errs.EvalError, error) {
	root, err := ec.RuntimeFactory.CreateNode(rawTemplate)
	if err != nil {
		return nil, nil, err
	}
	ec.setItemScope(root.ID, item)
	return e.Invoke(ctx, ec, root.ID)
}

func evalCollection(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	sourceVal, evalErr, fatalErr := e.evalValue(ctx, ec, mustGet(node, "collection"))
	if fatalErr != nil {
		return nil, nil, fatalErr
	}
	if evalErr != nil {
		return nil, evalErr, nil
	}

	items, _ := sourceVal.([]any)
	if len(items) == 0 {
		if fallback, ok := node.Properties.Get("fallback"); ok {
			return e.evalValue(ctx, ec, fallback)
		}
		return []any{}, nil, nil
	}

	rawTemplate := node.Properties.Raw("template")
	if rawTemplate == nil {
		return nil, nil, fmt.Errorf("eval: COLLECTION node %s has no template", node.ID)
	}

	results := make([]any, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			v, se, fe := instantiateItem(gctx, e, ec, rawTemplate, item)
			if fe != nil {
				return fe
			}
			if se != nil {
				return se
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if se, ok := err.(*errs.EvalError); ok {
			return nil, se, nil
		}
		return nil, nil, err
	}
	return results, nil, nil
}

func evalIterate(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	sourceVal, evalErr, fatalErr := e.evalValue(ctx, ec, mustGet(node, "input"))
	if fatalErr != nil {
		return nil, nil, fatalErr
	}
	if evalErr != nil {
		return nil, evalErr, nil
	}
	items, _ := sourceVal.([]any)

	operator := node.Properties.String("operator")
	switch operator {
	case ast.IterateMap:
		rawTemplate := node.Properties.Raw("yield")
		if rawTemplate == nil {
			return nil, nil, fmt.Errorf("eval: ITERATE MAP node %s has no yield template", node.ID)
		}
		results := make([]any, len(items))
		g, gctx := errgroup.WithContext(ctx)
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				v, se, fe := instantiateItem(gctx, e, ec, rawTemplate, item)
				if fe != nil {
					return fe
				}
				if se != nil {
					return se
				}
				results[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if se, ok := err.(*errs.EvalError); ok {
				return nil, se, nil
			}
			return nil, nil, err
		}
		return results, nil, nil

	case ast.IterateFilter, ast.IterateFind:
		rawPredicate := node.Properties.Raw("predicate")
		if rawPredicate == nil {
			return nil, nil, fmt.Errorf("eval: ITERATE %s node %s has no predicate", operator, node.ID)
		}
		// FILTER/FIND run sequentially: FIND's early exit on the first
		// match doesn't parallelize without added cancellation
		// complexity, and FILTER is kept sequential to match it.
		var kept []any
		for _, item := range items {
			v, se, fe := instantiateItem(ctx, e, ec, rawPredicate, item)
			if fe != nil {
				return nil, nil, fe
			}
			if se != nil {
				return nil, se, nil
			}
			if !truthy(v) {
				continue
			}
			if operator == ast.IterateFind {
				return item, nil, nil
			}
			kept = append(kept, item)
		}
		if operator == ast.IterateFind {
			return nil, nil, nil
		}
		if kept == nil {
			kept = []any{}
		}
		return kept, nil, nil

	default:
		return nil, nil, fmt.Errorf("eval: unknown ITERATE operator %q at node %s", operator, node.ID)
	}
}

// ValidationOutcome is VALIDATION's evaluated result: a structured value
// consumed by RunSubmits/FindValidations, never an EvalError itself —
// VALIDATION's job is to report failure as data, not to fail.
type ValidationOutcome struct {
	Failed         bool
	Message        string
	SubmissionOnly bool
	Details        any
}

func evalValidation(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	failed, err := e.evalPredicateOperand(ctx, ec, mustGet(node, "when"))
	if err != nil {
		return nil, nil, err
	}

	outcome := ValidationOutcome{
		Failed:         failed,
		SubmissionOnly: node.Properties.Bool("submissionOnly", false),
	}

	if failed {
		msgVal, evalErr, fatalErr := e.evalValue(ctx, ec, mustGet(node, "message"))
		if fatalErr != nil {
			return nil, nil, fatalErr
		}
		if evalErr == nil {
			if s, ok := msgVal.(string); ok {
				outcome.Message = s
			} else {
				outcome.Message = fmt.Sprint(msgVal)
			}
		}
		if detailsProp, ok := node.Properties.Get("details"); ok {
			detailsVal, evalErr, fatalErr := e.evalValue(ctx, ec, detailsProp)
			if fatalErr != nil {
				return nil, nil, fatalErr
			}
			if evalErr == nil {
				outcome.Details = detailsVal
			}
		}
	}

	return outcome, nil, nil
}

func evalFunction(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	return e.evalFunctionCall(ctx, ec, node, nil, false)
}

func evalNext(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	if whenProp, ok := node.Properties.Get("when"); ok {
		applies, err := e.evalPredicateOperand(ctx, ec, whenProp)
		if err != nil {
			return nil, nil, err
		}
		if !applies {
			return nil, nil, nil
		}
	}
	return e.evalValue(ctx, ec, mustGet(node, "goto"))
}
