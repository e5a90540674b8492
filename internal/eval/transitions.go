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
)

// Transitions are not ordinary invoke()-able expressions: a step's
// controller needs extra context (the field blocks in scope, the
// declaration-ordered transition list) that the generic handler
// signature can't carry, so LOAD/ACCESS/ACTION/SUBMIT are orchestrated
// by the functions below instead of the Evaluator's handler table.

// runEffects evaluates an "effects" property value: a single effect
// expression or an array of them, run in order for side effect alone.
// A recoverable EvalError from an effect has no operator above it to
// recover into, so it surfaces as a plain error here.
func runEffects(ctx context.Context, e *Evaluator, ec *Context, v ast.Value) error {
	items := []ast.Value{v}
	if arr, ok := v.(ast.ArrayValue); ok {
		items = arr.Items
	}
	for _, item := range items {
		_, evalErr, fatalErr := e.evalValue(ctx, ec, item)
		if fatalErr != nil {
			return fatalErr
		}
		if evalErr != nil {
			return fmt.Errorf("eval: effect failed at %s: %s", evalErr.NodeID, evalErr.Message)
		}
	}
	return nil
}

// evalNextTarget resolves a NEXT expression or array of them to the
// first non-empty goto target, per spec.md §4.6's redirect lists.
func evalNextTarget(ctx context.Context, e *Evaluator, ec *Context, v ast.Value) (string, error) {
	switch vv := v.(type) {
	case ast.ArrayValue:
		for _, item := range vv.Items {
			target, err := evalNextTarget(ctx, e, ec, item)
			if err != nil {
				return "", err
			}
			if target != "" {
				return target, nil
			}
		}
		return "", nil
	case ast.NodeValue:
		if vv.Node == nil {
			return "", nil
		}
		val, evalErr, fatalErr := e.Invoke(ctx, ec, vv.Node.ID)
		if fatalErr != nil {
			return "", fatalErr
		}
		if evalErr != nil {
			return "", nil
		}
		s, _ := val.(string)
		return s, nil
	default:
		return "", nil
	}
}

// RunLoad runs a step's LOAD transition effects (data preload), in
// order.
func RunLoad(ctx context.Context, e *Evaluator, ec *Context, load *ast.Node) error {
	if load == nil {
		return nil
	}
	effects, ok := load.Properties.Get("effects")
	if !ok {
		return nil
	}
	return runEffects(ctx, e, ec, effects)
}

// AccessResult is a single ACCESS transition's outcome: continue past it,
// redirect elsewhere, or deny with a status (spec.md §4.6: `{continue}` |
// `{redirect, target}` | `{error, status}`).
type AccessResult struct {
	Continue bool
	Redirect string
	Status   int
}

// RunAccessChain runs a step's ACCESS transitions outer-to-inner
// (ancestor chain root to leaf, as chain is ordered by the caller),
// halting at the first one that does not continue.
func RunAccessChain(ctx context.Context, e *Evaluator, ec *Context, chain []*ast.Node) (AccessResult, error) {
	for _, node := range chain {
		res, err := runAccess(ctx, e, ec, node)
		if err != nil {
			return AccessResult{}, err
		}
		if !res.Continue {
			return res, nil
		}
	}
	return AccessResult{Continue: true}, nil
}

func runAccess(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (AccessResult, error) {
	if guards, ok := node.Properties.Get("guards"); ok {
		passed, err := e.evalPredicateOperand(ctx, ec, guards)
		if err != nil {
			return AccessResult{}, err
		}
		if !passed {
			if redirect, ok := node.Properties.Get("redirect"); ok {
				target, err := evalNextTarget(ctx, e, ec, redirect)
				if err != nil {
					return AccessResult{}, err
				}
				if target != "" {
					return AccessResult{Redirect: target}, nil
				}
			}
			return AccessResult{Status: 403}, nil
		}
	}

	if effects, ok := node.Properties.Get("effects"); ok {
		if err := runEffects(ctx, e, ec, effects); err != nil {
			return AccessResult{}, err
		}
	}
	return AccessResult{Continue: true}, nil
}

// ActionOutcome is the result of running a step's ACTION list: whether a
// branch matched, and which node it was (spec.md §4.6 "First-match
// semantics over the step's action list").
type ActionOutcome struct {
	Matched bool
	NodeID  string
}

// RunActions finds the first ACTION node whose `when` is truthy and runs
// its effects; later ACTION nodes are never evaluated once one matches.
func RunActions(ctx context.Context, e *Evaluator, ec *Context, actions []*ast.Node) (ActionOutcome, error) {
	for _, node := range actions {
		whenProp, _ := node.Properties.Get("when")
		matched, err := e.evalPredicateOperand(ctx, ec, whenProp)
		if err != nil {
			return ActionOutcome{}, err
		}
		if !matched {
			continue
		}
		if effects, ok := node.Properties.Get("effects"); ok {
			if err := runEffects(ctx, e, ec, effects); err != nil {
				return ActionOutcome{}, err
			}
		}
		return ActionOutcome{Matched: true, NodeID: node.ID}, nil
	}
	return ActionOutcome{}, nil
}

// FindValidations walks a step's field blocks and its onSubmission
// transitions, collecting every VALIDATION expression reached, keyed by
// the code of its nearest enclosing field block ("" for a validation
// not nested under one). This resolves Open Question (a): scope is the
// whole step, not just one field's own block, since a cross-field
// validation can live anywhere in onSubmission.
func FindValidations(step *ast.Node) map[string][]*ast.Node {
	out := make(map[string][]*ast.Node)
	if blocks, ok := step.Properties.Get("blocks"); ok {
		walkValidations(blocks, "", out)
	}
	if onSubmission, ok := step.Properties.Get("onSubmission"); ok {
		walkValidations(onSubmission, "", out)
	}
	return out
}

func walkValidations(v ast.Value, fieldCode string, out map[string][]*ast.Node) {
	switch vv := v.(type) {
	case ast.NodeValue:
		if vv.Node == nil {
			return
		}
		node := vv.Node
		scope := fieldCode
		if node.Kind == ast.KindBlock && node.Subtype == ast.BlockField {
			scope = node.Properties.String("code")
		}
		if node.Kind == ast.KindExpression && node.Subtype == ast.ExprValidation {
			out[scope] = append(out[scope], node)
		}
		for _, prop := range node.Properties {
			walkValidations(prop, scope, out)
		}
	case ast.ArrayValue:
		for _, item := range vv.Items {
			walkValidations(item, fieldCode, out)
		}
	case ast.ObjectValue:
		for _, item := range vv.Fields {
			walkValidations(item, fieldCode, out)
		}
	}
}

// FieldError is one failing VALIDATION's reported outcome.
type FieldError struct {
	FieldCode string
	Message   string
	Details   any
}

// SubmitOutcome is the combined result of running every SUBMIT
// transition on a step (Open Question (b): every transition whose
// when/guards pass runs its branch — none halt the others).
type SubmitOutcome struct {
	IsValid     bool
	FieldErrors []FieldError
	Redirect    string
}

// runSubmitBranch runs a SUBMIT branch's `{effects?, next?}` record and
// returns its redirect target, if any.
func runSubmitBranch(ctx context.Context, e *Evaluator, ec *Context, branch ast.Value) (string, error) {
	ov, ok := branch.(ast.ObjectValue)
	if !ok {
		return "", nil
	}
	if effects, ok := ov.Fields["effects"]; ok {
		if err := runEffects(ctx, e, ec, effects); err != nil {
			return "", err
		}
	}
	if next, ok := ov.Fields["next"]; ok {
		return evalNextTarget(ctx, e, ec, next)
	}
	return "", nil
}

func runValidations(ctx context.Context, e *Evaluator, ec *Context, validationsByField map[string][]*ast.Node) ([]FieldError, error) {
	var fieldErrs []FieldError
	for code, nodes := range validationsByField {
		for _, vnode := range nodes {
			val, evalErr, fatalErr := e.Invoke(ctx, ec, vnode.ID)
			if fatalErr != nil {
				return nil, fatalErr
			}
			if evalErr != nil {
				continue
			}
			outcome, ok := val.(ValidationOutcome)
			if !ok || !outcome.Failed {
				continue
			}
			if ec.Telemetry != nil {
				ec.Telemetry.RecordValidationFailure(ctx, code)
			}
			fieldErrs = append(fieldErrs, FieldError{FieldCode: code, Message: outcome.Message, Details: outcome.Details})
		}
	}
	return fieldErrs, nil
}

// RunSubmits runs every SUBMIT transition on step in declaration order.
// IsValid starts true and is only ever set false by a validating
// submit's actual validation failures — a later non-validating submit
// never re-flips it back to true.
func RunSubmits(ctx context.Context, e *Evaluator, ec *Context, step *ast.Node, submits []*ast.Node) (SubmitOutcome, error) {
	out := SubmitOutcome{IsValid: true}
	validationsByField := FindValidations(step)

	for _, node := range submits {
		if whenProp, ok := node.Properties.Get("when"); ok {
			applies, err := e.evalPredicateOperand(ctx, ec, whenProp)
			if err != nil {
				return SubmitOutcome{}, err
			}
			if !applies {
				continue
			}
		}
		if guardsProp, ok := node.Properties.Get("guards"); ok {
			passed, err := e.evalPredicateOperand(ctx, ec, guardsProp)
			if err != nil {
				return SubmitOutcome{}, err
			}
			if !passed {
				continue
			}
		}

		validate := node.Properties.Bool("validate", false)
		branchKeys := []string{"onAlways"}
		if validate {
			fieldErrs, err := runValidations(ctx, e, ec, validationsByField)
			if err != nil {
				return SubmitOutcome{}, err
			}
			if len(fieldErrs) > 0 {
				out.IsValid = false
				out.FieldErrors = append(out.FieldErrors, fieldErrs...)
				branchKeys = append(branchKeys, "onInvalid")
			} else {
				branchKeys = append(branchKeys, "onValid")
			}
		}

		for _, key := range branchKeys {
			branch, ok := node.Properties.Get(key)
			if !ok {
				continue
			}
			target, err := runSubmitBranch(ctx, e, ec, branch)
			if err != nil {
				return SubmitOutcome{}, err
			}
			if target != "" {
				out.Redirect = target
			}
		}
	}

	return out, nil
}
