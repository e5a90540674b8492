// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import (
	"context"
	"net/url"
	"strings"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/compile"
	"github.com/AleutianAI/formengine/internal/errs"
	"github.com/AleutianAI/formengine/internal/eval"
	"github.com/AleutianAI/formengine/internal/secure"
)

// Controller orchestrates the per-request lifecycle for one compiled
// step: build context, ancestor-chain ACCESS, optional ACTION/SUBMIT on
// POST, then render or redirect (spec.md §4.8 "Controller, per
// request").
type Controller struct {
	router   *Router
	step     *compile.Step
	fullPath string
}

func (c *Controller) handleGet(nativeCtx any) {
	c.handle(nativeCtx)
}

func (c *Controller) handlePost(nativeCtx any) {
	c.handle(nativeCtx)
}

func (c *Controller) handle(nativeCtx any) {
	ctx := context.Background()
	adapter := c.router.adapter
	art := c.router.currentArtefact()
	e := c.router.evaluator

	// A watched definition reloads by content, not by route topology:
	// re-resolve this request's step within whichever Artefact is
	// current, falling back to the step captured at Mount time for a
	// static (non-watching) Router.
	step := c.step
	if resolved, ok := findStep(art.Root, c.router.basePath, c.fullPath); ok {
		step = resolved
	}

	req, err := adapter.ToStepRequest(nativeCtx)
	if err != nil {
		adapter.ForwardError(nativeCtx, err)
		return
	}

	ec := eval.NewContext(art.Nodes, art.Meta, art.Functions, art.Components, art.Allocator, req,
		eval.WithPseudo(art.Pseudo), eval.WithTelemetry(c.router.telemetry))

	if c.router.secureFields && strings.EqualFold(req.Method, "POST") {
		vault := secure.NewVault()
		for code, field := range compile.FieldBlocksByCode(step.Node) {
			if !field.Properties.Bool("sensitive", false) {
				continue
			}
			if v, ok := req.Post[code]; ok {
				if err := vault.Lock(code, v); err != nil {
					adapter.ForwardError(nativeCtx, err)
					return
				}
			}
		}
		ec.Secure = vault
		defer vault.Release()
	}

	// ancestor chain: outer journey(s) first, then the step itself.
	chain := append([]*ast.Node{}, compile.AncestorJourneys(step.Journey)...)
	chain = append(chain, step.Node)

	accessNodes := make([]*ast.Node, 0, len(chain))
	for _, n := range chain {
		if access := accessTransitionOf(n); access != nil {
			accessNodes = append(accessNodes, access)
		}
	}

	accessRes, err := eval.RunAccessChain(ctx, e, ec, accessNodes)
	if err != nil {
		adapter.ForwardError(nativeCtx, err)
		return
	}
	if accessRes.Redirect != "" {
		adapter.Redirect(nativeCtx, c.resolveRedirect(nativeCtx, accessRes.Redirect))
		return
	}
	if !accessRes.Continue {
		status := accessRes.Status
		if status == 0 {
			status = 403
		}
		adapter.ForwardError(nativeCtx, errs.AccessDenied(step.Node.ID, status))
		return
	}

	if loadNode := loadTransitionOf(step.Node); loadNode != nil {
		if err := eval.RunLoad(ctx, e, ec, loadNode); err != nil {
			adapter.ForwardError(nativeCtx, err)
			return
		}
	}

	var fieldErrors []eval.FieldError

	if strings.EqualFold(req.Method, "POST") {
		if actions := actionTransitionsOf(step.Node); len(actions) > 0 {
			if _, err := eval.RunActions(ctx, e, ec, actions); err != nil {
				adapter.ForwardError(nativeCtx, err)
				return
			}
		}

		if submits := submitTransitionsOf(step.Node); len(submits) > 0 {
			outcome, err := eval.RunSubmits(ctx, e, ec, step.Node, submits)
			if err != nil {
				adapter.ForwardError(nativeCtx, err)
				return
			}
			if c.router.audit != nil {
				c.router.audit.RecordSubmit(c.fullPath, true, submitValidates(submits), outcome.IsValid, submitOutcomeLabel(outcome.IsValid))
			}
			if outcome.Redirect != "" {
				adapter.Redirect(nativeCtx, c.resolveRedirect(nativeCtx, outcome.Redirect))
				return
			}
			fieldErrors = outcome.FieldErrors
		}
	}

	model, err := eval.Evaluate(ctx, e, ec, step.Node, fieldErrors)
	if err != nil {
		adapter.ForwardError(nativeCtx, err)
		return
	}
	if err := adapter.Render(nativeCtx, model, req); err != nil {
		adapter.ForwardError(nativeCtx, err)
	}
}

// submitValidates reports whether any of submits runs with validate=true.
func submitValidates(submits []*ast.Node) bool {
	for _, s := range submits {
		if s.Properties.Bool("validate", false) {
			return true
		}
	}
	return false
}

func submitOutcomeLabel(isValid bool) string {
	if isValid {
		return "valid"
	}
	return "invalid"
}

// resolveRedirect implements spec.md §4.8's redirect-target resolution:
// an absolute URL (scheme present) or a path already rooted at "/" is
// used verbatim; anything else is resolved relative to
// basePath + currentJourneyPath.
func (c *Controller) resolveRedirect(nativeCtx any, target string) string {
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		return target
	}
	if strings.HasPrefix(target, "/") {
		return target
	}
	journeyPath := journeyFullPath(c.router.basePath, c.step.Journey)
	return joinPath(journeyPath, target)
}

func journeyFullPath(basePath string, j *compile.Journey) string {
	parts := []string{basePath}
	for _, ancestor := range compile.AncestorJourneys(j) {
		parts = append(parts, ancestor.Properties.String("path"))
	}
	return joinPath(parts...)
}

func accessTransitionOf(n *ast.Node) *ast.Node {
	return n.Properties.Node("onAccess")
}

func loadTransitionOf(n *ast.Node) *ast.Node {
	return n.Properties.Node("onLoad")
}

func actionTransitionsOf(step *ast.Node) []*ast.Node {
	return asNodeList(step.Properties.Get("onAction"))
}

func submitTransitionsOf(step *ast.Node) []*ast.Node {
	return asNodeList(step.Properties.Get("onSubmission"))
}

func asNodeList(v ast.Value, ok bool) []*ast.Node {
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case ast.NodeValue:
		if vv.Node == nil {
			return nil
		}
		return []*ast.Node{vv.Node}
	case ast.ArrayValue:
		var out []*ast.Node
		for _, item := range vv.Items {
			if nv, ok := item.(ast.NodeValue); ok && nv.Node != nil {
				out = append(out, nv.Node)
			}
		}
		return out
	default:
		return nil
	}
}
