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

func registerPseudoHandlers(e *Evaluator) {
	e.Register(ast.KindPseudo, ast.PseudoPost, Handler{Eval: evalPseudoPost})
	e.Register(ast.KindPseudo, ast.PseudoAnswer, Handler{Eval: evalPseudoAnswer})
	e.Register(ast.KindPseudo, ast.PseudoQuery, Handler{Eval: evalPseudoQuery})
	e.Register(ast.KindPseudo, ast.PseudoParams, Handler{Eval: evalPseudoParams})
	// DATA is the one pseudo-source expensive enough to throttle, so
	// it's the only one marked as a genuine suspension point.
	e.Register(ast.KindPseudo, ast.PseudoData, Handler{Eval: evalPseudoData, Async: true})
}

func evalPseudoPost(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	return ec.Request.Post[node.Properties.String("key")], nil, nil
}

func evalPseudoQuery(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	return ec.Request.Query[node.Properties.String("key")], nil, nil
}

func evalPseudoParams(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	v, ok := ec.Request.Params[node.Properties.String("key")]
	if !ok {
		return nil, nil, nil
	}
	return v, nil, nil
}

// evalPseudoData serves the DATA namespace from the request's global
// application data, throttled by the context's rate limiter when one is
// configured — a cancelled wait (request context done) is unrecoverable
// rather than silently yielding nil, since it means the request timed
// out waiting for its turn, not that the key is absent.
func evalPseudoData(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	if ec.RateLimiter != nil {
		if err := ec.RateLimiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	if ec.Global == nil {
		return nil, nil, nil
	}
	return ec.Global[node.Properties.String("key")], nil, nil
}

// evalPseudoAnswer resolves a field's prior answer: the current
// request's submitted answers map takes precedence, falling back to the
// field block's own default value.
func evalPseudoAnswer(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error) {
	key := node.Properties.String("key")
	if answers, ok := ec.answers(); ok {
		if v, ok := answers[key]; ok {
			return v, nil, nil
		}
	}
	if def, ok := node.Properties.Get("default"); ok {
		return e.evalValue(ctx, ec, def)
	}
	return nil, nil, nil
}
