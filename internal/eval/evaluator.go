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
	"sync"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
)

// HandlerFunc evaluates a single AST node within ec. Its three return
// values are spec.md §7.3's three outcomes: a value, a recoverable
// EvalError (a value operators inspect — never thrown), or an
// unrecoverable error (unknown node/function, handler contract
// violation) that must propagate as a real Go error.
type HandlerFunc func(ctx context.Context, e *Evaluator, ec *Context, node *ast.Node) (any, *errs.EvalError, error)

// Handler pairs a node-kind's evaluation logic with its async bit.
type Handler struct {
	Eval HandlerFunc
	// Async marks this handler as a suspension point in its own right
	// (e.g. it may call a host-registered function, or throttle on a
	// rate limiter), independent of whether any of its children are.
	Async bool
}

// Evaluator dispatches AST nodes to their registered handler by
// (Kind, Subtype) and implements invoke/invokeSync (spec.md §4.7).
// Transition nodes (LOAD/ACCESS/ACTION/SUBMIT) are deliberately not
// dispatched through the generic handler map: spec.md §4.8 describes
// them as controller-orchestrated outcomes rather than ordinary
// invoke()-able expressions, so they are evaluated by the dedicated
// Run* functions in transitions.go instead.
//
// Thread Safety: An Evaluator holds only its immutable handler table
// and a cache of a pure function of each node (IsAsync); both are safe
// for concurrent use. The same Evaluator is shared by every compiled
// form and every concurrent request.
type Evaluator struct {
	handlers   map[string]Handler
	asyncCache sync.Map // node ID -> bool
}

// New returns an Evaluator with every built-in Logic, Expression, and
// pseudo-node handler registered. Hosts never register additional node
// kinds; FUNCTION nodes are the engine's one extension point, reached
// through the function registry rather than new Evaluator handlers.
func New() *Evaluator {
	e := &Evaluator{handlers: make(map[string]Handler)}
	registerLogicHandlers(e)
	registerExpressionHandlers(e)
	registerPseudoHandlers(e)
	return e
}

func handlerKey(kind ast.Kind, subtype string) string {
	return string(kind) + ":" + subtype
}

// Register installs (or overrides) the handler for a given node shape.
func (e *Evaluator) Register(kind ast.Kind, subtype string, h Handler) {
	e.handlers[handlerKey(kind, subtype)] = h
}

func (e *Evaluator) handlerFor(node *ast.Node) (Handler, bool) {
	h, ok := e.handlers[handlerKey(node.Kind, node.Subtype)]
	return h, ok
}

// IsAsync reports whether evaluating node may suspend: true iff node's
// own handler is async, or any node reachable through its Properties
// is. The result is memoized per node ID, since the compiled AST is
// immutable — computing it once per compilation is enough.
func (e *Evaluator) IsAsync(node *ast.Node) bool {
	if node == nil {
		return false
	}
	if v, ok := e.asyncCache.Load(node.ID); ok {
		return v.(bool)
	}

	async := false
	if h, ok := e.handlerFor(node); ok && h.Async {
		async = true
	}
	if !async {
		for _, v := range node.Properties {
			if e.valueIsAsync(v) {
				async = true
				break
			}
		}
	}

	e.asyncCache.Store(node.ID, async)
	return async
}

func (e *Evaluator) valueIsAsync(v ast.Value) bool {
	switch vv := v.(type) {
	case ast.NodeValue:
		return e.IsAsync(vv.Node)
	case ast.ArrayValue:
		for _, item := range vv.Items {
			if e.valueIsAsync(item) {
				return true
			}
		}
	case ast.ObjectValue:
		for _, item := range vv.Fields {
			if e.valueIsAsync(item) {
				return true
			}
		}
	}
	return false
}

// Invoke evaluates nodeID within ec. Results are memoized per
// (nodeID, ec): a second call returns the first call's result without
// re-running the handler. Concurrent first calls for the same nodeID
// (e.g. two COLLECTION fan-out goroutines racing on a shared
// dependency) are coalesced via singleflight, so the handler still
// runs exactly once — spec.md §8 "Memoization".
func (e *Evaluator) Invoke(ctx context.Context, ec *Context, nodeID string) (any, *errs.EvalError, error) {
	if entry, ok := ec.get(nodeID); ok {
		return entry.Value, entry.Err, nil
	}

	v, err, _ := ec.group.Do(nodeID, func() (interface{}, error) {
		if entry, ok := ec.get(nodeID); ok {
			return entry, nil
		}

		node, ok := ec.Nodes.Get(nodeID)
		if !ok {
			return nil, fmt.Errorf("eval: unknown node %q", nodeID)
		}
		h, ok := e.handlerFor(node)
		if !ok {
			return nil, fmt.Errorf("eval: no handler registered for %s node (subtype %q)", node.Kind, node.Subtype)
		}

		if ec.Telemetry != nil {
			ec.Telemetry.RecordInvocation(ctx, string(node.Kind), node.Subtype)
		}

		val, evalErr, fatalErr := h.Eval(ctx, e, ec, node)
		if fatalErr != nil {
			return nil, fatalErr
		}

		entry := &memoEntry{Value: val, Err: evalErr}
		ec.put(nodeID, entry)
		return entry, nil
	})
	if err != nil {
		return nil, nil, err
	}
	entry := v.(*memoEntry)
	return entry.Value, entry.Err, nil
}

// InvokeSync is the synchronous variant of Invoke: calling it on a
// node whose subtree contains any async handler is a programmer error
// and returns an unrecoverable error rather than silently blocking.
func (e *Evaluator) InvokeSync(ec *Context, nodeID string) (any, *errs.EvalError, error) {
	node, ok := ec.Nodes.Get(nodeID)
	if !ok {
		return nil, nil, fmt.Errorf("eval: unknown node %q", nodeID)
	}
	if e.IsAsync(node) {
		return nil, nil, fmt.Errorf("eval: InvokeSync called on async subtree at node %s", nodeID)
	}
	return e.Invoke(context.Background(), ec, nodeID)
}
