// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eval implements the Thunk Evaluator (spec.md §4.7): a
// per-request evaluator that invokes a handler per AST node, memoizes
// results by (nodeId, request-scope), supports sync and async
// handlers, and propagates typed errors along the two disjoint
// channels spec.md §7.3 describes — recoverable EvalError values that
// operators inspect, and unrecoverable errors that must surface as
// real Go errors.
package eval

import (
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/formengine/internal/errs"
	"github.com/AleutianAI/formengine/internal/factory"
	"github.com/AleutianAI/formengine/internal/ids"
	"github.com/AleutianAI/formengine/internal/pseudofactory"
	"github.com/AleutianAI/formengine/internal/registry"
	"github.com/AleutianAI/formengine/internal/secure"
	"github.com/AleutianAI/formengine/internal/telemetry"
)

// StepRequest is the host-agnostic request shape a framework adapter
// translates its native request into (spec.md §6 "StepRequest shape").
type StepRequest struct {
	Method  string
	Post    map[string]any
	Query   map[string]any
	Params  map[string]string
	URL     string
	Session any
	State   map[string]any
}

type memoEntry struct {
	Value any
	Err   *errs.EvalError
}

// Context is the per-request evaluation scope (spec.md §4.7
// "createContext(request)" and §5 "Resource scoping"). It bundles the
// compiled form's frozen registries with this request's submitted
// data, and owns the memoization cache, the request-local ID overlay,
// and the node registry extension COLLECTION/ITERATE template
// instantiation writes into. A Context is safe for concurrent use:
// COLLECTION/ITERATE fan-out invokes sibling templates from multiple
// goroutines against the same Context.
type Context struct {
	// Nodes is request-scoped: a child of the compiled form's node
	// registry (see registry.Nodes.Child), so runtime-ast/runtime-pseudo
	// nodes instantiated during this request never leak into the
	// compiled form shared by other requests.
	Nodes      *registry.Nodes
	Meta       *registry.Metadata
	Functions  *registry.Functions
	Components *registry.Components

	Request StepRequest
	Global  map[string]any

	Overlay        *ids.Overlay
	RuntimeFactory *factory.Factory

	// RateLimiter, if set, throttles DATA pseudo-node fetches (the one
	// pseudo-node source expensive enough to warrant it — see
	// handlers_pseudo.go).
	RateLimiter *rate.Limiter

	// Pseudo is the same pseudo-node factory Wire used at compile time
	// to synthesize POST/ANSWER/DATA/QUERY/PARAMS nodes. A keyed
	// REFERENCE segment resolves by looking up its pseudo-node here and
	// invoking it, rather than reading the request's raw maps directly
	// — this is what makes ANSWER's default fallback and DATA's rate
	// limiting apply uniformly to every REFERENCE, not just the
	// synthesized pseudo-nodes' own direct callers.
	Pseudo *pseudofactory.Factory

	// Secure, if set, holds this request's locked sensitive-field
	// values (SPEC_FULL.md §10 "Sensitive-field protection").
	Secure *secure.Vault

	// Telemetry records node invocations and validation failures when a
	// host has configured a Provider; nil is equivalent to a no-op one.
	Telemetry *telemetry.Provider

	mu         sync.Mutex
	memo       map[string]*memoEntry
	group      singleflight.Group
	itemScopes sync.Map // root node ID -> the COLLECTION/ITERATE item value in scope there
}

// ContextOption configures optional Context fields at construction.
type ContextOption func(*Context)

// WithGlobal supplies the request's global application data (the DATA
// pseudo-node namespace).
func WithGlobal(global map[string]any) ContextOption {
	return func(c *Context) { c.Global = global }
}

// WithRateLimiter throttles this context's DATA pseudo-node fetches.
func WithRateLimiter(limiter *rate.Limiter) ContextOption {
	return func(c *Context) { c.RateLimiter = limiter }
}

// WithPseudo supplies the compile-time pseudo-node factory a keyed
// REFERENCE segment resolves against.
func WithPseudo(p *pseudofactory.Factory) ContextOption {
	return func(c *Context) { c.Pseudo = p }
}

// WithSecure supplies this request's sensitive-field vault.
func WithSecure(v *secure.Vault) ContextOption {
	return func(c *Context) { c.Secure = v }
}

// WithTelemetry supplies the Provider this context's Evaluator calls
// report node invocations and validation failures through.
func WithTelemetry(p *telemetry.Provider) ContextOption {
	return func(c *Context) { c.Telemetry = p }
}

// NewContext constructs a request-scoped evaluation context over a
// compiled form's frozen registries. alloc is the compiled form's main
// ID allocator; an overlay is drawn from it for this request's runtime
// node instantiation and is never flushed back automatically — per
// spec.md §5, a per-request overlay is discarded with the context.
func NewContext(nodes *registry.Nodes, meta *registry.Metadata, functions *registry.Functions, components *registry.Components, alloc *ids.Allocator, req StepRequest, opts ...ContextOption) *Context {
	overlay := ids.NewOverlay(alloc)
	runtimeNodes := nodes.Child()

	c := &Context{
		Nodes:          runtimeNodes,
		Meta:           meta,
		Functions:      functions,
		Components:     components,
		Request:        req,
		Overlay:        overlay,
		RuntimeFactory: factory.New(overlay, ids.RuntimeAST, meta, runtimeNodes),
		memo:           make(map[string]*memoEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) get(nodeID string) (*memoEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.memo[nodeID]
	return e, ok
}

func (c *Context) put(nodeID string, e *memoEntry) {
	c.mu.Lock()
	c.memo[nodeID] = e
	c.mu.Unlock()
}

// setItemScope records the COLLECTION/ITERATE item value in scope for
// the subtree rooted at rootID (the freshly instantiated per-item
// template's own node).
func (c *Context) setItemScope(rootID string, item any) {
	c.itemScopes.Store(rootID, item)
}

// itemScopeFor returns the nearest enclosing item value for nodeID by
// walking its structural ancestor chain, per the resolved open
// question in spec.md §9(c): a per-item template resolves against the
// enclosing request Context, not a sandboxed one, so this walk is the
// only boundary between one item's scope and its siblings'.
func (c *Context) itemScopeFor(nodeID string) (any, bool) {
	for _, ancestor := range c.Meta.AncestorChain(nodeID) {
		if v, ok := c.itemScopes.Load(ancestor); ok {
			return v, true
		}
	}
	return nil, false
}

// resolveNamespace returns the root collection a base-less REFERENCE's
// first path segment names. "item" resolves against the nearest
// enclosing COLLECTION/ITERATE scope for nodeID; anything unrecognized
// falls back to the request's free-form state bag.
func (c *Context) resolveNamespace(ns, nodeID string) any {
	switch ns {
	case "post":
		return c.Request.Post
	case "query":
		return c.Request.Query
	case "params":
		out := make(map[string]any, len(c.Request.Params))
		for k, v := range c.Request.Params {
			out[k] = v
		}
		return out
	case "data":
		return c.Global
	case "answers":
		if answers, ok := c.answers(); ok {
			return answers
		}
		return map[string]any{}
	case "item":
		if v, ok := c.itemScopeFor(nodeID); ok {
			return v
		}
		return nil
	default:
		return c.Request.State
	}
}

func (c *Context) answers() (map[string]any, bool) {
	if c.Request.State == nil {
		return nil, false
	}
	m, ok := c.Request.State["answers"].(map[string]any)
	return m, ok
}
