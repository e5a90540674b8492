// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pseudofactory synthesizes virtual runtime-data-source nodes
// during dependency wiring: POST (submitted field), ANSWER (prior
// answer, with an optional default sourced from a field block), DATA
// (external data key), QUERY (URL query parameter), and PARAMS (URL
// path parameter). These never appear in the JSON definition; they are
// materialized the first time something references them, per spec.md
// §3 "Pseudo-nodes".
package pseudofactory

import (
	"sync"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/ids"
	"github.com/AleutianAI/formengine/internal/registry"
)

// Namespace tags the first path segment of a base-less REFERENCE
// expression that resolves to a pseudo-node rather than a value
// computed purely from other AST.
type Namespace string

const (
	NamespacePost    Namespace = "post"
	NamespaceAnswers Namespace = "answers"
	NamespaceData    Namespace = "data"
	NamespaceQuery   Namespace = "query"
	NamespaceParams  Namespace = "params"
)

var namespaceSubtype = map[Namespace]string{
	NamespacePost:    ast.PseudoPost,
	NamespaceAnswers: ast.PseudoAnswer,
	NamespaceData:    ast.PseudoData,
	NamespaceQuery:   ast.PseudoQuery,
	NamespaceParams:  ast.PseudoParams,
}

// IDSource is the subset of ids.Allocator / ids.Overlay the pseudo
// factory needs.
type IDSource interface {
	Next(category ids.Category) string
}

// Factory synthesizes pseudo-nodes during wiring, deduplicated by
// (namespace, key): two REFERENCE expressions naming the same POST
// field, or the same prior ANSWER, share a single pseudo-node so the
// evaluator's memoization keys them identically.
//
// Thread Safety: safe for concurrent use; a single compile run shares
// one Factory across every step being wired.
type Factory struct {
	mu       sync.Mutex
	ids      IDSource
	category ids.Category
	meta     *registry.Metadata
	nodes    *registry.Nodes
	cache    map[string]*ast.Node
}

// New returns a Factory allocating pseudo-node IDs in category from
// src, registering synthesized nodes in nodes.
func New(src IDSource, category ids.Category, meta *registry.Metadata, nodes *registry.Nodes) *Factory {
	return &Factory{
		ids:      src,
		category: category,
		meta:     meta,
		nodes:    nodes,
		cache:    make(map[string]*ast.Node),
	}
}

func cacheKey(ns Namespace, key string) string {
	return string(ns) + ":" + key
}

func (f *Factory) synthesize(ns Namespace, key string, extra ast.Properties) *ast.Node {
	f.mu.Lock()
	defer f.mu.Unlock()

	ck := cacheKey(ns, key)
	if existing, ok := f.cache[ck]; ok {
		return existing
	}

	props := ast.Properties{"key": ast.NewPrimitive(key)}
	for k, v := range extra {
		props[k] = v
	}

	node := ast.NewPseudoNode(f.ids.Next(f.category), namespaceSubtype[ns], props)
	f.nodes.Add(node)
	f.cache[ck] = node
	return node
}

// Post returns the pseudo-node representing a submitted POST field
// named fieldCode, synthesizing it on first reference.
func (f *Factory) Post(fieldCode string) *ast.Node {
	return f.synthesize(NamespacePost, fieldCode, nil)
}

// Answer returns the pseudo-node representing the prior answer to
// field. It carries field's defaultValue (if any), so the evaluator
// can fall back to it when no answer has yet been recorded. field may
// be nil if the referenced code does not name a known field block in
// scope; the pseudo-node is still synthesized, with no default.
func (f *Factory) Answer(field *ast.Node) *ast.Node {
	code := ""
	extra := ast.Properties{}
	if field != nil {
		code = field.Properties.String("code")
		extra["field"] = ast.NewNodeValue(field)
		if def, ok := field.Properties.Get("defaultValue"); ok {
			extra["default"] = def
		}
	}
	return f.synthesize(NamespaceAnswers, code, extra)
}

// Data returns the pseudo-node representing an external data-source
// lookup by key.
func (f *Factory) Data(key string) *ast.Node {
	return f.synthesize(NamespaceData, key, nil)
}

// Query returns the pseudo-node representing a URL query parameter.
func (f *Factory) Query(name string) *ast.Node {
	return f.synthesize(NamespaceQuery, name, nil)
}

// Params returns the pseudo-node representing a URL path parameter.
func (f *Factory) Params(name string) *ast.Node {
	return f.synthesize(NamespaceParams, name, nil)
}

// Count returns the number of distinct pseudo-nodes synthesized so
// far, across every namespace.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cache)
}

// Lookup returns the pseudo-node already synthesized for (ns, key)
// without creating one. Wire synthesizes every pseudo-node a compiled
// form will ever reference during compilation; eval-time REFERENCE
// resolution uses Lookup to reach that same node instead of
// re-deriving the value straight from the request's raw maps.
func (f *Factory) Lookup(ns Namespace, key string) (*ast.Node, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.cache[cacheKey(ns, key)]
	return node, ok
}

// ParseNamespace reports whether ns names one of the recognized
// pseudo-node namespaces, returning it typed when it does.
func ParseNamespace(ns string) (Namespace, bool) {
	n := Namespace(ns)
	_, ok := namespaceSubtype[n]
	return n, ok
}
