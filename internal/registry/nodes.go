// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry holds the side-tables the compiler and evaluator
// share: the node registry (ID -> *ast.Node), the metadata registry
// (parent links and dependency edges), and the function/component
// registries a host populates. All are append-only during compilation
// and frozen (read-only) at request time, per spec.md §5.
package registry

import (
	"sync"

	"github.com/AleutianAI/formengine/internal/ast"
)

// Nodes is the node registry: every AST and pseudo node ever created,
// keyed by ID. Compile-category nodes are added during compilation;
// runtime-category nodes are added during per-request COLLECTION/ITERATE
// template instantiation and are expected to be discarded (the registry
// itself is request-scoped in that case — see eval.Context).
type Nodes struct {
	mu   sync.RWMutex
	byID map[string]*ast.Node
}

// NewNodes returns an empty node registry.
func NewNodes() *Nodes {
	return &Nodes{byID: make(map[string]*ast.Node)}
}

// Add records n under n.ID. Re-adding the same ID overwrites (used when
// a runtime overlay re-derives a node that was provisionally registered
// during wiring).
func (n *Nodes) Add(node *ast.Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.byID[node.ID] = node
}

// Get looks up a node by ID.
func (n *Nodes) Get(id string) (*ast.Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	node, ok := n.byID[id]
	return node, ok
}

// Len returns the number of registered nodes.
func (n *Nodes) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.byID)
}

// All returns every registered node, in no particular order. Intended
// for diagnostics (e.g. cmd/formc inspect's tree browser), not the
// evaluation hot path.
func (n *Nodes) All() []*ast.Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*ast.Node, 0, len(n.byID))
	for _, v := range n.byID {
		out = append(out, v)
	}
	return out
}

// Child returns a registry sharing no state with n but pre-seeded with
// n's entries, used when a request needs a mutable runtime extension of
// an otherwise-frozen compile-time registry.
func (n *Nodes) Child() *Nodes {
	n.mu.RLock()
	defer n.mu.RUnlock()
	child := NewNodes()
	for k, v := range n.byID {
		child.byID[k] = v
	}
	return child
}
