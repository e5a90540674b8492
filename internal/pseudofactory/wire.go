// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pseudofactory

import (
	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/registry"
)

// Wire walks the AST rooted at root, synthesizing a pseudo-node for
// every base-less REFERENCE expression whose path begins with a
// recognized namespace segment, and records a data-flow dependency
// edge from the pseudo-node to the referencing expression in the
// metadata registry (spec.md §2 "Dependency Graph & Wiring").
//
// fieldsByCode supplies the field blocks in scope for ANSWER
// references, keyed by field code; callers typically pass the
// enclosing step's own field blocks.
func (f *Factory) Wire(root *ast.Node, fieldsByCode map[string]*ast.Node) {
	f.wireNode(root, fieldsByCode)
}

func (f *Factory) wireNode(node *ast.Node, fieldsByCode map[string]*ast.Node) {
	if node == nil {
		return
	}
	if node.Kind == ast.KindExpression && node.Subtype == ast.ExprReference {
		f.wireReference(node, fieldsByCode)
	}
	for _, v := range node.Properties {
		f.wireValue(v, fieldsByCode)
	}
}

func (f *Factory) wireValue(v ast.Value, fieldsByCode map[string]*ast.Node) {
	switch vv := v.(type) {
	case ast.NodeValue:
		f.wireNode(vv.Node, fieldsByCode)
	case ast.ArrayValue:
		for _, item := range vv.Items {
			f.wireValue(item, fieldsByCode)
		}
	case ast.ObjectValue:
		for _, item := range vv.Fields {
			f.wireValue(item, fieldsByCode)
		}
	}
}

// wireReference inspects a single REFERENCE node's path. A reference
// built with a base expression resolves relative to an already-wired
// value, not a namespace, and is skipped; the base expression itself
// is still wired via the normal property walk in wireNode.
func (f *Factory) wireReference(ref *ast.Node, fieldsByCode map[string]*ast.Node) {
	if _, hasBase := ref.Properties.Get("base"); hasBase {
		return
	}

	segments := ref.Properties.Array("path")
	if len(segments) == 0 {
		return
	}
	head, ok := segments[0].(ast.Primitive)
	if !ok {
		return
	}
	ns, ok := head.Raw.(string)
	if !ok {
		return
	}

	var key string
	if len(segments) > 1 {
		if p, ok := segments[1].(ast.Primitive); ok {
			key, _ = p.Raw.(string)
		}
	}

	var pseudo *ast.Node
	switch Namespace(ns) {
	case NamespacePost:
		pseudo = f.Post(key)
	case NamespaceAnswers:
		pseudo = f.Answer(fieldsByCode[key])
	case NamespaceData:
		pseudo = f.Data(key)
	case NamespaceQuery:
		pseudo = f.Query(key)
	case NamespaceParams:
		pseudo = f.Params(key)
	default:
		return
	}

	f.meta.AddEdge(registry.Edge{From: pseudo.ID, To: ref.ID, Role: "data-source"})
}
