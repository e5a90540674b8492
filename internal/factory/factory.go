// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package factory implements the Node Factory: it dispatches polymorphic
// JSON definition nodes to typed Structure/Logic/Expression/Transition
// sub-factories and recursively lowers nested values, per spec.md §4.2.
package factory

import (
	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
	"github.com/AleutianAI/formengine/internal/ids"
	"github.com/AleutianAI/formengine/internal/registry"
)

// IDSource is the subset of ids.Allocator / ids.Overlay the factory
// needs: drawing the next ID in a category. Both compile-time
// allocators and request-time overlays satisfy it, so the same factory
// code lowers both compile-ast and runtime-ast nodes.
type IDSource interface {
	Next(category ids.Category) string
}

// known node type tags, grouped by the sub-factory that owns them. Used
// both to classify and to enforce the deterministic routing order
// Structure -> Logic -> Expression -> Transition (spec.md §4.2): the
// first matching shape wins, and since these sets are disjoint by
// construction, the order only matters for readability/diagnostics, not
// for correctness of any one tag's destination.
var (
	structureTags = map[string]bool{"JOURNEY": true, "STEP": true, "BLOCK": true}
	logicTags     = map[string]bool{
		ast.ExprConditional: true, ast.ExprTest: true, ast.ExprNot: true,
		ast.ExprAnd: true, ast.ExprOr: true, ast.ExprXor: true,
	}
	expressionTags = map[string]bool{
		ast.ExprReference: true, ast.ExprFormat: true, ast.ExprPipeline: true,
		ast.ExprCollection: true, ast.ExprIterate: true, ast.ExprValidation: true,
		ast.ExprNext: true, ast.ExprFunction: true,
	}
	transitionTags = map[string]bool{
		ast.TransitionLoad: true, ast.TransitionAccess: true,
		ast.TransitionAction: true, ast.TransitionSubmit: true,
	}
)

// Factory lowers a polymorphic JSON definition tree into the typed AST,
// drawing identities from ids and recording parent links in meta as it
// goes.
//
// Thread Safety: Factory itself holds no mutable state beyond its ids
// source and metadata registry, both of which are already safe for
// concurrent use; a single Factory may be shared by concurrent
// compilations only if its IDSource and Metadata are (the compile-time
// path uses one Factory per compilation run, so this rarely matters in
// practice).
type Factory struct {
	ids      IDSource
	category ids.Category
	meta     *registry.Metadata
	nodes    *registry.Nodes
}

// New returns a Factory that allocates IDs in category from src and
// records structural parent links in meta, registering every created
// node in nodes.
func New(src IDSource, category ids.Category, meta *registry.Metadata, nodes *registry.Nodes) *Factory {
	return &Factory{ids: src, category: category, meta: meta, nodes: nodes}
}

// CreateNode lowers a single JSON definition node (a decoded
// map[string]any) into a typed AST node. json must be a non-null
// object; a "type" field selects which sub-factory handles it.
func (f *Factory) CreateNode(raw any) (*ast.Node, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		actual := "null"
		if raw != nil {
			actual = jsonTypeName(raw)
		}
		return nil, errs.InvalidNode("object", actual, raw)
	}

	tag, _ := obj["type"].(string)

	var (
		node *ast.Node
		err  error
	)
	switch {
	case structureTags[tag]:
		node, err = f.createStructure(tag, obj)
	case logicTags[tag]:
		node, err = f.createLogic(tag, obj)
	case expressionTags[tag]:
		node, err = f.createExpression(tag, obj)
	case transitionTags[tag]:
		node, err = f.createTransition(tag, obj)
	default:
		return nil, errs.UnknownNodeType(tag, raw)
	}
	if err != nil {
		return nil, err
	}

	node.Raw = raw
	f.nodes.Add(node)
	f.attachChildren(node)
	return node, nil
}

// attachChildren walks node's Properties and records a parent link for
// every directly embedded child AST node (structural children), per
// spec.md §4.2's "Side effects" clause.
func (f *Factory) attachChildren(node *ast.Node) {
	for _, v := range node.Properties {
		f.attachValue(node.ID, v)
	}
}

func (f *Factory) attachValue(parentID string, v ast.Value) {
	switch vv := v.(type) {
	case ast.NodeValue:
		if vv.Node != nil {
			f.meta.AttachToParent(vv.Node.ID, parentID)
		}
	case ast.ArrayValue:
		for _, item := range vv.Items {
			f.attachValue(parentID, item)
		}
	case ast.ObjectValue:
		for _, item := range vv.Fields {
			f.attachValue(parentID, item)
		}
	}
}

// nextID draws the next ID for this factory's category.
func (f *Factory) nextID() string {
	return f.ids.Next(f.category)
}

// transformValue is the recursive lowering helper shared by every
// sub-factory: it preserves primitives (including nil), maps arrays and
// plain objects pointwise, and detects known node shapes by delegating
// back to CreateNode.
func (f *Factory) transformValue(v any) (ast.Value, error) {
	switch vv := v.(type) {
	case nil:
		return ast.NewPrimitive(nil), nil
	case string, float64, bool:
		return ast.NewPrimitive(vv), nil
	case []any:
		items := make([]ast.Value, 0, len(vv))
		for _, item := range vv {
			tv, err := f.transformValue(item)
			if err != nil {
				return nil, err
			}
			items = append(items, tv)
		}
		return ast.NewArrayValue(items), nil
	case map[string]any:
		if tag, _ := vv["type"].(string); tag != "" && (structureTags[tag] || logicTags[tag] || expressionTags[tag] || transitionTags[tag]) {
			node, err := f.CreateNode(vv)
			if err != nil {
				return nil, err
			}
			return ast.NewNodeValue(node), nil
		}
		fields := make(map[string]ast.Value, len(vv))
		for k, item := range vv {
			tv, err := f.transformValue(item)
			if err != nil {
				return nil, err
			}
			fields[k] = tv
		}
		return ast.NewObjectValue(fields), nil
	default:
		// Any other concrete Go type reaching here (e.g. an already
		// decoded json.Number) is treated as an opaque primitive.
		return ast.NewPrimitive(vv), nil
	}
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
