// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast defines the typed AST the Node Factory lowers a
// polymorphic JSON form definition into: a tagged Kind/Subtype record
// with a closed-sum Properties bag, never a bare map[string]any beyond
// the factory boundary.
package ast

// Kind is the top-level tag of an AST node.
type Kind string

const (
	KindJourney    Kind = "Journey"
	KindStep       Kind = "Step"
	KindBlock      Kind = "Block"
	KindExpression Kind = "Expression"
	KindTransition Kind = "Transition"
)

// Expression subtypes (spec.md §3 table).
const (
	ExprReference   = "REFERENCE"
	ExprFormat      = "FORMAT"
	ExprPipeline    = "PIPELINE"
	ExprCollection  = "COLLECTION"
	ExprIterate     = "ITERATE"
	ExprValidation  = "VALIDATION"
	ExprNext        = "NEXT"
	ExprFunction    = "FUNCTION"
	ExprConditional = "CONDITIONAL"
	ExprTest        = "TEST"
	ExprAnd         = "AND"
	ExprOr          = "OR"
	ExprXor         = "XOR"
	ExprNot         = "NOT"
)

// FUNCTION expression function-kind subtypes.
const (
	FuncCondition   = "Condition"
	FuncTransformer = "Transformer"
	FuncEffect      = "Effect"
	FuncGenerator   = "Generator"
)

// ITERATE operators.
const (
	IterateMap    = "MAP"
	IterateFilter = "FILTER"
	IterateFind   = "FIND"
)

// Block subtypes.
const (
	BlockBasic = "basic"
	BlockField = "field"
)

// Transition subtypes.
const (
	TransitionLoad   = "LOAD"
	TransitionAccess = "ACCESS"
	TransitionAction = "ACTION"
	TransitionSubmit = "SUBMIT"
)

// Node is a tagged AST record produced by the Node Factory. It is
// immutable after construction and lives for the lifetime of the
// compiled form (compile-* categories) or the request (runtime-*
// categories, produced only by COLLECTION/ITERATE template
// instantiation at request time).
type Node struct {
	// ID is this node's stable identity, "<category>:<n>".
	ID string

	// Kind is the top-level tag.
	Kind Kind

	// Subtype further distinguishes Block/Expression/Transition nodes
	// (e.g. "field", "REFERENCE", "SUBMIT"). Empty for Journey/Step.
	Subtype string

	// Properties holds this node's payload: primitives, nested AST
	// nodes, or arrays of either. Never a bare map[string]any — see
	// Value.
	Properties Properties

	// Raw is a reference-equal back-pointer to the original JSON
	// definition object this node was lowered from, kept for
	// diagnostics. It is never cloned.
	Raw any
}

// Properties is the node payload bag: a mapping from property name to a
// closed-sum Value, per the "Properties bag (heterogeneous mapping)"
// redesign guidance — it never leaks a host's native map/slice directly
// to callers outside the factory/eval boundary.
type Properties map[string]Value

// Get returns the Value stored at key and whether it was present.
func (p Properties) Get(key string) (Value, bool) {
	v, ok := p[key]
	return v, ok
}

// String returns the string form of a primitive string property, or ""
// if absent or not a string.
func (p Properties) String(key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	prim, ok := v.(Primitive)
	if !ok {
		return ""
	}
	s, _ := prim.Raw.(string)
	return s
}

// Bool returns the bool form of a primitive bool property, defaulting
// to def if absent or not a bool.
func (p Properties) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	prim, ok := v.(Primitive)
	if !ok {
		return def
	}
	b, ok := prim.Raw.(bool)
	if !ok {
		return def
	}
	return b
}

// Node returns the *Node stored at key, or nil if absent or not a node.
func (p Properties) Node(key string) *Node {
	v, ok := p[key]
	if !ok {
		return nil
	}
	nv, ok := v.(NodeValue)
	if !ok {
		return nil
	}
	return nv.Node
}

// Array returns the ArrayValue elements stored at key, or nil if absent
// or not an array.
func (p Properties) Array(key string) []Value {
	v, ok := p[key]
	if !ok {
		return nil
	}
	av, ok := v.(ArrayValue)
	if !ok {
		return nil
	}
	return av.Items
}

// Value is the closed sum type of everything a Properties bag can hold:
// a Primitive, a nested AST Node, or an array of either.
type Value interface {
	isValue()
}

// Primitive wraps a JSON primitive (string, float64, bool, nil).
type Primitive struct {
	Raw any
}

func (Primitive) isValue() {}

// NodeValue wraps a nested AST node (another Journey/Step/Block/
// Expression/Transition, or a PseudoNode).
type NodeValue struct {
	Node *Node
}

func (NodeValue) isValue() {}

// ArrayValue wraps a pointwise-transformed JSON array.
type ArrayValue struct {
	Items []Value
}

func (ArrayValue) isValue() {}

// ObjectValue wraps a plain JSON object that is not itself a known node
// shape (e.g. an opaque component-param bag on a field block). Its
// fields are still recursively transformed, so nested arrays or node
// shapes inside it are lowered normally.
type ObjectValue struct {
	Fields map[string]Value
}

func (ObjectValue) isValue() {}

// NewPrimitive wraps a raw JSON primitive as a Value.
func NewPrimitive(v any) Value { return Primitive{Raw: v} }

// NewNodeValue wraps an AST node as a Value.
func NewNodeValue(n *Node) Value { return NodeValue{Node: n} }

// NewArrayValue wraps a slice of Values as a Value.
func NewArrayValue(items []Value) Value { return ArrayValue{Items: items} }

// NewObjectValue wraps a field map as a Value.
func NewObjectValue(fields map[string]Value) Value { return ObjectValue{Fields: fields} }

// RawJSON wraps an untransformed JSON fragment: used only for
// COLLECTION/ITERATE per-item templates and predicates, which spec.md
// §3 keeps as raw JSON rather than pre-built AST, to be instantiated
// fresh per item at request time.
type RawJSON struct {
	Raw any
}

func (RawJSON) isValue() {}

// NewRawJSON wraps an untransformed JSON fragment as a Value.
func NewRawJSON(v any) Value { return RawJSON{Raw: v} }

// Raw returns the untransformed JSON fragment stored at key, or nil if
// absent or not a RawJSON value.
func (p Properties) Raw(key string) any {
	v, ok := p[key]
	if !ok {
		return nil
	}
	rv, ok := v.(RawJSON)
	if !ok {
		return nil
	}
	return rv.Raw
}

// Object returns the ObjectValue fields stored at key, or nil if absent
// or not an object.
func (p Properties) Object(key string) map[string]Value {
	v, ok := p[key]
	if !ok {
		return nil
	}
	ov, ok := v.(ObjectValue)
	if !ok {
		return nil
	}
	return ov.Fields
}
