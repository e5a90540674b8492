// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compile ties the Node Factory, Pseudo-Node Factory, and
// shared registries into the Compilation Artefact spec.md §2/§4
// describes: a bundle of the node registry, metadata registry, and
// per-step entry points a Form Router mounts steps from.
package compile

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
	"github.com/AleutianAI/formengine/internal/factory"
	"github.com/AleutianAI/formengine/internal/ids"
	"github.com/AleutianAI/formengine/internal/pseudofactory"
	"github.com/AleutianAI/formengine/internal/registry"
)

// Step is one compiled step entry point: the step's own AST node and
// its immediate enclosing journey, from which AncestorJourneys derives
// the outer-to-inner journey chain used for ACCESS ordering.
type Step struct {
	Node    *ast.Node
	Journey *Journey // the immediate enclosing journey, for ancestor-chain walks
}

// Journey is one compiled top-level or nested journey: its own node,
// parent (nil for a root journey), and child journeys/steps lowered
// from its "children"/"steps" properties.
type Journey struct {
	Node     *ast.Node
	Parent   *Journey
	Children []*Journey
	Steps    []*Step
}

// Artefact bundles everything a Form Router needs to mount a compiled
// form: the node registry, metadata registry, function/component
// registries, and the journey tree steps are resolved from.
//
// Thread Safety: frozen and read-only once Compile returns; safe for
// concurrent use by many simultaneous requests (spec.md §5 "Shared
// resources").
type Artefact struct {
	Nodes      *registry.Nodes
	Meta       *registry.Metadata
	Functions  *registry.Functions
	Components *registry.Components
	Allocator  *ids.Allocator
	Pseudo     *pseudofactory.Factory

	Root *Journey
}

// Compile lowers a single top-level JSON journey definition into a
// Compilation Artefact: it runs the Node Factory over the definition,
// then wires pseudo-nodes for every base-less REFERENCE found, scoping
// ANSWER references to each step's own field blocks as they're
// discovered (spec.md §2 "Data flow, compile time").
func Compile(definition map[string]any, functions *registry.Functions, components *registry.Components, logger *slog.Logger) (*Artefact, error) {
	if logger == nil {
		logger = slog.Default()
	}
	alloc := ids.New()
	nodes := registry.NewNodes()
	meta := registry.NewMetadata()
	fac := factory.New(alloc, ids.CompileAST, meta, nodes)
	pseudo := pseudofactory.New(alloc, ids.CompilePseudo, meta, nodes)

	root, err := fac.CreateNode(definition)
	if err != nil {
		return nil, fmt.Errorf("compile: lowering root journey: %w", err)
	}
	if root.Kind != ast.KindJourney {
		return nil, errs.InvalidNode("journey", string(root.Kind), definition)
	}

	journey := buildJourneyTree(root, nil, pseudo)

	logger.Info("form compiled",
		"nodes", nodes.Len(),
		"pseudo_nodes", pseudo.Count(),
		"steps", CountSteps(journey),
	)

	return &Artefact{
		Nodes:      nodes,
		Meta:       meta,
		Functions:  functions,
		Components: components,
		Allocator:  alloc,
		Pseudo:     pseudo,
		Root:       journey,
	}, nil
}

// buildJourneyTree recursively walks a compiled Journey node's "steps"
// and "children" properties, wiring pseudo-nodes for every step as it
// goes (each step's own field blocks are its ANSWER-reference scope).
func buildJourneyTree(node *ast.Node, parent *Journey, pseudo *pseudofactory.Factory) *Journey {
	j := &Journey{Node: node, Parent: parent}

	for _, v := range node.Properties.Array("steps") {
		nv, ok := v.(ast.NodeValue)
		if !ok || nv.Node == nil {
			continue
		}
		step := &Step{Node: nv.Node, Journey: j}
		pseudo.Wire(nv.Node, FieldBlocksByCode(nv.Node))
		j.Steps = append(j.Steps, step)
	}

	for _, v := range node.Properties.Array("children") {
		nv, ok := v.(ast.NodeValue)
		if !ok || nv.Node == nil {
			continue
		}
		child := buildJourneyTree(nv.Node, j, pseudo)
		j.Children = append(j.Children, child)
	}

	return j
}

// FieldBlocksByCode collects every field block reachable from step,
// keyed by its code, for use as the ANSWER-reference resolution scope
// (also used by internal/secure to locate which submitted POST values
// must be locked for a sensitive-marked field).
func FieldBlocksByCode(step *ast.Node) map[string]*ast.Node {
	out := make(map[string]*ast.Node)
	collectFieldBlocks(step, out)
	return out
}

func collectFieldBlocks(node *ast.Node, out map[string]*ast.Node) {
	if node == nil {
		return
	}
	if node.Kind == ast.KindBlock && node.Subtype == ast.BlockField {
		out[node.Properties.String("code")] = node
	}
	for _, v := range node.Properties {
		collectFieldBlocksValue(v, out)
	}
}

func collectFieldBlocksValue(v ast.Value, out map[string]*ast.Node) {
	switch vv := v.(type) {
	case ast.NodeValue:
		collectFieldBlocks(vv.Node, out)
	case ast.ArrayValue:
		for _, item := range vv.Items {
			collectFieldBlocksValue(item, out)
		}
	case ast.ObjectValue:
		for _, item := range vv.Fields {
			collectFieldBlocksValue(item, out)
		}
	}
}

// CountSteps returns the total number of steps in the journey tree
// rooted at j, including nested sub-journeys.
func CountSteps(j *Journey) int {
	n := len(j.Steps)
	for _, c := range j.Children {
		n += CountSteps(c)
	}
	return n
}

// AncestorJourneys returns the nodes of j and of its ancestor Journeys,
// outer to inner; callers pass a step's parent Journey as j.
func AncestorJourneys(j *Journey) []*ast.Node {
	var chain []*ast.Node
	var walk func(*Journey)
	walk = func(cur *Journey) {
		if cur == nil {
			return
		}
		walk(cur.Parent)
		chain = append(chain, cur.Node)
	}
	walk(j)
	return chain
}

// Walk visits every Journey in the tree rooted at j, depth-first.
func Walk(j *Journey, fn func(*Journey)) {
	if j == nil {
		return
	}
	fn(j)
	for _, c := range j.Children {
		Walk(c, fn)
	}
}
