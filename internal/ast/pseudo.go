// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

// KindPseudo tags a virtual runtime data-source node synthesized during
// wiring (never present in the JSON definition). Pseudo-nodes share the
// Node registry with ordinary AST nodes so the evaluator can resolve
// either kind by ID uniformly; Subtype carries which pseudo-source it
// is.
const KindPseudo Kind = "Pseudo"

// Pseudo-node subtypes.
const (
	PseudoPost   = "POST"
	PseudoAnswer = "ANSWER"
	PseudoData   = "DATA"
	PseudoQuery  = "QUERY"
	PseudoParams = "PARAMS"
)

// NewPseudoNode constructs a pseudo-node with the given ID, subtype, and
// metadata properties (e.g. the POST field name, the ANSWER's default
// field node, the DATA key).
func NewPseudoNode(id, subtype string, props Properties) *Node {
	if props == nil {
		props = Properties{}
	}
	return &Node{ID: id, Kind: KindPseudo, Subtype: subtype, Properties: props}
}
