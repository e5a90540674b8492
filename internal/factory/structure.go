// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package factory

import (
	"github.com/AleutianAI/formengine/internal/ast"
	"github.com/AleutianAI/formengine/internal/errs"
)

// createStructure lowers Journey, Step, and Block definitions
// (spec.md §4.3).
func (f *Factory) createStructure(tag string, obj map[string]any) (*ast.Node, error) {
	switch tag {
	case "JOURNEY":
		return f.createJourney(obj)
	case "STEP":
		return f.createStep(obj)
	case "BLOCK":
		return f.createBlock(obj)
	default:
		return nil, errs.UnknownNodeType(tag, obj)
	}
}

func (f *Factory) createJourney(obj map[string]any) (*ast.Node, error) {
	code, _ := obj["code"].(string)
	path, _ := obj["path"].(string)
	title, _ := obj["title"].(string)
	if code == "" || path == "" || title == "" {
		return nil, errs.InvalidNode("code, path, and title", "journey missing one or more of them", obj)
	}

	props := ast.Properties{
		"code":  ast.NewPrimitive(code),
		"path":  ast.NewPrimitive(path),
		"title": ast.NewPrimitive(title),
	}

	if v, ok := obj["entryPath"]; ok {
		tv, err := f.transformValue(v)
		if err != nil {
			return nil, err
		}
		props["entryPath"] = tv
	}
	for _, key := range []string{"steps", "children", "view", "onLoad", "onAccess"} {
		if v, ok := obj[key]; ok {
			tv, err := f.transformValue(v)
			if err != nil {
				return nil, err
			}
			props[key] = tv
		}
	}

	return &ast.Node{ID: f.nextID(), Kind: ast.KindJourney, Properties: props}, nil
}

func (f *Factory) createStep(obj map[string]any) (*ast.Node, error) {
	path, _ := obj["path"].(string)
	title, _ := obj["title"].(string)
	if path == "" || title == "" {
		return nil, errs.InvalidNode("path and title", "step missing one or both", obj)
	}

	props := ast.Properties{
		"path":  ast.NewPrimitive(path),
		"title": ast.NewPrimitive(title),
	}
	if v, ok := obj["isEntryPoint"].(bool); ok {
		props["isEntryPoint"] = ast.NewPrimitive(v)
	}

	for _, key := range []string{"blocks", "onLoad", "onAccess", "onAction", "onSubmission"} {
		if v, ok := obj[key]; ok {
			tv, err := f.transformValue(v)
			if err != nil {
				return nil, err
			}
			props[key] = tv
		}
	}

	return &ast.Node{ID: f.nextID(), Kind: ast.KindStep, Properties: props}, nil
}

func (f *Factory) createBlock(obj map[string]any) (*ast.Node, error) {
	variant, _ := obj["variant"].(string)
	code, hasCode := obj["code"].(string)

	blockType := ast.BlockBasic
	if hasCode && code != "" {
		blockType = ast.BlockField
	}

	props := ast.Properties{
		"variant": ast.NewPrimitive(variant),
	}

	if blockType == ast.BlockField {
		props["code"] = ast.NewPrimitive(code)
		for _, key := range []string{"defaultValue", "formatters", "hidden", "validate", "dependent", "sanitize", "value", "metadata"} {
			if v, ok := obj[key]; ok {
				tv, err := f.transformValue(v)
				if err != nil {
					return nil, err
				}
				props[key] = tv
			}
		}
	}

	// Every other key (beyond the known structural slots, "type", and
	// "variant") is lifted as an opaque component parameter, per
	// spec.md §4.3.
	known := knownBlockKeys(blockType)
	params := make(map[string]ast.Value)
	for k, v := range obj {
		if known[k] {
			continue
		}
		tv, err := f.transformValue(v)
		if err != nil {
			return nil, err
		}
		params[k] = tv
	}
	if len(params) > 0 {
		props["params"] = ast.NewObjectValue(params)
	}

	node := &ast.Node{ID: f.nextID(), Kind: ast.KindBlock, Subtype: blockType, Properties: props}
	return node, nil
}

func knownBlockKeys(blockType string) map[string]bool {
	known := map[string]bool{"type": true, "variant": true}
	if blockType == ast.BlockField {
		for _, k := range []string{"code", "defaultValue", "formatters", "hidden", "validate", "dependent", "sanitize", "value", "metadata"} {
			known[k] = true
		}
	}
	return known
}
