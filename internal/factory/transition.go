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

// createTransition lowers LOAD, ACCESS, ACTION, and SUBMIT lifecycle
// transitions (spec.md §4.6).
func (f *Factory) createTransition(tag string, obj map[string]any) (*ast.Node, error) {
	switch tag {
	case ast.TransitionLoad:
		return f.createLoad(obj)
	case ast.TransitionAccess:
		return f.createAccess(obj)
	case ast.TransitionAction:
		return f.createAction(obj)
	case ast.TransitionSubmit:
		return f.createSubmit(obj)
	default:
		return nil, errs.UnknownNodeType(tag, obj)
	}
}

func (f *Factory) createLoad(obj map[string]any) (*ast.Node, error) {
	props := ast.Properties{}
	if effects, ok := obj["effects"]; ok {
		tv, err := f.transformValue(effects)
		if err != nil {
			return nil, err
		}
		props["effects"] = tv
	} else {
		props["effects"] = ast.NewArrayValue(nil)
	}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindTransition, Subtype: ast.TransitionLoad, Properties: props}, nil
}

func (f *Factory) createAccess(obj map[string]any) (*ast.Node, error) {
	props := ast.Properties{}
	if guards, ok := obj["guards"]; ok {
		tv, err := f.transformValue(guards)
		if err != nil {
			return nil, err
		}
		props["guards"] = tv
	}
	if effects, ok := obj["effects"]; ok {
		tv, err := f.transformValue(effects)
		if err != nil {
			return nil, err
		}
		props["effects"] = tv
	}
	if redirect, ok := obj["redirect"]; ok {
		tv, err := f.transformValue(redirect)
		if err != nil {
			return nil, err
		}
		props["redirect"] = tv
	}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindTransition, Subtype: ast.TransitionAccess, Properties: props}, nil
}

func (f *Factory) createAction(obj map[string]any) (*ast.Node, error) {
	whenRaw, ok := obj["when"]
	if !ok {
		return nil, errs.InvalidNode("when", "missing", obj)
	}
	when, err := f.transformValue(whenRaw)
	if err != nil {
		return nil, err
	}
	props := ast.Properties{"when": when}
	if effects, ok := obj["effects"]; ok {
		tv, err := f.transformValue(effects)
		if err != nil {
			return nil, err
		}
		props["effects"] = tv
	} else {
		props["effects"] = ast.NewArrayValue(nil)
	}
	return &ast.Node{ID: f.nextID(), Kind: ast.KindTransition, Subtype: ast.TransitionAction, Properties: props}, nil
}

func (f *Factory) createSubmit(obj map[string]any) (*ast.Node, error) {
	validate := false
	if v, ok := obj["validate"].(bool); ok {
		validate = v
	}

	props := ast.Properties{"validate": ast.NewPrimitive(validate)}

	if whenRaw, ok := obj["when"]; ok {
		when, err := f.transformValue(whenRaw)
		if err != nil {
			return nil, err
		}
		props["when"] = when
	}
	if guardsRaw, ok := obj["guards"]; ok {
		guards, err := f.transformValue(guardsRaw)
		if err != nil {
			return nil, err
		}
		props["guards"] = guards
	}

	for _, branch := range []string{"onAlways", "onValid", "onInvalid"} {
		v, ok := obj[branch]
		if !ok {
			continue
		}
		tv, err := f.transformValue(v)
		if err != nil {
			return nil, err
		}
		props[branch] = tv
	}

	return &ast.Node{ID: f.nextID(), Kind: ast.KindTransition, Subtype: ast.TransitionSubmit, Properties: props}, nil
}
