// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router implements the Form Router and Step Controller
// (spec.md §4.8): it mounts nested routers per journey, registers a
// GET/POST per step, and drives the per-request access/action/submit
// lifecycle against a framework-agnostic adapter.
package router

import (
	"github.com/AleutianAI/formengine/internal/eval"
)

// Handler is a native request handler the adapter installs on its
// framework's router. nativeCtx is opaque to this package (a
// *gin.Context in internal/ginadapter) and is passed through unchanged
// to every adapter method called while servicing one request.
type Handler func(nativeCtx any)

// FrameworkAdapter is the host collaborator that lets the Form Router
// and Step Controller stay transport-agnostic (spec.md §6 "Framework
// adapter"). internal/ginadapter is the one concrete implementation in
// this module; a host may supply another for a different HTTP
// framework.
type FrameworkAdapter interface {
	// CreateRouter returns a new top-level native router.
	CreateRouter() any

	// MountRouter mounts a sub-router of parent at path and returns it.
	// If child is non-nil, parent mounts that existing native router
	// (a host-constructed sub-router); if nil, the adapter creates a
	// fresh one (Gin's single-step *gin.RouterGroup.Group(path) covers
	// both — Gin has no separate "create, then mount" step).
	MountRouter(parent any, path string, child any) any

	// Get registers a GET handler at path on router.
	Get(router any, path string, handler Handler)

	// Post registers a POST handler at path on router.
	Post(router any, path string, handler Handler)

	// ToStepRequest translates the native per-request context into the
	// host-agnostic StepRequest shape.
	ToStepRequest(nativeCtx any) (eval.StepRequest, error)

	// GetBaseURL returns the scheme+host the current native request
	// arrived on, for building absolute redirect targets.
	GetBaseURL(nativeCtx any) string

	// Redirect issues an HTTP redirect to url.
	Redirect(nativeCtx any, url string)

	// RegisterRedirect mounts a GET at fromPath on router that
	// redirects to toPath, used for a journey's root-entry redirect.
	RegisterRedirect(router any, fromPath, toPath string)

	// ForwardError hands err to the adapter's error-reporting path.
	ForwardError(nativeCtx any, err error)

	// Render hands the materialized render model off to the adapter's
	// template/component rendering pipeline.
	Render(nativeCtx any, model eval.RenderModel, req eval.StepRequest) error
}
