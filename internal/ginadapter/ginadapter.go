// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ginadapter is the concrete router.FrameworkAdapter
// implementation against Gin (github.com/gin-gonic/gin), grounded on
// services/trace/routes.go's nested *gin.RouterGroup registration style.
package ginadapter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/formengine/internal/errs"
	"github.com/AleutianAI/formengine/internal/eval"
	"github.com/AleutianAI/formengine/internal/router"
)

// Renderer is the host-supplied collaborator that turns a materialized
// RenderModel into an HTTP response (spec.md §6's out-of-scope "HTML
// rendering of individual components"; the core only calls through to
// it). A nil Renderer makes Adapter respond with the RenderModel as
// JSON, useful for API-only hosts and for cmd/formc's own smoke tests.
type Renderer interface {
	Render(c *gin.Context, model eval.RenderModel, req eval.StepRequest) error
}

// Adapter implements router.FrameworkAdapter against *gin.Engine and
// *gin.RouterGroup.
//
// Thread Safety: Adapter holds no mutable state beyond the Renderer
// reference set at construction; safe for concurrent use by Gin's own
// per-request goroutines.
type Adapter struct {
	renderer Renderer
}

// New returns a ginadapter.Adapter. renderer may be nil, in which case
// Render emits the RenderModel as JSON.
func New(renderer Renderer) *Adapter {
	return &Adapter{renderer: renderer}
}

var _ router.FrameworkAdapter = (*Adapter)(nil)

func (a *Adapter) CreateRouter() any {
	return gin.New()
}

func (a *Adapter) MountRouter(parent any, path string, child any) any {
	switch p := parent.(type) {
	case *gin.Engine:
		return p.Group(path)
	case *gin.RouterGroup:
		return p.Group(path)
	default:
		panic(fmt.Sprintf("ginadapter: MountRouter called with unsupported parent type %T", parent))
	}
}

func asRouterGroup(r any) gin.IRoutes {
	switch rr := r.(type) {
	case *gin.Engine:
		return rr
	case *gin.RouterGroup:
		return rr
	default:
		panic(fmt.Sprintf("ginadapter: unsupported router type %T", r))
	}
}

func (a *Adapter) Get(r any, path string, handler router.Handler) {
	asRouterGroup(r).GET(path, func(c *gin.Context) { handler(c) })
}

func (a *Adapter) Post(r any, path string, handler router.Handler) {
	asRouterGroup(r).POST(path, func(c *gin.Context) { handler(c) })
}

func (a *Adapter) ToStepRequest(nativeCtx any) (eval.StepRequest, error) {
	c := nativeCtx.(*gin.Context)

	post := make(map[string]any)
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err != nil {
			return eval.StepRequest{}, fmt.Errorf("ginadapter: parsing form: %w", err)
		}
		for k, v := range c.Request.PostForm {
			if len(v) == 1 {
				post[k] = v[0]
			} else {
				post[k] = v
			}
		}
	}

	query := make(map[string]any)
	for k, v := range c.Request.URL.Query() {
		if len(v) == 1 {
			query[k] = v[0]
		} else {
			query[k] = v
		}
	}

	params := make(map[string]string)
	for _, p := range c.Params {
		params[p.Key] = p.Value
	}

	state := map[string]any{"correlation_id": uuid.NewString()}
	if sess, ok := c.Get("state"); ok {
		if m, ok := sess.(map[string]any); ok {
			for k, v := range m {
				state[k] = v
			}
		}
	}

	var session any
	if s, ok := c.Get("session"); ok {
		session = s
	}

	return eval.StepRequest{
		Method:  c.Request.Method,
		Post:    post,
		Query:   query,
		Params:  params,
		URL:     c.Request.URL.String(),
		Session: session,
		State:   state,
	}, nil
}

func (a *Adapter) GetBaseURL(nativeCtx any) string {
	c := nativeCtx.(*gin.Context)
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (a *Adapter) Redirect(nativeCtx any, url string) {
	c := nativeCtx.(*gin.Context)
	c.Redirect(http.StatusFound, url)
}

func (a *Adapter) RegisterRedirect(r any, fromPath, toPath string) {
	asRouterGroup(r).GET(fromPath, func(c *gin.Context) {
		c.Redirect(http.StatusFound, toPath)
	})
}

func (a *Adapter) ForwardError(nativeCtx any, err error) {
	c := nativeCtx.(*gin.Context)
	status := http.StatusInternalServerError
	var accessErr *errs.AccessDeniedError
	if errors.As(err, &accessErr) {
		status = accessErr.Status
		if status == 0 {
			status = http.StatusForbidden
		}
	}
	c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (a *Adapter) Render(nativeCtx any, model eval.RenderModel, req eval.StepRequest) error {
	c := nativeCtx.(*gin.Context)
	if a.renderer != nil {
		return a.renderer.Render(c, model, req)
	}
	c.JSON(http.StatusOK, model)
	return nil
}
