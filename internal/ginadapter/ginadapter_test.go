// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ginadapter

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/formengine/internal/errs"
	"github.com/AleutianAI/formengine/internal/eval"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestToStepRequest_ParsesPostFormAndQuery(t *testing.T) {
	a := New(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body := strings.NewReader(url.Values{"fullName": {"Ada Lovelace"}}.Encode())
	req := httptest.NewRequest(http.MethodPost, "/apply/name?ref=abc", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req

	sr, err := a.ToStepRequest(c)
	if err != nil {
		t.Fatalf("ToStepRequest() error = %v", err)
	}
	if sr.Post["fullName"] != "Ada Lovelace" {
		t.Errorf("Post[fullName] = %v, want Ada Lovelace", sr.Post["fullName"])
	}
	if sr.Query["ref"] != "abc" {
		t.Errorf("Query[ref] = %v, want abc", sr.Query["ref"])
	}
	if sr.Method != http.MethodPost {
		t.Errorf("Method = %q, want POST", sr.Method)
	}
	if sr.State["correlation_id"] == "" {
		t.Error("State[correlation_id] is empty, want a generated UUID")
	}
}

func TestToStepRequest_GetHasNoPostValues(t *testing.T) {
	a := New(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/apply/name", nil)

	sr, err := a.ToStepRequest(c)
	if err != nil {
		t.Fatalf("ToStepRequest() error = %v", err)
	}
	if len(sr.Post) != 0 {
		t.Errorf("Post = %v, want empty on GET", sr.Post)
	}
}

func TestForwardError_AccessDeniedUsesItsStatus(t *testing.T) {
	a := New(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/apply/name", nil)

	a.ForwardError(c, errs.AccessDenied("step:1", http.StatusForbidden))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestForwardError_GenericErrorIs500(t *testing.T) {
	a := New(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/apply/name", nil)

	a.ForwardError(c, errAny("boom"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

type errAny string

func (e errAny) Error() string { return string(e) }

func TestRender_NilRendererEmitsJSON(t *testing.T) {
	a := New(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/apply/name", nil)

	if err := a.Render(c, eval.RenderModel{}, eval.StepRequest{}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
