// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"testing"
)

func TestNewNoop_MethodsAreSafeWithNoExporter(t *testing.T) {
	p := NewNoop()
	ctx, span := p.StartSpan(context.Background(), "test.span")
	defer span.End()

	p.RecordInvocation(ctx, "Expression", "REFERENCE")
	p.RecordValidationFailure(ctx, "fullName")
	p.RecordCompileDuration(ctx, 12.5, "apply")

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}

func TestNew_StdoutExportersByDefault(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Shutdown(ctx)

	if p.nodeInvocations == nil {
		t.Error("nodeInvocations counter not initialized")
	}
	if p.validationFails == nil {
		t.Error("validationFails counter not initialized")
	}
	if p.compileDuration == nil {
		t.Error("compileDuration histogram not initialized")
	}

	// Recording should not panic against the live instruments.
	p.RecordInvocation(ctx, "Expression", "REFERENCE")
	p.RecordValidationFailure(ctx, "fullName")
	p.RecordCompileDuration(ctx, 1.0, "apply")
}

func TestNew_PrometheusOption(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, WithPrometheus())
	if err != nil {
		t.Fatalf("New(WithPrometheus()) error = %v", err)
	}
	defer p.Shutdown(ctx)
}
