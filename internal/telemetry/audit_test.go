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
	"testing"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

type fakeWriter struct {
	points []*write.Point
}

func (f *fakeWriter) WritePoint(point *write.Point) {
	f.points = append(f.points, point)
}

func TestAuditSink_RecordSubmitWritesAPoint(t *testing.T) {
	fw := &fakeWriter{}
	sink := &AuditSink{writer: fw, bucket: "forms", org: "acme"}

	sink.RecordSubmit("/apply/name", true, true, true, "advanced")

	if len(fw.points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(fw.points))
	}
	if fw.points[0].Name() != "form_submit" {
		t.Errorf("point name = %q, want form_submit", fw.points[0].Name())
	}
}
