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
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// AuditSink emits one line-protocol point per SUBMIT outcome, for hosts
// that want form-completion analytics without standing up their own
// collector (SPEC_FULL.md §10 "Audit sink").
//
// Thread Safety: safe for concurrent use; the underlying client's
// non-blocking write API serializes points onto an internal batching
// channel.
type AuditSink struct {
	client influxdb2.Client
	writer interface {
		WritePoint(point *write.Point)
	}
	bucket string
	org    string
}

// NewAuditSink connects to an InfluxDB instance at url using token, and
// returns a sink that writes to bucket under org.
func NewAuditSink(url, token, bucket, org string) (*AuditSink, error) {
	client := influxdb2.NewClient(url, token)
	ok, err := client.Ping(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("telemetry: pinging InfluxDB at %s: %w", url, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("telemetry: InfluxDB at %s did not respond to ping", url)
	}
	return &AuditSink{
		client: client,
		writer: client.WriteAPI(org, bucket),
		bucket: bucket,
		org:    org,
	}, nil
}

// Close flushes any buffered points and releases the client.
func (s *AuditSink) Close() {
	s.client.Close()
}

// RecordSubmit emits one point for a SUBMIT transition's outcome.
func (s *AuditSink) RecordSubmit(stepPath string, executed, validated, isValid bool, outcome string) {
	p := influxdb2.NewPoint(
		"form_submit",
		map[string]string{"step_path": stepPath, "outcome": outcome},
		map[string]any{
			"executed":  executed,
			"validated": validated,
			"is_valid":  isValid,
		},
	)
	s.writer.WritePoint(p)
}
