// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSLoader reads a form definition object from Google Cloud Storage,
// for hosts that keep their definitions in a bucket rather than on
// local disk (SPEC_FULL.md §2.2 "Cloud definition source").
type GCSLoader struct {
	bucket string
	object string
}

// NewGCSLoader returns a GCSLoader reading gs://bucket/object.
func NewGCSLoader(bucket, object string) *GCSLoader {
	return &GCSLoader{bucket: bucket, object: object}
}

// Load fetches and JSON-decodes the object.
func (l *GCSLoader) Load(ctx context.Context) (map[string]any, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: creating GCS client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(l.bucket).Object(l.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: opening gs://%s/%s: %w", l.bucket, l.object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("source: reading gs://%s/%s: %w", l.bucket, l.object, err)
	}

	var def map[string]any
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("source: parsing gs://%s/%s: %w", l.bucket, l.object, err)
	}
	return def, nil
}
