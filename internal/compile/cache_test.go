// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"log/slog"
	"testing"

	"github.com/AleutianAI/formengine/internal/registry"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	def := sampleDefinition()
	hash, err := DefinitionHash(def)
	if err != nil {
		t.Fatalf("DefinitionHash() error = %v", err)
	}
	if err := cache.Put(hash, def); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok, err := cache.Get(hash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got["code"] != def["code"] {
		t.Errorf("Get() code = %v, want %v", got["code"], def["code"])
	}
}

func TestCache_GetMissReturnsNotOK(t *testing.T) {
	cache := newTestCache(t)
	_, ok, err := cache.Get("no-such-hash")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true for missing key, want false")
	}
}

func TestDefinitionHash_StableForEqualInput(t *testing.T) {
	def := sampleDefinition()
	h1, err := DefinitionHash(def)
	if err != nil {
		t.Fatalf("DefinitionHash() error = %v", err)
	}
	h2, err := DefinitionHash(sampleDefinition())
	if err != nil {
		t.Fatalf("DefinitionHash() error = %v", err)
	}
	if h1 != h2 {
		t.Errorf("DefinitionHash() not stable: %q != %q", h1, h2)
	}
}

func TestCompileCached_CompilesOnMiss(t *testing.T) {
	cache := newTestCache(t)
	def := sampleDefinition()
	artefact, hash, err := CompileCached(cache, def, registry.NewFunctions(), registry.NewComponents(), slog.Default())
	if err != nil {
		t.Fatalf("CompileCached() error = %v", err)
	}
	if artefact == nil {
		t.Fatal("artefact = nil")
	}
	if hash == "" {
		t.Error("hash is empty")
	}
	if _, ok, _ := cache.Get(hash); !ok {
		t.Error("CompileCached() did not populate the cache on a miss")
	}
}

func TestCompileCached_NilCacheStillCompiles(t *testing.T) {
	def := sampleDefinition()
	artefact, _, err := CompileCached(nil, def, registry.NewFunctions(), registry.NewComponents(), slog.Default())
	if err != nil {
		t.Fatalf("CompileCached() error = %v", err)
	}
	if artefact == nil {
		t.Fatal("artefact = nil")
	}
}
