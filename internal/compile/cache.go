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
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/formengine/internal/registry"
)

// BadgerDB key prefix for cached canonical definitions, mirroring
// graph/snapshot.go's keyPrefixSnap convention.
const keyPrefixDefinition = "formengine:def:"

// Cache is an optional BadgerDB-backed store of form definitions, keyed
// by SHA-256 of the canonical JSON definition (SPEC_FULL.md §10, grounded
// on router_cache.go's corpus-hash keying and graph/snapshot.go's
// gzip-compressed BadgerDB value encoding). It stores definitions, not
// compiled Artefacts: CompileCached runs a full Compile on every call,
// including across a process restart.
//
// Thread Safety: Cache is safe for concurrent use; BadgerDB serializes
// its own writes.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenCache opens (creating if absent) a BadgerDB store at dir.
func OpenCache(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("compile: opening cache at %s: %w", dir, err)
	}
	return &Cache{db: db, logger: logger}, nil
}

// Close releases the underlying BadgerDB handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// DefinitionHash returns the SHA-256 hex digest of definition's
// canonical (map-key-sorted) JSON encoding, the cache key Get/Put use.
func DefinitionHash(definition map[string]any) (string, error) {
	data, err := json.Marshal(definition)
	if err != nil {
		return "", fmt.Errorf("compile: marshaling definition for hashing: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// cachedRoot is the gzip-compressed-then-stored payload: just the raw
// JSON definition. Live *ast.Node pointers (which carry Raw
// back-pointers to the original map[string]any by reference) are not
// serialized, so a cache hit still decodes this JSON and runs Compile
// in full.
type cachedRoot struct {
	Definition map[string]any `json:"definition"`
}

// Put stores definition under its content hash.
func (c *Cache) Put(hash string, definition map[string]any) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(cachedRoot{Definition: definition}); err != nil {
		return fmt.Errorf("compile: encoding cache entry: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compile: closing gzip writer: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefixDefinition+hash), buf.Bytes())
	})
}

// Get retrieves the definition stored under hash, if present.
func (c *Cache) Get(hash string) (map[string]any, bool, error) {
	var definition map[string]any
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixDefinition + hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			gz, err := gzip.NewReader(bytes.NewReader(val))
			if err != nil {
				return err
			}
			defer gz.Close()
			data, err := io.ReadAll(gz)
			if err != nil {
				return err
			}
			var cached cachedRoot
			if err := json.Unmarshal(data, &cached); err != nil {
				return err
			}
			definition = cached.Definition
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("compile: reading cache entry %s: %w", hash, err)
	}
	return definition, true, nil
}

// CompileCached is Compile with a definition cache: the definition is
// always hashed; on a hit Compile runs on the previously-stored
// canonical definition instead of the caller's (guarding against a
// caller passing a JSON value that decodes identically but with, say,
// differing map key order in memory), and a miss stores the definition
// for next time. Compile runs in full either way, since the AST is
// never serialized. Returns the compiled Artefact and its content hash.
func CompileCached(cache *Cache, definition map[string]any, functions *registry.Functions, components *registry.Components, logger *slog.Logger) (*Artefact, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hash, err := DefinitionHash(definition)
	if err != nil {
		return nil, "", err
	}
	if cache != nil {
		if cached, ok, err := cache.Get(hash); err != nil {
			logger.Warn("cache read failed, recompiling", "error", err)
		} else if ok {
			definition = cached
		} else if err := cache.Put(hash, definition); err != nil {
			logger.Warn("cache write failed", "error", err)
		}
	}
	artefact, err := Compile(definition, functions, components, logger)
	if err != nil {
		return nil, hash, err
	}
	return artefact, hash, nil
}
