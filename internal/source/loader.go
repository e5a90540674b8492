// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source loads a JSON form definition from disk (or, via
// gcsloader.go, Google Cloud Storage) and optionally watches it for
// changes, recompiling and atomically swapping the Compilation
// Artefact a Form Router resolves steps from (SPEC_FULL.md §10
// "Hot-reload watcher"), grounded on graph/trace_config.go's
// os.ReadFile + os.IsNotExist-tolerant loading idiom and
// services/trace/graph/snapshot.go's atomic-swap pointer pattern.
package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Loader reads a form definition file from disk.
type Loader struct {
	path string
}

// NewLoader returns a Loader reading path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and JSON-decodes the definition file.
func (l *Loader) Load() (map[string]any, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", l.path, err)
	}
	var def map[string]any
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("source: parsing %s: %w", l.path, err)
	}
	return def, nil
}

// RecompileFunc compiles a freshly loaded definition into whatever the
// caller's Watcher.Current should hold (typically *compile.Artefact,
// passed as `any` here so this package stays independent of
// internal/compile).
type RecompileFunc func(definition map[string]any) (any, error)

// Watcher holds the Current compiled value for a definition file and
// swaps it atomically whenever the file changes on disk. In-flight
// requests holding a reference to the old value (read via Current
// before a swap) keep using it uninterrupted; the old value is simply
// dropped once its last reference goes away, per SPEC_FULL.md §10.
//
// Thread Safety: Current is safe for concurrent reads and is updated
// atomically; Close stops the underlying fsnotify watch.
type Watcher struct {
	loader    *Loader
	recompile RecompileFunc
	logger    *slog.Logger

	current atomic.Value // any

	fsw     *fsnotify.Watcher
	closeMu sync.Mutex
	closed  bool
}

// NewWatcher loads path once synchronously, compiles it via recompile,
// and starts watching the file for subsequent changes.
func NewWatcher(path string, recompile RecompileFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := NewLoader(path)
	def, err := l.Load()
	if err != nil {
		return nil, err
	}
	compiled, err := recompile(def)
	if err != nil {
		return nil, fmt.Errorf("source: initial compile of %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("source: creating fsnotify watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("source: watching %s: %w", path, err)
	}

	w := &Watcher{loader: l, recompile: recompile, logger: logger, fsw: fsw}
	w.current.Store(compiled)

	go w.run()
	return w, nil
}

// Current returns the most recently compiled value.
func (w *Watcher) Current() any {
	return w.current.Load()
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("definition watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	def, err := w.loader.Load()
	if err != nil {
		w.logger.Warn("definition reload: read failed, keeping prior artefact", "path", w.loader.path, "error", err)
		return
	}
	compiled, err := w.recompile(def)
	if err != nil {
		w.logger.Warn("definition reload: compile failed, keeping prior artefact", "path", w.loader.path, "error", err)
		return
	}
	w.current.Store(compiled)
	w.logger.Info("definition reloaded", "path", w.loader.path)
}

// Close stops the filesystem watch. Idempotent.
func (w *Watcher) Close() error {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
