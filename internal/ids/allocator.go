// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ids implements the per-category monotonic ID allocator
// described in the form engine's node-identity model: stable,
// process-wide-unique string IDs of the form "<category>:<n>".
package ids

import (
	"fmt"
	"sync"
)

// Category names the four node-identity namespaces. Counters are kept
// independently per category and never reused.
type Category string

const (
	CompileAST    Category = "compile-ast"
	CompilePseudo Category = "compile-pseudo"
	RuntimeAST    Category = "runtime-ast"
	RuntimePseudo Category = "runtime-pseudo"
)

// Allocator hands out stable, monotonically increasing IDs per category.
//
// # Description
//
// A main Allocator backs compile-time node creation. Overlay allocators
// (see NewOverlay) layer scratch counters on top of a main allocator for
// request-scoped runtime node creation; they can be discarded with the
// request or flushed back into the main allocator's counters.
//
// Thread Safety: Allocator is safe for concurrent use.
type Allocator struct {
	mu       sync.Mutex
	counters map[Category]int
	overlay  bool
}

// New returns a fresh main Allocator with all counters at zero.
func New() *Allocator {
	return &Allocator{counters: make(map[Category]int)}
}

// Next draws the next ID in category and returns its string form.
func (a *Allocator) Next(category Category) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[category]++
	return fmt.Sprintf("%s:%d", category, a.counters[category])
}

// GetCount returns the number of IDs emitted so far in category.
func (a *Allocator) GetCount(category Category) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[category]
}

// Reset zeroes the counter for category. If category is empty, all
// counters are reset.
func (a *Allocator) Reset(category Category) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if category == "" {
		a.counters = make(map[Category]int)
		return
	}
	delete(a.counters, category)
}

// Clone returns an independent copy of a with the same counter values.
//
// Cloning an overlay allocator is a programmer error: the host must
// clone the underlying main instance instead, so overlay semantics
// (flush-or-discard against a single main) stay well defined.
func (a *Allocator) Clone() (*Allocator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.overlay {
		return nil, fmt.Errorf("ids: cannot clone an overlay allocator; clone the underlying main allocator instead")
	}
	counters := make(map[Category]int, len(a.counters))
	for k, v := range a.counters {
		counters[k] = v
	}
	return &Allocator{counters: counters}, nil
}

// Overlay is a scratch allocator layered on a main Allocator. Next draws
// from the overlay's own counters (seeded from the main's counts at
// creation time), never mutating the main allocator until FlushIntoMain
// is called.
type Overlay struct {
	main  *Allocator
	scrap *Allocator
}

// NewOverlay creates an Overlay whose counters start where main's leave
// off, so IDs drawn from the overlay never collide with main's existing
// IDs and, if flushed, produce a contiguous run.
func NewOverlay(main *Allocator) *Overlay {
	main.mu.Lock()
	counters := make(map[Category]int, len(main.counters))
	for k, v := range main.counters {
		counters[k] = v
	}
	main.mu.Unlock()
	return &Overlay{
		main:  main,
		scrap: &Allocator{counters: counters, overlay: true},
	}
}

// Next draws the next ID from the overlay's scratch counters.
func (o *Overlay) Next(category Category) string {
	return o.scrap.Next(category)
}

// GetCount returns the overlay's current count for category.
func (o *Overlay) GetCount(category Category) int {
	return o.scrap.GetCount(category)
}

// FlushIntoMain copies the overlay's counters back into its main
// allocator. Counters never decrement: if the main allocator has since
// advanced past the overlay's starting point (e.g. a concurrent overlay
// flushed first), the higher of the two values wins per category so no
// ID is ever reused.
func (o *Overlay) FlushIntoMain() {
	o.scrap.mu.Lock()
	snapshot := make(map[Category]int, len(o.scrap.counters))
	for k, v := range o.scrap.counters {
		snapshot[k] = v
	}
	o.scrap.mu.Unlock()

	o.main.mu.Lock()
	defer o.main.mu.Unlock()
	for k, v := range snapshot {
		if v > o.main.counters[k] {
			o.main.counters[k] = v
		}
	}
}

// Discard abandons the overlay's counters without touching main. It
// exists for readability at call sites; an Overlay that is simply
// dropped has the same effect.
func (o *Overlay) Discard() {}
