// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secure locks POST-submitted values for field blocks marked
// properties.sensitive into a memguard.LockedBuffer for the life of a
// request, destroyed when the request context is released, so a
// sensitive answer never lingers in a plain Go string the GC may
// retain or that could end up in a crash dump (SPEC_FULL.md §10
// "Sensitive-field protection").
package secure

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// Vault holds one request's sensitive field values, each locked in its
// own buffer. A Vault is created per request and must be Released when
// the request's evaluation Context is torn down.
//
// Thread Safety: safe for concurrent use via sync.Mutex; a request's
// COLLECTION/ITERATE fan-out may touch sensitive fields from multiple
// goroutines.
type Vault struct {
	mu   sync.Mutex
	bufs map[string]*memguard.LockedBuffer
}

// NewVault returns an empty Vault.
func NewVault() *Vault {
	return &Vault{bufs: make(map[string]*memguard.LockedBuffer)}
}

// Lock copies value's bytes into a freshly allocated locked buffer
// keyed by fieldCode, destroying any buffer previously held for that
// field. value must be a string; non-string values are rejected since
// a locked buffer only makes sense over a byte sequence.
func (v *Vault) Lock(fieldCode string, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("secure: field %q sensitive value must be a string, got %T", fieldCode, value)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, ok := v.bufs[fieldCode]; ok {
		existing.Destroy()
	}
	buf := memguard.NewBufferFromBytes([]byte(s))
	v.bufs[fieldCode] = buf
	return nil
}

// Reveal returns the plaintext currently locked for fieldCode. The
// returned string is a copy; callers must not retain it beyond the
// immediate use (e.g. passing it to a registered Effect function).
func (v *Vault) Reveal(fieldCode string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	buf, ok := v.bufs[fieldCode]
	if !ok || buf.IsDestroyed() {
		return "", false
	}
	return string(buf.Bytes()), true
}

// Release destroys every locked buffer the Vault holds. Must be called
// when the owning request context is released; a Vault left unreleased
// leaks locked memory for the process's lifetime.
func (v *Vault) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for code, buf := range v.bufs {
		buf.Destroy()
		delete(v.bufs, code)
	}
}
