// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/healthchat/healthchat/internal/model"
)

// =============================================================================
// MEMORY BACKEND
// =============================================================================

// MemoryBackend keeps the document in memory. Used in tests and as the
// storage backend when persistence is disabled.
//
// Documents round-trip through JSON so tests exercise the same
// serialization path as the durable backends.
type MemoryBackend struct {
	mu   sync.Mutex
	doc  []byte
	fail error

	// SaveCount counts SaveDocument calls, for write-through assertions.
	SaveCount int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// FailWith makes subsequent saves and loads return err. Pass nil to heal.
func (b *MemoryBackend) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = err
}

// LoadDocument returns the last saved collection, or (nil, nil) if none.
func (b *MemoryBackend) LoadDocument() (*model.Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail != nil {
		return nil, b.fail
	}
	if b.doc == nil {
		return nil, nil
	}

	var col model.Collection
	if err := json.Unmarshal(b.doc, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// SaveDocument stores a serialized snapshot of the collection.
func (b *MemoryBackend) SaveDocument(col *model.Collection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail != nil {
		return b.fail
	}

	data, err := json.Marshal(col)
	if err != nil {
		return err
	}
	b.doc = data
	b.SaveCount++
	return nil
}

// Close is a no-op for the memory backend.
func (b *MemoryBackend) Close() error {
	return nil
}

// ErrBackendUnavailable is a generic failure for tests that simulate a
// broken backend.
var ErrBackendUnavailable = errors.New("backend unavailable")
