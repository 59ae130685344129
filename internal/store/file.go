// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/healthchat/healthchat/internal/model"
	"github.com/healthchat/healthchat/internal/util"
)

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileBackend persists the collection as a single JSON document on disk.
//
// The document is read in full at startup and rewritten in full on every
// mutation. Timestamps serialize as RFC 3339 (time.Time's JSON form), so the
// file is readable and diffable by hand.
type FileBackend struct {
	// Path is the location of the chat document.
	// Default: ~/.healthchat/chats.json
	Path string
}

// NewFileBackend creates a file backend at the default location.
func NewFileBackend() (*FileBackend, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &FileBackend{
		Path: filepath.Join(homeDir, ".healthchat", "chats.json"),
	}, nil
}

// NewFileBackendWithPath creates a file backend at a custom location.
func NewFileBackendWithPath(path string) *FileBackend {
	return &FileBackend{Path: path}
}

// LoadDocument reads and parses the chat document.
// A missing file returns (nil, nil); a corrupt file returns an error and the
// store falls back to an empty collection.
func (b *FileBackend) LoadDocument() (*model.Collection, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chat document: %w", err)
	}

	var col model.Collection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("failed to parse chat document: %w", err)
	}
	return &col, nil
}

// SaveDocument serializes the collection and writes it atomically.
// The document carries whole conversations, 0600 keeps it owner-only.
func (b *FileBackend) SaveDocument(col *model.Collection) error {
	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chat document: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(b.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write chat document: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (b *FileBackend) Close() error {
	return nil
}
