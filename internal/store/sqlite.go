// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/healthchat/healthchat/internal/model"
)

// =============================================================================
// SQLITE BACKEND
// =============================================================================

// SQLiteBackend persists the collection inside a SQLite database file.
//
// It keeps the same contract as FileBackend: one document, rewritten in full
// on every save. The document lives in a single row; SQLite contributes
// transactional writes and a file format that tolerates concurrent readers.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at the given path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// initSchema creates the document table if it doesn't exist.
func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_document (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// LoadDocument reads and parses the stored document.
// An empty database returns (nil, nil).
func (b *SQLiteBackend) LoadDocument() (*model.Collection, error) {
	var payload string
	err := b.db.QueryRow(`SELECT payload FROM chat_document WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chat document: %w", err)
	}

	var col model.Collection
	if err := json.Unmarshal([]byte(payload), &col); err != nil {
		return nil, fmt.Errorf("failed to parse chat document: %w", err)
	}
	return &col, nil
}

// SaveDocument serializes the collection and upserts the single document row.
func (b *SQLiteBackend) SaveDocument(col *model.Collection) error {
	data, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("failed to marshal chat document: %w", err)
	}

	_, err = b.db.Exec(`
		INSERT INTO chat_document (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write chat document: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
