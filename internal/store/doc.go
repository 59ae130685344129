// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides chat persistence for healthchat.
//
// The Store holds the entire chat collection in memory behind a mutex and
// writes through to a Backend on every mutation. Backends persist the
// collection as one document:
//
//   - FileBackend: a single JSON file, rewritten atomically on every save
//   - SQLiteBackend: the same document in a single-row SQLite table
//   - MemoryBackend: in-memory, for tests and ephemeral sessions
//
// Loading is fail-soft: missing or corrupt durable state yields an empty
// collection rather than an error. Persistence failures after mutations are
// logged and never surfaced to the conversation flow.
package store
