// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"log"
	"sync"

	"github.com/healthchat/healthchat/internal/model"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend persists the complete chat collection as a single document.
//
// The store rewrites the full document on every mutation, so a backend only
// needs two operations. LoadDocument returns (nil, nil) when no document has
// been written yet.
type Backend interface {
	LoadDocument() (*model.Collection, error)
	SaveDocument(col *model.Collection) error
	Close() error
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the chat collection in memory and writes through to a Backend
// on every mutation.
//
// All methods are safe for concurrent use. Mutations from an in-flight
// stream and reads from the UI go through the same mutex, so readers never
// observe a half-applied turn.
type Store struct {
	mu      sync.Mutex
	col     *model.Collection
	backend Backend
}

// NewStore creates a store over the given backend with an empty collection.
// Call Load to populate it from durable state.
func NewStore(backend Backend) *Store {
	return &Store{
		col:     model.NewCollection(),
		backend: backend,
	}
}

// Load populates the collection from the backend.
//
// Load is fail-soft: a missing or corrupt document yields an empty
// collection, never an error.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.backend.LoadDocument()
	if err != nil {
		log.Printf("store: failed to load chat document, starting empty: %v", err)
		s.col = model.NewCollection()
		return
	}
	if col == nil {
		s.col = model.NewCollection()
		return
	}

	// Drop a dangling selection rather than carrying it forward
	if col.CurrentID != "" && col.GetChat(col.CurrentID) == nil {
		col.CurrentID = ""
	}
	if col.Chats == nil {
		col.Chats = make([]*model.Chat, 0)
	}
	s.col = col
}

// Close releases the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

// persistLocked writes the collection through to the backend.
// Persistence is best-effort: failures are logged, never surfaced to the
// conversation flow. Callers must hold s.mu.
func (s *Store) persistLocked() {
	if err := s.backend.SaveDocument(s.col); err != nil {
		log.Printf("store: failed to persist chat document: %v", err)
	}
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// AddChat inserts a chat at the front of the collection, selects it, and
// persists.
func (s *Store) AddChat(c *model.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.col.AddChat(c)
	s.persistLocked()
}

// Select changes the current chat. Returns false if no chat has that ID.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.col.Select(id) {
		return false
	}
	s.persistLocked()
	return true
}

// DeleteChat removes a chat. If it was selected, the selection falls back to
// the first remaining chat. Returns false if no chat had that ID.
func (s *Store) DeleteChat(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.col.RemoveChat(id) {
		return false
	}
	s.persistLocked()
	return true
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AppendMessages atomically appends messages to a chat and persists once.
// The user turn and its assistant placeholder land together; no observer
// ever sees one without the other. Returns false if the chat is missing.
func (s *Store) AppendMessages(chatID string, msgs ...*model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.col.GetChat(chatID)
	if chat == nil {
		return false
	}
	for _, m := range msgs {
		chat.AddMessage(m)
	}
	s.persistLocked()
	return true
}

// AppendDelta concatenates a streamed delta onto a message and persists.
// Returns false if the chat or message is missing.
func (s *Store) AppendDelta(chatID, messageID, delta string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.col.GetChat(chatID)
	if chat == nil {
		return false
	}
	if !chat.AppendToMessage(messageID, delta) {
		return false
	}
	s.persistLocked()
	return true
}

// DeleteMessage removes a message from a chat and persists.
// Returns false if the chat or message is missing.
func (s *Store) DeleteMessage(chatID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.col.GetChat(chatID)
	if chat == nil {
		return false
	}
	if !chat.RemoveMessage(messageID) {
		return false
	}
	s.persistLocked()
	return true
}

// SetTitleFromFirstMessage derives a chat's title from its first user turn
// and persists. A chat that already has a title is left unchanged.
func (s *Store) SetTitleFromFirstMessage(chatID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.col.GetChat(chatID)
	if chat == nil || chat.Title != "" {
		return
	}
	chat.SetTitleFromFirstMessage(text)
	s.persistLocked()
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// CurrentID returns the ID of the selected chat, or "" when none.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col.CurrentID
}

// CurrentChat returns a deep copy of the selected chat, or nil when none.
func (s *Store) CurrentChat() *model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.col.Current()
	if cur == nil {
		return nil
	}
	return cur.Clone()
}

// GetChat returns a deep copy of the chat with the given ID, or nil.
func (s *Store) GetChat(id string) *model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.col.GetChat(id)
	if chat == nil {
		return nil
	}
	return chat.Clone()
}

// History returns the provider-facing history of a chat: deep copies of the
// messages in order. Returns nil if the chat is missing.
func (s *Store) History(chatID string) []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.col.GetChat(chatID)
	if chat == nil {
		return nil
	}
	return chat.Clone().Messages
}

// Metas returns listing metadata for all chats, collection order.
func (s *Store) Metas() []model.ChatMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col.Metas()
}

// Len returns the number of chats.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col.Len()
}
