// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/healthchat/healthchat/internal/ident"
	"github.com/healthchat/healthchat/internal/util"
)

// TitleMaxRunes is the hard length cap applied to derived chat titles.
const TitleMaxRunes = 50

// DefaultTitleFallback is used when the first user message carries only
// attachments and no text.
const DefaultTitleFallback = "Image chat"

// =============================================================================
// CHAT TYPE
// =============================================================================

// Chat holds a complete conversation with history and metadata.
type Chat struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages
	Messages []*Message `json:"messages"`
}

// NewChat creates a new empty chat with a generated ID.
func NewChat() *Chat {
	now := time.Now()
	return &Chat{
		ID:        ident.NewChatID(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message to the chat and bumps UpdatedAt.
func (c *Chat) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// GetLastMessage returns the most recent message, or nil if empty.
func (c *Chat) GetLastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// GetMessageByID returns a message by its ID, or nil if absent.
func (c *Chat) GetMessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// RemoveMessage removes a message by ID. Returns true if a message was removed.
func (c *Chat) RemoveMessage(id string) bool {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// AppendToMessage appends a streamed delta to the message with the given ID
// and bumps UpdatedAt. Returns false if the message does not exist.
func (c *Chat) AppendToMessage(id, delta string) bool {
	msg := c.GetMessageByID(id)
	if msg == nil {
		return false
	}
	msg.AppendContent(delta)
	c.UpdatedAt = time.Now()
	return true
}

// MessageCount returns the number of messages.
func (c *Chat) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Chat) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// DeriveTitle derives a chat title from the given first-message text.
// Whitespace is trimmed, an attachments-only message falls back to the
// default, and the result is capped at TitleMaxRunes runes.
func DeriveTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		trimmed = DefaultTitleFallback
	}
	return util.TruncateRunesNoEllipsis(trimmed, TitleMaxRunes)
}

// SetTitleFromFirstMessage derives and fixes the title from the first user
// turn. The title is set exactly once per chat; later calls are no-ops, so
// editing or re-sending never retitles an existing chat.
func (c *Chat) SetTitleFromFirstMessage(text string) {
	if c.Title != "" {
		return
	}
	c.Title = DeriveTitle(text)
}

// GetTitle returns the chat title or a default for untitled chats.
func (c *Chat) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New chat"
}

// =============================================================================
// METADATA
// =============================================================================

// ChatMeta holds lightweight metadata for listing chats.
type ChatMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
}

// Preview returns a short preview of the most recent message.
func (c *Chat) Preview() string {
	last := c.GetLastMessage()
	if last == nil {
		return "Empty chat"
	}
	return last.Preview(100)
}

// GetMeta returns metadata about the chat.
func (c *Chat) GetMeta() ChatMeta {
	return ChatMeta{
		ID:           c.ID,
		Title:        c.GetTitle(),
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Preview:      c.Preview(),
	}
}

// Clone creates a deep copy of the chat.
func (c *Chat) Clone() *Chat {
	clone := &Chat{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]*Message, len(c.Messages)),
	}

	for i, msg := range c.Messages {
		msgCopy := *msg
		if msg.Attachments != nil {
			msgCopy.Attachments = make([]Attachment, len(msg.Attachments))
			copy(msgCopy.Attachments, msg.Attachments)
		}
		clone.Messages[i] = &msgCopy
	}

	return clone
}
