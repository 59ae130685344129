// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/healthchat/healthchat/internal/ident"
	"github.com/healthchat/healthchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// AttachmentKind classifies an attachment by how it is forwarded upstream.
type AttachmentKind string

const (
	// AttachmentImage is forwarded to the provider as an image_url part.
	AttachmentImage AttachmentKind = "image"

	// AttachmentFile is kept in the chat record but never forwarded.
	AttachmentFile AttachmentKind = "file"
)

// Attachment is an immutable file attached to a message. Content holds the
// complete payload as an inline data URI, so the persisted document stays
// self-contained with no companion blob store.
type Attachment struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Kind     AttachmentKind `json:"kind"`
	Content  string         `json:"content"`
	MimeType string         `json:"mime_type"`
}

// IsImage reports whether the attachment is forwarded to the provider.
func (a Attachment) IsImage() bool {
	return a.Kind == AttachmentImage
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat.
//
// Assistant messages are mutable only while a generation is streaming into
// them; everything else is append-only history.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        ident.NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message with optional attachments.
func NewUserMessage(content string, attachments []Attachment) *Message {
	msg := NewMessage(RoleUser, content)
	msg.Attachments = attachments
	return msg
}

// NewAssistantMessage creates an empty assistant message that acts as the
// placeholder deltas are appended into during streaming.
func NewAssistantMessage() *Message {
	return &Message{
		ID:        ident.NewMessageID(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendContent appends a streamed delta to the message content.
func (m *Message) AppendContent(delta string) {
	m.Content += delta
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// IsEmpty returns true if the message has no text and no attachments.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0
}

// HasImages reports whether any attachment is an image.
func (m *Message) HasImages() bool {
	for _, a := range m.Attachments {
		if a.IsImage() {
			return true
		}
	}
	return false
}
