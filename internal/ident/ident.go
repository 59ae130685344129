// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ident generates the opaque identifiers used for chats, messages,
// and attachments.
//
// IDs are UUIDv4 strings with a short type prefix so the persisted document
// stays self-describing. IDs are never derived from content or position;
// collision resistance comes from the underlying random UUID.
package ident

import "github.com/google/uuid"

// Prefixes for the identifier namespaces.
const (
	chatPrefix       = "chat_"
	messagePrefix    = "msg_"
	attachmentPrefix = "att_"
)

// NewChatID returns a new unique chat identifier.
func NewChatID() string {
	return chatPrefix + uuid.New().String()
}

// NewMessageID returns a new unique message identifier.
func NewMessageID() string {
	return messagePrefix + uuid.New().String()
}

// NewAttachmentID returns a new unique attachment identifier.
func NewAttachmentID() string {
	return attachmentPrefix + uuid.New().String()
}
