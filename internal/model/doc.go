// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
//
// This package defines the core domain types used throughout the application
// for representing chats, messages, attachments, and the chat collection.
//
// # Key Types
//
//   - Collection: Exclusive owner of all chats plus the current selection
//   - Chat: Container for a conversation with messages and metadata
//   - Message: Single message with role, content, timestamp, and attachments
//   - Attachment: Immutable inline file content attached to a message
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
// Create a chat and add a message:
//
//	chat := model.NewChat()
//	chat.AddMessage(model.NewUserMessage("Hello!", nil))
//	chat.SetTitleFromFirstMessage("Hello!")
//
// Titles are derived once from the first user turn and never change after,
// so later messages cannot retitle an existing chat.
package model
