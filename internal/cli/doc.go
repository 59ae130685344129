// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive healthchat front end: a liner-based
// REPL with slash commands over the chat controller. Typed lines become chat
// turns; /commands manage chats, attachments, and the in-flight generation.
package cli
