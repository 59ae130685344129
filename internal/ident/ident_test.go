// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package ident

import (
	"strings"
	"testing"
)

func TestNewChatID_Prefix(t *testing.T) {
	id := NewChatID()
	if !strings.HasPrefix(id, "chat_") {
		t.Errorf("Expected chat_ prefix, got %q", id)
	}
}

func TestNewMessageID_Prefix(t *testing.T) {
	id := NewMessageID()
	if !strings.HasPrefix(id, "msg_") {
		t.Errorf("Expected msg_ prefix, got %q", id)
	}
}

func TestNewAttachmentID_Prefix(t *testing.T) {
	id := NewAttachmentID()
	if !strings.HasPrefix(id, "att_") {
		t.Errorf("Expected att_ prefix, got %q", id)
	}
}

func TestIDs_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewMessageID()
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
