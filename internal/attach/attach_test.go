// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/healthchat/healthchat/internal/model"
)

// pngHeader is the magic prefix http.DetectContentType recognizes as image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestEncodeBytes_Image(t *testing.T) {
	att, err := EncodeBytes("scan.png", "", pngHeader)
	if err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}

	if att.Kind != model.AttachmentImage {
		t.Errorf("Expected image kind, got %s", att.Kind)
	}
	if att.MimeType != "image/png" {
		t.Errorf("Expected image/png, got %s", att.MimeType)
	}
	if !strings.HasPrefix(att.Content, "data:image/png;base64,") {
		t.Errorf("Unexpected data URI prefix: %s", att.Content[:30])
	}
	if att.ID == "" || att.Name != "scan.png" {
		t.Errorf("Bad identity: id=%q name=%q", att.ID, att.Name)
	}
}

func TestEncodeBytes_PlainFile(t *testing.T) {
	att, err := EncodeBytes("notes.txt", "", []byte("blood pressure log"))
	if err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}

	if att.Kind != model.AttachmentFile {
		t.Errorf("Expected file kind, got %s", att.Kind)
	}
	// Sniffed type parameters must be stripped
	if strings.Contains(att.MimeType, ";") {
		t.Errorf("MIME parameters not stripped: %s", att.MimeType)
	}
}

func TestEncodeBytes_ExplicitMime(t *testing.T) {
	att, err := EncodeBytes("photo", "image/jpeg", []byte("not really a jpeg"))
	if err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}

	// An explicit MIME type wins over sniffing
	if att.MimeType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", att.MimeType)
	}
	if att.Kind != model.AttachmentImage {
		t.Errorf("Expected image kind, got %s", att.Kind)
	}
}

func TestEncodeBytes_Empty(t *testing.T) {
	_, err := EncodeBytes("empty", "", nil)
	if !errors.Is(err, ErrEmptyAttachment) {
		t.Errorf("Expected ErrEmptyAttachment, got %v", err)
	}
}

func TestEncodeBytes_TooLarge(t *testing.T) {
	data := make([]byte, MaxAttachmentSize+1)
	_, err := EncodeBytes("huge.bin", "", data)
	if !errors.Is(err, ErrAttachmentTooLarge) {
		t.Errorf("Expected ErrAttachmentTooLarge, got %v", err)
	}
}

func TestEncodeBytes_RoundTrip(t *testing.T) {
	payload := []byte("round trip payload")
	att, err := EncodeBytes("f.txt", "text/plain", payload)
	if err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}

	const prefix = "data:text/plain;base64,"
	if !strings.HasPrefix(att.Content, prefix) {
		t.Fatalf("Unexpected prefix: %s", att.Content)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(att.Content, prefix))
	if err != nil {
		t.Fatalf("Base64 decode failed: %v", err)
	}
	if string(decoded) != string(payload) {
		t.Errorf("Payload mismatch: got %q", decoded)
	}
}

func TestEncodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte("lab results"), 0600); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	att, err := EncodeFile(path)
	if err != nil {
		t.Fatalf("EncodeFile failed: %v", err)
	}
	if att.Name != "report.txt" {
		t.Errorf("Expected base name, got %q", att.Name)
	}
	if att.Kind != model.AttachmentFile {
		t.Errorf("Expected file kind, got %s", att.Kind)
	}
}

func TestEncodeFile_Missing(t *testing.T) {
	_, err := EncodeFile(filepath.Join(t.TempDir(), "missing.png"))
	if err == nil {
		t.Error("Expected error for missing file")
	}
}
