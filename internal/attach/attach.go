// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach converts user-supplied files into the inline attachment
// representation stored on messages.
//
// Attachments are encoded as base64 data URIs so the persisted conversation
// document stays self-contained. Images are the only kind forwarded to the
// provider; everything else is kept for display and history only.
package attach

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/healthchat/healthchat/internal/ident"
	"github.com/healthchat/healthchat/internal/model"
)

// MaxAttachmentSize is the maximum allowed attachment payload.
// The whole payload is inlined into the conversation document, so an
// oversized attachment would bloat every subsequent persist.
const MaxAttachmentSize = 10 * 1024 * 1024 // 10MB limit

// Error variables for attachment encoding.
var (
	// ErrEmptyAttachment indicates the payload had no bytes.
	ErrEmptyAttachment = errors.New("attachment is empty")

	// ErrAttachmentTooLarge indicates the payload exceeds MaxAttachmentSize.
	ErrAttachmentTooLarge = errors.New("attachment too large")
)

// EncodeBytes encodes raw bytes into an inline attachment.
//
// When mimeType is empty the type is sniffed from the payload. MIME types
// under image/ classify the attachment as an image; everything else is a
// plain file.
func EncodeBytes(name string, mimeType string, data []byte) (model.Attachment, error) {
	if len(data) == 0 {
		return model.Attachment{}, ErrEmptyAttachment
	}
	if len(data) > MaxAttachmentSize {
		return model.Attachment{}, fmt.Errorf("%w: %d bytes (max %d)", ErrAttachmentTooLarge, len(data), MaxAttachmentSize)
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	// Strip parameters like "; charset=utf-8" from sniffed types
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	kind := model.AttachmentFile
	if strings.HasPrefix(mimeType, "image/") {
		kind = model.AttachmentImage
	}

	return model.Attachment{
		ID:       ident.NewAttachmentID(),
		Name:     name,
		Kind:     kind,
		Content:  DataURI(mimeType, data),
		MimeType: mimeType,
	}, nil
}

// EncodeFile reads and encodes a file from disk. The attachment name is the
// file's base name; the MIME type is sniffed from the content.
func EncodeFile(path string) (model.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	return EncodeBytes(filepath.Base(path), "", data)
}

// DataURI builds an inline data URI for the given MIME type and payload.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
