// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"fmt"

	"github.com/healthchat/healthchat/internal/model"
)

// =============================================================================
// MESSAGE CONTENT
// =============================================================================

// DefaultImagePrompt is sent as the text part when a turn carries images but
// no text. The provider rejects image parts with no accompanying text.
const DefaultImagePrompt = "What do you see in this image?"

// ContentPart is one element of a multipart message content list.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline data URI (or remote URL) for an image part.
type ImageURL struct {
	URL string `json:"url"`
}

// MessageContent is the content of a chat message on the wire: either a
// plain string or a list of typed parts. Exactly one of the two forms is
// populated.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent returns plain string content.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// MultipartContent returns part-list content.
func MultipartContent(parts []ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// IsMultipart reports whether the content serializes as a part list.
func (c MessageContent) IsMultipart() bool {
	return c.Parts != nil
}

// MarshalJSON emits a JSON string for text content and a JSON array for
// multipart content.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either wire form.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.Parts = nil
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("message content is neither string nor part list: %w", err)
	}
	c.Parts = parts
	c.Text = ""
	return nil
}

// =============================================================================
// CHAT MESSAGE / REQUEST
// =============================================================================

// ChatMessage represents a single message in a chat completion request.
type ChatMessage struct {
	Role    string         `json:"role"` // "user", "assistant", or "system"
	Content MessageContent `json:"content"`
}

// NewUserMessage creates a new plain-text user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: TextContent(content)}
}

// NewAssistantMessage creates a new plain-text assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: TextContent(content)}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: TextContent(content)}
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// =============================================================================
// REQUEST SERIALIZER
// =============================================================================

// RequestOptions configure how a chat history is serialized for the provider.
type RequestOptions struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// BuildRequest serializes a chat history into a streaming completion request.
//
// Message order is fixed: the system instruction first, then the history
// chronologically. Each history message is encoded by EncodeMessage.
func BuildRequest(history []*model.Message, opts RequestOptions) *ChatRequest {
	messages := make([]ChatMessage, 0, len(history)+1)

	if opts.SystemPrompt != "" {
		messages = append(messages, NewSystemMessage(opts.SystemPrompt))
	}
	for _, msg := range history {
		messages = append(messages, EncodeMessage(msg))
	}

	return &ChatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

// EncodeMessage converts a domain message to its wire form.
//
// A message with no image attachments stays plain text. A message with
// images becomes a part list: one text part first (falling back to
// DefaultImagePrompt when the text is empty), then one image_url part per
// image in attachment order. Non-image attachments are never forwarded.
func EncodeMessage(msg *model.Message) ChatMessage {
	if msg.Role != model.RoleUser || !msg.HasImages() {
		return ChatMessage{Role: msg.Role.String(), Content: TextContent(msg.Content)}
	}

	text := msg.Content
	if text == "" {
		text = DefaultImagePrompt
	}

	parts := []ContentPart{{Type: "text", Text: text}}
	for _, att := range msg.Attachments {
		if !att.IsImage() {
			continue
		}
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: att.Content},
		})
	}

	return ChatMessage{Role: msg.Role.String(), Content: MultipartContent(parts)}
}
