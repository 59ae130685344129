// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/healthchat/healthchat/internal/model"
)

// =============================================================================
// CONTENT UNION TESTS
// =============================================================================

func TestMessageContent_MarshalText(t *testing.T) {
	msg := NewUserMessage("hello")
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))
}

func TestMessageContent_MarshalMultipart(t *testing.T) {
	msg := ChatMessage{
		Role: "user",
		Content: MultipartContent([]ContentPart{
			{Type: "text", Text: "look at this"},
			{Type: "image_url", ImageURL: &ImageURL{URL: "data:image/png;base64,AAAA"}},
		}),
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"role": "user",
		"content": [
			{"type": "text", "text": "look at this"},
			{"type": "image_url", "image_url": {"url": "data:image/png;base64,AAAA"}}
		]
	}`, string(data))
}

func TestMessageContent_UnmarshalBothForms(t *testing.T) {
	var text MessageContent
	require.NoError(t, json.Unmarshal([]byte(`"plain"`), &text))
	require.Equal(t, "plain", text.Text)
	require.False(t, text.IsMultipart())

	var parts MessageContent
	require.NoError(t, json.Unmarshal([]byte(`[{"type":"text","text":"hi"}]`), &parts))
	require.True(t, parts.IsMultipart())
	require.Len(t, parts.Parts, 1)

	var bad MessageContent
	require.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

// =============================================================================
// SERIALIZER TESTS
// =============================================================================

func testOpts() RequestOptions {
	return RequestOptions{
		Model:        DefaultModel,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
		SystemPrompt: "You are a helpful assistant.",
	}
}

func TestBuildRequest_Order(t *testing.T) {
	history := []*model.Message{
		model.NewUserMessage("first", nil),
		model.NewMessage(model.RoleAssistant, "reply"),
		model.NewUserMessage("second", nil),
	}

	req := BuildRequest(history, testOpts())

	require.True(t, req.Stream)
	require.Equal(t, DefaultModel, req.Model)
	require.InDelta(t, DefaultTemperature, req.Temperature, 1e-9)
	require.Equal(t, DefaultMaxTokens, req.MaxTokens)

	require.Len(t, req.Messages, 4)
	require.Equal(t, "system", req.Messages[0].Role)
	require.Equal(t, "user", req.Messages[1].Role)
	require.Equal(t, "first", req.Messages[1].Content.Text)
	require.Equal(t, "assistant", req.Messages[2].Role)
	require.Equal(t, "second", req.Messages[3].Content.Text)
}

func TestBuildRequest_NoSystemPrompt(t *testing.T) {
	req := BuildRequest([]*model.Message{model.NewUserMessage("hi", nil)},
		RequestOptions{Model: DefaultModel})
	require.Len(t, req.Messages, 1)
	require.Equal(t, "user", req.Messages[0].Role)
}

func TestEncodeMessage_TextOnly(t *testing.T) {
	msg := EncodeMessage(model.NewUserMessage("plain question", nil))
	require.False(t, msg.Content.IsMultipart())
	require.Equal(t, "plain question", msg.Content.Text)
}

func TestEncodeMessage_WithImages(t *testing.T) {
	domainMsg := model.NewUserMessage("what is this rash?", []model.Attachment{
		{ID: "att_1", Kind: model.AttachmentImage, Content: "data:image/png;base64,AAAA"},
		{ID: "att_2", Kind: model.AttachmentImage, Content: "data:image/jpeg;base64,BBBB"},
	})

	msg := EncodeMessage(domainMsg)
	require.True(t, msg.Content.IsMultipart())
	require.Len(t, msg.Content.Parts, 3)

	// Text part comes first, then images in attachment order
	require.Equal(t, "text", msg.Content.Parts[0].Type)
	require.Equal(t, "what is this rash?", msg.Content.Parts[0].Text)
	require.Equal(t, "image_url", msg.Content.Parts[1].Type)
	require.Equal(t, "data:image/png;base64,AAAA", msg.Content.Parts[1].ImageURL.URL)
	require.Equal(t, "data:image/jpeg;base64,BBBB", msg.Content.Parts[2].ImageURL.URL)
}

func TestEncodeMessage_ImageOnlyFallbackPrompt(t *testing.T) {
	domainMsg := model.NewUserMessage("", []model.Attachment{
		{ID: "att_1", Kind: model.AttachmentImage, Content: "data:image/png;base64,AAAA"},
	})

	msg := EncodeMessage(domainMsg)
	require.True(t, msg.Content.IsMultipart())
	require.Equal(t, DefaultImagePrompt, msg.Content.Parts[0].Text)
}

func TestEncodeMessage_NonImageAttachmentsOmitted(t *testing.T) {
	domainMsg := model.NewUserMessage("see attached report", []model.Attachment{
		{ID: "att_1", Kind: model.AttachmentFile, Content: "data:application/pdf;base64,AAAA"},
	})

	// No images at all: stays plain text, the file is not forwarded
	msg := EncodeMessage(domainMsg)
	require.False(t, msg.Content.IsMultipart())

	// Mixed: only the image is forwarded
	domainMsg.Attachments = append(domainMsg.Attachments, model.Attachment{
		ID: "att_2", Kind: model.AttachmentImage, Content: "data:image/png;base64,BBBB",
	})
	msg = EncodeMessage(domainMsg)
	require.True(t, msg.Content.IsMultipart())
	require.Len(t, msg.Content.Parts, 2) // text + one image
}

func TestEncodeMessage_AssistantNeverMultipart(t *testing.T) {
	domainMsg := model.NewMessage(model.RoleAssistant, "an answer")
	domainMsg.Attachments = []model.Attachment{
		{ID: "att_1", Kind: model.AttachmentImage, Content: "data:image/png;base64,AAAA"},
	}
	msg := EncodeMessage(domainMsg)
	require.False(t, msg.Content.IsMultipart())
}
