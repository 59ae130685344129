// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud implements the chat completions client for healthchat.
//
// The provider speaks the OpenAI-compatible chat completions protocol: JSON
// requests with an optional multipart content form for images, and SSE
// streaming responses terminated by a [DONE] frame.
//
// # Key Types
//
//   - Client: HTTP client for the completions endpoint
//   - ChatMessage / MessageContent: wire message with a text-or-parts union
//   - BuildRequest: serializes a chat history into a streaming request
//   - SSEReader / StreamChunk: streaming response consumer
//
// # Usage
//
// Serialize a history and stream the completion:
//
//	req := cloud.BuildRequest(history, cloud.RequestOptions{
//	    Model:        cloud.DefaultModel,
//	    Temperature:  cloud.DefaultTemperature,
//	    MaxTokens:    cloud.DefaultMaxTokens,
//	    SystemPrompt: prompt,
//	})
//	err := client.ChatStream(ctx, req, func(chunk cloud.StreamChunk) {
//	    fmt.Print(chunk.GetContent())
//	})
//
// # Error taxonomy
//
// HTTP error statuses map onto sentinel errors (ErrAuthFailed,
// ErrRateLimited, ErrInsufficientCredits, ErrModelNotFound) wrapped with the
// provider's message, so callers classify failures with errors.Is. API keys
// and request bodies are never logged.
package cloud
