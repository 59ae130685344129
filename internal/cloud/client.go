// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Configuration constants for the chat completions API.
const (
	// DefaultBaseURL is the base URL for the provider API.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel supports both text and vision turns.
	DefaultModel = "gpt-4o-mini"

	// DefaultTemperature matches the tuned conversational setting.
	DefaultTemperature = 0.7

	// DefaultMaxTokens bounds a single completion.
	DefaultMaxTokens = 4096

	// MaxResponseSize is the maximum allowed error response body size.
	MaxResponseSize = 1024 * 1024 // 1MB limit
)

var (
	// sharedStreamingClient is used for streaming requests (no timeout,
	// context-controlled).
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		// No timeout for streaming - controlled via context
	}
)

// Error variables for common provider errors.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrInsufficientCredits indicates a billing problem on the account.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")
)

// Fallback messages for error responses the provider did not explain.
const (
	msgAuthFailed          = "Invalid API key. Please check your configured key."
	msgRateLimited         = "Rate limit exceeded. Please try again later."
	msgInsufficientCredits = "Billing issue. Please check your provider account."
)

// ProviderError represents an error response from the provider API.
type ProviderError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("provider error (HTTP %d): %s", e.Status, e.Message)
}

// apiErrorResponse represents an error response body from the API.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a client for the chat completions API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
}

// NewClient creates a new client with the given API key.
//
// If the API key is empty, the client is still created but requests fail
// with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
	}
}

// SetAPIKey replaces the API key, picking up credentials added after the
// client was constructed.
func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = strings.TrimSpace(apiKey)
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// SetModel sets the model to use for chat requests.
func (c *Client) SetModel(model string) {
	if model != "" {
		c.model = model
	}
}

// GetModel returns the current model.
func (c *Client) GetModel() string {
	return c.model
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// setHeaders sets the required headers for API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "healthchat/0.1.0")
}

// logRequest logs an API request without exposing sensitive data.
// Headers may contain auth and bodies may contain health information,
// so only method and path are logged.
func (c *Client) logRequest(req *http.Request) {
	log.Printf("API request: %s %s", req.Method, req.URL.Path)
}

// =============================================================================
// ERROR HANDLING
// =============================================================================

// readErrorBody reads an error response body with a size limit.
func readErrorBody(resp *http.Response) []byte {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil
	}
	return body
}

// handleErrorResponse converts HTTP error responses to typed Go errors.
//
// The provider's own message is preserved when the body parses; otherwise a
// fixed user-facing message is substituted.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	// Try to parse error response
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		provErr := &ProviderError{
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
			Status:  statusCode,
		}

		// Map to specific error types
		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, provErr.Message)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %s", ErrInsufficientCredits, provErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, provErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, provErr.Message)
		default:
			return provErr
		}
	}

	// Fallback for unparseable error responses
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthFailed, msgAuthFailed)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrInsufficientCredits, msgInsufficientCredits)
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msgRateLimited)
	default:
		return &ProviderError{
			Message: strings.TrimSpace(string(body)),
			Status:  statusCode,
		}
	}
}
