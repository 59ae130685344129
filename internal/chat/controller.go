// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/healthchat/healthchat/internal/cloud"
	"github.com/healthchat/healthchat/internal/model"
	"github.com/healthchat/healthchat/internal/store"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage is returned when a send carries no text and no attachments.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrGenerationInFlight is returned when a send arrives while a previous
	// generation is still streaming. At most one generation runs at a time.
	ErrGenerationInFlight = errors.New("a generation is already in progress")
)

// =============================================================================
// STREAMER INTERFACE
// =============================================================================

// Streamer is the provider surface the controller needs. *cloud.Client
// satisfies it; tests substitute a fake.
type Streamer interface {
	ChatStream(ctx context.Context, req *cloud.ChatRequest, callback cloud.StreamCallback) error
	IsConfigured() bool
}

// DeltaFunc receives each streamed text delta as it is applied to the
// pending assistant message. May be nil.
type DeltaFunc func(delta string)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller orchestrates chats: it owns the single in-flight generation's
// cancellation handle and funnels every mutation through the store.
type Controller struct {
	store    *store.Store
	streamer Streamer
	opts     cloud.RequestOptions

	mu      sync.Mutex
	cancel  context.CancelFunc // non-nil only while a generation is in flight
	gen     uint64             // bumped per turn, guards the settle path
	loading bool
	lastErr string
}

// NewController creates a controller over the given store and provider.
func NewController(st *store.Store, streamer Streamer, opts cloud.RequestOptions) *Controller {
	return &Controller{
		store:    st,
		streamer: streamer,
		opts:     opts,
	}
}

// SetOptions replaces the request options used for subsequent sends.
// A turn already in flight keeps the options it started with.
func (c *Controller) SetOptions(opts cloud.RequestOptions) {
	c.mu.Lock()
	c.opts = opts
	c.mu.Unlock()
}

// Options returns a copy of the current request options.
func (c *Controller) Options() cloud.RequestOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// =============================================================================
// CHAT LIFECYCLE
// =============================================================================

// NewChat creates an empty chat, inserts it at the front of the ordering,
// selects it, and clears any visible error. Returns the new chat's id.
func (c *Controller) NewChat() string {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()

	chat := model.NewChat()
	c.store.AddChat(chat)
	return chat.ID
}

// SelectChat switches the current chat and clears any visible error.
// Selecting an unknown id leaves the previous selection in place.
func (c *Controller) SelectChat(id string) bool {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()

	return c.store.Select(id)
}

// DeleteChat removes a chat. When the selected chat is deleted, selection
// falls back to the first remaining chat, or to none.
func (c *Controller) DeleteChat(id string) bool {
	return c.store.DeleteChat(id)
}

// CurrentID returns the selected chat id, or "".
func (c *Controller) CurrentID() string {
	return c.store.CurrentID()
}

// CurrentChat returns a copy of the selected chat, or nil.
func (c *Controller) CurrentChat() *model.Chat {
	return c.store.CurrentChat()
}

// ListChats returns listing metadata for every chat, newest first.
func (c *Controller) ListChats() []model.ChatMeta {
	return c.store.Metas()
}

// =============================================================================
// SENDING
// =============================================================================

// SendMessage runs one full turn: it appends the user message and an empty
// assistant placeholder, streams the provider's reply into the placeholder,
// and settles the turn on completion, cancellation, or failure.
//
// The call blocks until the turn reaches a terminal state. A send while a
// generation is in flight is rejected, never queued. A send with blank text
// and no attachments is rejected before any state changes.
//
// On failure the assistant placeholder is deleted so no empty assistant turn
// survives, and the error becomes the visible error string. Cancellation is
// not a failure: partial content stays.
func (c *Controller) SendMessage(ctx context.Context, text string, attachments []model.Attachment, onDelta DeltaFunc) error {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrGenerationInFlight
	}
	// Defensive: a stale handle here means a previous turn never settled
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.gen++
	myGen := c.gen
	c.loading = true
	c.lastErr = ""
	opts := c.opts
	c.mu.Unlock()

	err := c.runTurn(streamCtx, text, attachments, opts, onDelta)

	c.mu.Lock()
	// StopGeneration may have released the slot and a newer turn may hold
	// it now. Only this turn's own slot is cleared.
	if c.gen == myGen {
		c.cancel = nil
		c.loading = false
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		c.lastErr = err.Error()
	}
	c.mu.Unlock()
	cancel()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runTurn performs the send steps once the in-flight slot is held.
func (c *Controller) runTurn(ctx context.Context, text string, attachments []model.Attachment, opts cloud.RequestOptions, onDelta DeltaFunc) error {
	chatID := c.store.CurrentID()
	if chatID == "" {
		chat := model.NewChat()
		c.store.AddChat(chat)
		chatID = chat.ID
	}

	// History snapshot before the new turn is appended
	history := c.store.History(chatID)

	userMsg := model.NewUserMessage(text, attachments)
	placeholder := model.NewAssistantMessage()
	if !c.store.AppendMessages(chatID, userMsg, placeholder) {
		return errors.New("chat no longer exists")
	}
	c.store.SetTitleFromFirstMessage(chatID, text)

	req := cloud.BuildRequest(append(history, userMsg), opts)

	streamErr := c.streamer.ChatStream(ctx, req, func(chunk cloud.StreamChunk) {
		delta := chunk.GetContent()
		if delta == "" {
			return
		}
		c.store.AppendDelta(chatID, placeholder.ID, delta)
		if onDelta != nil {
			onDelta(delta)
		}
	})

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		// No partial or empty assistant turn survives a failure
		c.store.DeleteMessage(chatID, placeholder.ID)
		return streamErr
	}
	return streamErr
}

// StopGeneration cancels the active generation, if any, and clears the
// loading state immediately without waiting for the stream to wind down.
func (c *Controller) StopGeneration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loading = false
}

// =============================================================================
// STATE
// =============================================================================

// IsLoading reports whether a generation is in flight.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LastError returns the visible error string for the most recent failed
// operation, or "". Creating or selecting a chat clears it.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
