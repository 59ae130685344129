// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/healthchat/healthchat/internal/cloud"
	"github.com/healthchat/healthchat/internal/model"
	"github.com/healthchat/healthchat/internal/store"
)

// fakeStreamer scripts provider behavior for controller tests.
type fakeStreamer struct {
	mu       sync.Mutex
	deltas   []string
	err      error // returned after all deltas, or immediately with failFast
	failFast bool
	hold     chan struct{} // when set, block after deltas until closed or ctx ends
	emitted  chan struct{} // when set, closed once all deltas are delivered

	calls    int
	lastReq  *cloud.ChatRequest
}

func (f *fakeStreamer) ChatStream(ctx context.Context, req *cloud.ChatRequest, cb cloud.StreamCallback) error {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()

	if f.failFast {
		return f.err
	}
	for _, d := range f.deltas {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		cb(cloud.StreamChunk{Content: d})
	}
	if f.emitted != nil {
		close(f.emitted)
	}
	if f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeStreamer) IsConfigured() bool { return true }

func (f *fakeStreamer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStreamer) request() *cloud.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func newTestController(streamer *fakeStreamer) (*Controller, *store.Store) {
	st := store.NewStore(store.NewMemoryBackend())
	st.Load()
	ctrl := NewController(st, streamer, cloud.RequestOptions{
		Model:        cloud.DefaultModel,
		SystemPrompt: "You are a helpful assistant.",
	})
	return ctrl, st
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Condition not reached within deadline")
}

// =============================================================================
// CHAT LIFECYCLE TESTS
// =============================================================================

func TestController_NewChatSelects(t *testing.T) {
	ctrl, st := newTestController(&fakeStreamer{})

	id := ctrl.NewChat()
	if id == "" {
		t.Fatal("Expected a chat id")
	}
	if st.CurrentID() != id {
		t.Errorf("New chat not selected: current=%q", st.CurrentID())
	}

	id2 := ctrl.NewChat()
	metas := ctrl.ListChats()
	if len(metas) != 2 || metas[0].ID != id2 {
		t.Errorf("Expected newest chat first, got %+v", metas)
	}
}

func TestController_DeleteSelectedFallsBack(t *testing.T) {
	ctrl, _ := newTestController(&fakeStreamer{})

	first := ctrl.NewChat()
	second := ctrl.NewChat() // selected, at the front

	if !ctrl.DeleteChat(second) {
		t.Fatal("Delete failed")
	}
	if ctrl.CurrentID() != first {
		t.Errorf("Expected selection to fall back to %s, got %s", first, ctrl.CurrentID())
	}

	ctrl.DeleteChat(first)
	if ctrl.CurrentID() != "" {
		t.Errorf("Expected no selection after last delete, got %s", ctrl.CurrentID())
	}
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestController_EmptySendRejected(t *testing.T) {
	streamer := &fakeStreamer{}
	ctrl, st := newTestController(streamer)
	ctrl.NewChat()

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := ctrl.SendMessage(context.Background(), text, nil, nil); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("SendMessage(%q): expected ErrEmptyMessage, got %v", text, err)
		}
	}
	if streamer.callCount() != 0 {
		t.Error("No request should be made for an empty send")
	}
	if st.CurrentChat().MessageCount() != 0 {
		t.Error("No messages should be appended for an empty send")
	}
}

func TestController_AttachmentOnlySendAllowed(t *testing.T) {
	streamer := &fakeStreamer{deltas: []string{"An image."}}
	ctrl, st := newTestController(streamer)

	att := []model.Attachment{{ID: "att_1", Name: "x.png", Kind: model.AttachmentImage, Content: "data:image/png;base64,AAAA", MimeType: "image/png"}}
	if err := ctrl.SendMessage(context.Background(), "", att, nil); err != nil {
		t.Fatalf("Attachment-only send failed: %v", err)
	}
	if got := st.CurrentChat().Title; got != model.DefaultTitleFallback {
		t.Errorf("Expected fallback title %q, got %q", model.DefaultTitleFallback, got)
	}
}

func TestController_SendCreatesChatWhenNoneSelected(t *testing.T) {
	streamer := &fakeStreamer{deltas: []string{"hi"}}
	ctrl, st := newTestController(streamer)

	if err := ctrl.SendMessage(context.Background(), "hello", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if st.Len() != 1 || st.CurrentID() == "" {
		t.Errorf("Expected an auto-created selected chat, len=%d current=%q", st.Len(), st.CurrentID())
	}
}

func TestController_OrderedDeltas(t *testing.T) {
	streamer := &fakeStreamer{deltas: []string{"Hel", "lo", " world"}}
	ctrl, st := newTestController(streamer)
	ctrl.NewChat()

	var seen []string
	err := ctrl.SendMessage(context.Background(), "greet me", nil, func(d string) {
		seen = append(seen, d)
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	chat := st.CurrentChat()
	if chat.MessageCount() != 2 {
		t.Fatalf("Expected user + assistant, got %d messages", chat.MessageCount())
	}
	assistant := chat.Messages[1]
	if assistant.Role != model.RoleAssistant || assistant.Content != "Hello world" {
		t.Errorf("Expected assistant 'Hello world', got %s %q", assistant.Role, assistant.Content)
	}
	if strings.Join(seen, "") != "Hello world" {
		t.Errorf("Delta callback saw %q", strings.Join(seen, ""))
	}
	if ctrl.IsLoading() {
		t.Error("Loading flag must clear on completion")
	}
}

func TestController_RequestBuiltFromPreAppendSnapshot(t *testing.T) {
	streamer := &fakeStreamer{deltas: []string{"second"}}
	ctrl, _ := newTestController(streamer)
	ctrl.NewChat()

	streamer.deltas = []string{"first reply"}
	if err := ctrl.SendMessage(context.Background(), "first question", nil, nil); err != nil {
		t.Fatalf("First send failed: %v", err)
	}
	streamer.deltas = []string{"second reply"}
	if err := ctrl.SendMessage(context.Background(), "second question", nil, nil); err != nil {
		t.Fatalf("Second send failed: %v", err)
	}

	req := streamer.request()
	// system + (user, assistant) from turn one + new user turn; the empty
	// placeholder must never reach the provider
	if len(req.Messages) != 4 {
		t.Fatalf("Expected 4 request messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("Expected system message first, got %s", req.Messages[0].Role)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || last.Content.Text != "second question" {
		t.Errorf("Expected new turn last, got %s %q", last.Role, last.Content.Text)
	}
	for _, m := range req.Messages {
		if m.Role == "assistant" && m.Content.Text == "" {
			t.Error("Empty assistant placeholder leaked into the request")
		}
	}
}

func TestController_SetOptionsAppliesToNextSend(t *testing.T) {
	streamer := &fakeStreamer{deltas: []string{"ok"}}
	ctrl, _ := newTestController(streamer)
	ctrl.NewChat()

	ctrl.SetOptions(cloud.RequestOptions{Model: "gpt-4o", SystemPrompt: "updated prompt"})
	if got := ctrl.Options().Model; got != "gpt-4o" {
		t.Fatalf("Options not replaced, model = %q", got)
	}

	if err := ctrl.SendMessage(context.Background(), "question", nil, nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	req := streamer.request()
	if req.Model != "gpt-4o" {
		t.Errorf("Expected replaced model on the request, got %q", req.Model)
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content.Text != "updated prompt" {
		t.Errorf("Expected replaced system prompt, got %q", req.Messages[0].Content.Text)
	}
}

func TestController_TitleSetOnFirstTurnOnly(t *testing.T) {
	streamer := &fakeStreamer{deltas: []string{"ok"}}
	ctrl, st := newTestController(streamer)
	ctrl.NewChat()

	if err := ctrl.SendMessage(context.Background(), "What is a healthy resting heart rate?", nil, nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	title := st.CurrentChat().Title
	if title != "What is a healthy resting heart rate?" {
		t.Fatalf("Unexpected title %q", title)
	}

	if err := ctrl.SendMessage(context.Background(), "And for athletes?", nil, nil); err != nil {
		t.Fatalf("Second send failed: %v", err)
	}
	if st.CurrentChat().Title != title {
		t.Errorf("Title changed on second send: %q", st.CurrentChat().Title)
	}
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestController_FailureDeletesPlaceholder(t *testing.T) {
	authErr := fmt.Errorf("%w: Invalid API key", cloud.ErrAuthFailed)
	streamer := &fakeStreamer{failFast: true, err: authErr}
	ctrl, st := newTestController(streamer)
	ctrl.NewChat()

	err := ctrl.SendMessage(context.Background(), "hello", nil, nil)
	if !errors.Is(err, cloud.ErrAuthFailed) {
		t.Fatalf("Expected ErrAuthFailed, got %v", err)
	}

	chat := st.CurrentChat()
	if chat.MessageCount() != 1 {
		t.Fatalf("Expected only the user message to survive, got %d", chat.MessageCount())
	}
	if chat.Messages[0].Role != model.RoleUser {
		t.Errorf("Surviving message has role %s", chat.Messages[0].Role)
	}
	if ctrl.IsLoading() {
		t.Error("Loading flag must clear on failure")
	}
	if ctrl.LastError() == "" {
		t.Error("Expected a visible error string")
	}
}

func TestController_MidStreamFailureDeletesPartial(t *testing.T) {
	streamer := &fakeStreamer{deltas: []string{"part", "ial"}, err: errors.New("connection reset")}
	ctrl, st := newTestController(streamer)
	ctrl.NewChat()

	if err := ctrl.SendMessage(context.Background(), "hello", nil, nil); err == nil {
		t.Fatal("Expected mid-stream error")
	}
	if got := st.CurrentChat().MessageCount(); got != 1 {
		t.Errorf("Partial assistant message must not survive a failure, got %d messages", got)
	}
}

func TestController_ErrorClearedBySelectAndNew(t *testing.T) {
	streamer := &fakeStreamer{failFast: true, err: cloud.ErrRateLimited}
	ctrl, _ := newTestController(streamer)
	first := ctrl.NewChat()

	ctrl.SendMessage(context.Background(), "hello", nil, nil)
	if ctrl.LastError() == "" {
		t.Fatal("Expected error state")
	}
	ctrl.NewChat()
	if ctrl.LastError() != "" {
		t.Error("NewChat must clear the error")
	}

	ctrl.SendMessage(context.Background(), "hello", nil, nil)
	ctrl.SelectChat(first)
	if ctrl.LastError() != "" {
		t.Error("SelectChat must clear the error")
	}
}

// =============================================================================
// SINGLE-FLIGHT AND CANCELLATION TESTS
// =============================================================================

func TestController_SecondSendRejectedWhileStreaming(t *testing.T) {
	streamer := &fakeStreamer{
		deltas:  []string{"slow"},
		hold:    make(chan struct{}),
		emitted: make(chan struct{}),
	}
	ctrl, st := newTestController(streamer)
	ctrl.NewChat()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.SendMessage(context.Background(), "first", nil, nil)
	}()
	<-streamer.emitted

	if err := ctrl.SendMessage(context.Background(), "second", nil, nil); !errors.Is(err, ErrGenerationInFlight) {
		t.Fatalf("Expected ErrGenerationInFlight, got %v", err)
	}
	if streamer.callCount() != 1 {
		t.Errorf("Second request must not be opened, calls=%d", streamer.callCount())
	}

	close(streamer.hold)
	if err := <-done; err != nil {
		t.Fatalf("First send failed: %v", err)
	}
	// Only the first turn's user+assistant pair exists
	if got := st.CurrentChat().MessageCount(); got != 2 {
		t.Errorf("Expected 2 messages, got %d", got)
	}
}

func TestController_StopPreservesPartialContent(t *testing.T) {
	streamer := &fakeStreamer{
		deltas:  []string{"Hel", "lo"},
		hold:    make(chan struct{}),
		emitted: make(chan struct{}),
	}
	defer close(streamer.hold)
	ctrl, st := newTestController(streamer)
	ctrl.NewChat()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.SendMessage(context.Background(), "hello", nil, nil)
	}()
	<-streamer.emitted

	ctrl.StopGeneration()
	if ctrl.IsLoading() {
		t.Error("StopGeneration must clear loading immediately")
	}

	if err := <-done; err != nil {
		t.Fatalf("Cancelled send must not report an error, got %v", err)
	}

	chat := st.CurrentChat()
	if chat.MessageCount() != 2 {
		t.Fatalf("Cancellation must keep the assistant message, got %d messages", chat.MessageCount())
	}
	if got := chat.Messages[1].Content; got != "Hello" {
		t.Errorf("Expected partial content 'Hello', got %q", got)
	}
	if ctrl.LastError() != "" {
		t.Errorf("Cancellation is not an error, got %q", ctrl.LastError())
	}
}

func TestController_StopWithoutGenerationIsNoop(t *testing.T) {
	ctrl, _ := newTestController(&fakeStreamer{})
	ctrl.StopGeneration()
	if ctrl.IsLoading() {
		t.Error("Loading must stay false")
	}
}

func TestController_SendAfterStopWorks(t *testing.T) {
	streamer := &fakeStreamer{
		deltas:  []string{"first"},
		hold:    make(chan struct{}),
		emitted: make(chan struct{}),
	}
	ctrl, st := newTestController(streamer)
	ctrl.NewChat()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.SendMessage(context.Background(), "one", nil, nil)
	}()
	<-streamer.emitted
	ctrl.StopGeneration()
	<-done

	waitFor(t, func() bool { return !ctrl.IsLoading() })

	streamer.mu.Lock()
	streamer.deltas = []string{"second"}
	streamer.hold = nil
	streamer.emitted = nil
	streamer.mu.Unlock()

	if err := ctrl.SendMessage(context.Background(), "two", nil, nil); err != nil {
		t.Fatalf("Send after stop failed: %v", err)
	}
	if got := st.CurrentChat().MessageCount(); got != 4 {
		t.Errorf("Expected 4 messages after two turns, got %d", got)
	}
}
