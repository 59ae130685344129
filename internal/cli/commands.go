// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/healthchat/healthchat/internal/attach"
	"github.com/healthchat/healthchat/internal/model"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand dispatches one slash command. The returned bool is false
// when the session should end.
func (s *Session) handleCommand(input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help", "/h":
		fmt.Fprint(s.out, Usage())
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		id := s.ctrl.NewChat()
		fmt.Fprintf(s.out, "Started new chat %s\n", id)
		return true, nil

	case "/list", "/l":
		s.printChatList()
		return true, nil

	case "/select", "/s":
		if len(args) != 1 {
			return true, fmt.Errorf("usage: /select N")
		}
		return true, s.selectChat(args[0])

	case "/delete", "/d":
		return true, s.deleteChat(args)

	case "/attach", "/a":
		if len(args) != 1 {
			return true, fmt.Errorf("usage: /attach PATH")
		}
		return true, s.stageAttachment(args[0])

	case "/attachments":
		s.printAttachments()
		return true, nil

	case "/history":
		s.printHistory()
		return true, nil

	case "/stop":
		if !s.ctrl.IsLoading() {
			fmt.Fprintln(s.out, "Nothing is streaming.")
			return true, nil
		}
		s.ctrl.StopGeneration()
		fmt.Fprintln(s.out, "[Stopped]")
		return true, nil

	case "/config":
		s.refreshConfig()
		fmt.Fprintln(s.out, s.cfg.String())
		return true, nil

	default:
		return true, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

// resolveChatRef turns a /select or /delete argument into a chat id. The
// argument is either a 1-based list position or a chat id.
func (s *Session) resolveChatRef(ref string) (string, error) {
	metas := s.ctrl.ListChats()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(metas) {
			return "", fmt.Errorf("no chat number %d (have %d)", n, len(metas))
		}
		return metas[n-1].ID, nil
	}
	for _, m := range metas {
		if m.ID == ref {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("no chat %q", ref)
}

func (s *Session) selectChat(ref string) error {
	id, err := s.resolveChatRef(ref)
	if err != nil {
		return err
	}
	if !s.ctrl.SelectChat(id) {
		return fmt.Errorf("failed to select chat %s", id)
	}
	chat := s.ctrl.CurrentChat()
	fmt.Fprintf(s.out, "Switched to %q (%d messages)\n", chat.GetTitle(), chat.MessageCount())
	return nil
}

func (s *Session) deleteChat(args []string) error {
	var id string
	if len(args) == 0 {
		id = s.ctrl.CurrentID()
		if id == "" {
			return fmt.Errorf("no chat selected")
		}
	} else {
		var err error
		id, err = s.resolveChatRef(args[0])
		if err != nil {
			return err
		}
	}

	if !s.ctrl.DeleteChat(id) {
		return fmt.Errorf("failed to delete chat %s", id)
	}
	fmt.Fprintln(s.out, "Deleted.")
	if cur := s.ctrl.CurrentChat(); cur != nil {
		fmt.Fprintf(s.out, "Now on %q\n", cur.GetTitle())
	}
	return nil
}

// stageAttachment reads and encodes a file for the next send.
func (s *Session) stageAttachment(path string) error {
	a, err := attach.EncodeFile(path)
	if err != nil {
		return err
	}
	s.pending = append(s.pending, a)
	kind := "file"
	if a.IsImage() {
		kind = "image"
	}
	fmt.Fprintf(s.out, "Staged %s %s (%s)\n", kind, a.Name, a.MimeType)
	if !a.IsImage() {
		fmt.Fprintln(s.out, "Note: only images are sent to the assistant.")
	}
	return nil
}

func (s *Session) printAttachments() {
	if len(s.pending) == 0 {
		fmt.Fprintln(s.out, "No attachments staged.")
		return
	}
	for i, a := range s.pending {
		fmt.Fprintf(s.out, "%d. %s (%s)\n", i+1, a.Name, a.MimeType)
	}
}

func (s *Session) printChatList() {
	metas := s.ctrl.ListChats()
	if len(metas) == 0 {
		fmt.Fprintln(s.out, "No chats yet. Just type a message to start one.")
		return
	}
	current := s.ctrl.CurrentID()
	for i, m := range metas {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		fmt.Fprintf(s.out, "%s %2d. %-50s %3d messages  %s\n",
			marker, i+1, m.Title, m.MessageCount, m.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func (s *Session) printHistory() {
	chat := s.ctrl.CurrentChat()
	if chat == nil {
		fmt.Fprintln(s.out, "No chat selected.")
		return
	}
	fmt.Fprintf(s.out, "%s\n\n", chat.GetTitle())
	for _, msg := range chat.Messages {
		s.printMessage(msg)
	}
}

func (s *Session) printMessage(msg *model.Message) {
	fmt.Fprintf(s.out, "[%s] %s\n", msg.Role.DisplayName(), msg.Content)
	for _, a := range msg.Attachments {
		fmt.Fprintf(s.out, "  (attached: %s)\n", a.Name)
	}
	fmt.Fprintln(s.out)
}
