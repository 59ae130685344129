// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/healthchat/healthchat/internal/chat"
	"github.com/healthchat/healthchat/internal/cloud"
	"github.com/healthchat/healthchat/internal/config"
	"github.com/healthchat/healthchat/internal/model"
	"github.com/healthchat/healthchat/internal/store"
)

// =============================================================================
// ARGS
// =============================================================================

// Args holds the parsed command line arguments.
type Args struct {
	// Model overrides the configured provider model
	Model string
	// ConfigPath loads configuration from an explicit path
	ConfigPath string
	// Quiet suppresses the welcome banner and status lines
	Quiet bool
	// ShowVersion prints the version and exits
	ShowVersion bool
}

// ParseArgs parses command line arguments.
func ParseArgs(argv []string) (Args, error) {
	var args Args
	for i := 0; i < len(argv); i++ {
		switch arg := argv[i]; arg {
		case "-m", "--model":
			i++
			if i >= len(argv) {
				return args, fmt.Errorf("%s requires a value", arg)
			}
			args.Model = argv[i]
		case "-c", "--config":
			i++
			if i >= len(argv) {
				return args, fmt.Errorf("%s requires a value", arg)
			}
			args.ConfigPath = argv[i]
		case "-q", "--quiet":
			args.Quiet = true
		case "-V", "--version":
			args.ShowVersion = true
		case "-h", "--help":
			return args, ErrShowUsage
		default:
			return args, fmt.Errorf("unknown argument: %s", arg)
		}
	}
	return args, nil
}

// ErrShowUsage signals that usage should be printed and the program exit 0.
var ErrShowUsage = fmt.Errorf("show usage")

// Usage returns the command line usage text.
func Usage() string {
	return `healthchat - health-focused chat assistant

Usage:
  healthchat [flags]

Flags:
  -m, --model NAME     Override the configured model
  -c, --config PATH    Load configuration from PATH
  -q, --quiet          Suppress the welcome banner
  -V, --version        Print version and exit
  -h, --help           Show this help

Interactive commands:
  /new                 Start a new chat
  /list                List chats
  /select N            Switch to chat number N
  /delete [N]          Delete the current chat (or number N)
  /attach PATH         Stage a file for the next message
  /attachments         Show staged attachments
  /history             Show the current chat
  /stop                Stop the in-flight generation
  /config              Show the active configuration
  /help                Show this help
  /quit                Exit
`
}

// =============================================================================
// SESSION
// =============================================================================

// Session holds the state for an interactive chat session.
type Session struct {
	cfg   *config.Config
	ctrl  *chat.Controller
	store *store.Store
	input *ChatCLI
	quiet bool

	// client is nil when the controller streams through something other
	// than the provider client, as in tests.
	client *cloud.Client
	// modelOverride pins the model from the command line across reloads
	modelOverride string

	// Attachments staged by /attach for the next send
	pending []model.Attachment

	out io.Writer
	err io.Writer
}

// OpenBackend constructs the persistence backend named by the config.
func OpenBackend(cfg *config.Config) (store.Backend, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "file", "":
		if cfg.Storage.Path != "" {
			return store.NewFileBackendWithPath(cfg.Storage.Path), nil
		}
		return store.NewFileBackend()
	case "sqlite":
		path := cfg.Storage.Path
		if path == "" {
			dir, err := config.ConfigDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "chats.db")
		}
		return store.NewSQLiteBackend(path)
	case "memory":
		return store.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// NewSession builds a session from the loaded configuration.
func NewSession(cfg *config.Config, args Args) (*Session, error) {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	st := store.NewStore(backend)
	st.Load()

	providerModel := cfg.Provider.Model
	if args.Model != "" {
		providerModel = args.Model
	}

	client := cloud.NewClient(cfg.Provider.APIKey)
	client.WithBaseURL(cfg.Provider.BaseURL)
	client.SetModel(providerModel)

	ctrl := chat.NewController(st, client, cloud.RequestOptions{
		Model:        providerModel,
		Temperature:  cfg.Provider.Temperature,
		MaxTokens:    cfg.Provider.MaxTokens,
		SystemPrompt: cfg.Provider.SystemPrompt,
	})

	return &Session{
		cfg:           cfg,
		ctrl:          ctrl,
		store:         st,
		input:         NewChatCLI(cfg),
		quiet:         args.Quiet,
		client:        client,
		modelOverride: args.Model,
		out:           os.Stdout,
		err:           os.Stderr,
	}, nil
}

// refreshConfig reapplies the current global configuration to the provider
// client and request options. The config watcher replaces the global on
// disk changes, so an API key added while the session runs takes effect on
// the next send.
func (s *Session) refreshConfig() {
	if s.client == nil {
		return
	}
	cfg := config.Global()
	s.cfg = cfg

	providerModel := cfg.Provider.Model
	if s.modelOverride != "" {
		providerModel = s.modelOverride
	}

	s.client.SetAPIKey(cfg.Provider.APIKey)
	s.client.WithBaseURL(cfg.Provider.BaseURL)
	s.client.SetModel(providerModel)
	s.ctrl.SetOptions(cloud.RequestOptions{
		Model:        providerModel,
		Temperature:  cfg.Provider.Temperature,
		MaxTokens:    cfg.Provider.MaxTokens,
		SystemPrompt: cfg.Provider.SystemPrompt,
	})
}

// Close releases session resources.
func (s *Session) Close() {
	s.input.Close()
	if err := s.store.Close(); err != nil {
		fmt.Fprintf(s.err, "Warning: failed to close storage: %v\n", err)
	}
}

// =============================================================================
// REPL
// =============================================================================

// Run starts the interactive loop and blocks until the user exits.
func Run(cfg *config.Config, args Args) error {
	session, err := NewSession(cfg, args)
	if err != nil {
		return err
	}
	defer session.Close()

	if !session.quiet {
		session.printWelcome()
	}

	// Ctrl+C during a generation cancels it instead of killing the process
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if session.ctrl.IsLoading() {
				session.ctrl.StopGeneration()
				fmt.Fprintln(session.err, "\n[Stopped]")
			}
		}
	}()

	for {
		input, err := session.input.ReadInput("you> ")
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Fprintln(session.out)
				return nil
			}
			// EOF (Ctrl+D) or terminal failure
			fmt.Fprintln(session.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := session.handleCommand(input)
			if err != nil {
				fmt.Fprintf(session.err, "[Error] %v\n", err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		session.send(input)
	}
}

// send runs one turn and prints the streamed reply.
func (s *Session) send(text string) {
	s.refreshConfig()

	attachments := s.pending
	s.pending = nil

	fmt.Fprint(s.out, "healthchat> ")
	err := s.ctrl.SendMessage(context.Background(), text, attachments, func(delta string) {
		fmt.Fprint(s.out, delta)
	})
	fmt.Fprintln(s.out)

	if err != nil {
		fmt.Fprintf(s.err, "[Error] %s\n", userMessage(err))
	}
}

// userMessage maps known provider failures to friendly text.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, cloud.ErrNotConfigured):
		return "No API key configured. Set HEALTHCHAT_API_KEY or add api_key to the [provider] section of the config file."
	case errors.Is(err, chat.ErrGenerationInFlight):
		return "A response is still streaming. Use /stop to cancel it first."
	case errors.Is(err, chat.ErrEmptyMessage):
		return "Nothing to send."
	default:
		return err.Error()
	}
}

// printWelcome shows the session banner.
func (s *Session) printWelcome() {
	fmt.Fprintln(s.out, "healthchat - health information assistant")
	fmt.Fprintf(s.out, "model: %s | chats: %d\n", s.cfg.Provider.Model, s.store.Len())
	fmt.Fprintln(s.out, "Type /help for commands. Responses are informational, not medical advice.")
	fmt.Fprintln(s.out)
}
