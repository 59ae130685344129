// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/healthchat/healthchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete healthchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Provider holds the chat completion provider settings.
	Provider ProviderConfig `toml:"provider" json:"provider"`

	// Storage holds the conversation persistence settings.
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Chat holds conversation behavior settings.
	Chat ChatConfig `toml:"chat" json:"chat"`
}

// ProviderConfig contains the OpenAI-compatible provider configuration.
type ProviderConfig struct {
	// APIKey is the provider API key. Required for any send.
	APIKey string `toml:"api_key" json:"api_key"`
	// BaseURL is the provider endpoint base (default https://api.openai.com/v1)
	BaseURL string `toml:"base_url" json:"base_url"`
	// Model is the chat completion model to request
	Model string `toml:"model" json:"model"`
	// Temperature is the sampling temperature (0.0-2.0)
	Temperature float64 `toml:"temperature" json:"temperature"`
	// MaxTokens caps the generated reply length
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// SystemPrompt is the fixed instruction prepended to every request.
	// Configurable here, never editable through the chat surface.
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
}

// StorageConfig contains conversation persistence configuration.
type StorageConfig struct {
	// Backend selects the persistence backend: "file", "sqlite", or "memory"
	Backend string `toml:"backend" json:"backend"`
	// Path is the backing file location (empty = default under ~/.healthchat)
	Path string `toml:"path" json:"path"`
}

// ChatConfig contains conversation behavior configuration.
type ChatConfig struct {
	// HistoryFile is where the input line history is kept
	HistoryFile string `toml:"history_file" json:"history_file"`
}

// DefaultSystemPrompt is the fixed HealthChat instruction sent as the system
// message on every request.
const DefaultSystemPrompt = `You are HealthChat, a helpful AI assistant specialized in health and healthcare information. Your role is to provide accurate, evidence-based health information while always emphasizing the importance of consulting with qualified healthcare professionals for medical advice, diagnosis, and treatment.

Guidelines:
- Provide clear, understandable explanations of health topics
- Use evidence-based information from reputable sources
- Always remind users that your responses are informational and not a substitute for professional medical advice
- Encourage users to consult healthcare professionals for personal health concerns
- Be empathetic and supportive in your communication
- If asked about specific symptoms or conditions, provide general information but strongly recommend professional consultation
- If images are shared, analyze them from a general health perspective but always recommend professional evaluation
- Never diagnose conditions from images

Remember: Your goal is to educate and inform, not to diagnose or treat.`

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "0.1.0",

		Provider: ProviderConfig{
			APIKey:       "",
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			Temperature:  0.7,
			MaxTokens:    4096,
			SystemPrompt: DefaultSystemPrompt,
		},

		Storage: StorageConfig{
			Backend: "file",
			Path:    "",
		},

		Chat: ChatConfig{
			HistoryFile: "",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the healthchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".healthchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files hold the API key, so anything wider than 0600 is tightened.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	cfg, err := finishLoad(cfg)
	if err != nil {
		return nil, err
	}
	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// finishLoad applies env overrides, defaults, and validation in order.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Tighten permissions even if the file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# healthchat configuration file")
	fmt.Fprintln(file, "# Generated by healthchat - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// SetDefaults fills any zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaults.Provider.BaseURL
	}
	if c.Provider.Model == "" {
		c.Provider.Model = defaults.Provider.Model
	}
	if c.Provider.Temperature == 0 {
		c.Provider.Temperature = defaults.Provider.Temperature
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = defaults.Provider.MaxTokens
	}
	if c.Provider.SystemPrompt == "" {
		c.Provider.SystemPrompt = defaults.Provider.SystemPrompt
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Provider.BaseURL != "" {
		if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "provider.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Provider.BaseURL),
			})
		}
	}

	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "provider.temperature",
			Message: fmt.Sprintf("must be between 0.0 and 2.0, got %g", c.Provider.Temperature),
		})
	}

	if c.Provider.MaxTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "provider.max_tokens",
			Message: "cannot be negative",
		})
	}

	validBackends := map[string]bool{"file": true, "sqlite": true, "memory": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - HEALTHCHAT_API_KEY: overrides provider.api_key
//   - OPENAI_API_KEY: fallback for provider.api_key
//   - HEALTHCHAT_BASE_URL: overrides provider.base_url
//   - HEALTHCHAT_MODEL: overrides provider.model
//   - HEALTHCHAT_TEMPERATURE: overrides provider.temperature
//   - HEALTHCHAT_MAX_TOKENS: overrides provider.max_tokens
//   - HEALTHCHAT_STORAGE_BACKEND: overrides storage.backend
//   - HEALTHCHAT_STORAGE_PATH: overrides storage.path
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("HEALTHCHAT_API_KEY"); key != "" {
		c.Provider.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Provider.APIKey == "" {
		c.Provider.APIKey = key
	}

	if base := os.Getenv("HEALTHCHAT_BASE_URL"); base != "" {
		c.Provider.BaseURL = base
	}

	if model := os.Getenv("HEALTHCHAT_MODEL"); model != "" {
		c.Provider.Model = model
	}

	if temp := os.Getenv("HEALTHCHAT_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			c.Provider.Temperature = v
		}
	}

	if max := os.Getenv("HEALTHCHAT_MAX_TOKENS"); max != "" {
		if v, err := strconv.Atoi(max); err == nil {
			c.Provider.MaxTokens = v
		}
	}

	if backend := os.Getenv("HEALTHCHAT_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}

	if path := os.Getenv("HEALTHCHAT_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON representation with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Provider.APIKey != "" {
		safe.Provider.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
// The lazy first-access load is consumed so it cannot overwrite the
// explicitly set value later.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
