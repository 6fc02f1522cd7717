// Package config handles configuration for streamchat.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diogo/streamchat/internal/models"
)

// EnvBaseURL overrides the configured service base URL
const EnvBaseURL = "STREAMCHAT_BASE_URL"

// MarkdownConfig configures terminal markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`              // glamour style name or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji"`       // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"`  // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap"`         // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links"` // Render links inline in tables
}

// Config represents the user configuration
type Config struct {
	// BaseURL is the root of the chat service; /chat, /feedback and
	// /get_trace are resolved against it.
	BaseURL string `json:"base_url"`
	// TimeoutSeconds bounds a whole request, including the streamed body.
	TimeoutSeconds  int            `json:"timeout_seconds"`
	FeedbackKey     string         `json:"feedback_key"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	TUITheme        string         `json:"tui_theme,omitempty"`
	LogLevel        string         `json:"log_level,omitempty"`
	LogFile         string         `json:"log_file,omitempty"`
	Markdown        MarkdownConfig `json:"markdown,omitempty"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		TimeoutSeconds:  300,
		FeedbackKey:     models.DefaultFeedbackKey,
		CopyToClipboard: false,
		TUITheme:        "tokyonight",
		LogLevel:        "info",
		Markdown:        DefaultMarkdownConfig(),
	}
}

// Timeout returns the request timeout as a duration
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the fields that the client depends on
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base_url %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base_url %q: missing host", c.BaseURL)
	}
	return nil
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".streamchat"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the log file path, resolving relative names
// against the config directory
func GetLogPath(cfg Config) (string, error) {
	if cfg.LogFile != "" && filepath.IsAbs(cfg.LogFile) {
		return cfg.LogFile, nil
	}

	configDir, err := EnsureConfigDir()
	if err != nil {
		return "", err
	}

	name := cfg.LogFile
	if name == "" {
		name = "streamchat.log"
	}
	return filepath.Join(configDir, name), nil
}

// LoadConfig loads the configuration from disk and applies
// environment overrides
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return applyEnv(cfg), err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return applyEnv(cfg), fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return applyEnv(DefaultConfig()), fmt.Errorf("failed to parse config file: %w", err)
	}

	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	if base := strings.TrimSpace(os.Getenv(EnvBaseURL)); base != "" {
		cfg.BaseURL = base
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Set updates a single config field by its JSON key
func Set(cfg *Config, key, value string) error {
	switch key {
	case "base_url":
		cfg.BaseURL = strings.TrimRight(value, "/")
		return cfg.Validate()
	case "timeout_seconds":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("timeout_seconds must be a positive integer")
		}
		cfg.TimeoutSeconds = n
	case "feedback_key":
		if value == "" {
			return fmt.Errorf("feedback_key cannot be empty")
		}
		cfg.FeedbackKey = value
	case "copy_to_clipboard":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		cfg.CopyToClipboard = b
	case "tui_theme":
		cfg.TUITheme = value
	case "log_level":
		cfg.LogLevel = value
	case "log_file":
		cfg.LogFile = value
	case "markdown.style":
		cfg.Markdown.Style = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}

// Keys returns the keys accepted by Set
func Keys() []string {
	return []string{
		"base_url",
		"timeout_seconds",
		"feedback_key",
		"copy_to_clipboard",
		"tui_theme",
		"log_level",
		"log_file",
		"markdown.style",
	}
}
