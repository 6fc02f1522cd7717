package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FeedbackKey != "user_score" {
		t.Errorf("FeedbackKey = %q, want user_score", cfg.FeedbackKey)
	}
	if cfg.Timeout() != 300*time.Second {
		t.Errorf("Timeout() = %v", cfg.Timeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.Markdown.Style != "dark" {
		t.Errorf("Markdown.Style = %q", cfg.Markdown.Style)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"http", "http://localhost:8080", false},
		{"https", "https://chat.example.com/api", false},
		{"no scheme", "localhost:8080", true},
		{"ftp", "ftp://example.com", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseURL = tt.baseURL
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv(EnvBaseURL, "")

	cfg := DefaultConfig()
	cfg.BaseURL = "https://chat.example.com/"
	cfg.FeedbackKey = "helpfulness"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	info, err := os.Stat(filepath.Join(tmpDir, ".streamchat", "config.json"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if loaded.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", loaded.BaseURL)
	}
	if loaded.FeedbackKey != "helpfulness" {
		t.Errorf("FeedbackKey = %q", loaded.FeedbackKey)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvBaseURL, "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.BaseURL != DefaultConfig().BaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvBaseURL, "https://override.example.com/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.BaseURL != "https://override.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}

func TestLoadConfigCorrupt(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv(EnvBaseURL, "")

	dir := filepath.Join(tmpDir, ".streamchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if cfg.FeedbackKey != "user_score" {
		t.Errorf("defaults should be returned on parse error, got %+v", cfg)
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(Config) bool
	}{
		{"base_url", "https://x.example.com/", false, func(c Config) bool { return c.BaseURL == "https://x.example.com" }},
		{"base_url", "nope", true, nil},
		{"timeout_seconds", "30", false, func(c Config) bool { return c.TimeoutSeconds == 30 }},
		{"timeout_seconds", "-1", true, nil},
		{"copy_to_clipboard", "yes", false, func(c Config) bool { return c.CopyToClipboard }},
		{"copy_to_clipboard", "maybe", true, nil},
		{"feedback_key", "", true, nil},
		{"markdown.style", "light", false, func(c Config) bool { return c.Markdown.Style == "light" }},
		{"unknown", "x", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			err := Set(&cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Set(%q, %q) did not apply: %+v", tt.key, tt.value, cfg)
			}
		})
	}
}

func TestGetLogPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	path, err := GetLogPath(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(tmpDir, ".streamchat", "streamchat.log") {
		t.Errorf("GetLogPath() = %q", path)
	}

	abs := filepath.Join(tmpDir, "custom.log")
	cfg := DefaultConfig()
	cfg.LogFile = abs
	if path, _ := GetLogPath(cfg); path != abs {
		t.Errorf("GetLogPath() = %q, want %q", path, abs)
	}
}
