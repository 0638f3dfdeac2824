package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/gostt-code/internal/retry"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Model != "whisper-1" {
		t.Errorf("API.Model = %q, want %q", cfg.API.Model, "whisper-1")
	}
	if cfg.API.MaxUploadMB != 25 {
		t.Errorf("API.MaxUploadMB = %d, want 25", cfg.API.MaxUploadMB)
	}
	if cfg.Hotkey.Mode != "toggle" {
		t.Errorf("Hotkey.Mode = %q, want %q", cfg.Hotkey.Mode, "toggle")
	}
	if len(cfg.Hotkey.RecordKeys) != 3 {
		t.Errorf("Hotkey.RecordKeys length = %d, want 3", len(cfg.Hotkey.RecordKeys))
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("Audio.Channels = %d, want 1", cfg.Audio.Channels)
	}
	if cfg.Insert.Mode != "cursor" {
		t.Errorf("Insert.Mode = %q, want %q", cfg.Insert.Mode, "cursor")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
api:
  base_url: http://localhost:8080/v1/
  api_key: sk-test
  model: gpt-4o-transcribe
  language: en
  timeout: 15s
retry:
  max_attempts: 5
  strategy: linear
  base_delay: 250ms
audio:
  backend: native
  sample_rate: 44100
  channels: 2
  silence_timeout: 2s
insert:
  mode: comment
  method: paste
hotkey:
  record_keys: ["alt", "d"]
  mode: hold
host:
  kind: desktop
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("API.BaseURL = %q, trailing slash should be trimmed", cfg.API.BaseURL)
	}
	if cfg.API.Model != "gpt-4o-transcribe" {
		t.Errorf("API.Model = %q", cfg.API.Model)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("API.Timeout = %v, want 15s", cfg.API.Timeout)
	}
	if cfg.API.ResponseFormat != "json" {
		t.Errorf("API.ResponseFormat = %q, default should survive partial file", cfg.API.ResponseFormat)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.Strategy != "linear" || cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.Audio.Backend != "native" || cfg.Audio.SampleRate != 44100 || cfg.Audio.Channels != 2 {
		t.Errorf("Audio = %+v", cfg.Audio)
	}
	if cfg.Audio.SilenceTimeout != 2*time.Second {
		t.Errorf("Audio.SilenceTimeout = %v, want 2s", cfg.Audio.SilenceTimeout)
	}
	if cfg.Insert.Mode != "comment" || cfg.Insert.Method != "paste" {
		t.Errorf("Insert = %+v", cfg.Insert)
	}
	if len(cfg.Hotkey.RecordKeys) != 2 || cfg.Hotkey.RecordKeys[0] != "alt" || cfg.Hotkey.RecordKeys[1] != "d" {
		t.Errorf("Hotkey.RecordKeys = %v, want [alt d]", cfg.Hotkey.RecordKeys)
	}
	if cfg.Host.Kind != "desktop" {
		t.Errorf("Host.Kind = %q, want desktop", cfg.Host.Kind)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	yamlContent := `
history:
  path: ~/data/history.db
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := filepath.Join(home, "data/history.db")
	if cfg.History.Path != expected {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, expected)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadRejectsIntegerDuration(t *testing.T) {
	if _, err := Parse([]byte("api:\n  timeout: 30\n")); err == nil {
		t.Error("Parse() should reject a bare integer duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, true},
		{"base url without scheme", func(c *Config) { c.API.BaseURL = "api.openai.com" }, true},
		{"empty model", func(c *Config) { c.API.Model = "" }, true},
		{"temperature too high", func(c *Config) { c.API.Temperature = 1.5 }, true},
		{"bad response format", func(c *Config) { c.API.ResponseFormat = "xml" }, true},
		{"granularities need verbose json", func(c *Config) { c.API.TimestampGranularities = []string{"word"} }, true},
		{"granularities with verbose json", func(c *Config) {
			c.API.ResponseFormat = "verbose_json"
			c.API.TimestampGranularities = []string{"word", "segment"}
		}, false},
		{"bad granularity", func(c *Config) {
			c.API.ResponseFormat = "verbose_json"
			c.API.TimestampGranularities = []string{"sentence"}
		}, true},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, true},
		{"zero upload ceiling", func(c *Config) { c.API.MaxUploadMB = 0 }, true},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
		{"bad retry strategy", func(c *Config) { c.Retry.Strategy = "random" }, true},
		{"bad audio backend", func(c *Config) { c.Audio.Backend = "portaudio" }, true},
		{"native backend needs wav", func(c *Config) {
			c.Audio.Backend = "native"
			c.Audio.Format = "mp3"
		}, true},
		{"bad quality", func(c *Config) { c.Audio.Quality = "ultra" }, true},
		{"zero channels", func(c *Config) { c.Audio.Channels = 0 }, true},
		{"bad audio format", func(c *Config) { c.Audio.Format = "aiff" }, true},
		{"negative silence timeout", func(c *Config) { c.Audio.SilenceTimeout = -time.Second }, true},
		{"invalid insert mode", func(c *Config) { c.Insert.Mode = "telepathy" }, true},
		{"insert mode alias", func(c *Config) { c.Insert.Mode = "chat-panel" }, false},
		{"insert mode alias mixed case", func(c *Config) { c.Insert.Mode = "To_Clipboard" }, false},
		{"invalid insert method", func(c *Config) { c.Insert.Method = "invalid" }, true},
		{"invalid hotkey mode", func(c *Config) { c.Hotkey.Mode = "invalid" }, true},
		{"empty hotkey keys", func(c *Config) { c.Hotkey.RecordKeys = nil }, true},
		{"hotkey disabled ignores keys", func(c *Config) {
			c.Hotkey.Enabled = false
			c.Hotkey.RecordKeys = nil
		}, false},
		{"bad host kind", func(c *Config) { c.Host.Kind = "vim" }, true},
		{"bridge without listen", func(c *Config) { c.Host.Listen = "" }, true},
		{"zero history limit", func(c *Config) { c.History.Limit = 0 }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("GOSTT_TEST_KEY", "  sk-from-env  ")

	cfg := Default()
	cfg.API.APIKeyEnv = "GOSTT_TEST_KEY"
	if got := cfg.APIKey(); got != "sk-from-env" {
		t.Errorf("APIKey() = %q, want env value", got)
	}

	cfg.API.APIKey = "sk-from-file"
	if got := cfg.APIKey(); got != "sk-from-file" {
		t.Errorf("APIKey() = %q, file value should win", got)
	}

	cfg.API.APIKey = ""
	cfg.API.APIKeyEnv = ""
	if got := cfg.APIKey(); got != "" {
		t.Errorf("APIKey() = %q, want empty", got)
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.Retry = RetryConfig{MaxAttempts: 3, Strategy: "fixed", BaseDelay: 100 * time.Millisecond}
	p := cfg.RetryPolicy()
	if p.MaxAttempts != 3 || p.Strategy != retry.Fixed || p.BaseDelay != 100*time.Millisecond {
		t.Errorf("RetryPolicy() = %+v", p)
	}
}

func TestEffectiveSampleRate(t *testing.T) {
	tests := []struct {
		quality string
		rate    uint32
		want    uint32
	}{
		{"low", 0, 8000},
		{"standard", 0, 16000},
		{"high", 0, 44100},
		{"low", 22050, 22050},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Audio.Quality = tt.quality
		cfg.Audio.SampleRate = tt.rate
		if got := cfg.EffectiveSampleRate(); got != tt.want {
			t.Errorf("EffectiveSampleRate(%s, %d) = %d, want %d", tt.quality, tt.rate, got, tt.want)
		}
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.API.APIKey = "sk-1234567890abcdef"
	r := cfg.Redacted()
	if strings.Contains(r.API.APIKey, "567890") {
		t.Errorf("Redacted() leaked key: %q", r.API.APIKey)
	}
	if cfg.API.APIKey != "sk-1234567890abcdef" {
		t.Error("Redacted() must not modify the original")
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	// Use a temp dir as fake home to avoid touching real config
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "gostt-code", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# gostt-code") {
		t.Error("written config should start with header comment")
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of written default error = %v", err)
	}
	if cfg.API.Timeout != 60*time.Second {
		t.Errorf("written config API.Timeout = %v, want 60s", cfg.API.Timeout)
	}
	if cfg.Hotkey.Mode != "toggle" {
		t.Errorf("written config Hotkey.Mode = %q, want %q", cfg.Hotkey.Mode, "toggle")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written config does not validate: %v", err)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "gostt-code")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("log_level: debug\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.LogLevel != "debug" {
			t.Errorf("reloaded LogLevel = %q, want debug", c.LogLevel)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestWatchSkipsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go Watch(ctx, path, func(c *Config) { changes <- c })

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		t.Errorf("invalid config should not be delivered, got %+v", c.LogLevel)
	case <-time.After(700 * time.Millisecond):
	}
}
