package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/gostt-code/internal/inject"
	"github.com/chaz8081/gostt-code/internal/retry"
)

// Config holds all application configuration.
type Config struct {
	API      APIConfig     `yaml:"api"`
	Retry    RetryConfig   `yaml:"retry"`
	Audio    AudioConfig   `yaml:"audio"`
	Insert   InsertConfig  `yaml:"insert"`
	Hotkey   HotkeyConfig  `yaml:"hotkey"`
	Host     HostConfig    `yaml:"host"`
	Status   StatusConfig  `yaml:"status"`
	History  HistoryConfig `yaml:"history"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
}

// APIConfig holds speech-to-text API settings.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// APIKey takes precedence over APIKeyEnv.
	APIKey                 string        `yaml:"api_key"`
	APIKeyEnv              string        `yaml:"api_key_env"`
	Model                  string        `yaml:"model"`
	Language               string        `yaml:"language"` // ISO-639-1, empty for auto-detect
	Prompt                 string        `yaml:"prompt"`
	Temperature            float64       `yaml:"temperature"`
	ResponseFormat         string        `yaml:"response_format"` // json, verbose_json, text, srt, vtt
	TimestampGranularities []string      `yaml:"timestamp_granularities"`
	Timeout                time.Duration `yaml:"timeout"`
	MaxUploadMB            int           `yaml:"max_upload_mb"`
	HTTP2                  bool          `yaml:"http2"`
}

// RetryConfig mirrors retry.Policy in YAML form.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Strategy    string        `yaml:"strategy"` // fixed, linear, exponential
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	Backend     string `yaml:"backend"` // "ffmpeg" or "native"
	FFmpegPath  string `yaml:"ffmpeg_path"`
	InputFormat string `yaml:"input_format"` // ffmpeg -f value; empty picks one per OS
	Device      string `yaml:"device"`       // empty for the system default
	// Quality picks a sample rate when SampleRate is zero.
	Quality          string        `yaml:"quality"` // low, standard, high
	SampleRate       uint32        `yaml:"sample_rate"`
	Channels         uint32        `yaml:"channels"`
	Format           string        `yaml:"format"` // wav, flac, mp3, ogg, webm, m4a
	MaxDuration      time.Duration `yaml:"max_duration"`
	SilenceThreshold float64       `yaml:"silence_threshold"` // RMS level in [0,1]
	SilenceTimeout   time.Duration `yaml:"silence_timeout"`   // 0 disables the cutoff
}

// InsertConfig holds transcript routing settings.
type InsertConfig struct {
	Mode   string `yaml:"mode"`   // default insertion mode
	Method string `yaml:"method"` // desktop host: "type" or "paste"
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Mode       string   `yaml:"mode"` // "hold" or "toggle"
	RecordKeys []string `yaml:"record_keys"`
	ChatKeys   []string `yaml:"chat_keys"`
}

// HostConfig selects and configures the editor host backend.
type HostConfig struct {
	Kind           string        `yaml:"kind"` // "bridge" or "desktop"
	Listen         string        `yaml:"listen"`
	Token          string        `yaml:"token"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StatusConfig holds feedback settings.
type StatusConfig struct {
	DisplayDuration time.Duration `yaml:"display_duration"`
	Notifications   bool          `yaml:"notifications"`
	Terminal        bool          `yaml:"terminal"`
}

// HistoryConfig holds transcription history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Limit   int    `yaml:"limit"`
}

// MetricsConfig holds the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-code")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the directory for the history database.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "gostt-code")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://api.openai.com/v1",
			APIKeyEnv:      "OPENAI_API_KEY",
			Model:          "whisper-1",
			ResponseFormat: "json",
			Timeout:        60 * time.Second,
			MaxUploadMB:    25,
			HTTP2:          true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Strategy:    "exponential",
			BaseDelay:   500 * time.Millisecond,
			Multiplier:  2,
			MaxDelay:    10 * time.Second,
			Jitter:      0.2,
		},
		Audio: AudioConfig{
			Backend:          "ffmpeg",
			FFmpegPath:       "ffmpeg",
			Quality:          "standard",
			Channels:         1,
			Format:           "wav",
			MaxDuration:      5 * time.Minute,
			SilenceThreshold: 0.01,
		},
		Insert: InsertConfig{
			Mode:   "cursor",
			Method: "type",
		},
		Hotkey: HotkeyConfig{
			Enabled:    true,
			Mode:       "toggle",
			RecordKeys: []string{"ctrl", "shift", "r"},
			ChatKeys:   []string{"ctrl", "shift", "c"},
		},
		Host: HostConfig{
			Kind:           "bridge",
			Listen:         "127.0.0.1:7733",
			PollInterval:   500 * time.Millisecond,
			RequestTimeout: 5 * time.Second,
		},
		Status: StatusConfig{
			DisplayDuration: 3 * time.Second,
			Notifications:   true,
			Terminal:        true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(DefaultDataDir(), "history.db"),
			Limit:   200,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in history.path and audio.ffmpeg_path is expanded
// to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.History.Path = expandTilde(cfg.History.Path)
	cfg.Audio.FFmpegPath = expandTilde(cfg.Audio.FFmpegPath)
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must start with http:// or https://, got %q", c.API.BaseURL)
	}
	if c.API.Model == "" {
		return fmt.Errorf("api.model must not be empty")
	}
	if c.API.Temperature < 0 || c.API.Temperature > 1 {
		return fmt.Errorf("api.temperature must be within [0,1], got %v", c.API.Temperature)
	}
	switch c.API.ResponseFormat {
	case "json", "verbose_json", "text", "srt", "vtt":
	default:
		return fmt.Errorf("api.response_format must be json, verbose_json, text, srt, or vtt, got %q", c.API.ResponseFormat)
	}
	for _, g := range c.API.TimestampGranularities {
		if g != "word" && g != "segment" {
			return fmt.Errorf("api.timestamp_granularities entries must be \"word\" or \"segment\", got %q", g)
		}
	}
	if len(c.API.TimestampGranularities) > 0 && c.API.ResponseFormat != "verbose_json" {
		return fmt.Errorf("api.timestamp_granularities requires response_format verbose_json")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.API.MaxUploadMB <= 0 {
		return fmt.Errorf("api.max_upload_mb must be > 0")
	}

	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	switch c.Audio.Backend {
	case "ffmpeg", "native":
	default:
		return fmt.Errorf("audio.backend must be \"ffmpeg\" or \"native\", got %q", c.Audio.Backend)
	}
	if c.Audio.Backend == "ffmpeg" && c.Audio.FFmpegPath == "" {
		return fmt.Errorf("audio.ffmpeg_path must not be empty")
	}
	switch c.Audio.Quality {
	case "low", "standard", "high":
	default:
		return fmt.Errorf("audio.quality must be low, standard, or high, got %q", c.Audio.Quality)
	}
	if c.Audio.Channels == 0 || c.Audio.Channels > 2 {
		return fmt.Errorf("audio.channels must be 1 or 2")
	}
	switch c.Audio.Format {
	case "wav", "flac", "mp3", "ogg", "webm", "m4a":
	default:
		return fmt.Errorf("audio.format must be wav, flac, mp3, ogg, webm, or m4a, got %q", c.Audio.Format)
	}
	if c.Audio.Backend == "native" && c.Audio.Format != "wav" {
		return fmt.Errorf("audio.format %q requires the ffmpeg backend", c.Audio.Format)
	}
	if c.Audio.MaxDuration <= 0 {
		return fmt.Errorf("audio.max_duration must be > 0")
	}
	if c.Audio.SilenceThreshold < 0 || c.Audio.SilenceThreshold > 1 {
		return fmt.Errorf("audio.silence_threshold must be within [0,1]")
	}
	if c.Audio.SilenceTimeout < 0 {
		return fmt.Errorf("audio.silence_timeout must not be negative")
	}

	if _, err := inject.ParseMode(c.Insert.Mode); err != nil {
		return fmt.Errorf("insert.mode must be cursor, replace-selection, comment, new-line, clipboard, or chat, got %q", c.Insert.Mode)
	}
	switch c.Insert.Method {
	case "type", "paste":
	default:
		return fmt.Errorf("insert.method must be \"type\" or \"paste\", got %q", c.Insert.Method)
	}

	if c.Hotkey.Enabled {
		if len(c.Hotkey.RecordKeys) == 0 {
			return fmt.Errorf("hotkey.record_keys must not be empty")
		}
		switch c.Hotkey.Mode {
		case "hold", "toggle":
		default:
			return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
		}
	}

	switch c.Host.Kind {
	case "bridge":
		if c.Host.Listen == "" {
			return fmt.Errorf("host.listen must not be empty for the bridge host")
		}
	case "desktop":
		if c.Host.PollInterval <= 0 {
			return fmt.Errorf("host.poll_interval must be > 0")
		}
	default:
		return fmt.Errorf("host.kind must be \"bridge\" or \"desktop\", got %q", c.Host.Kind)
	}
	if c.Host.RequestTimeout <= 0 {
		return fmt.Errorf("host.request_timeout must be > 0")
	}

	if c.Status.DisplayDuration < 0 {
		return fmt.Errorf("status.display_duration must not be negative")
	}

	if c.History.Enabled {
		if c.History.Path == "" {
			return fmt.Errorf("history.path must not be empty")
		}
		if c.History.Limit <= 0 {
			return fmt.Errorf("history.limit must be > 0")
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// APIKey returns the configured credential, falling back to the environment
// variable named by api.api_key_env. An empty result means unset.
func (c *Config) APIKey() string {
	if k := strings.TrimSpace(c.API.APIKey); k != "" {
		return k
	}
	if c.API.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(c.API.APIKeyEnv))
	}
	return ""
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.API.MaxUploadMB) * 1024 * 1024
}

// RetryPolicy converts the retry section into a retry.Policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Strategy:    retry.Strategy(c.Retry.Strategy),
		BaseDelay:   c.Retry.BaseDelay,
		Multiplier:  c.Retry.Multiplier,
		MaxDelay:    c.Retry.MaxDelay,
		Jitter:      c.Retry.Jitter,
	}
}

// EffectiveSampleRate returns audio.sample_rate, or the rate implied by
// audio.quality when it is zero.
func (c *Config) EffectiveSampleRate() uint32 {
	if c.Audio.SampleRate > 0 {
		return c.Audio.SampleRate
	}
	switch c.Audio.Quality {
	case "low":
		return 8000
	case "high":
		return 44100
	default:
		return 16000
	}
}

// SlogLevel returns the slog.Level for log_level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLogLevel(c.LogLevel)
}

// ParseLogLevel maps a level name to a slog.Level. Unknown values map to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Redacted returns a copy safe to print: the API key is masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.API.APIKey != "" {
		cp.API.APIKey = mask(cp.API.APIKey)
	}
	if cp.Host.Token != "" {
		cp.Host.Token = mask(cp.Host.Token)
	}
	return &cp
}

func mask(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:3] + "…" + s[len(s)-4:]
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
