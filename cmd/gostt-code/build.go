package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/chaz8081/gostt-code/internal/audio"
	"github.com/chaz8081/gostt-code/internal/config"
	"github.com/chaz8081/gostt-code/internal/history"
	"github.com/chaz8081/gostt-code/internal/transcribe"
)

// closer is a capturer that holds native resources.
type closer interface{ Close() error }

func newCapturer(cfg *config.Config) (audio.Capturer, error) {
	if cfg.Audio.Backend == "native" {
		return audio.NewNative()
	}
	return audio.NewFFmpeg(cfg.Audio.FFmpegPath, cfg.Audio.InputFormat), nil
}

func newClient(cfg *config.Config, opts ...transcribe.Option) *transcribe.Client {
	return transcribe.NewClient(transcribe.Config{
		BaseURL:                cfg.API.BaseURL,
		APIKey:                 cfg.APIKey(),
		Model:                  cfg.API.Model,
		Language:               cfg.API.Language,
		Prompt:                 cfg.API.Prompt,
		Temperature:            cfg.API.Temperature,
		ResponseFormat:         cfg.API.ResponseFormat,
		TimestampGranularities: cfg.API.TimestampGranularities,
		Timeout:                cfg.API.Timeout,
		MaxUploadBytes:         cfg.MaxUploadBytes(),
		HTTP2:                  cfg.API.HTTP2,
		Retry:                  cfg.RetryPolicy(),
		UserAgent:              "gostt-code/" + version,
	}, opts...)
}

// openHistory returns nil when history is disabled.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return history.Open(cfg.History.Path, cfg.History.Limit)
}

// openFile opens path with the platform's default handler.
func openFile(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", path)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", path)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	go cmd.Wait()
	return nil
}
