// Package transcribe sends recorded audio to an OpenAI-compatible
// speech-to-text API and parses the transcript.
package transcribe

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Transcriber converts recorded audio to text.
type Transcriber interface {
	// Transcribe uploads audio and returns the parsed result.
	Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error)
	// CheckCredential reports whether the configured credential is accepted.
	// It never returns an error; any failure means false.
	CheckCredential(ctx context.Context) bool
}

// Audio is an encoded audio payload.
type Audio struct {
	Data []byte
	// Filename is sent as the multipart file name; the API uses its
	// extension to detect the container.
	Filename string
}

// Ext returns the lowercase file extension without the dot, or "wav".
func (a Audio) Ext() string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(a.Filename)), ".")
	if ext == "" {
		return "wav"
	}
	return ext
}

// MIMEType returns the content type for the payload's extension.
func (a Audio) MIMEType() string {
	if m, ok := mimeTypes[a.Ext()]; ok {
		return m
	}
	return "application/octet-stream"
}

var mimeTypes = map[string]string{
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"mpga": "audio/mpeg",
}

// Options are per-request transcription parameters. Zero values fall back
// to the client's configured defaults.
type Options struct {
	Model                  string
	Language               string
	Prompt                 string
	Temperature            *float64
	ResponseFormat         string
	TimestampGranularities []string
}

// Result is a parsed transcription.
type Result struct {
	Text     string
	Language string
	Duration time.Duration
	Words    []Word
	Segments []Segment
}

// Word is a word-level timestamp.
type Word struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Segment is a segment-level timestamp.
type Segment struct {
	ID    int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Observer receives per-attempt telemetry from the client.
type Observer interface {
	ObserveRequest(outcome string, elapsed time.Duration, uploadBytes int)
	ObserveRetry(attempt int)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, time.Duration, int) {}
func (nopObserver) ObserveRetry(int)                          {}
