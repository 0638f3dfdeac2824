package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/retry"
)

// fastRetry keeps backoff out of test wall time.
var fastRetry = retry.Policy{MaxAttempts: 3, Strategy: retry.Fixed, BaseDelay: time.Millisecond}

func newTestClient(t *testing.T, url string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL: url,
		APIKey:  "sk-test",
		Model:   "whisper-1",
		Timeout: 2 * time.Second,
		Retry:   fastRetry,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg)
}

func wavAudio() Audio {
	return Audio{Data: []byte("RIFF....WAVEfmt "), Filename: "speech.wav"}
}

func TestTranscribeSuccess(t *testing.T) {
	var got struct {
		auth, model, language, prompt, format, filename, contentType string
		granularities                                             []string
		size                                                      int
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" || r.Method != http.MethodPost {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		got.size = len(data)
		got.filename = header.Filename
		got.contentType = header.Header.Get("Content-Type")
		got.auth = r.Header.Get("Authorization")
		got.model = r.FormValue("model")
		got.language = r.FormValue("language")
		got.prompt = r.FormValue("prompt")
		got.format = r.FormValue("response_format")
		got.granularities = r.MultipartForm.Value["timestamp_granularities[]"]

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"text":     " hello world ",
			"language": "english",
			"duration": 2.5,
			"words": []map[string]any{
				{"word": "hello", "start": 0.1, "end": 0.5},
				{"word": "world", "start": 0.6, "end": 1.0},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1/", func(cfg *Config) {
		cfg.Language = "en"
		cfg.ResponseFormat = "verbose_json"
		cfg.TimestampGranularities = []string{"word"}
	})
	res, err := c.Transcribe(context.Background(), wavAudio(), Options{Prompt: "gostt, golang"})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if res.Text != "hello world" {
		t.Errorf("Text = %q, want %q", res.Text, "hello world")
	}
	if res.Language != "english" {
		t.Errorf("Language = %q", res.Language)
	}
	if res.Duration != 2500*time.Millisecond {
		t.Errorf("Duration = %v, want 2.5s", res.Duration)
	}
	if len(res.Words) != 2 || res.Words[1].Text != "world" || res.Words[1].Start != 600*time.Millisecond {
		t.Errorf("Words = %+v", res.Words)
	}
	if got.auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.model != "whisper-1" || got.language != "en" || got.prompt != "gostt, golang" || got.format != "verbose_json" {
		t.Errorf("fields = %+v", got)
	}
	if len(got.granularities) != 1 || got.granularities[0] != "word" {
		t.Errorf("timestamp_granularities[] = %v", got.granularities)
	}
	if got.filename != "speech.wav" || got.contentType != "audio/wav" {
		t.Errorf("file part = %q (%s)", got.filename, got.contentType)
	}
	if got.size != len(wavAudio().Data) {
		t.Errorf("uploaded %d bytes, want %d", got.size, len(wavAudio().Data))
	}
}

func TestTranscribeTextFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "plain transcript\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.ResponseFormat = "text" })
	res, err := c.Transcribe(context.Background(), wavAudio(), Options{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if res.Text != "plain transcript" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestTranscribeLocalFailuresMakeNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"text":"unexpected"}`)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		audio  Audio
		mutate func(*Config)
		want   apperr.Code
	}{
		{"empty audio", Audio{Filename: "a.wav"}, nil, apperr.CodeEmptyAudio},
		{"too large", Audio{Data: make([]byte, 1025), Filename: "a.wav"}, func(c *Config) { c.MaxUploadBytes = 1024 }, apperr.CodeAudioTooLarge},
		{"too large at default ceiling", Audio{Data: make([]byte, DefaultMaxUploadBytes+1), Filename: "a.wav"}, nil, apperr.CodeAudioTooLarge},
		{"missing key", wavAudio(), func(c *Config) { c.APIKey = "" }, apperr.CodeMissingCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, srv.URL, tt.mutate)
			_, err := c.Transcribe(context.Background(), tt.audio, Options{})
			if !apperr.HasCode(err, tt.want) {
				t.Errorf("Transcribe() error = %v, want code %s", err, tt.want)
			}
		})
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("server received %d requests, want 0", n)
	}
}

func TestTranscribeStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     apperr.Code
		attempts int32
	}{
		{"401 json", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key"}}`, apperr.CodeInvalidCredential, 1},
		{"401 html", http.StatusUnauthorized, `<html>nope</html>`, apperr.CodeInvalidCredential, 1},
		{"401 empty", http.StatusUnauthorized, ``, apperr.CodeInvalidCredential, 1},
		{"413", http.StatusRequestEntityTooLarge, `too big`, apperr.CodePayloadTooLarge, 1},
		{"400", http.StatusBadRequest, `{"error":{"message":"bad model"}}`, apperr.CodeAPI, 1},
		{"429 retried", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, apperr.CodeRateLimited, 3},
		{"503 retried", http.StatusServiceUnavailable, `upstream`, apperr.CodeServer, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, nil)
			_, err := c.Transcribe(context.Background(), wavAudio(), Options{})
			if !apperr.HasCode(err, tt.want) {
				t.Errorf("Transcribe() error = %v, want code %s", err, tt.want)
			}
			if n := hits.Load(); n != tt.attempts {
				t.Errorf("requests = %d, want %d", n, tt.attempts)
			}
		})
	}
}

func TestTranscribeRecoversAfterServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"text":"third time lucky"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	res, err := c.Transcribe(context.Background(), wavAudio(), Options{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if res.Text != "third time lucky" || hits.Load() != 3 {
		t.Errorf("Text = %q after %d requests", res.Text, hits.Load())
	}
}

func TestTranscribeAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
		cfg.Retry = retry.Policy{MaxAttempts: 1, Strategy: retry.Fixed}
	})
	_, err := c.Transcribe(context.Background(), wavAudio(), Options{})
	if !apperr.HasCode(err, apperr.CodeTimeout) {
		t.Errorf("Transcribe() error = %v, want timeout", err)
	}
}

func TestTranscribeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, func(cfg *Config) {
		cfg.Retry = retry.Policy{MaxAttempts: 2, Strategy: retry.Fixed, BaseDelay: time.Millisecond}
	})
	_, err := c.Transcribe(context.Background(), wavAudio(), Options{})
	if !apperr.HasCode(err, apperr.CodeNetwork) {
		t.Errorf("Transcribe() error = %v, want network error", err)
	}
}

type countingObserver struct {
	requests atomic.Int32
	retries  atomic.Int32
}

func (o *countingObserver) ObserveRequest(string, time.Duration, int) { o.requests.Add(1) }
func (o *countingObserver) ObserveRetry(int)                          { o.retries.Add(1) }

func TestTranscribeObserver(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	obs := &countingObserver{}
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Retry: fastRetry}, WithObserver(obs))
	if _, err := c.Transcribe(context.Background(), wavAudio(), Options{}); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if obs.requests.Load() != 2 || obs.retries.Load() != 1 {
		t.Errorf("observer saw %d requests, %d retries; want 2, 1", obs.requests.Load(), obs.retries.Load())
	}
}

func TestCheckCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"data":[{"id":"whisper-1"},{"id":"gpt-4o-transcribe"}]}`)
	}))
	defer srv.Close()

	tests := []struct {
		key  string
		want bool
	}{
		{"good", true},
		{"bad", false},
		{"", false},
	}
	for _, tt := range tests {
		c := NewClient(Config{BaseURL: srv.URL, APIKey: tt.key})
		if got := c.CheckCredential(context.Background()); got != tt.want {
			t.Errorf("CheckCredential(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	ids, err := NewClient(Config{BaseURL: srv.URL, APIKey: "good"}).Models(context.Background())
	if err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	if strings.Join(ids, ",") != "whisper-1,gpt-4o-transcribe" {
		t.Errorf("Models() = %v", ids)
	}
}

func TestCheckCredentialUnreachable(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: "k", Timeout: 200 * time.Millisecond})
	if c.CheckCredential(context.Background()) {
		t.Error("CheckCredential() = true for unreachable server")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"7", 7 * time.Second},
		{"-1", 0},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAudioMIMEType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.wav", "audio/wav"},
		{"a.MP3", "audio/mpeg"},
		{"a.webm", "audio/webm"},
		{"", "audio/wav"},
		{"a.xyz", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := (Audio{Filename: tt.name}).MIMEType(); got != tt.want {
			t.Errorf("MIMEType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
