package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/retry"
)

// DefaultMaxUploadBytes is the vendor's upload ceiling.
const DefaultMaxUploadBytes int64 = 25 * 1024 * 1024

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 * 1024 * 1024

// Config configures the HTTP client.
type Config struct {
	BaseURL                string // e.g. https://api.openai.com/v1
	APIKey                 string // sent as Bearer; empty means unset
	Model                  string
	Language               string
	Prompt                 string
	Temperature            float64
	ResponseFormat         string
	TimestampGranularities []string
	Timeout                time.Duration // per attempt
	MaxUploadBytes         int64
	HTTP2                  bool
	Retry                  retry.Policy
	UserAgent              string
}

// Client is a Transcriber backed by the /audio/transcriptions endpoint.
type Client struct {
	cfg      Config
	http     *http.Client
	observer Observer
	retryOpt []retry.Option
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver attaches a telemetry observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithRetryOptions passes extra options to retry.Do.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(c *Client) { c.retryOpt = append(c.retryOpt, opts...) }
}

// NewClient creates a transcription client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = "json"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "gostt-code"
	}
	c := &Client{
		cfg:      cfg,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = newHTTPClient(cfg.HTTP2)
	}
	return c
}

// request is Options with defaults applied.
type request struct {
	model          string
	language       string
	prompt         string
	temperature    float64
	responseFormat string
	granularities  []string
}

func (c *Client) resolve(opts Options) request {
	r := request{
		model:          c.cfg.Model,
		language:       c.cfg.Language,
		prompt:         c.cfg.Prompt,
		temperature:    c.cfg.Temperature,
		responseFormat: c.cfg.ResponseFormat,
		granularities:  c.cfg.TimestampGranularities,
	}
	if opts.Model != "" {
		r.model = opts.Model
	}
	if opts.Language != "" {
		r.language = opts.Language
	}
	if opts.Prompt != "" {
		r.prompt = opts.Prompt
	}
	if opts.Temperature != nil {
		r.temperature = *opts.Temperature
	}
	if opts.ResponseFormat != "" {
		r.responseFormat = opts.ResponseFormat
	}
	if len(opts.TimestampGranularities) > 0 {
		r.granularities = opts.TimestampGranularities
	}
	return r
}

// Transcribe uploads audio and returns the transcript. Empty or oversized
// payloads and a missing credential fail before any network I/O.
func (c *Client) Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error) {
	if len(audio.Data) == 0 {
		return nil, apperr.New(apperr.CodeEmptyAudio, "no audio was captured")
	}
	if size := int64(len(audio.Data)); size > c.cfg.MaxUploadBytes {
		return nil, apperr.Newf(apperr.CodeAudioTooLarge,
			"recording is %.1f MB, the API accepts at most %.0f MB",
			float64(size)/(1024*1024), float64(c.cfg.MaxUploadBytes)/(1024*1024))
	}
	if c.cfg.APIKey == "" {
		return nil, apperr.New(apperr.CodeMissingCredential, "no API key is configured")
	}
	if audio.Filename == "" {
		audio.Filename = "audio.wav"
	}

	req := c.resolve(opts)
	body, contentType, err := encodeMultipart(audio, req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "building upload")
	}

	opt := append([]retry.Option{
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			slog.Warn("[transcribe] attempt failed, retrying",
				"attempt", attempt, "delay", delay.Round(time.Millisecond), "error", err)
			c.observer.ObserveRetry(attempt)
		}),
	}, c.retryOpt...)

	res := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context, attempt int) (*Result, error) {
		return c.post(ctx, body, contentType, req.responseFormat)
	}, opt...)
	if !res.Success() {
		return nil, res.Err
	}
	slog.Debug("[transcribe] done", "attempts", res.Attempts, "chars", len(res.Value.Text))
	return res.Value, nil
}

// encodeMultipart builds the form body once so every attempt resends the
// same bytes.
func encodeMultipart(audio Audio, req request) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, audio.Filename))
	h.Set("Content-Type", audio.MIMEType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", req.model},
		{"response_format", req.responseFormat},
		{"temperature", strconv.FormatFloat(req.temperature, 'f', -1, 64)},
	}
	if req.language != "" {
		fields = append(fields, [2]string{"language", req.language})
	}
	if req.prompt != "" {
		fields = append(fields, [2]string{"prompt", req.prompt})
	}
	for _, g := range req.granularities {
		fields = append(fields, [2]string{"timestamp_granularities[]", g})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// post performs a single attempt.
func (c *Client) post(ctx context.Context, body []byte, contentType, format string) (*Result, error) {
	start := time.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create request")
	}
	req.Header.Set("Content-Type", contentType)
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		err = transportError(ctx, err)
		c.observer.ObserveRequest(string(apperr.CodeOf(err)), time.Since(start), len(body))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		err = transportError(ctx, err)
		c.observer.ObserveRequest(string(apperr.CodeOf(err)), time.Since(start), len(body))
		return nil, err
	}

	if err := statusError(resp, data); err != nil {
		c.observer.ObserveRequest(string(err.Code), time.Since(start), len(body))
		return nil, err
	}

	result, err := parseResponse(format, data)
	if err != nil {
		c.observer.ObserveRequest("decode_error", time.Since(start), len(body))
		return nil, apperr.Wrap(apperr.CodeAPI, err, "unexpected response from the API")
	}
	c.observer.ObserveRequest("ok", time.Since(start), len(body))
	return result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
}

// transportError classifies a failed round trip. The parent context decides
// between cancellation and a per-attempt timeout.
func transportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		if errors.Is(parent.Err(), context.DeadlineExceeded) {
			return apperr.Wrap(apperr.CodeTimeout, err, "request timed out")
		}
		return apperr.Wrap(apperr.CodeCanceled, parent.Err(), "request canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeTimeout, err, "request timed out")
	}
	return apperr.Wrap(apperr.CodeNetwork, err, "could not reach the transcription service")
}

// statusError maps a non-2xx response to a typed error.
func statusError(resp *http.Response, body []byte) *apperr.Error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg := apiMessage(body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperr.New(apperr.CodeInvalidCredential, "the API key was rejected")
	case resp.StatusCode == http.StatusTooManyRequests:
		e := apperr.Newf(apperr.CodeRateLimited, "rate limited: %s", msg)
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return e
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return apperr.New(apperr.CodePayloadTooLarge, "the API rejected the recording as too large")
	case resp.StatusCode >= 500:
		return apperr.Newf(apperr.CodeServer, "server error %d: %s", resp.StatusCode, msg)
	default:
		return apperr.Newf(apperr.CodeAPI, "http %d: %s", resp.StatusCode, msg)
	}
}

// apiMessage extracts {"error":{"message":...}} or falls back to the
// truncated body.
func apiMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return truncate(strings.TrimSpace(string(body)), 200)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// transcriptionResponse mirrors json and verbose_json bodies.
type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func parseResponse(format string, body []byte) (*Result, error) {
	switch format {
	case "text", "srt", "vtt":
		return &Result{Text: strings.TrimSpace(string(body))}, nil
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	r := &Result{
		Text:     strings.TrimSpace(parsed.Text),
		Language: parsed.Language,
		Duration: secondsToDuration(parsed.Duration),
	}
	for _, w := range parsed.Words {
		r.Words = append(r.Words, Word{Text: w.Word, Start: secondsToDuration(w.Start), End: secondsToDuration(w.End)})
	}
	for _, s := range parsed.Segments {
		r.Segments = append(r.Segments, Segment{ID: s.ID, Start: secondsToDuration(s.Start), End: secondsToDuration(s.End), Text: s.Text})
	}
	return r, nil
}

// CheckCredential probes GET /models with the configured key. Any failure,
// including a missing key, yields false.
func (c *Client) CheckCredential(ctx context.Context) bool {
	if c.cfg.APIKey == "" {
		return false
	}
	_, err := c.Models(ctx)
	if err != nil {
		slog.Debug("[transcribe] credential check failed", "error", err)
		return false
	}
	return true
}

// Models lists the model IDs available to the credential.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	if c.cfg.APIKey == "" {
		return nil, apperr.New(apperr.CodeMissingCredential, "no API key is configured")
	}
	timeout := c.cfg.Timeout
	if timeout > 15*time.Second {
		timeout = 15 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, err)
	}
	if err := statusError(resp, data); err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.CodeAPI, err, "unexpected response from the API")
	}
	ids := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
