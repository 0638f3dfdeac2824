// Package app wires capture, transcription and insertion into the
// record-and-route command model: record and record-chat toggle a session,
// stop waits for it to be delivered, and every failure is normalized,
// logged, shown on the status indicator and sent as a notification.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/audio"
	"github.com/chaz8081/gostt-code/internal/config"
	"github.com/chaz8081/gostt-code/internal/history"
	"github.com/chaz8081/gostt-code/internal/host"
	"github.com/chaz8081/gostt-code/internal/inject"
	"github.com/chaz8081/gostt-code/internal/notify"
	"github.com/chaz8081/gostt-code/internal/status"
	"github.com/chaz8081/gostt-code/internal/transcribe"
)

// minRecording is the shortest capture worth uploading.
const minRecording = 300 * time.Millisecond

// Injector delivers a transcript to its destination.
type Injector interface {
	Inject(ctx context.Context, text string, mode inject.Mode) error
}

// HistoryWriter persists transcripts.
type HistoryWriter interface {
	Add(ctx context.Context, e history.Entry) (int64, error)
}

// Metrics receives per-session counters.
type Metrics interface {
	RecordRecording(reason string, d time.Duration)
	RecordInsertion(mode string)
	RecordError(code string)
}

type nopMetrics struct{}

func (nopMetrics) RecordRecording(string, time.Duration) {}
func (nopMetrics) RecordInsertion(string)                {}
func (nopMetrics) RecordError(string)                    {}

// Deps are the collaborators an App drives. History, Metrics and
// OpenSettings are optional.
type Deps struct {
	Config      *config.Config
	Adapter     *host.Adapter
	Capturer    audio.Capturer
	Transcriber transcribe.Transcriber
	Injector    Injector
	Indicator   *status.Indicator
	Notifier    notify.Notifier
	History     HistoryWriter
	Metrics     Metrics
	// OpenSettings runs when the user picks the "Open Settings" action.
	OpenSettings func(ctx context.Context) error
}

// Session is one recording.
type Session struct {
	ID        uuid.UUID
	Mode      inject.Mode
	StartedAt time.Time

	done chan struct{}
	err  error
}

// App is the single owner of mutable dictation state: the active session,
// the in-flight transcription and the last result.
type App struct {
	adapter      *host.Adapter
	capturer     audio.Capturer
	injector     Injector
	indicator    *status.Indicator
	notifier     notify.Notifier
	history      HistoryWriter
	metrics      Metrics
	openSettings func(ctx context.Context) error

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	mu          sync.Mutex
	cfg         *config.Config
	transcriber transcribe.Transcriber
	mode        inject.Mode
	session     *Session
	busy        bool
	last        *transcribe.Result
	pending     *audio.Recording // kept after a failed upload for Retry
}

// New validates deps and returns an idle App.
func New(d Deps) (*App, error) {
	switch {
	case d.Config == nil:
		return nil, fmt.Errorf("app: config is required")
	case d.Adapter == nil:
		return nil, fmt.Errorf("app: host adapter is required")
	case d.Capturer == nil:
		return nil, fmt.Errorf("app: capturer is required")
	case d.Transcriber == nil:
		return nil, fmt.Errorf("app: transcriber is required")
	case d.Injector == nil:
		return nil, fmt.Errorf("app: injector is required")
	}
	mode, err := inject.ParseMode(d.Config.Insert.Mode)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if d.Indicator == nil {
		d.Indicator = status.NewIndicator(d.Config.Status.DisplayDuration)
	}
	if d.Notifier == nil {
		d.Notifier = notify.Log{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		adapter:      d.Adapter,
		capturer:     d.Capturer,
		injector:     d.Injector,
		indicator:    d.Indicator,
		notifier:     d.Notifier,
		history:      d.History,
		metrics:      d.Metrics,
		openSettings: d.OpenSettings,
		ctx:          ctx,
		cancel:       cancel,
		cfg:          d.Config,
		transcriber:  d.Transcriber,
		mode:         mode,
	}, nil
}

// Mode returns the insertion mode used by Record.
func (a *App) Mode() inject.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// SetMode changes the insertion mode used by Record.
func (a *App) SetMode(s string) error {
	m, err := inject.ParseMode(s)
	if err != nil {
		return a.fail(err)
	}
	a.mu.Lock()
	a.mode = m
	a.mu.Unlock()
	slog.Info("[app] insertion mode changed", "mode", m)
	return nil
}

// Last returns the most recent transcription, or nil.
func (a *App) Last() *transcribe.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// IsRecording reports whether a session is capturing.
func (a *App) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

// Indicator returns the status indicator.
func (a *App) Indicator() *status.Indicator { return a.indicator }

func (a *App) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) client() transcribe.Transcriber {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcriber
}

// Reload applies a new configuration. A nil transcriber keeps the current
// one. Audio settings take effect at the next session.
func (a *App) Reload(cfg *config.Config, t transcribe.Transcriber) {
	mode, err := inject.ParseMode(cfg.Insert.Mode)
	a.mu.Lock()
	a.cfg = cfg
	if t != nil {
		a.transcriber = t
	}
	if err == nil {
		a.mode = mode
	}
	a.mu.Unlock()
	a.indicator.SetDisplayDuration(cfg.Status.DisplayDuration)
	slog.Info("[app] configuration reloaded", "mode", a.Mode())
}

// Record toggles a session that delivers with the current mode.
func (a *App) Record(ctx context.Context) error {
	if a.IsRecording() {
		return a.Stop(ctx)
	}
	return a.Start(ctx, a.Mode())
}

// RecordChat toggles a session that delivers to the chat panel.
func (a *App) RecordChat(ctx context.Context) error {
	if a.IsRecording() {
		return a.Stop(ctx)
	}
	return a.Start(ctx, inject.Chat)
}

// Start begins a session. Without a credential it warns once and captures
// nothing.
func (a *App) Start(_ context.Context, mode inject.Mode) error {
	cfg := a.config()
	if cfg.APIKey() == "" {
		msg := "No API key is configured. Set api.api_key in the config file"
		if cfg.API.APIKeyEnv != "" {
			msg += " or export " + cfg.API.APIKeyEnv
		}
		return a.fail(apperr.New(apperr.CodeMissingCredential, msg+"."))
	}

	a.mu.Lock()
	switch {
	case a.session != nil:
		a.mu.Unlock()
		return a.fail(apperr.New(apperr.CodeAlreadyRecording, "a recording is already in progress"))
	case a.busy:
		a.mu.Unlock()
		return a.fail(apperr.New(apperr.CodeBusy, "still transcribing the previous recording"))
	}
	sess := &Session{ID: uuid.New(), Mode: mode, StartedAt: time.Now(), done: make(chan struct{})}
	a.session = sess
	a.mu.Unlock()

	_ = a.indicator.Set(status.Recording, fmt.Sprintf("Recording (%s)", mode))
	// Capture outlives the command that started it, so it runs under the
	// app's context.
	err := a.capturer.Start(a.ctx, captureOptions(cfg), func(rec *audio.Recording, err error) {
		a.captured(sess, rec, err)
	})
	if err != nil {
		a.mu.Lock()
		if a.session == sess {
			a.session = nil
		}
		a.mu.Unlock()
		sess.err = a.fail(err)
		close(sess.done)
		return sess.err
	}
	slog.Info("[app] recording", "session", sess.ID, "mode", mode)
	return nil
}

func captureOptions(cfg *config.Config) audio.Options {
	return audio.Options{
		SampleRate:       cfg.EffectiveSampleRate(),
		Channels:         cfg.Audio.Channels,
		Format:           cfg.Audio.Format,
		Device:           cfg.Audio.Device,
		MaxDuration:      cfg.Audio.MaxDuration,
		SilenceThreshold: cfg.Audio.SilenceThreshold,
		SilenceTimeout:   cfg.Audio.SilenceTimeout,
	}
}

// captured runs once per session on the capturer's goroutine.
func (a *App) captured(sess *Session, rec *audio.Recording, err error) {
	a.mu.Lock()
	if a.session == sess {
		a.session = nil
	}
	if err == nil {
		a.busy = true
	}
	a.mu.Unlock()

	if err != nil {
		if apperr.HasCode(err, apperr.CodeCanceled) {
			slog.Info("[app] recording canceled", "session", sess.ID)
			a.indicator.Dismiss()
		} else {
			sess.err = a.fail(err)
		}
		close(sess.done)
		return
	}

	a.metrics.RecordRecording(string(rec.Reason), rec.Duration)
	slog.Info("[app] captured", "session", sess.ID, "duration", rec.Duration.Round(time.Millisecond), "reason", rec.Reason)

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		defer close(sess.done)
		sess.err = a.process(sess, rec)
	}()
}

// process uploads rec and delivers the transcript. The caller has set busy.
func (a *App) process(sess *Session, rec *audio.Recording) error {
	defer func() {
		a.mu.Lock()
		a.busy = false
		a.mu.Unlock()
	}()

	if rec.Duration < minRecording {
		return a.fail(apperr.Newf(apperr.CodeEmptyAudio, "recording too short (%.1fs)", rec.Duration.Seconds()))
	}

	_ = a.indicator.Set(status.Processing, fmt.Sprintf("%.1fs of audio", rec.Duration.Seconds()))
	_ = a.indicator.Set(status.Transcribing, "")

	start := time.Now()
	res, err := a.client().Transcribe(a.ctx, transcribe.Audio{Data: rec.Data, Filename: rec.Filename()}, transcribe.Options{})
	if err != nil {
		if apperr.IsRetryable(err) || apperr.HasCode(err, apperr.CodeInvalidCredential) {
			a.mu.Lock()
			a.pending = rec
			a.mu.Unlock()
		}
		return a.fail(err)
	}
	slog.Info("[app] transcribed", "session", sess.ID, "elapsed", time.Since(start).Round(time.Millisecond), "chars", len(res.Text))

	a.mu.Lock()
	a.last = res
	a.pending = nil
	a.mu.Unlock()

	if strings.TrimSpace(res.Text) == "" {
		return a.fail(apperr.New(apperr.CodeEmptyTranscript, "no speech detected"))
	}
	a.remember(sess.ID, res, string(sess.Mode), rec.Duration)
	return a.deliver(a.ctx, res.Text, sess.Mode)
}

// deliver injects text and reports the outcome.
func (a *App) deliver(ctx context.Context, text string, mode inject.Mode) error {
	_ = a.indicator.Set(status.Inserting, string(mode))
	if err := a.injector.Inject(ctx, text, mode); err != nil {
		return a.fail(err)
	}
	a.metrics.RecordInsertion(string(mode))
	_ = a.indicator.Set(status.Success, successMessage(mode, text))
	return nil
}

func successMessage(mode inject.Mode, text string) string {
	n := len([]rune(text))
	switch mode {
	case inject.Clipboard:
		return fmt.Sprintf("Copied %d characters", n)
	case inject.Chat:
		return fmt.Sprintf("Sent %d characters to chat", n)
	default:
		return fmt.Sprintf("Inserted %d characters", n)
	}
}

func (a *App) remember(id uuid.UUID, res *transcribe.Result, mode string, d time.Duration) {
	if a.history == nil {
		return
	}
	_, err := a.history.Add(a.ctx, history.Entry{
		SessionID: id.String(),
		Text:      res.Text,
		Language:  res.Language,
		Mode:      mode,
		Host:      string(a.adapter.Variant()),
		Duration:  d,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("[app] saving history failed", "error", err)
	}
}

// Stop ends the active session and waits until its transcript has been
// delivered or has failed. The failure, already reported, is returned.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	sess := a.session
	a.mu.Unlock()
	if sess == nil {
		return a.fail(apperr.New(apperr.CodeNotRecording, "no recording is in progress"))
	}
	if err := a.capturer.Stop(); err != nil && !apperr.HasCode(err, apperr.CodeNotRecording) {
		return a.fail(err)
	}
	select {
	case <-sess.done:
		return sess.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel discards the active session.
func (a *App) Cancel() error {
	a.mu.Lock()
	sess := a.session
	a.mu.Unlock()
	if sess == nil {
		return a.fail(apperr.New(apperr.CodeNotRecording, "no recording is in progress"))
	}
	if err := a.capturer.Cancel(); err != nil && !apperr.HasCode(err, apperr.CodeNotRecording) {
		return a.fail(err)
	}
	<-sess.done
	return nil
}

// Retry uploads the recording kept from the last failed transcription.
func (a *App) Retry(context.Context) error {
	a.mu.Lock()
	rec := a.pending
	if rec == nil {
		a.mu.Unlock()
		return a.fail(apperr.New(apperr.CodeNoTranscription, "there is no failed recording to retry"))
	}
	if a.busy || a.session != nil {
		a.mu.Unlock()
		return a.fail(apperr.New(apperr.CodeBusy, "a recording is in progress"))
	}
	a.busy = true
	mode := a.mode
	a.mu.Unlock()

	return a.process(&Session{ID: uuid.New(), Mode: mode, StartedAt: time.Now()}, rec)
}

// InsertLast delivers the last transcript again with the current mode.
func (a *App) InsertLast(ctx context.Context) error {
	last := a.Last()
	if last == nil || strings.TrimSpace(last.Text) == "" {
		return a.fail(apperr.New(apperr.CodeNoTranscription, "nothing has been transcribed yet"))
	}
	return a.deliver(ctx, last.Text, a.Mode())
}

// CheckCredential probes the API key and reports the outcome.
func (a *App) CheckCredential(ctx context.Context) bool {
	cfg := a.config()
	if cfg.APIKey() == "" {
		_ = a.fail(apperr.New(apperr.CodeMissingCredential, "no API key is configured"))
		return false
	}
	if !a.client().CheckCredential(ctx) {
		_ = a.fail(apperr.New(apperr.CodeInvalidCredential, "the API key was rejected or the API is unreachable"))
		return false
	}
	a.notifyAsync(notify.Notice{Level: notify.Info, Title: "gostt-code", Message: "The API key is valid."}, apperr.ActionNone)
	return true
}

// TranscribeFile transcribes an audio file without touching the editor.
// The result becomes the last result and is saved to history.
func (a *App) TranscribeFile(ctx context.Context, path string) (string, error) {
	a.mu.Lock()
	if a.busy {
		a.mu.Unlock()
		return "", apperr.New(apperr.CodeBusy, "another transcription is in flight")
	}
	a.busy = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.busy = false
		a.mu.Unlock()
	}()

	res, d, err := transcribeFile(ctx, a.client(), path)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.last = res
	a.mu.Unlock()
	a.remember(uuid.New(), res, "file", d)
	return res.Text, nil
}

// TranscribeFile transcribes an audio file with t and, when h is not nil,
// saves the transcript to history. It needs no editor or capture device.
func TranscribeFile(ctx context.Context, t transcribe.Transcriber, h HistoryWriter, path string) (string, error) {
	res, d, err := transcribeFile(ctx, t, path)
	if err != nil {
		return "", err
	}
	if h != nil {
		_, err := h.Add(ctx, history.Entry{
			SessionID: uuid.NewString(),
			Text:      res.Text,
			Language:  res.Language,
			Mode:      "file",
			Duration:  d,
			CreatedAt: time.Now(),
		})
		if err != nil {
			slog.Warn("[app] saving history failed", "error", err)
		}
	}
	return res.Text, nil
}

func transcribeFile(ctx context.Context, t transcribe.Transcriber, path string) (*transcribe.Result, time.Duration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, err, "reading audio file")
	}
	res, err := t.Transcribe(ctx, transcribe.Audio{Data: data, Filename: filepath.Base(path)}, transcribe.Options{})
	if err != nil {
		return nil, 0, err
	}
	d := res.Duration
	if d == 0 && strings.EqualFold(filepath.Ext(path), ".wav") {
		d, _ = audio.DecodeWAVInfo(path)
	}
	return res, d, nil
}

// Close cancels any capture and waits for background work.
func (a *App) Close() {
	if a.IsRecording() {
		_ = a.capturer.Cancel()
	}
	a.cancel()
	a.bg.Wait()
}
