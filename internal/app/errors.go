package app

import (
	"log/slog"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/config"
	"github.com/chaz8081/gostt-code/internal/notify"
	"github.com/chaz8081/gostt-code/internal/status"
)

// quiet codes come from the user's own timing and only update the status.
var quiet = map[apperr.Code]bool{
	apperr.CodeAlreadyRecording: true,
	apperr.CodeNotRecording:     true,
	apperr.CodeBusy:             true,
}

// fail reports err and returns it normalized.
func (a *App) fail(err error) error {
	ae := apperr.Normalize(err)
	if ae.Code == apperr.CodeCanceled {
		a.indicator.Dismiss()
		return ae
	}
	a.metrics.RecordError(string(ae.Code))

	level, st := notify.Error, status.Error
	switch ae.Category() {
	case apperr.CategoryConfiguration, apperr.CategoryInput:
		level, st = notify.Warning, status.Warning
		slog.Warn("[app] "+ae.UserMessage(), "code", ae.Code, "error", err)
	default:
		slog.Error("[app] "+ae.UserMessage(), "code", ae.Code, "error", err)
	}
	_ = a.indicator.Set(st, ae.UserMessage())

	if quiet[ae.Code] {
		return ae
	}
	a.notifyAsync(notify.Notice{Level: level, Title: "gostt-code", Message: ae.UserMessage()}, ae.Recovery())
	return ae
}

// notifyAsync shows n without blocking the caller and runs action only when
// the user picks it.
func (a *App) notifyAsync(n notify.Notice, action apperr.Action) {
	if label := action.Label(); label != "" {
		n.Actions = []string{label}
	}
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		picked, err := a.notifier.Notify(a.ctx, n)
		if err != nil {
			slog.Warn("[app] notification failed", "error", err)
			return
		}
		if picked != "" && picked == action.Label() {
			a.runRecovery(action)
		}
	}()
}

func (a *App) runRecovery(action apperr.Action) {
	slog.Info("[app] running recovery action", "action", action)
	switch action {
	case apperr.ActionOpenSettings:
		if a.openSettings == nil {
			slog.Info("[app] edit the config file to fix this", "path", config.DefaultConfigPath())
			return
		}
		if err := a.openSettings(a.ctx); err != nil {
			slog.Warn("[app] opening settings failed", "error", err)
		}
	case apperr.ActionInstallTool:
		a.notifyAsync(notify.Notice{
			Level:   notify.Info,
			Title:   "Install ffmpeg",
			Message: installHint(),
		}, apperr.ActionNone)
	case apperr.ActionRetry:
		_ = a.Retry(a.ctx)
	}
}
