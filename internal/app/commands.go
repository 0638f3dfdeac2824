package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/audio"
	"github.com/chaz8081/gostt-code/internal/host"
	"github.com/chaz8081/gostt-code/internal/inject"
	"github.com/chaz8081/gostt-code/internal/notify"
)

// Command names accepted by Dispatch.
const (
	CmdRecord          = "record"
	CmdRecordChat      = "record-chat"
	CmdStop            = "stop"
	CmdCancel          = "cancel"
	CmdRetry           = "retry"
	CmdSetMode         = "set-mode"
	CmdInsertLast      = "insert-last"
	CmdDiagnostics     = "diagnostics"
	CmdCheckCredential = "check-credential"
	CmdDismiss         = "dismiss"
)

// Commands lists the names Dispatch understands.
func Commands() []string {
	return []string{CmdRecord, CmdRecordChat, CmdStop, CmdCancel, CmdRetry, CmdSetMode,
		CmdInsertLast, CmdDiagnostics, CmdCheckCredential, CmdDismiss}
}

// Dispatch runs a named command, as sent by the editor bridge.
func (a *App) Dispatch(ctx context.Context, name string, args map[string]string) error {
	slog.Debug("[app] command", "name", name, "args", args)
	switch name {
	case CmdRecord:
		return a.Record(ctx)
	case CmdRecordChat:
		return a.RecordChat(ctx)
	case CmdStop:
		return a.Stop(ctx)
	case CmdCancel:
		return a.Cancel()
	case CmdRetry:
		return a.Retry(ctx)
	case CmdSetMode:
		return a.SetMode(args["mode"])
	case CmdInsertLast:
		return a.InsertLast(ctx)
	case CmdDiagnostics:
		r := a.Diagnostics(ctx)
		slog.Info("[app] diagnostics\n" + r.String())
		a.notifyAsync(notify.Notice{Level: notify.Info, Title: "gostt-code diagnostics", Message: r.String()}, apperr.ActionNone)
		return nil
	case CmdCheckCredential:
		if !a.CheckCredential(ctx) {
			return fmt.Errorf("app: credential check failed")
		}
		return nil
	case CmdDismiss:
		a.indicator.Dismiss()
		return nil
	}
	return fmt.Errorf("app: unknown command %q", name)
}

// Report is the diagnostics snapshot.
type Report struct {
	OS         string
	Variant    host.Variant
	Context    host.Snapshot
	Mode       inject.Mode
	Capture    audio.ToolInfo
	CaptureErr string
	Devices    []audio.Device
	DevicesErr string
	Credential string // missing, valid or rejected
	Recording  bool
	HasLast    bool
}

// Diagnostics checks the capture backend, input devices, credential and
// editor context.
func (a *App) Diagnostics(ctx context.Context) Report {
	r := Report{
		OS:        runtime.GOOS + "/" + runtime.GOARCH,
		Variant:   a.adapter.Variant(),
		Context:   a.adapter.Refresh(ctx),
		Mode:      a.Mode(),
		Recording: a.IsRecording(),
		HasLast:   a.Last() != nil,
	}
	if info, err := a.capturer.Check(ctx); err != nil {
		r.CaptureErr = err.Error()
	} else {
		r.Capture = info
	}
	if devs, err := a.capturer.Devices(ctx); err != nil {
		r.DevicesErr = err.Error()
	} else {
		r.Devices = devs
	}
	switch {
	case a.config().APIKey() == "":
		r.Credential = "missing"
	case a.client().CheckCredential(ctx):
		r.Credential = "valid"
	default:
		r.Credential = "rejected"
	}
	return r
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  OS:         %s\n", r.OS)
	fmt.Fprintf(&b, "  Editor:     %s (%s)\n", r.Variant, r.Context.Type)
	if r.Context.File != "" {
		fmt.Fprintf(&b, "  File:       %s [%s]\n", r.Context.File, r.Context.LanguageID)
	}
	fmt.Fprintf(&b, "  Mode:       %s\n", r.Mode)
	if r.CaptureErr != "" {
		fmt.Fprintf(&b, "  Capture:    error: %s\n", r.CaptureErr)
	} else {
		fmt.Fprintf(&b, "  Capture:    %s %s (%s)\n", r.Capture.Name, r.Capture.Version, r.Capture.Path)
	}
	if r.DevicesErr != "" {
		fmt.Fprintf(&b, "  Devices:    error: %s\n", r.DevicesErr)
	}
	for _, d := range r.Devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(&b, "  %s %s (%s)\n", mark, d.Name, d.ID)
	}
	fmt.Fprintf(&b, "  Credential: %s\n", r.Credential)
	fmt.Fprintf(&b, "  Recording:  %v\n", r.Recording)
	return b.String()
}

func installHint() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install ffmpeg with `brew install ffmpeg`, or set audio.backend to native."
	case "windows":
		return "Install ffmpeg with `winget install ffmpeg` and make sure it is on PATH, or set audio.backend to native."
	default:
		return "Install ffmpeg from your package manager (e.g. `apt install ffmpeg`), or set audio.backend to native."
	}
}
