package inject

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/host"
)

// ClipboardWriter is the system clipboard.
type ClipboardWriter interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

// SystemClipboard uses the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }
func (SystemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }

// Sink routes text to the destination a Mode names.
type Sink struct {
	adapter    *host.Adapter
	clipboard  ClipboardWriter
	retryDelay time.Duration
}

// NewSink returns a Sink writing through adapter's host. A nil clipboard
// means the system clipboard.
func NewSink(adapter *host.Adapter, cb ClipboardWriter) *Sink {
	if cb == nil {
		cb = SystemClipboard{}
	}
	return &Sink{adapter: adapter, clipboard: cb, retryDelay: 150 * time.Millisecond}
}

// Inject delivers text. Editor modes require an active editor and
// replace-selection requires a selection. Clipboard and chat failures are
// retried once.
func (s *Sink) Inject(ctx context.Context, text string, mode Mode) error {
	if strings.TrimSpace(text) == "" {
		return apperr.New(apperr.CodeEmptyTranscript, "nothing to insert")
	}

	if mode.NeedsEditor() {
		snap := s.adapter.Refresh(ctx)
		if snap.Type != host.ContextEditor {
			return apperr.New(apperr.CodeNoActiveEditor, "no active editor; focus a file and try again")
		}
		if mode == ReplaceSelection && !snap.HasSelection {
			return apperr.New(apperr.CodeNoSelection, "nothing is selected")
		}
	}

	h := s.adapter.Host()
	switch mode {
	case Cursor:
		return editErr(h.InsertText(ctx, text))
	case ReplaceSelection:
		return editErr(h.ReplaceSelection(ctx, text))
	case Comment:
		d := s.adapter.Language()
		slog.Debug("[inject] comment", "language", d.ID, "form", Decide(text, d))
		return editErr(h.InsertText(ctx, FormatComment(text, d)))
	case NewLine:
		return editErr(h.InsertLine(ctx, text))
	case Clipboard:
		return s.onceMore(ctx, apperr.CodeClipboard, "copying to clipboard failed", func() error {
			return s.clipboard.WriteAll(text)
		})
	case Chat:
		return s.onceMore(ctx, apperr.CodeChatPanel, "pasting into the chat panel failed", func() error {
			return h.PasteToChat(ctx, text)
		})
	}
	return apperr.Newf(apperr.CodeInvalidMode, "unknown insertion mode %q", mode)
}

// onceMore runs fn and retries it once after a short pause.
func (s *Sink) onceMore(ctx context.Context, code apperr.Code, msg string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	slog.Warn("[inject] attempt failed, retrying once", "code", code, "error", err)
	select {
	case <-time.After(s.retryDelay):
	case <-ctx.Done():
		return apperr.Normalize(ctx.Err())
	}
	if err = fn(); err == nil {
		return nil
	}
	if apperr.HasCode(err, code) {
		return err
	}
	return apperr.Wrap(code, err, msg)
}

func editErr(err error) error {
	if err == nil {
		return nil
	}
	if e := apperr.Normalize(err); e.Code != apperr.CodeInternal {
		return e
	}
	return apperr.Wrap(apperr.CodeHostUnavailable, err, "the editor rejected the edit")
}
