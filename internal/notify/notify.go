// Package notify delivers user-facing notifications.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
)

// Level is the severity of a notice.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is one notification. Actions are button labels; a notifier that
// supports them returns the label the user picked.
type Notice struct {
	Level   Level    `json:"level"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Actions []string `json:"actions,omitempty"`
}

// Notifier shows notices. The returned string is the chosen action, or ""
// when the user dismissed it or the notifier cannot offer actions.
type Notifier interface {
	Notify(ctx context.Context, n Notice) (string, error)
}

// Desktop shows notices as OS notifications.
type Desktop struct {
	AppName string
}

func (d Desktop) Notify(_ context.Context, n Notice) (string, error) {
	title := n.Title
	if title == "" {
		title = d.AppName
	}
	if n.Level == Error {
		return "", beeep.Alert(title, n.Message, "")
	}
	return "", beeep.Notify(title, n.Message, "")
}

// Log writes notices to slog.
type Log struct{}

func (Log) Notify(_ context.Context, n Notice) (string, error) {
	attrs := []any{"title", n.Title, "message", n.Message}
	if len(n.Actions) > 0 {
		attrs = append(attrs, "actions", n.Actions)
	}
	switch n.Level {
	case Error:
		slog.Error("[notify] notice", attrs...)
	case Warning:
		slog.Warn("[notify] notice", attrs...)
	default:
		slog.Info("[notify] notice", attrs...)
	}
	return "", nil
}

// Multi fans a notice out to several notifiers. The first non-empty action
// wins; errors from individual notifiers are logged, not returned, unless
// every notifier fails.
type Multi struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewMulti returns a Multi over ns.
func NewMulti(ns ...Notifier) *Multi {
	return &Multi{notifiers: ns}
}

// Add appends a notifier.
func (m *Multi) Add(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

func (m *Multi) Notify(ctx context.Context, n Notice) (string, error) {
	m.mu.RLock()
	ns := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()

	var action string
	var firstErr error
	failed := 0
	for _, nt := range ns {
		a, err := nt.Notify(ctx, n)
		if err != nil {
			slog.Debug("[notify] notifier failed", "error", err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if action == "" {
			action = a
		}
	}
	if len(ns) > 0 && failed == len(ns) {
		return "", firstErr
	}
	return action, nil
}
