// Package inject delivers a finished transcript to its destination: the
// editor (at the cursor, over the selection, as a comment, on a new line),
// the clipboard or the editor's chat panel.
package inject

import (
	"strings"

	"github.com/chaz8081/gostt-code/internal/apperr"
)

// Mode is an insertion destination.
type Mode string

const (
	Cursor           Mode = "cursor"
	ReplaceSelection Mode = "replace-selection"
	Comment          Mode = "comment"
	NewLine          Mode = "new-line"
	Clipboard        Mode = "clipboard"
	Chat             Mode = "chat"
)

var modeAliases = map[string]Mode{
	"cursor":            Cursor,
	"at-cursor":         Cursor,
	"insert":            Cursor,
	"replace-selection": ReplaceSelection,
	"replace":           ReplaceSelection,
	"selection":         ReplaceSelection,
	"comment":           Comment,
	"as-comment":        Comment,
	"new-line":          NewLine,
	"newline":           NewLine,
	"on-new-line":       NewLine,
	"clipboard":         Clipboard,
	"to-clipboard":      Clipboard,
	"copy":              Clipboard,
	"chat":              Chat,
	"chat-panel":        Chat,
	"to-chat-panel":     Chat,
}

// Modes lists every mode in display order.
func Modes() []Mode {
	return []Mode{Cursor, ReplaceSelection, Comment, NewLine, Clipboard, Chat}
}

// ParseMode accepts a mode name or alias, case-insensitively.
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", "-")
	if m, ok := modeAliases[key]; ok {
		return m, nil
	}
	return "", apperr.Newf(apperr.CodeInvalidMode, "unknown insertion mode %q", s)
}

// NeedsEditor reports whether the mode writes into a document.
func (m Mode) NeedsEditor() bool {
	switch m {
	case Cursor, ReplaceSelection, Comment, NewLine:
		return true
	}
	return false
}
