// Package host abstracts the code editor that dictated text is delivered
// to. A Host backend reports editor state and performs edits; the Adapter
// turns raw state into a Snapshot and notifies listeners when it changes.
package host

import (
	"context"
	"strings"
)

// Variant is the detected editor family.
type Variant string

const (
	VSCode         Variant = "vscode"
	VSCodeInsiders Variant = "vscode-insiders"
	VSCodium       Variant = "vscodium"
	Cursor         Variant = "cursor"
	Windsurf       Variant = "windsurf"
	Unknown        Variant = "unknown"
)

// Probe reports how the running editor identifies itself.
type Probe interface {
	AppName() string
	URIScheme() string
}

// rule classifies an editor by URI scheme or by a substring of its
// application name. Rules are checked in order.
type rule struct {
	variant Variant
	schemes []string
	names   []string
}

var rules = []rule{
	{Cursor, []string{"cursor"}, []string{"cursor"}},
	{Windsurf, []string{"windsurf"}, []string{"windsurf", "codeium"}},
	{VSCodium, []string{"vscodium", "codium"}, []string{"vscodium", "codium"}},
	{VSCodeInsiders, []string{"vscode-insiders"}, []string{"insiders"}},
	{VSCode, []string{"vscode"}, []string{"visual studio code", "vs code", "vscode", "code - oss"}},
}

// Detect classifies the editor. The URI scheme is authoritative; the
// application name is a fallback.
func Detect(p Probe) Variant {
	if p == nil {
		return Unknown
	}
	scheme := strings.ToLower(strings.TrimSpace(p.URIScheme()))
	name := strings.ToLower(strings.TrimSpace(p.AppName()))
	if scheme != "" {
		for _, r := range rules {
			for _, s := range r.schemes {
				if scheme == s {
					return r.variant
				}
			}
		}
	}
	if name != "" {
		for _, r := range rules {
			for _, n := range r.names {
				if strings.Contains(name, n) {
					return r.variant
				}
			}
		}
	}
	return Unknown
}

// Editor is the active text editor.
type Editor struct {
	File       string `json:"file"`
	LanguageID string `json:"languageId,omitempty"`
	// Cursor and the selection bounds are character offsets into the
	// document. An empty selection has SelectionStart == SelectionEnd.
	Cursor         int `json:"cursor"`
	SelectionStart int `json:"selectionStart"`
	SelectionEnd   int `json:"selectionEnd"`
}

// HasSelection reports whether any text is selected.
func (e *Editor) HasSelection() bool {
	return e != nil && e.SelectionStart != e.SelectionEnd
}

// Focus names the part of the editor with keyboard focus.
type Focus string

const (
	FocusEditor   Focus = "editor"
	FocusTerminal Focus = "terminal"
	FocusChat     Focus = "chat"
	FocusOther    Focus = ""
)

// State is the raw editor state a backend reports.
type State struct {
	Editor         *Editor  `json:"editor,omitempty"`
	Focus          Focus    `json:"focus,omitempty"`
	TerminalActive bool     `json:"terminalActive"`
	DebugActive    bool     `json:"debugActive"`
	Workspace      []string `json:"workspace,omitempty"`
}

// ChangeKind says what a backend noticed changing.
type ChangeKind string

const (
	ChangeEditor    ChangeKind = "editor"
	ChangeSelection ChangeKind = "selection"
	ChangeTerminal  ChangeKind = "terminal"
	ChangeDebug     ChangeKind = "debug"
	ChangeWorkspace ChangeKind = "workspace"
	ChangeFocus     ChangeKind = "focus"
)

// Host is an editor backend.
type Host interface {
	Probe
	// State returns the editor's current state.
	State(ctx context.Context) (State, error)
	// Subscribe registers fn for change notifications and returns a
	// function that removes it.
	Subscribe(fn func(ChangeKind)) (unsubscribe func())

	// InsertText inserts text at the cursor.
	InsertText(ctx context.Context, text string) error
	// ReplaceSelection replaces the selected text.
	ReplaceSelection(ctx context.Context, text string) error
	// InsertLine inserts text on a new line below the cursor.
	InsertLine(ctx context.Context, text string) error
	// PasteToChat opens the editor's AI chat panel and pastes text into it.
	PasteToChat(ctx context.Context, text string) error

	Close() error
}
