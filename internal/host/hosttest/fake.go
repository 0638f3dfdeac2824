// Package hosttest provides an in-memory editor for tests.
package hosttest

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/chaz8081/gostt-code/internal/host"
)

// Fake is an in-memory editor with one open document. Offsets are in
// characters.
type Fake struct {
	Name   string
	Scheme string

	mu        sync.Mutex
	open      bool
	file      string
	language  string
	buf       []rune
	cursor    int
	selStart  int
	selEnd    int
	focus     host.Focus
	terminal  bool
	debug     bool
	workspace []string
	chat      []string
	stateErr  error
	editErr   error
	chatErr   []error

	subs   map[int]func(host.ChangeKind)
	nextID int
}

// New returns a Fake reporting itself as VS Code with no open document.
func New() *Fake {
	return &Fake{Name: "Visual Studio Code", Scheme: "vscode", subs: map[int]func(host.ChangeKind){}}
}

func (f *Fake) AppName() string   { return f.Name }
func (f *Fake) URIScheme() string { return f.Scheme }

// Open makes file the active document with the given content and places
// the cursor at offset.
func (f *Fake) Open(file, languageID, content string, cursor int) {
	f.mu.Lock()
	f.open = true
	f.file = file
	f.language = languageID
	f.buf = []rune(content)
	f.cursor = cursor
	f.selStart, f.selEnd = cursor, cursor
	f.focus = host.FocusEditor
	f.mu.Unlock()
	f.emit(host.ChangeEditor)
}

// CloseEditor closes the active document.
func (f *Fake) CloseEditor() {
	f.mu.Lock()
	f.open = false
	f.focus = host.FocusOther
	f.mu.Unlock()
	f.emit(host.ChangeEditor)
}

// Select selects [start, end) and moves the cursor to end.
func (f *Fake) Select(start, end int) {
	f.mu.Lock()
	f.selStart, f.selEnd, f.cursor = start, end, end
	f.mu.Unlock()
	f.emit(host.ChangeSelection)
}

// SetTerminal toggles the terminal and focuses it when active.
func (f *Fake) SetTerminal(active bool) {
	f.mu.Lock()
	f.terminal = active
	if active {
		f.focus = host.FocusTerminal
	} else if f.open {
		f.focus = host.FocusEditor
	}
	f.mu.Unlock()
	f.emit(host.ChangeTerminal)
}

// SetDebug toggles the debug session.
func (f *Fake) SetDebug(active bool) {
	f.mu.Lock()
	f.debug = active
	f.mu.Unlock()
	f.emit(host.ChangeDebug)
}

// SetWorkspace replaces the workspace folders.
func (f *Fake) SetWorkspace(folders ...string) {
	f.mu.Lock()
	f.workspace = folders
	f.mu.Unlock()
	f.emit(host.ChangeWorkspace)
}

// FailState makes State return err until cleared with nil.
func (f *Fake) FailState(err error) {
	f.mu.Lock()
	f.stateErr = err
	f.mu.Unlock()
}

// FailEdits makes edit operations return err until cleared with nil.
func (f *Fake) FailEdits(err error) {
	f.mu.Lock()
	f.editErr = err
	f.mu.Unlock()
}

// FailChat queues errors returned by successive PasteToChat calls.
func (f *Fake) FailChat(errs ...error) {
	f.mu.Lock()
	f.chatErr = append(f.chatErr, errs...)
	f.mu.Unlock()
}

// Text returns the document content.
func (f *Fake) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.buf)
}

// CursorOffset returns the cursor position.
func (f *Fake) CursorOffset() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// Chat returns everything pasted into the chat panel.
func (f *Fake) Chat() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chat...)
}

func (f *Fake) State(context.Context) (host.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return host.State{}, f.stateErr
	}
	st := host.State{
		Focus:          f.focus,
		TerminalActive: f.terminal,
		DebugActive:    f.debug,
		Workspace:      append([]string(nil), f.workspace...),
	}
	if f.open {
		st.Editor = &host.Editor{
			File:           f.file,
			LanguageID:     f.language,
			Cursor:         f.cursor,
			SelectionStart: f.selStart,
			SelectionEnd:   f.selEnd,
		}
	}
	return st, nil
}

func (f *Fake) Subscribe(fn func(host.ChangeKind)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Fake) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Fake) emit(kind host.ChangeKind) {
	f.mu.Lock()
	fns := make([]func(host.ChangeKind), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(kind)
	}
}

var errNoEditor = errors.New("hosttest: no active editor")

// splice replaces [start, end) with text and leaves the cursor after it.
// Callers hold f.mu.
func (f *Fake) splice(start, end int, text string) {
	ins := []rune(text)
	out := make([]rune, 0, len(f.buf)-(end-start)+len(ins))
	out = append(out, f.buf[:start]...)
	out = append(out, ins...)
	out = append(out, f.buf[end:]...)
	f.buf = out
	f.cursor = start + utf8.RuneCountInString(text)
	f.selStart, f.selEnd = f.cursor, f.cursor
}

func (f *Fake) InsertText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	if !f.open {
		return errNoEditor
	}
	f.splice(f.cursor, f.cursor, text)
	return nil
}

func (f *Fake) ReplaceSelection(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	if !f.open {
		return errNoEditor
	}
	start, end := f.selStart, f.selEnd
	if start > end {
		start, end = end, start
	}
	f.splice(start, end, text)
	return nil
}

func (f *Fake) InsertLine(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	if !f.open {
		return errNoEditor
	}
	end := f.cursor
	for end < len(f.buf) && f.buf[end] != '\n' {
		end++
	}
	f.splice(end, end, "\n"+text)
	return nil
}

func (f *Fake) PasteToChat(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chatErr) > 0 {
		err := f.chatErr[0]
		f.chatErr = f.chatErr[1:]
		if err != nil {
			return err
		}
	}
	f.chat = append(f.chat, text)
	return nil
}

func (f *Fake) Close() error { return nil }
