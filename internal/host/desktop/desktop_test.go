package desktop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/host"
)

type tap struct {
	key  string
	mods []string
}

type fakeDriver struct {
	mu        sync.Mutex
	title     string
	process   string
	typed     []string
	taps      []tap
	clipboard string
	writes    []string
	tapErr    error
}

func (f *fakeDriver) ActiveWindow() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, f.process
}

func (f *fakeDriver) setTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
}

func (f *fakeDriver) Type(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, text)
}

func (f *fakeDriver) KeyTap(key string, mods ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tapErr != nil {
		return f.tapErr
	}
	f.taps = append(f.taps, tap{key, mods})
	return nil
}

func (f *fakeDriver) ReadClipboard() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clipboard, nil
}

func (f *fakeDriver) WriteClipboard(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clipboard = text
	f.writes = append(f.writes, text)
	return nil
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		title string
		want  window
	}{
		{"● main.go - gostt - Visual Studio Code", window{App: "Visual Studio Code", File: "main.go", Workspace: "gostt"}},
		{"app.py - backend - Cursor", window{App: "Cursor", File: "app.py", Workspace: "backend"}},
		{"Welcome - proj - Windsurf", window{App: "Windsurf", Workspace: "proj"}},
		{"proj - VSCodium", window{App: "VSCodium", Workspace: "proj"}},
		{"Makefile - tools (Workspace) - Visual Studio Code", window{App: "Visual Studio Code", File: "Makefile", Workspace: "tools"}},
		{"lib.rs — crate — Visual Studio Code - Insiders", window{App: "Visual Studio Code - Insiders", File: "lib.rs", Workspace: "crate"}},
		{"Visual Studio Code", window{App: "Visual Studio Code"}},
		{"", window{}},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := parseTitle(tt.title); got != tt.want {
				t.Errorf("parseTitle() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAppName(t *testing.T) {
	tests := []struct {
		w    window
		proc string
		want string
	}{
		{window{App: "Cursor"}, "cursor", "Cursor"},
		{window{App: "untitled"}, "Code", "Visual Studio Code"},
		{window{App: "notes"}, "gedit", "gedit"},
		{window{App: "notes"}, "", "notes"},
	}
	for _, tt := range tests {
		if got := appName(tt.w, tt.proc); got != tt.want {
			t.Errorf("appName(%+v, %q) = %q, want %q", tt.w, tt.proc, got, tt.want)
		}
	}
}

func TestStateFromTitle(t *testing.T) {
	drv := &fakeDriver{title: "main.go - gostt - Visual Studio Code", process: "code"}
	d := New(drv, Options{})
	a := host.NewAdapter(context.Background(), d)
	defer a.Close()

	if a.Variant() != host.VSCode {
		t.Errorf("Variant() = %q, want vscode", a.Variant())
	}
	snap := a.Snapshot()
	if snap.Type != host.ContextEditor || snap.File != "main.go" || snap.LanguageID != "go" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStateUnknownWindow(t *testing.T) {
	drv := &fakeDriver{title: "Inbox - Mail", process: "mail"}
	d := New(drv, Options{})
	st, err := d.State(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Editor != nil || st.Focus != host.FocusOther {
		t.Errorf("State() = %+v, want no editor", st)
	}
}

func TestPollingEmitsChanges(t *testing.T) {
	drv := &fakeDriver{title: "a.go - p - Visual Studio Code"}
	d := New(drv, Options{PollInterval: 10 * time.Millisecond})
	changes := make(chan host.ChangeKind, 10)
	d.Subscribe(func(k host.ChangeKind) { changes <- k })
	d.Start(context.Background())
	defer d.Close()

	drv.setTitle("b.py - p - Visual Studio Code")
	select {
	case k := <-changes:
		if k != host.ChangeEditor {
			t.Errorf("kind = %q, want editor", k)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change after title switch")
	}
}

func TestInsertTextType(t *testing.T) {
	drv := &fakeDriver{}
	d := New(drv, Options{Method: "type"})
	if err := d.InsertText(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if len(drv.typed) != 1 || drv.typed[0] != "hello" {
		t.Errorf("typed = %v", drv.typed)
	}
	if err := d.InsertText(context.Background(), ""); err != nil || len(drv.typed) != 1 {
		t.Error("empty text should be a no-op")
	}
}

func TestInsertTextPasteRestoresClipboard(t *testing.T) {
	drv := &fakeDriver{clipboard: "previous"}
	d := New(drv, Options{Method: "paste", Primary: "ctrl"})
	if err := d.InsertText(context.Background(), "dictated"); err != nil {
		t.Fatal(err)
	}
	if drv.clipboard != "previous" {
		t.Errorf("clipboard = %q, want restored", drv.clipboard)
	}
	if len(drv.writes) != 2 || drv.writes[0] != "dictated" {
		t.Errorf("writes = %v", drv.writes)
	}
	if len(drv.taps) != 1 || drv.taps[0].key != "v" || drv.taps[0].mods[0] != "ctrl" {
		t.Errorf("taps = %+v", drv.taps)
	}
}

func TestInsertLine(t *testing.T) {
	drv := &fakeDriver{}
	d := New(drv, Options{})
	if err := d.InsertLine(context.Background(), "next"); err != nil {
		t.Fatal(err)
	}
	if len(drv.taps) != 2 || drv.taps[0].key != "end" || drv.taps[1].key != "enter" {
		t.Errorf("taps = %+v", drv.taps)
	}
	if drv.typed[0] != "next" {
		t.Errorf("typed = %v", drv.typed)
	}
}

func TestPasteToChatChords(t *testing.T) {
	tests := []struct {
		title   string
		wantKey string
		wantMod string
	}{
		{"x.go - p - Cursor", "l", "cmd"},
		{"x.go - p - Visual Studio Code", "i", "cmd"},
		{"x.go - p - Windsurf", "l", "cmd"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			drv := &fakeDriver{title: tt.title}
			d := New(drv, Options{Primary: "cmd", PanelDelay: time.Millisecond})
			if err := d.PasteToChat(context.Background(), "explain this"); err != nil {
				t.Fatal(err)
			}
			first := drv.taps[0]
			if first.key != tt.wantKey || first.mods[0] != tt.wantMod {
				t.Errorf("chat chord = %+v", first)
			}
			if drv.writes[0] != "explain this" {
				t.Errorf("pasted %q", drv.writes[0])
			}
		})
	}
}

func TestPasteToChatUnknownEditor(t *testing.T) {
	drv := &fakeDriver{title: "notes.txt - gedit"}
	d := New(drv, Options{})
	err := d.PasteToChat(context.Background(), "x")
	if !apperr.HasCode(err, apperr.CodeChatPanel) {
		t.Errorf("PasteToChat() error = %v, want chat_error", err)
	}
}

func TestPasteToChatTapFailure(t *testing.T) {
	drv := &fakeDriver{title: "x.go - p - Cursor", tapErr: errors.New("no accessibility permission")}
	d := New(drv, Options{})
	err := d.PasteToChat(context.Background(), "x")
	if !apperr.HasCode(err, apperr.CodeChatPanel) {
		t.Errorf("PasteToChat() error = %v, want chat_error", err)
	}
}

func TestDescribe(t *testing.T) {
	drv := &fakeDriver{title: "x.go - p - Cursor", process: "Cursor"}
	d := New(drv, Options{})
	got := d.Describe()
	if !strings.Contains(got, `file="x.go"`) || !strings.Contains(got, `process="Cursor"`) {
		t.Errorf("Describe() = %s", got)
	}
}

func TestPrimaryMod(t *testing.T) {
	if primaryMod("darwin") != "cmd" || primaryMod("linux") != "ctrl" || primaryMod("windows") != "ctrl" {
		t.Error("primaryMod mismatch")
	}
}
