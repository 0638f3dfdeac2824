package inject

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/host"
	"github.com/chaz8081/gostt-code/internal/host/hosttest"
	"github.com/chaz8081/gostt-code/internal/lang"
)

type fakeClipboard struct {
	mu    sync.Mutex
	text  string
	fails int
	calls int
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fails > 0 {
		c.fails--
		return errors.New("clipboard busy")
	}
	c.text = text
	return nil
}

func (c *fakeClipboard) ReadAll() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

func newSink(t *testing.T, fake *hosttest.Fake, cb *fakeClipboard) *Sink {
	t.Helper()
	a := host.NewAdapter(context.Background(), fake)
	t.Cleanup(a.Close)
	s := NewSink(a, cb)
	s.retryDelay = 0
	return s
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"cursor":            Cursor,
		"at-cursor":         Cursor,
		"AT_CURSOR":         Cursor,
		"selection":         ReplaceSelection,
		"replace-selection": ReplaceSelection,
		"as-comment":        Comment,
		"newline":           NewLine,
		"on-new-line":       NewLine,
		"to-clipboard":      Clipboard,
		"chat-panel":        Chat,
		" chat ":            Chat,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		if err != nil {
			t.Errorf("ParseMode(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseMode("telepathy"); !apperr.HasCode(err, apperr.CodeInvalidMode) {
		t.Errorf("ParseMode(telepathy) error = %v, want invalid_mode", err)
	}
	for _, m := range Modes() {
		if got, err := ParseMode(string(m)); err != nil || got != m {
			t.Errorf("ParseMode(%q) = %q, %v", m, got, err)
		}
	}
}

func TestDecide(t *testing.T) {
	goLang := lang.Get("go")
	shell := lang.Get("shellscript")
	html := lang.Get("html")
	plain := lang.Plaintext

	tests := []struct {
		name string
		text string
		d    lang.Descriptor
		want Form
	}{
		{"multi-line with block support", "first\nsecond", goLang, FormBlock},
		{"single line with block support", "only one", goLang, FormLine},
		{"multi-line without block", "first\nsecond", shell, FormLine},
		{"block-only language", "first\nsecond", html, FormBlock},
		{"block-only single line", "one", html, FormBlockPerLine},
		{"no comment syntax", "one\ntwo", plain, FormNone},
		{"crlf counts as multi-line", "a\r\nb", goLang, FormBlock},
		{"text closes the block", "use a/*b*/c here\nsecond", goLang, FormLine},
		{"block-only keeps block when text closes it", "a --> b\nc", html, FormBlock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.text, tt.d); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatComment(t *testing.T) {
	tests := []struct {
		name string
		text string
		id   string
		want string
	}{
		{"go block", "first\nsecond", "go", "/*\nfirst\nsecond\n*/"},
		{"go line", "todo: fix", "go", "// todo: fix"},
		{"yaml per line", "a\n\nb", "yaml", "# a\n#\n# b"},
		{"python docstring block", "a\nb", "python", "\"\"\"\na\nb\n\"\"\""},
		{"html single", "note", "html", "<!-- note -->"},
		{"trailing newline dropped", "note\n", "python", "# note"},
		{"plaintext unchanged", "hello", "plaintext", "hello"},
		{"go text with terminator", "use a/*b*/c here\nsecond", "go", "// use a/*b*/c here\n// second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatComment(tt.text, lang.Get(tt.id)); got != tt.want {
				t.Errorf("FormatComment() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInjectCursor(t *testing.T) {
	fake := hosttest.New()
	fake.Open("/tmp/a.go", "go", "ab", 1)
	s := newSink(t, fake, &fakeClipboard{})

	if err := s.Inject(context.Background(), "hello world", Cursor); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if got := fake.Text(); got != "ahello worldb" {
		t.Errorf("Text() = %q", got)
	}
	if got := fake.CursorOffset(); got != 12 {
		t.Errorf("cursor = %d, want 12", got)
	}
}

func TestInjectGuards(t *testing.T) {
	fake := hosttest.New()
	s := newSink(t, fake, &fakeClipboard{})

	for _, m := range []Mode{Cursor, Comment, NewLine, ReplaceSelection} {
		if err := s.Inject(context.Background(), "x", m); !apperr.HasCode(err, apperr.CodeNoActiveEditor) {
			t.Errorf("Inject(%s) without editor = %v, want no_active_editor", m, err)
		}
	}

	fake.Open("/a.go", "go", "abc", 0)
	if err := s.Inject(context.Background(), "x", ReplaceSelection); !apperr.HasCode(err, apperr.CodeNoSelection) {
		t.Errorf("Inject(replace) without selection = %v, want no_selection", err)
	}
	if err := s.Inject(context.Background(), "   ", Cursor); !apperr.HasCode(err, apperr.CodeEmptyTranscript) {
		t.Errorf("Inject(blank) = %v, want empty_transcript", err)
	}
	if err := s.Inject(context.Background(), "x", Mode("bogus")); !apperr.HasCode(err, apperr.CodeInvalidMode) {
		t.Errorf("Inject(bogus) = %v, want invalid_mode", err)
	}
}

func TestInjectReplaceSelection(t *testing.T) {
	fake := hosttest.New()
	fake.Open("/a.txt", "plaintext", "hello there", 0)
	fake.Select(6, 11)
	s := newSink(t, fake, &fakeClipboard{})

	if err := s.Inject(context.Background(), "world", ReplaceSelection); err != nil {
		t.Fatal(err)
	}
	if got := fake.Text(); got != "hello world" {
		t.Errorf("Text() = %q", got)
	}
}

func TestInjectComment(t *testing.T) {
	fake := hosttest.New()
	fake.Open("/a.sh", "shellscript", "", 0)
	s := newSink(t, fake, &fakeClipboard{})

	if err := s.Inject(context.Background(), "one\ntwo", Comment); err != nil {
		t.Fatal(err)
	}
	if got := fake.Text(); got != "# one\n# two" {
		t.Errorf("Text() = %q", got)
	}
}

func TestInjectNewLine(t *testing.T) {
	fake := hosttest.New()
	fake.Open("/a.txt", "plaintext", "first line\nlast", 3)
	s := newSink(t, fake, &fakeClipboard{})

	if err := s.Inject(context.Background(), "inserted", NewLine); err != nil {
		t.Fatal(err)
	}
	if got := fake.Text(); got != "first line\ninserted\nlast" {
		t.Errorf("Text() = %q", got)
	}
}

func TestInjectClipboardRetriesOnce(t *testing.T) {
	fake := hosttest.New()
	cb := &fakeClipboard{fails: 1}
	s := newSink(t, fake, cb)

	if err := s.Inject(context.Background(), "copied", Clipboard); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if cb.calls != 2 || cb.text != "copied" {
		t.Errorf("calls = %d text = %q", cb.calls, cb.text)
	}

	cb = &fakeClipboard{fails: 2}
	s = newSink(t, fake, cb)
	err := s.Inject(context.Background(), "copied", Clipboard)
	if !apperr.HasCode(err, apperr.CodeClipboard) {
		t.Errorf("Inject() error = %v, want clipboard_error", err)
	}
	if cb.calls != 2 {
		t.Errorf("calls = %d, want 2", cb.calls)
	}
}

func TestInjectChat(t *testing.T) {
	fake := hosttest.New()
	fake.FailChat(errors.New("panel not ready"))
	s := newSink(t, fake, &fakeClipboard{})

	if err := s.Inject(context.Background(), "why is this slow?", Chat); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if got := fake.Chat(); len(got) != 1 || got[0] != "why is this slow?" {
		t.Errorf("Chat() = %v", got)
	}

	fake.FailChat(errors.New("a"), errors.New("b"))
	err := s.Inject(context.Background(), "again", Chat)
	if !apperr.HasCode(err, apperr.CodeChatPanel) {
		t.Errorf("Inject() error = %v, want chat_error", err)
	}
}

func TestInjectEditFailure(t *testing.T) {
	fake := hosttest.New()
	fake.Open("/a.go", "go", "", 0)
	fake.FailEdits(errors.New("document is read-only"))
	s := newSink(t, fake, &fakeClipboard{})

	err := s.Inject(context.Background(), "x", Cursor)
	if err == nil || !strings.Contains(err.Error(), "read-only") {
		t.Errorf("Inject() error = %v", err)
	}
}
