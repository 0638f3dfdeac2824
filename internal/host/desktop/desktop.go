// Package desktop is the editor backend used without an editor extension.
// It reads the focused window's title to learn the open file and drives
// the keyboard and clipboard to deliver text.
package desktop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/gostt-code/internal/apperr"
	"github.com/chaz8081/gostt-code/internal/host"
	"github.com/chaz8081/gostt-code/internal/lang"
)

// chord is a key combination. The "primary" modifier is cmd on macOS and
// ctrl elsewhere.
type chord struct {
	key  string
	mods []string
}

// chatChords open each editor's AI chat panel.
var chatChords = map[host.Variant]chord{
	host.VSCode:         {"i", []string{"primary", "alt"}},
	host.VSCodeInsiders: {"i", []string{"primary", "alt"}},
	host.VSCodium:       {"i", []string{"primary", "alt"}},
	host.Cursor:         {"l", []string{"primary"}},
	host.Windsurf:       {"l", []string{"primary"}},
}

// Options configure a Desktop host.
type Options struct {
	// Method is "type" for keystrokes or "paste" for clipboard paste.
	Method       string
	PollInterval time.Duration
	// PanelDelay is how long to wait for the chat panel to take focus.
	PanelDelay time.Duration
	// Primary overrides the platform command modifier.
	Primary string
}

// Desktop implements host.Host against the focused window.
type Desktop struct {
	drv  Driver
	opts Options

	mu     sync.Mutex
	title  string
	win    window
	proc   string
	subs   map[int]func(host.ChangeKind)
	nextID int
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Desktop host. Call Start to begin polling.
func New(drv Driver, opts Options) *Desktop {
	if drv == nil {
		drv = Robotgo{}
	}
	if opts.Method == "" {
		opts.Method = "type"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.PanelDelay <= 0 {
		opts.PanelDelay = 300 * time.Millisecond
	}
	if opts.Primary == "" {
		opts.Primary = defaultPrimary
	}
	d := &Desktop{drv: drv, opts: opts, subs: map[int]func(host.ChangeKind){}}
	d.poll()
	return d
}

// SetMethod switches between typing and pasting.
func (d *Desktop) SetMethod(method string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Method = method
}

// Start polls the focused window until ctx is done or Close is called.
func (d *Desktop) Start(ctx context.Context) {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(d.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if kind, changed := d.poll(); changed {
					d.emit(kind)
				}
			}
		}
	}()
}

// poll reads the focused window and reports what changed.
func (d *Desktop) poll() (host.ChangeKind, bool) {
	title, proc := d.drv.ActiveWindow()
	w := parseTitle(title)

	d.mu.Lock()
	defer d.mu.Unlock()
	if title == d.title && proc == d.proc {
		return "", false
	}
	kind := host.ChangeFocus
	if w.File != d.win.File {
		kind = host.ChangeEditor
	} else if w.Workspace != d.win.Workspace {
		kind = host.ChangeWorkspace
	}
	d.title, d.proc, d.win = title, proc, w
	return kind, true
}

func (d *Desktop) emit(kind host.ChangeKind) {
	d.mu.Lock()
	fns := make([]func(host.ChangeKind), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(kind)
	}
}

// processApps maps editor process names to the application name their
// window titles would carry.
var processApps = map[string]string{
	"code":            "Visual Studio Code",
	"code.exe":        "Visual Studio Code",
	"code-insiders":   "Visual Studio Code - Insiders",
	"code - insiders": "Visual Studio Code - Insiders",
	"codium":          "VSCodium",
	"codium.exe":      "VSCodium",
	"cursor":          "Cursor",
	"cursor.exe":      "Cursor",
	"windsurf":        "Windsurf",
	"windsurf.exe":    "Windsurf",
}

// appName picks the name host.Detect understands: the title's application
// part when it names an editor, otherwise the process name.
func appName(w window, proc string) string {
	if host.Detect(nameProbe(w.App)) != host.Unknown {
		return w.App
	}
	if name, ok := processApps[strings.ToLower(proc)]; ok {
		return name
	}
	if proc != "" {
		return proc
	}
	return w.App
}

type nameProbe string

func (n nameProbe) AppName() string   { return string(n) }
func (n nameProbe) URIScheme() string { return "" }

// AppName identifies the focused application.
func (d *Desktop) AppName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return appName(d.win, d.proc)
}

func (d *Desktop) URIScheme() string { return "" }

func (d *Desktop) variant() host.Variant { return host.Detect(d) }

// State reports an editor when the focused window belongs to a known
// editor. Cursor offsets are unknown and reported as zero.
func (d *Desktop) State(context.Context) (host.State, error) {
	v := d.variant()
	d.mu.Lock()
	defer d.mu.Unlock()
	st := host.State{}
	if d.win.Workspace != "" {
		st.Workspace = []string{d.win.Workspace}
	}
	if v == host.Unknown {
		return st, nil
	}
	st.Focus = host.FocusEditor
	if d.win.File != "" {
		st.Editor = &host.Editor{File: d.win.File, LanguageID: lang.IDForPath(d.win.File)}
	}
	return st, nil
}

func (d *Desktop) Subscribe(fn func(host.ChangeKind)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

func (d *Desktop) mods(c chord) []string {
	out := make([]string, len(c.mods))
	for i, m := range c.mods {
		if m == "primary" {
			m = d.opts.Primary
		}
		out[i] = m
	}
	return out
}

func (d *Desktop) method() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts.Method
}

// InsertText types or pastes text into the focused window.
func (d *Desktop) InsertText(_ context.Context, text string) error {
	if text == "" {
		return nil
	}
	if d.method() == "paste" {
		return d.paste(text)
	}
	d.drv.Type(text)
	return nil
}

// ReplaceSelection is InsertText: typing over a selection replaces it.
func (d *Desktop) ReplaceSelection(ctx context.Context, text string) error {
	return d.InsertText(ctx, text)
}

// InsertLine moves to the end of the line, opens a new one and inserts.
func (d *Desktop) InsertLine(ctx context.Context, text string) error {
	if err := d.drv.KeyTap("end"); err != nil {
		return err
	}
	if err := d.drv.KeyTap("enter"); err != nil {
		return err
	}
	return d.InsertText(ctx, text)
}

// PasteToChat opens the chat panel with the editor's shortcut and pastes.
func (d *Desktop) PasteToChat(ctx context.Context, text string) error {
	v := d.variant()
	c, ok := chatChords[v]
	if !ok {
		return apperr.Newf(apperr.CodeChatPanel, "no chat panel shortcut is known for %s", v)
	}
	if err := d.drv.KeyTap(c.key, d.mods(c)...); err != nil {
		return apperr.Wrap(apperr.CodeChatPanel, err, "opening chat panel")
	}
	select {
	case <-time.After(d.opts.PanelDelay):
	case <-ctx.Done():
		return apperr.Normalize(ctx.Err())
	}
	if err := d.paste(text); err != nil {
		return apperr.Wrap(apperr.CodeChatPanel, err, "pasting into chat panel")
	}
	return nil
}

// paste writes text to the clipboard, sends the paste chord and restores
// the previous clipboard contents.
func (d *Desktop) paste(text string) error {
	prev, _ := d.drv.ReadClipboard()
	if err := d.drv.WriteClipboard(text); err != nil {
		return fmt.Errorf("desktop: write to clipboard: %w", err)
	}
	if err := d.drv.KeyTap("v", d.opts.Primary); err != nil {
		return fmt.Errorf("desktop: key tap %s+v: %w", d.opts.Primary, err)
	}
	// The target reads the clipboard asynchronously.
	time.Sleep(80 * time.Millisecond)
	if err := d.drv.WriteClipboard(prev); err != nil {
		slog.Debug("[desktop] restoring clipboard failed", "error", err)
	}
	return nil
}

// Describe summarizes the focused window for diagnostics.
func (d *Desktop) Describe() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	parts := []string{fmt.Sprintf("app=%q", d.win.App)}
	if d.win.File != "" {
		parts = append(parts, fmt.Sprintf("file=%q", d.win.File))
	}
	if d.proc != "" {
		parts = append(parts, fmt.Sprintf("process=%q", d.proc))
	}
	return strings.Join(parts, " ")
}

// Close stops polling.
func (d *Desktop) Close() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

var _ host.Host = (*Desktop)(nil)
