package host

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/chaz8081/gostt-code/internal/lang"
)

// ContextType is what the user is currently working in.
type ContextType string

const (
	ContextEditor   ContextType = "editor"
	ContextTerminal ContextType = "terminal"
	ContextDebug    ContextType = "debug"
	ContextNone     ContextType = "none"
	ContextUnknown  ContextType = "unknown"
)

// Snapshot is the Adapter's view of the editor.
type Snapshot struct {
	Type           ContextType
	File           string
	LanguageID     string
	HasSelection   bool
	TerminalActive bool
	DebugActive    bool
	Workspace      []string
	UpdatedAt      time.Time
}

// discriminates reports whether a and b differ in a field listeners care
// about.
func (s Snapshot) discriminates(o Snapshot) bool {
	return s.Type != o.Type ||
		s.File != o.File ||
		s.LanguageID != o.LanguageID ||
		s.TerminalActive != o.TerminalActive ||
		s.DebugActive != o.DebugActive
}

// snapshotOf derives a Snapshot from raw state.
func snapshotOf(st State, now time.Time) Snapshot {
	snap := Snapshot{
		TerminalActive: st.TerminalActive,
		DebugActive:    st.DebugActive,
		Workspace:      slices.Clone(st.Workspace),
		UpdatedAt:      now,
	}
	if st.Editor != nil {
		snap.File = st.Editor.File
		snap.LanguageID = st.Editor.LanguageID
		if snap.LanguageID == "" {
			snap.LanguageID = lang.IDForPath(st.Editor.File)
		}
		snap.HasSelection = st.Editor.HasSelection()
	}
	switch {
	case st.Focus == FocusTerminal && st.TerminalActive:
		snap.Type = ContextTerminal
	case st.Editor != nil:
		snap.Type = ContextEditor
	case st.DebugActive:
		snap.Type = ContextDebug
	default:
		snap.Type = ContextNone
	}
	return snap
}

// Adapter tracks a Host's state. Host failures are logged and reported as
// an unknown snapshot; they never reach callers.
type Adapter struct {
	host    Host
	variant Variant
	timeout time.Duration

	mu        sync.RWMutex
	snap      Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
	unsub     func()
	closed    bool
}

// NewAdapter detects the editor variant, subscribes to changes and takes
// an initial snapshot.
func NewAdapter(ctx context.Context, h Host) *Adapter {
	a := &Adapter{
		host:      h,
		variant:   Detect(h),
		timeout:   5 * time.Second,
		listeners: make(map[int]func(Snapshot)),
		snap:      Snapshot{Type: ContextUnknown},
	}
	a.unsub = h.Subscribe(func(kind ChangeKind) {
		slog.Debug("[host] change", "kind", kind)
		a.Refresh(context.Background())
	})
	a.Refresh(ctx)
	slog.Info("[host] adapter ready", "variant", a.variant)
	return a
}

// Host returns the underlying backend.
func (a *Adapter) Host() Host { return a.host }

// Variant returns the detected editor family. A backend that learns its
// identity late (the bridge, after hello) is re-probed on every refresh.
func (a *Adapter) Variant() Variant {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.variant
}

// Refresh re-reads the host state, stores the snapshot and notifies
// listeners when a discriminating field changed.
func (a *Adapter) Refresh(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	st, err := a.host.State(ctx)
	var snap Snapshot
	if err != nil {
		slog.Warn("[host] reading editor state failed", "error", err)
		snap = Snapshot{Type: ContextUnknown, UpdatedAt: time.Now()}
	} else {
		snap = snapshotOf(st, time.Now())
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return snap
	}
	if v := Detect(a.host); v != Unknown {
		a.variant = v
	}
	changed := a.snap.discriminates(snap)
	a.snap = snap
	var fns []func(Snapshot)
	if changed {
		for _, fn := range a.listeners {
			fns = append(fns, fn)
		}
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	return snap
}

// Snapshot returns the latest snapshot.
func (a *Adapter) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

func (a *Adapter) IsEditorActive() bool   { return a.Snapshot().Type == ContextEditor }
func (a *Adapter) IsTerminalActive() bool { return a.Snapshot().TerminalActive }
func (a *Adapter) IsDebugging() bool      { return a.Snapshot().DebugActive }
func (a *Adapter) HasSelection() bool     { return a.Snapshot().HasSelection }

// Language returns the comment descriptor for the active file.
func (a *Adapter) Language() lang.Descriptor {
	snap := a.Snapshot()
	if snap.LanguageID != "" {
		if d, ok := lang.Lookup(snap.LanguageID); ok {
			return d
		}
	}
	if snap.File != "" {
		return lang.ForPath(snap.File)
	}
	return lang.Plaintext
}

// OnChange registers fn to run when a discriminating field of the snapshot
// changes. The returned function removes it.
func (a *Adapter) OnChange(fn func(Snapshot)) (remove func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// Close unsubscribes from the host and drops all listeners. It does not
// close the host.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	if a.unsub != nil {
		a.unsub()
	}
	a.listeners = map[int]func(Snapshot){}
}
