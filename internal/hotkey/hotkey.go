// Package hotkey provides global hotkeys using gohook. Each Binding maps a
// key combo to a command name. In "hold" mode a press starts and a release
// stops; in "toggle" mode every press toggles.
package hotkey

import (
	"fmt"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType says what the receiver should do.
type EventType int

const (
	// EventStart signals that a hold-mode combo went down.
	EventStart EventType = iota
	// EventStop signals that a hold-mode combo was released.
	EventStop
	// EventToggle signals a toggle-mode press.
	EventToggle
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventToggle:
		return "toggle"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Binding string
	Type    EventType
}

// Binding names a key combo. Keys are lowercase gohook names such as
// ["ctrl", "shift", "r"].
type Binding struct {
	Name string
	Keys []string
}

// Combo renders keys for display, e.g. "ctrl+shift+r".
func Combo(keys []string) string {
	return strings.Join(keys, "+")
}

// Listener watches global key combos and emits events.
type Listener struct {
	bindings []Binding
	mode     string // "hold" or "toggle"
	ch       chan Event
	done     chan struct{}
	once     sync.Once
}

// NewListener creates a Listener. Bindings with no keys are skipped.
// mode must be "hold" or "toggle".
func NewListener(mode string, bindings ...Binding) (*Listener, error) {
	if mode != "hold" && mode != "toggle" {
		return nil, fmt.Errorf("hotkey: mode must be hold or toggle, got %q", mode)
	}
	seen := make(map[string]string)
	var kept []Binding
	for _, b := range bindings {
		if len(b.Keys) == 0 {
			continue
		}
		norm := normalize(b.Keys)
		key := Combo(norm)
		if other, ok := seen[key]; ok {
			return nil, fmt.Errorf("hotkey: %s is bound to both %s and %s", key, other, b.Name)
		}
		seen[key] = b.Name
		kept = append(kept, Binding{Name: b.Name, Keys: norm})
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("hotkey: no key bindings configured")
	}
	return &Listener{
		bindings: kept,
		mode:     mode,
		ch:       make(chan Event, 16),
		done:     make(chan struct{}),
	}, nil
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Bindings returns the active bindings.
func (l *Listener) Bindings() []Binding {
	return l.bindings
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// events returns what a key transition produces in mode.
func events(mode string, down bool) (EventType, bool) {
	switch {
	case mode == "toggle" && down:
		return EventToggle, true
	case mode == "toggle":
		return 0, false
	case down:
		return EventStart, true
	default:
		return EventStop, true
	}
}

func (l *Listener) emit(name string, down bool) {
	typ, ok := events(l.mode, down)
	if !ok {
		return
	}
	select {
	case l.ch <- Event{Binding: name, Type: typ}:
	default: // don't block if channel is full
	}
}

// Start registers every binding and blocks until Stop is called. Run it in
// a goroutine.
func (l *Listener) Start() {
	for _, b := range l.bindings {
		name := b.Name
		hook.Register(hook.KeyDown, b.Keys, func(hook.Event) { l.emit(name, true) })
		if l.mode == "hold" {
			hook.Register(hook.KeyUp, b.Keys, func(hook.Event) { l.emit(name, false) })
		}
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
