// Package status tracks the dictation state shown to the user.
package status

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is a step of the dictation flow.
type State string

const (
	Idle         State = "idle"
	Recording    State = "recording"
	Processing   State = "processing"
	Transcribing State = "transcribing"
	Inserting    State = "inserting"
	Success      State = "success"
	Error        State = "error"
	Warning      State = "warning"
)

// Terminal reports whether s is an outcome that resets to Idle on its own.
func (s State) Terminal() bool {
	return s == Success || s == Error || s == Warning
}

// transitions lists the states reachable from each state. Error and
// Warning are reachable from anywhere and are not listed.
var transitions = map[State][]State{
	Idle:         {Recording, Processing, Inserting},
	Recording:    {Processing, Idle},
	Processing:   {Transcribing, Idle},
	Transcribing: {Inserting, Success, Idle},
	Inserting:    {Success},
	Success:      {Idle, Recording, Processing, Inserting},
	Error:        {Idle, Recording, Processing, Inserting},
	Warning:      {Idle, Recording, Processing, Inserting},
}

// CanTransition reports whether the indicator may move from one state to
// another.
func CanTransition(from, to State) bool {
	if to == Error || to == Warning || from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Update is what renderers receive on every state change.
type Update struct {
	State   State
	Message string
	At      time.Time
}

// Renderer presents updates to the user.
type Renderer interface {
	Render(Update)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Update)

func (f RendererFunc) Render(u Update) { f(u) }

// Indicator is the status state machine. Terminal states return to Idle
// after the display duration.
type Indicator struct {
	mu        sync.Mutex
	state     State
	message   string
	display   time.Duration
	timer     *time.Timer
	renderers []Renderer
}

// NewIndicator returns an idle indicator.
func NewIndicator(display time.Duration, renderers ...Renderer) *Indicator {
	return &Indicator{state: Idle, display: display, renderers: renderers}
}

// AddRenderer attaches another renderer.
func (i *Indicator) AddRenderer(r Renderer) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.renderers = append(i.renderers, r)
}

// SetDisplayDuration changes how long terminal states stay visible.
func (i *Indicator) SetDisplayDuration(d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.display = d
}

// State returns the current state.
func (i *Indicator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Message returns the message of the current state.
func (i *Indicator) Message() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.message
}

// Set moves to state s. Transitions outside the table are rejected.
func (i *Indicator) Set(s State, msg string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !CanTransition(i.state, s) {
		slog.Debug("[status] rejected transition", "from", i.state, "to", s)
		return fmt.Errorf("status: invalid transition %s -> %s", i.state, s)
	}
	i.apply(s, msg)
	return nil
}

// Dismiss returns to Idle immediately.
func (i *Indicator) Dismiss() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == Idle {
		return
	}
	i.apply(Idle, "")
}

// apply changes state and renders. Callers hold i.mu.
func (i *Indicator) apply(s State, msg string) {
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.state = s
	i.message = msg

	if s.Terminal() && i.display > 0 {
		var t *time.Timer
		t = time.AfterFunc(i.display, func() {
			i.mu.Lock()
			defer i.mu.Unlock()
			if i.timer != t {
				return
			}
			i.timer = nil
			i.apply(Idle, "")
		})
		i.timer = t
	}

	u := Update{State: s, Message: msg, At: time.Now()}
	for _, r := range i.renderers {
		r.Render(u)
	}
}

// LogRenderer writes updates to slog.
type LogRenderer struct{}

func (LogRenderer) Render(u Update) {
	switch u.State {
	case Error:
		slog.Error("[status] "+string(u.State), "message", u.Message)
	case Warning:
		slog.Warn("[status] "+string(u.State), "message", u.Message)
	default:
		slog.Info("[status] "+string(u.State), "message", u.Message)
	}
}
