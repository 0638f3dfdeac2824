package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/gostt-code/internal/status"
)

var stateGlyphs = map[status.State]string{
	status.Idle:         "○",
	status.Recording:    "●",
	status.Processing:   "◌",
	status.Transcribing: "◌",
	status.Inserting:    "◌",
	status.Success:      "✓",
	status.Error:        "✗",
	status.Warning:      "!",
}

func stateStyle(s status.State) lipgloss.Style {
	switch s {
	case status.Recording:
		return RecordingStyle
	case status.Processing, status.Transcribing, status.Inserting:
		return BusyStyle
	case status.Success:
		return SuccessStyle
	case status.Warning:
		return WarningStyle
	case status.Error:
		return ErrorStyle
	}
	return DimStyle
}

// FormatStatus renders an update as one styled line.
func FormatStatus(u status.Update) string {
	label := stateStyle(u.State).Render(fmt.Sprintf("%s %s", stateGlyphs[u.State], u.State))
	if u.Message == "" {
		return label
	}
	return label + " " + DimStyle.Render(u.Message)
}

// StatusLine redraws a single terminal line on every update.
type StatusLine struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStatusLine writes to w, usually stderr.
func NewStatusLine(w io.Writer) *StatusLine {
	return &StatusLine{w: w}
}

func (s *StatusLine) Render(u status.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// \r\x1b[K returns to column 0 and clears the line.
	fmt.Fprint(s.w, "\r\x1b[K"+FormatStatus(u))
	if u.State == status.Idle {
		fmt.Fprint(s.w, "\n")
	}
}
