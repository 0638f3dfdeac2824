package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chaz8081/gostt-code/internal/history"
)

// LoadFunc fetches history entries, newest first.
type LoadFunc func() ([]history.Entry, error)

// CopyFunc puts text on the clipboard.
type CopyFunc func(string) error

type entriesLoadedMsg struct {
	entries []history.Entry
	err     error
}

type copiedMsg struct {
	text string
	err  error
}

type clearNoticeMsg struct{}

// HistoryModel is a bubbletea model for browsing past transcriptions.
// Enter copies the selected entry to the clipboard.
type HistoryModel struct {
	load LoadFunc
	copy CopyFunc

	entries []history.Entry
	cursor  int
	offset  int
	width   int
	height  int
	notice  string
	err     error
	loaded  bool
}

// NewHistoryModel returns a browser over load.
func NewHistoryModel(load LoadFunc, copy CopyFunc) HistoryModel {
	return HistoryModel{load: load, copy: copy, width: 80, height: 24}
}

func (m HistoryModel) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		entries, err := load()
		return entriesLoadedMsg{entries: entries, err: err}
	}
}

func (m HistoryModel) copyCmd(text string) tea.Cmd {
	cp := m.copy
	return func() tea.Msg {
		return copiedMsg{text: text, err: cp(text)}
	}
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearNoticeMsg{} })
}

func (m HistoryModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()
		return m, nil

	case entriesLoadedMsg:
		m.loaded = true
		m.err = msg.err
		m.entries = msg.entries
		if m.cursor >= len(m.entries) {
			m.cursor = max(0, len(m.entries)-1)
		}
		m.clampScroll()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "copy failed: " + msg.err.Error()
		} else {
			m.notice = fmt.Sprintf("copied %d characters", len([]rune(msg.text)))
		}
		return m, clearNoticeCmd()

	case clearNoticeMsg:
		m.notice = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m HistoryModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyEsc, KeyCtrlC:
		return m, tea.Quit
	case KeyUp, KeyK:
		if m.cursor > 0 {
			m.cursor--
		}
	case KeyDown, KeyJ:
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case KeyHome:
		m.cursor = 0
	case KeyEnd:
		m.cursor = max(0, len(m.entries)-1)
	case KeyReload:
		return m, m.loadCmd()
	case KeyEnter:
		if len(m.entries) > 0 && m.copy != nil {
			return m, m.copyCmd(m.entries[m.cursor].Text)
		}
	}
	m.clampScroll()
	return m, nil
}

// visibleRows is how many entries fit between the title and the footer.
func (m HistoryModel) visibleRows() int {
	return max(1, m.height-4)
}

func (m *HistoryModel) clampScroll() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m HistoryModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("gostt-code history"))
	b.WriteString(DimStyle.Render(fmt.Sprintf("  %d entries", len(m.entries))))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(ErrorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	case !m.loaded:
		b.WriteString(DimStyle.Render("loading..."))
		b.WriteString("\n")
	case len(m.entries) == 0:
		b.WriteString(DimStyle.Render("no transcriptions yet"))
		b.WriteString("\n")
	}

	end := min(len(m.entries), m.offset+m.visibleRows())
	for i := m.offset; i < end; i++ {
		e := m.entries[i]
		stamp := e.CreatedAt.Local().Format("Jan 02 15:04")
		text := oneLine(e.Text, m.width-24)
		line := fmt.Sprintf("%s  %-8s %s", stamp, e.Mode, text)
		if i == m.cursor {
			b.WriteString(SelectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + TextStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(SuccessStyle.Render(m.notice))
	} else {
		b.WriteString(footer())
	}
	return b.String()
}

func footer() string {
	parts := []string{
		FooterKeyStyle.Render("↑/↓") + FooterDescStyle.Render(" move"),
		FooterKeyStyle.Render("enter") + FooterDescStyle.Render(" copy"),
		FooterKeyStyle.Render("r") + FooterDescStyle.Render(" reload"),
		FooterKeyStyle.Render("q") + FooterDescStyle.Render(" quit"),
	}
	return strings.Join(parts, "  ")
}

// oneLine flattens text and truncates it to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n < 4 {
		n = 4
	}
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// RunHistory runs the browser until the user quits.
func RunHistory(load LoadFunc, copy CopyFunc) error {
	_, err := tea.NewProgram(NewHistoryModel(load, copy), tea.WithAltScreen()).Run()
	return err
}
