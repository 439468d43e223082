// Package tui is a terminal front end for a single conversation.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"DialogueWidget/internal/interpreter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type snapshotMsg struct{ snap interpreter.Snapshot }

type changesClosedMsg struct{}

type noticeMsg string

type navigateMsg struct{ url string }

type animationMsg struct{ cue string }

var (
	speakerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7c3aed"))
	textStyle    = lipgloss.NewStyle().Padding(0, 1)
	choiceStyle  = lipgloss.NewStyle().PaddingLeft(2)
	activeStyle  = lipgloss.NewStyle().PaddingLeft(1).Bold(true).Foreground(lipgloss.Color("#22c55e"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")).Italic(true)
)

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#ef4444")).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#ef4444")).
	Padding(0, 1)

var frameStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#4b5563")).
	Padding(0, 1)

// Model renders the interpreter's snapshot and turns keys into operations.
type Model struct {
	ctx    context.Context
	interp *interpreter.Interpreter
	langs  []string
	lang   int // Index into langs, -1 until the start language is left
	start  string

	snap   interpreter.Snapshot
	cursor int
	cue    string
	notice string
	width  int
}

// New creates a model for interp. start is loaded first, even when it is not
// one of langs; the loader's fallback decides what is served. langs are what
// the language key cycles through.
func New(ctx context.Context, interp *interpreter.Interpreter, langs []string, start string) Model {
	m := Model{ctx: ctx, interp: interp, langs: langs, lang: -1, start: start}
	for i, l := range langs {
		if l == start {
			m.lang = i
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(m.start), waitForChange(m.interp))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case snapshotMsg:
		if m.nodeID() != nodeIDOf(msg.snap) {
			m.cursor = 0
			m.cue = ""
		}
		m.snap = msg.snap
		return m, waitForChange(m.interp)

	case changesClosedMsg:
		return m, tea.Quit

	case noticeMsg:
		m.notice = string(msg)

	case navigateMsg:
		m.notice = "Opening " + msg.url

	case animationMsg:
		m.cue = msg.cue
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if node := m.snap.Node; node != nil && m.cursor < len(node.Choices)-1 {
			m.cursor++
		}

	case "enter", " ":
		node := m.snap.Node
		if node == nil || m.cursor >= len(node.Choices) {
			return m, nil
		}
		m.notice = ""
		return m, m.choose(node.Choices[m.cursor].ID)

	case "r":
		m.notice = ""
		switch {
		case m.snap.CanRestart():
			return m, m.restart()
		case m.snap.CanRetry():
			return m, m.retry()
		}

	case "tab", "l":
		if len(m.langs) > 1 || (len(m.langs) == 1 && m.lang < 0) {
			m.lang = (m.lang + 1) % len(m.langs)
			m.notice = ""
			return m, m.load(m.langs[m.lang])
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	switch m.snap.Phase {
	case interpreter.PhaseIdle, interpreter.PhaseLoading:
		b.WriteString(mutedStyle.Render("Loading conversation..."))

	case interpreter.PhaseError:
		msg := "Something went wrong."
		if m.snap.ErrorKind == interpreter.ErrorLoadFailure {
			msg = "The conversation could not be loaded."
		} else if m.snap.ErrorKind == interpreter.ErrorNodeNotFound {
			msg = "That answer leads nowhere."
		}
		b.WriteString(errorStyle.Render(msg))
		b.WriteString("\n")
		if m.snap.CanRestart() {
			b.WriteString(mutedStyle.Render("r: start over"))
		} else {
			b.WriteString(mutedStyle.Render("r: try again"))
		}

	case interpreter.PhaseReady:
		b.WriteString(m.renderNode())
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.footer()))

	style := frameStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(b.String())
}

func (m Model) renderNode() string {
	node := m.snap.Node
	var b strings.Builder

	if node.Speaker != "" {
		b.WriteString(speakerStyle.Render(string(node.Speaker)))
		if m.cue != "" {
			b.WriteString(mutedStyle.Render(" (" + m.cue + ")"))
		}
		b.WriteString("\n")
	}
	if node.Text != "" {
		b.WriteString(textStyle.Render(node.Text))
		b.WriteString("\n")
	}
	if node.ImageSrc != "" {
		b.WriteString(mutedStyle.Render("[image " + node.ImageSrc + "]"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for i, c := range node.Choices {
		label := c.Text
		if c.IsRedirect() {
			label += " ↗"
		}
		if i == m.cursor {
			b.WriteString(activeStyle.Render("> " + label))
		} else {
			b.WriteString(choiceStyle.Render(label))
		}
		b.WriteString("\n")
	}
	if m.snap.Pending {
		b.WriteString(mutedStyle.Render("..."))
		b.WriteString("\n")
	}
	if node.IsEnding {
		b.WriteString(mutedStyle.Render("r: start over"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) footer() string {
	lang := m.snap.Lang
	if m.snap.ScenarioLang != "" && m.snap.ScenarioLang != lang {
		lang = fmt.Sprintf("%s→%s", lang, m.snap.ScenarioLang)
	}
	return fmt.Sprintf("[%s] ↑/↓ select · enter choose · tab language · q quit", lang)
}

func (m Model) nodeID() string {
	return nodeIDOf(m.snap)
}

func nodeIDOf(s interpreter.Snapshot) string {
	if s.Node == nil {
		return ""
	}
	return string(s.Node.ID)
}

/* ----------------------------- Commands ----------------------------- */

func waitForChange(interp *interpreter.Interpreter) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-interp.Changes(); !ok {
			return changesClosedMsg{}
		}
		return snapshotMsg{snap: interp.Snapshot()}
	}
}

func (m Model) choose(id string) tea.Cmd {
	interp, ctx := m.interp, m.ctx
	return func() tea.Msg {
		return notice(interp.Choose(ctx, id))
	}
}

func (m Model) restart() tea.Cmd {
	interp := m.interp
	return func() tea.Msg {
		return notice(interp.Restart())
	}
}

func (m Model) retry() tea.Cmd {
	interp, ctx := m.interp, m.ctx
	return func() tea.Msg {
		return notice(interp.Retry(ctx))
	}
}

func (m Model) load(lang string) tea.Cmd {
	interp, ctx := m.interp, m.ctx
	return func() tea.Msg {
		return notice(interp.Load(ctx, lang))
	}
}

// notice turns an operation error into something worth showing. Load and
// node errors are already part of the snapshot.
func notice(err error) tea.Msg {
	switch {
	case err == nil,
		errors.Is(err, interpreter.ErrSuperseded),
		errors.Is(err, interpreter.ErrClosed),
		errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, interpreter.ErrNavigation):
		return noticeMsg("Could not open the link.")
	case errors.Is(err, interpreter.ErrNotReady):
		return noticeMsg("Still loading, try again in a moment.")
	}
	return nil
}
