// Package tui provides the Bubble Tea timer interface.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/studybudd/internal/pomodoro"
)

const (
	bell             = "\a"
	maxProgressWidth = 48
	minProgressWidth = 10
)

// Engine is the part of the session engine the timer screen drives.
type Engine interface {
	Snapshot() pomodoro.Snapshot
	Toggle()
	ResetCurrent()
	ResetAll()
	SwitchMode(mode pomodoro.Mode) error
	Subscribe(buffer int) (<-chan pomodoro.Snapshot, func())
}

type snapshotMsg pomodoro.Snapshot

type updatesClosedMsg struct{}

type keyMap struct {
	Toggle   key.Binding
	Reset    key.Binding
	ResetAll key.Binding
	Focus    key.Binding
	Short    key.Binding
	Long     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Reset, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Reset, k.ResetAll},
		{k.Focus, k.Short, k.Long},
		{k.Help, k.Quit},
	}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle:   key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "start/pause")),
		Reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		ResetAll: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset all")),
		Focus:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "focus")),
		Short:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "short break")),
		Long:     key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "long break")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

var (
	focusLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	breakLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ADE80")).Bold(true)
	clockStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	pausedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Italic(true)
)

// Options tunes the timer screen.
type Options struct {
	// Bell receives the terminal bell on focus completion. Defaults to stderr.
	Bell io.Writer
}

// Model implements the Bubble Tea timer UI.
type Model struct {
	engine      Engine
	updates     <-chan pomodoro.Snapshot
	unsubscribe func()
	bell        io.Writer

	snap   pomodoro.Snapshot
	notice string

	keys     keyMap
	help     help.Model
	progress progress.Model

	width  int
	height int
}

// NewModel constructs a timer TUI model subscribed to engine.
func NewModel(engine Engine, opts Options) *Model {
	if opts.Bell == nil {
		opts.Bell = os.Stderr
	}
	updates, unsubscribe := engine.Subscribe(1)
	m := &Model{
		engine:      engine,
		updates:     updates,
		unsubscribe: unsubscribe,
		bell:        opts.Bell,
		snap:        engine.Snapshot(),
		keys:        defaultKeyMap(),
		help:        help.New(),
		progress:    progress.New(progress.WithGradient("#C89A3A", "#4ADE80"), progress.WithoutPercentage()),
	}
	m.progress.Width = maxProgressWidth
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func waitForSnapshot(updates <-chan pomodoro.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = max(minProgressWidth, min(maxProgressWidth, msg.Width-8))
		return m, nil
	case snapshotMsg:
		m.apply(pomodoro.Snapshot(msg))
		return m, waitForSnapshot(m.updates)
	case updatesClosedMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.unsubscribe()
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case key.Matches(msg, m.keys.Toggle):
		m.engine.Toggle()
	case key.Matches(msg, m.keys.Reset):
		m.engine.ResetCurrent()
	case key.Matches(msg, m.keys.ResetAll):
		m.engine.ResetAll()
	case key.Matches(msg, m.keys.Focus):
		m.switchMode(pomodoro.ModeFocus)
	case key.Matches(msg, m.keys.Short):
		m.switchMode(pomodoro.ModeShortBreak)
	case key.Matches(msg, m.keys.Long):
		m.switchMode(pomodoro.ModeLongBreak)
	default:
		return nil
	}
	m.notice = ""
	m.apply(m.engine.Snapshot())
	return nil
}

func (m *Model) switchMode(mode pomodoro.Mode) {
	if err := m.engine.SwitchMode(mode); err != nil {
		m.notice = err.Error()
	}
}

// apply records an engine update and announces transitions the user did not
// trigger.
func (m *Model) apply(snap pomodoro.Snapshot) {
	prev := m.snap
	m.snap = snap
	switch {
	case snap.CompletedFocusCount > prev.CompletedFocusCount:
		m.notice = fmt.Sprintf("Focus complete. %s is ready.", snap.Label)
		m.ring()
	case prev.Mode != pomodoro.ModeFocus && snap.Mode == pomodoro.ModeFocus &&
		prev.Running && prev.SecondsRemaining <= 2 &&
		snap.CompletedFocusCount == prev.CompletedFocusCount:
		m.notice = "Break over. Ready to focus."
	}
}

func (m *Model) ring() {
	if _, err := io.WriteString(m.bell, bell); err != nil {
		// Best-effort bell.
		_ = err
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	labelStyle := breakLabelStyle
	if m.snap.Mode == pomodoro.ModeFocus {
		labelStyle = focusLabelStyle
	}
	state := "running"
	if !m.snap.Running {
		state = "paused"
	}

	lines := []string{
		labelStyle.Render(m.snap.Label),
		"",
		clockStyle.Render(m.snap.Clock()),
		pausedStyle.Render(state),
		"",
		m.progress.ViewAs(float64(m.snap.ProgressPercent) / 100),
		"",
		footerStyle.Render(m.renderInfo()),
	}
	if m.notice != "" {
		lines = append(lines, "", noticeStyle.Render(m.notice))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	helpView := m.help.View(m.keys)
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + helpView
	}
	helpHeight := strings.Count(helpView, "\n") + 1
	if m.height <= helpHeight+1 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-helpHeight, lipgloss.Center, lipgloss.Center, content)
	footer := lipgloss.Place(m.width, helpHeight, lipgloss.Center, lipgloss.Bottom, helpView)
	return body + "\n" + footer
}

func (m *Model) renderInfo() string {
	segments := []string{fmt.Sprintf("Completed %d", m.snap.CompletedFocusCount)}
	if m.snap.FocusUntilLongBreak == 1 {
		segments = append(segments, "long break next")
	} else {
		segments = append(segments, fmt.Sprintf("long break in %d", m.snap.FocusUntilLongBreak))
	}
	segments = append(segments, fmt.Sprintf("Progress %d%%", m.snap.ProgressPercent))
	return strings.Join(segments, " · ")
}
