// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/studybudd/internal/model"
	"github.com/verte-zerg/studybudd/internal/stats"
)

const (
	tabHeatmap = iota
	tabDays
)

const (
	minWeeks    = 4
	weeksStep   = 4
	trendWindow = 4
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	source stats.Source
	cfg    model.StatsConfig

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	heatmap   viewport.Model
	days      table.Model

	width  int
	height int
}

// NewModel constructs a stats UI model.
func NewModel(source stats.Source, cfg model.StatsConfig) *Model {
	if cfg.Weeks <= 0 {
		cfg.Weeks = stats.DefaultWeeks
	}
	m := &Model{
		source:  source,
		cfg:     cfg,
		tabs:    []string{"Heatmap", "Days"},
		heatmap: viewport.New(0, 0),
		days:    buildDayTable(0, 1),
	}
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=", "+":
			m.cfg.Weeks += weeksStep
			m.refreshReport()
			return m, nil
		case "-":
			m.cfg.Weeks = max(minWeeks, m.cfg.Weeks-weeksStep)
			m.refreshReport()
			return m, nil
		case "r":
			m.refreshReport()
			return m, nil
		case "g", "home":
			if m.activeTab == tabDays {
				m.days.GotoTop()
			} else {
				m.heatmap.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabDays {
				m.days.GotoBottom()
			} else {
				m.heatmap.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if m.activeTab == tabDays {
				m.days, cmd = m.days.Update(msg)
			} else {
				m.heatmap, cmd = m.heatmap.Update(msg)
			}
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.heatmap.Width = m.width
	m.heatmap.Height = bodyHeight
	m.days.SetWidth(m.width)
	m.days.SetHeight(max(1, bodyHeight-1))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	if m.activeTab == tabDays {
		m.days.Focus()
	} else {
		m.days.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Window: %d weeks  %s to %s",
		m.cfg.Weeks,
		m.report.Heatmap.Start.Format(model.DayLayout),
		m.report.Heatmap.End.Format(model.DayLayout))
	return tabs + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Weeks: -/=  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderBody() string {
	if m.activeTab == tabDays {
		if len(m.report.Days) == 0 {
			return "No focus sessions found."
		}
		return tableMutedStyle.Render(m.days.View())
	}
	return m.heatmap.View()
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.source, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.heatmap.SetContent("Failed to load stats.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.days.SetRows(dayRows(report.Days))
	m.days.GotoTop()
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		m.heatmap.SetContent("Failed to load stats.")
		return
	}
	m.heatmap.SetContent(renderOverview(m.report))
}

func renderOverview(report stats.Report) string {
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		metricCard("Sessions", fmt.Sprintf("%d", report.TotalSessions)),
		metricCard("Focus time", stats.FormatMinutes(report.TotalMinutes)),
		metricCard("Current streak", fmt.Sprintf("%d d", report.CurrentStreak)),
		metricCard("Longest streak", fmt.Sprintf("%d d", report.LongestStreak)),
	)
	var buf bytes.Buffer
	if err := stats.RenderHeatmap(&buf, report.Heatmap); err != nil {
		return fmt.Sprintf("Failed to render heatmap: %v", err)
	}
	if err := stats.RenderTrend(&buf, report, trendWindow); err != nil {
		return fmt.Sprintf("Failed to render trend: %v", err)
	}
	return cards + "\n\n" + strings.TrimRight(buf.String(), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func buildDayTable(width, height int) table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Day", Width: 10},
			{Title: "Sessions", Width: 8},
			{Title: "Minutes", Width: 7},
			{Title: "Avg/Session", Width: 11},
		}),
		table.WithHeight(max(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(dayTableStyles())
	return t
}

func dayRows(days []model.DayAggregate) []table.Row {
	formatted := stats.DayRows(days, 0)
	rows := make([]table.Row, 0, len(formatted))
	for _, r := range formatted {
		rows = append(rows, table.Row(r))
	}
	return rows
}

func dayTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
