package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/studybudd/internal/config"
	"github.com/verte-zerg/studybudd/internal/model"
	"github.com/verte-zerg/studybudd/internal/pomodoro"
	"github.com/verte-zerg/studybudd/internal/stats"
	"github.com/verte-zerg/studybudd/internal/statsui"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"

	defaultDayRows = 14
)

var (
	statusFormat string
	resetAll     bool

	statsPlain bool
	statsWeeks int
	statsDays  int

	historyLimit int
)

// statusView is the machine-readable form of a snapshot.
type statusView struct {
	Mode                string          `json:"mode" yaml:"mode"`
	Label               string          `json:"label" yaml:"label"`
	Running             bool            `json:"isRunning" yaml:"running"`
	Remaining           string          `json:"remaining" yaml:"remaining"`
	SecondsRemaining    int             `json:"secondsRemaining" yaml:"seconds_remaining"`
	ProgressPercent     int             `json:"progressPercent" yaml:"progress_percent"`
	CompletedFocusCount int             `json:"completedFocusCount" yaml:"completed_focus_count"`
	FocusUntilLongBreak int             `json:"focusUntilLongBreak" yaml:"focus_until_long_break"`
	EndsAt              *time.Time      `json:"endsAt,omitempty" yaml:"ends_at,omitempty"`
	Configuration       pomodoro.Config `json:"configuration" yaml:"configuration"`
}

func newStatusView(snap pomodoro.Snapshot) statusView {
	view := statusView{
		Mode:                string(snap.Mode),
		Label:               snap.Label,
		Running:             snap.Running,
		Remaining:           snap.Clock(),
		SecondsRemaining:    snap.SecondsRemaining,
		ProgressPercent:     snap.ProgressPercent,
		CompletedFocusCount: snap.CompletedFocusCount,
		FocusUntilLongBreak: snap.FocusUntilLongBreak,
		Configuration:       snap.Config,
	}
	if snap.Running && !snap.TargetEnd.IsZero() {
		endsAt := snap.TargetEnd.Local().Truncate(time.Second)
		view.EndsAt = &endsAt
	}
	return view
}

func writeStatus(w io.Writer, snap pomodoro.Snapshot, format string) error {
	view := newStatusView(snap)
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		return writeStatusText(w, snap)
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func writeStatusText(w io.Writer, snap pomodoro.Snapshot) error {
	renderer := lipgloss.NewRenderer(w)
	labelStyle := renderer.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	clockStyle := renderer.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle := renderer.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	state := "paused"
	if snap.Running {
		state = "running"
	}
	next := fmt.Sprintf("long break in %d", snap.FocusUntilLongBreak)
	if snap.FocusUntilLongBreak == 1 {
		next = "long break next"
	}
	lines := []string{
		fmt.Sprintf("%s  %s  %s",
			labelStyle.Render(snap.Label),
			clockStyle.Render(snap.Clock()),
			mutedStyle.Render(state)),
		mutedStyle.Render(fmt.Sprintf("Completed %d · %s", snap.CompletedFocusCount, next)),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the timer state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(*pomodoro.Engine) error { return nil })
		},
	}
	cmd.Flags().StringVar(&statusFormat, "format", formatText, "output format: text, json or yaml")
	return cmd
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start or resume the countdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(eng *pomodoro.Engine) error {
				eng.Start()
				return nil
			})
		},
	}
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the countdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(eng *pomodoro.Engine) error {
				eng.Pause()
				return nil
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Refill the current interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(eng *pomodoro.Engine) error {
				if resetAll {
					eng.ResetAll()
				} else {
					eng.ResetCurrent()
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&resetAll, "all", false, "also return to focus and clear the completed count")
	return cmd
}

func newSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "switch <focus|short|long>",
		Short:     "Switch to a full interval of another mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"focus", "short", "long"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := pomodoro.ParseMode(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, func(eng *pomodoro.Engine) error {
				return eng.SwitchMode(mode)
			})
		},
	}
}

// withEngine opens the app, applies op and prints the resulting state. The
// engine is closed before returning, so completion logs are flushed.
func withEngine(cmd *cobra.Command, op func(eng *pomodoro.Engine) error) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := op(a.engine); err != nil {
		return err
	}
	format := formatText
	if f := cmd.Flags().Lookup("format"); f != nil {
		format = f.Value.String()
	}
	if err := writeStatus(cmd.OutOrStdout(), a.engine.Snapshot(), format); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show focus history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the interactive view")
	cmd.Flags().IntVar(&statsWeeks, "weeks", stats.DefaultWeeks, "number of weeks in the heatmap")
	cmd.Flags().IntVar(&statsDays, "days", defaultDayRows, "number of recent days listed by --plain (0 for all)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsWeeks <= 0 {
		return fmt.Errorf("--weeks must be > 0")
	}
	cfg := model.StatsConfig{Weeks: statsWeeks, Last: statsDays}

	interactive := !statsPlain && isTerminal(os.Stdout)
	a, err := openApp(cmd, interactive)
	if err != nil {
		return err
	}
	defer a.close()
	if a.store == nil {
		return fmt.Errorf("failed to open db: %s", a.settings.DBPath)
	}

	if interactive {
		program := tea.NewProgram(statsui.NewModel(a.store, cfg), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	}
	report, err := stats.BuildReport(cmd.Context(), a.store, cfg)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	return renderPlainStats(cmd.OutOrStdout(), report, cfg)
}

func renderPlainStats(w io.Writer, report stats.Report, cfg model.StatsConfig) error {
	if err := stats.RenderSummary(w, report); err != nil {
		return err
	}
	if err := stats.RenderHeatmap(w, report.Heatmap); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	if err := stats.RenderTrend(w, report, 4); err != nil {
		return err
	}
	return stats.RenderDayTable(w, report.Days, cfg.Last)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent focus sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()
			if a.store == nil {
				return fmt.Errorf("failed to open db: %s", a.settings.DBPath)
			}
			sessions, err := a.store.ListSessions(cmd.Context(), historyLimit)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			return stats.RenderSessionTable(cmd.OutOrStdout(), sessions)
		},
	}
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of sessions to list (0 for all)")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show file locations and the installation id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			id := "unavailable"
			if a.store != nil {
				if id, err = a.store.InstallationID(cmd.Context()); err != nil {
					return fmt.Errorf("failed to read installation id: %w", err)
				}
			}
			lines := []string{
				fmt.Sprintf("Config: %s", a.configPath),
				fmt.Sprintf("Database: %s", a.settings.DBPath),
				fmt.Sprintf("Log file: %s", a.settings.LogFile),
				fmt.Sprintf("Installation: %s", id),
			}
			for _, line := range lines {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	path := config.ConfigPath()
	if cmd.Flags().Changed("config") {
		path = rootConfigPath
	}
	if err := ensureConfigFile(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	editorCmd := exec.Command(parts[0], append(parts[1:], path)...)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func defaultConfigTemplate() string {
	defaults := pomodoro.DefaultConfig()
	return fmt.Sprintf(`# studybudd configuration
# Uncomment a value to enable it. CLI flags and STUDYBUDD_* variables override config values.
# Timer values seed a fresh timer; use "studybudd configure" to change a running one.

[timer]
# focus = %d                # Focus minutes (%d-%d)
# short-break = %d           # Short break minutes (%d-%d)
# long-break = %d           # Long break minutes (%d-%d)
# long-break-interval = %d   # Focus intervals per long break (%d-%d)
# tick-ms = %d             # Display refresh interval in milliseconds

[storage]
# db-path = %q

[log]
# level = "info"            # debug, info, warn, error
# file = %q
`,
		defaults.FocusMinutes, pomodoro.MinFocusMinutes, pomodoro.MaxFocusMinutes,
		defaults.ShortBreakMinutes, pomodoro.MinShortBreakMinutes, pomodoro.MaxShortBreakMinutes,
		defaults.LongBreakMinutes, pomodoro.MinLongBreakMinutes, pomodoro.MaxLongBreakMinutes,
		defaults.LongBreakInterval, pomodoro.MinLongBreakInterval, pomodoro.MaxLongBreakInterval,
		pomodoro.DefaultTickInterval.Milliseconds(),
		config.DefaultDBPath(),
		config.DefaultLogPath(),
	)
}
