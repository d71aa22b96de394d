package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/studybudd/internal/pomodoro"
)

var (
	configureFocus      int
	configureShortBreak int
	configureLongBreak  int
	configureInterval   int
)

var errNoSettings = errors.New("no settings given; pass --focus, --short-break, --long-break or --long-break-interval")

func newConfigureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Change interval lengths of the live timer",
		Long: "Change interval lengths of the live timer. Without flags an interactive form is shown.\n" +
			"An untouched paused interval is resized; a started one keeps its remaining time.",
		Args: cobra.NoArgs,
		RunE: runConfigureCmd,
	}
	cmd.Flags().IntVar(&configureFocus, "focus", 0, "focus minutes")
	cmd.Flags().IntVar(&configureShortBreak, "short-break", 0, "short break minutes")
	cmd.Flags().IntVar(&configureLongBreak, "long-break", 0, "long break minutes")
	cmd.Flags().IntVar(&configureInterval, "long-break-interval", 0, "focus intervals per long break")
	return cmd
}

func runConfigureCmd(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(eng *pomodoro.Engine) error {
		cfg := eng.Snapshot().Config
		changed := applyIntFlag(cmd, "focus", &cfg.FocusMinutes, configureFocus)
		changed = applyIntFlag(cmd, "short-break", &cfg.ShortBreakMinutes, configureShortBreak) || changed
		changed = applyIntFlag(cmd, "long-break", &cfg.LongBreakMinutes, configureLongBreak) || changed
		changed = applyIntFlag(cmd, "long-break-interval", &cfg.LongBreakInterval, configureInterval) || changed
		if !changed {
			if !isTerminal(os.Stdin) {
				return errNoSettings
			}
			edited, err := runConfigureForm(cfg)
			if err != nil {
				return err
			}
			cfg = edited
		}
		return eng.Configure(cfg)
	})
}

func applyIntFlag(cmd *cobra.Command, name string, target *int, value int) bool {
	if !cmd.Flags().Changed(name) {
		return false
	}
	*target = value
	return true
}

func runConfigureForm(cfg pomodoro.Config) (pomodoro.Config, error) {
	focus := strconv.Itoa(cfg.FocusMinutes)
	short := strconv.Itoa(cfg.ShortBreakMinutes)
	long := strconv.Itoa(cfg.LongBreakMinutes)
	interval := strconv.Itoa(cfg.LongBreakInterval)

	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Focus minutes").Value(&focus).
			Validate(validateIntRange(pomodoro.MinFocusMinutes, pomodoro.MaxFocusMinutes)),
		huh.NewInput().Title("Short break minutes").Value(&short).
			Validate(validateIntRange(pomodoro.MinShortBreakMinutes, pomodoro.MaxShortBreakMinutes)),
		huh.NewInput().Title("Long break minutes").Value(&long).
			Validate(validateIntRange(pomodoro.MinLongBreakMinutes, pomodoro.MaxLongBreakMinutes)),
		huh.NewInput().Title("Focus intervals per long break").Value(&interval).
			Validate(validateIntRange(pomodoro.MinLongBreakInterval, pomodoro.MaxLongBreakInterval)),
	)).Run(); err != nil {
		return pomodoro.Config{}, err
	}

	// Inputs were validated by the form.
	cfg.FocusMinutes, _ = strconv.Atoi(focus)
	cfg.ShortBreakMinutes, _ = strconv.Atoi(short)
	cfg.LongBreakMinutes, _ = strconv.Atoi(long)
	cfg.LongBreakInterval, _ = strconv.Atoi(interval)
	return cfg, nil
}

func validateIntRange(lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil || n < lo || n > hi {
			return fmt.Errorf("must be a whole number between %d and %d", lo, hi)
		}
		return nil
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
