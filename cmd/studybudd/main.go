// Package main provides the CLI entrypoint for studybudd.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/studybudd/internal/config"
	"github.com/verte-zerg/studybudd/internal/pomodoro"
	"github.com/verte-zerg/studybudd/internal/store"
	"github.com/verte-zerg/studybudd/internal/tui"
)

var (
	rootConfigPath string
	rootDBPath     string
	rootLogLevel   string
	rootEnvFile    string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "studybudd",
		Short:             "Pomodoro focus timer",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: loadDotEnv,
		RunE:              runTimerCmd,
	}

	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "config file (default: $XDG_CONFIG_HOME/studybudd/config.toml)")
	rootCmd.PersistentFlags().StringVar(&rootDBPath, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&rootEnvFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newSwitchCmd())
	rootCmd.AddCommand(newConfigureCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newInfoCmd())

	return rootCmd
}

// loadDotEnv loads environment variables from the env file. A missing file is
// ignored.
func loadDotEnv(_ *cobra.Command, _ []string) error {
	if rootEnvFile == "" {
		return nil
	}
	err := godotenv.Load(rootEnvFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", rootEnvFile, err)
	}
	return nil
}

// app holds the collaborators shared by every command.
type app struct {
	settings   config.Settings
	configPath string
	log        *slog.Logger
	logFile    *os.File
	store      *store.Store
	engine     *pomodoro.Engine
}

// loadSettings resolves the effective settings: flags over environment over
// the config file over defaults.
func loadSettings(cmd *cobra.Command) (config.Settings, string, error) {
	path := config.ConfigPath()
	if cmd.Flags().Changed("config") {
		path = rootConfigPath
	}
	fileCfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Settings{}, "", fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := config.Resolve(fileCfg)
	if err != nil {
		return config.Settings{}, "", fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cmd.Flags().Changed("db") {
		settings.DBPath = rootDBPath
	}
	if cmd.Flags().Changed("log-level") {
		level, err := config.ParseLevel(rootLogLevel)
		if err != nil {
			return config.Settings{}, "", err
		}
		settings.LogLevel = level
	}
	return settings, path, nil
}

// openApp wires configuration, logging, storage and the engine. When the
// terminal belongs to the TUI, logs go to a file instead of stderr.
func openApp(cmd *cobra.Command, interactive bool) (*app, error) {
	settings, path, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{settings: settings, configPath: path}

	var logOut io.Writer = cmd.ErrOrStderr()
	if interactive {
		if err := os.MkdirAll(filepath.Dir(settings.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.logFile = f
		logOut = f
	}
	a.log = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: settings.LogLevel}))

	opts := pomodoro.Options{
		Logger:       a.log,
		Defaults:     settings.Timer,
		TickInterval: settings.TickInterval,
	}
	var kv pomodoro.KV
	st, err := store.Open(settings.DBPath)
	if err != nil {
		a.log.Warn("database unavailable, timer state will not survive restarts", "path", settings.DBPath, "err", err)
	} else {
		a.store = st
		kv = st
		opts.Sink = st
	}
	a.engine = pomodoro.New(kv, opts)
	return a, nil
}

// close waits for pending completion logs before releasing the database.
func (a *app) close() {
	a.engine.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close db", "err", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			// Best-effort close of the log file.
			_ = err
		}
	}
}

func runTimerCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	a.engine.Attach(ctx)
	defer a.engine.Detach()

	model := tui.NewModel(a.engine, tui.Options{Bell: cmd.ErrOrStderr()})
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
