package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/studybudd/internal/pomodoro"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Timer.Focus)
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "[timer]\nfocuss = 30\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timer.focuss")
}

func TestResolveDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv(EnvDB, "")
	t.Setenv(EnvLogLevel, "")

	settings, err := Resolve(FileConfig{})
	require.NoError(t, err)
	assert.Equal(t, pomodoro.DefaultConfig(), settings.Timer)
	assert.Equal(t, pomodoro.DefaultTickInterval, settings.TickInterval)
	assert.Equal(t, filepath.Join("/data", "studybudd", "studybudd.db"), settings.DBPath)
	assert.Equal(t, slog.LevelInfo, settings.LogLevel)
}

func TestResolveFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[timer]
focus = 50
long-break-interval = 3
tick-ms = 500

[storage]
db-path = "/tmp/file.db"

[log]
level = "debug"
`)
	file, err := LoadConfig(path)
	require.NoError(t, err)

	t.Setenv(EnvDB, "")
	t.Setenv(EnvLogLevel, "")
	settings, err := Resolve(file)
	require.NoError(t, err)
	assert.Equal(t, 50, settings.Timer.FocusMinutes)
	assert.Equal(t, 5, settings.Timer.ShortBreakMinutes)
	assert.Equal(t, 3, settings.Timer.LongBreakInterval)
	assert.Equal(t, 500*time.Millisecond, settings.TickInterval)
	assert.Equal(t, "/tmp/file.db", settings.DBPath)
	assert.Equal(t, slog.LevelDebug, settings.LogLevel)

	t.Setenv(EnvDB, "/tmp/env.db")
	t.Setenv(EnvLogLevel, "error")
	settings, err = Resolve(file)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", settings.DBPath)
	assert.Equal(t, slog.LevelError, settings.LogLevel)
}

func TestResolveRejectsOutOfRangeTimer(t *testing.T) {
	zero := 0
	_, err := Resolve(FileConfig{Timer: TimerConfig{Focus: &zero}})
	require.ErrorIs(t, err, pomodoro.ErrInvalidConfiguration)

	tick := 1
	_, err = Resolve(FileConfig{Timer: TimerConfig{TickMs: &tick}})
	require.Error(t, err)
}

func TestResolveRejectsBadLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")
	_, err := Resolve(FileConfig{})
	require.Error(t, err)
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/studybudd.toml")
	assert.Equal(t, "/etc/studybudd.toml", ConfigPath())
}
