package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/studybudd/internal/config"
	"github.com/verte-zerg/studybudd/internal/pomodoro"
	"github.com/verte-zerg/studybudd/internal/store"
)

type testEnv struct {
	configDir string
	dataDir   string
	dbPath    string
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	env := testEnv{
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "data"),
	}
	env.dbPath = filepath.Join(env.dataDir, "studybudd", "studybudd.db")
	t.Setenv("XDG_CONFIG_HOME", env.configDir)
	t.Setenv("XDG_DATA_HOME", env.dataDir)
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvDB, "")
	t.Setenv(config.EnvLogLevel, "")
	return env
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func statusJSON(t *testing.T) statusView {
	t.Helper()
	out, _, err := runCLI(t, "status", "--format", "json")
	require.NoError(t, err)
	var view statusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	return view
}

func TestStatusDefaults(t *testing.T) {
	setupEnv(t)

	view := statusJSON(t)
	assert.Equal(t, "focus", view.Mode)
	assert.Equal(t, "Focus", view.Label)
	assert.False(t, view.Running)
	assert.Equal(t, 1500, view.SecondsRemaining)
	assert.Equal(t, "25:00", view.Remaining)
	assert.Equal(t, pomodoro.DefaultConfig(), view.Configuration)
	assert.Nil(t, view.EndsAt)
}

func TestStartPersistsAcrossInvocations(t *testing.T) {
	env := setupEnv(t)

	_, _, err := runCLI(t, "start")
	require.NoError(t, err)
	_, err = os.Stat(env.dbPath)
	require.NoError(t, err)

	out, _, err := runCLI(t, "status", "--format", "yaml")
	require.NoError(t, err)
	var view map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, true, view["running"])
	assert.Equal(t, "focus", view["mode"])
	assert.Contains(t, view, "ends_at")

	_, _, err = runCLI(t, "pause")
	require.NoError(t, err)
	assert.False(t, statusJSON(t).Running)
}

func TestSwitchAndReset(t *testing.T) {
	setupEnv(t)

	out, _, err := runCLI(t, "switch", "long")
	require.NoError(t, err)
	assert.Contains(t, out, "Long Break")
	assert.Contains(t, out, "15:00")
	assert.Contains(t, out, "paused")

	_, _, err = runCLI(t, "switch", "nap")
	require.ErrorIs(t, err, pomodoro.ErrUnknownMode)

	_, _, err = runCLI(t, "reset", "--all")
	require.NoError(t, err)
	view := statusJSON(t)
	assert.Equal(t, "focus", view.Mode)
	assert.Equal(t, 0, view.CompletedFocusCount)
}

func TestConfigureFlags(t *testing.T) {
	setupEnv(t)

	out, _, err := runCLI(t, "configure", "--focus", "50", "--long-break-interval", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "50:00")

	view := statusJSON(t)
	assert.Equal(t, 50, view.Configuration.FocusMinutes)
	assert.Equal(t, 3, view.Configuration.LongBreakInterval)
	assert.Equal(t, 3000, view.SecondsRemaining)

	_, _, err = runCLI(t, "configure", "--focus", "0")
	require.ErrorIs(t, err, pomodoro.ErrInvalidConfiguration)
	assert.Equal(t, 50, statusJSON(t).Configuration.FocusMinutes)
}

func TestConfigureWithoutFlagsNeedsTerminal(t *testing.T) {
	setupEnv(t)
	if isTerminal(os.Stdin) {
		t.Skip("stdin is a terminal")
	}
	_, _, err := runCLI(t, "configure")
	require.ErrorIs(t, err, errNoSettings)
}

func TestConfigFileSeedsDefaults(t *testing.T) {
	env := setupEnv(t)
	path := filepath.Join(env.configDir, "studybudd", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[timer]\nfocus = 40\nshort-break = 10\n"), 0o644))

	view := statusJSON(t)
	assert.Equal(t, 40, view.Configuration.FocusMinutes)
	assert.Equal(t, 10, view.Configuration.ShortBreakMinutes)
	assert.Equal(t, 2400, view.SecondsRemaining)
}

func TestInvalidConfigFileFails(t *testing.T) {
	env := setupEnv(t)
	path := filepath.Join(env.configDir, "custom.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[timer]\nfocus = 500\n"), 0o644))

	_, _, err := runCLI(t, "--config", path, "status")
	require.ErrorIs(t, err, pomodoro.ErrInvalidConfiguration)
}

func TestDotEnvSelectsDatabase(t *testing.T) {
	env := setupEnv(t)
	dbPath := filepath.Join(env.dataDir, "from-env.db")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(config.EnvDB+"="+dbPath+"\n"), 0o644))
	require.NoError(t, os.Unsetenv(config.EnvDB))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--env-file", envFile, "start"})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(dbPath)
	require.NoError(t, err)
}

func TestUnavailableDatabaseRunsInMemory(t *testing.T) {
	env := setupEnv(t)
	blocker := filepath.Join(env.dataDir, "blocker")
	require.NoError(t, os.MkdirAll(env.dataDir, 0o755))
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	out, errOut, err := runCLI(t, "--db", filepath.Join(blocker, "studybudd.db"), "start")
	require.NoError(t, err)
	assert.Contains(t, out, "running")
	assert.Contains(t, errOut, "database unavailable")
}

func TestStatsPlain(t *testing.T) {
	env := setupEnv(t)
	st, err := store.Open(env.dbPath)
	require.NoError(t, err)
	require.NoError(t, st.LogFocusCompletion(context.Background(), pomodoro.FocusCompleted{Minutes: 25, EndedAt: time.Now()}))
	require.NoError(t, st.Close())

	out, _, err := runCLI(t, "stats", "--plain", "--weeks", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Focus sessions: 1")
	assert.Contains(t, out, "Current streak: 1 day(s)")
	assert.Contains(t, out, "Recent Days")
	assert.Contains(t, out, time.Now().Format("2006-01-02"))

	_, _, err = runCLI(t, "stats", "--plain", "--weeks", "0")
	require.Error(t, err)
}

func TestHistoryListsNewestFirst(t *testing.T) {
	env := setupEnv(t)
	st, err := store.Open(env.dbPath)
	require.NoError(t, err)
	now := time.Now()
	ctx := context.Background()
	require.NoError(t, st.LogFocusCompletion(ctx, pomodoro.FocusCompleted{Minutes: 25, EndedAt: now.Add(-time.Hour)}))
	require.NoError(t, st.LogFocusCompletion(ctx, pomodoro.FocusCompleted{Minutes: 50, EndedAt: now}))
	require.NoError(t, st.Close())

	out, _, err := runCLI(t, "history", "--limit", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Minutes")
	assert.True(t, strings.HasSuffix(lines[1], " 50"), lines[1])
}

func TestInfoShowsStableInstallationID(t *testing.T) {
	env := setupEnv(t)

	first, _, err := runCLI(t, "info")
	require.NoError(t, err)
	assert.Contains(t, first, "Database: "+env.dbPath)
	assert.NotContains(t, first, "Installation: unavailable")

	second, _, err := runCLI(t, "info")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureConfigFileWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studybudd", "config.toml")
	require.NoError(t, ensureConfigFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[timer]")
	assert.Contains(t, string(data), "# focus = 25")

	// The commented template decodes to an empty config.
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.Timer.Focus)
}

func TestValidateIntRange(t *testing.T) {
	validate := validateIntRange(1, 10)
	assert.NoError(t, validate("5"))
	assert.Error(t, validate("0"))
	assert.Error(t, validate("eleven"))
}
