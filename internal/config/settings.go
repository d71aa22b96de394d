package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/verte-zerg/studybudd/internal/pomodoro"
)

// Environment variables read by Resolve.
const (
	EnvConfig   = "STUDYBUDD_CONFIG"
	EnvDB       = "STUDYBUDD_DB"
	EnvLogLevel = "STUDYBUDD_LOG_LEVEL"
)

const (
	minTickMs = 50
	maxTickMs = 5000
)

// Settings is the effective runtime configuration.
type Settings struct {
	Timer        pomodoro.Config
	TickInterval time.Duration
	DBPath       string
	LogLevel     slog.Level
	LogFile      string
}

// ConfigPath returns the config file location, honoring STUDYBUDD_CONFIG.
func ConfigPath() string {
	if v := strings.TrimSpace(os.Getenv(EnvConfig)); v != "" {
		return v
	}
	return DefaultConfigPath()
}

// Resolve merges the file config over the built-in defaults and the
// environment over both. Command-line flags are applied by the caller.
func Resolve(file FileConfig) (Settings, error) {
	settings := Settings{
		Timer:        pomodoro.DefaultConfig(),
		TickInterval: pomodoro.DefaultTickInterval,
		DBPath:       DefaultDBPath(),
		LogLevel:     slog.LevelInfo,
		LogFile:      DefaultLogPath(),
	}

	applyInt(&settings.Timer.FocusMinutes, file.Timer.Focus)
	applyInt(&settings.Timer.ShortBreakMinutes, file.Timer.ShortBreak)
	applyInt(&settings.Timer.LongBreakMinutes, file.Timer.LongBreak)
	applyInt(&settings.Timer.LongBreakInterval, file.Timer.LongBreakInterval)
	if err := settings.Timer.Validate(); err != nil {
		return Settings{}, fmt.Errorf("[timer]: %w", err)
	}
	if file.Timer.TickMs != nil {
		ms := *file.Timer.TickMs
		if ms < minTickMs || ms > maxTickMs {
			return Settings{}, fmt.Errorf("[timer] tick-ms must be between %d and %d", minTickMs, maxTickMs)
		}
		settings.TickInterval = time.Duration(ms) * time.Millisecond
	}

	if file.Storage.DBPath != nil && *file.Storage.DBPath != "" {
		settings.DBPath = expandHome(*file.Storage.DBPath)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDB)); v != "" {
		settings.DBPath = expandHome(v)
	}

	level := ""
	if file.Log.Level != nil {
		level = *file.Log.Level
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		level = v
	}
	if level != "" {
		parsed, err := ParseLevel(level)
		if err != nil {
			return Settings{}, err
		}
		settings.LogLevel = parsed
	}
	if file.Log.File != nil && *file.Log.File != "" {
		settings.LogFile = expandHome(*file.Log.File)
	}
	return settings, nil
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", value)
	}
	return level, nil
}

func applyInt(dst *int, value *int) {
	if value != nil {
		*dst = *value
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return home + path[1:]
}
