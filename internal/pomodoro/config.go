// Package pomodoro implements the focus-session timer engine.
package pomodoro

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration reports a timer setting outside its bounds.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrUnknownMode reports an unrecognised mode name.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrPersistenceRead reports a snapshot that could not be loaded.
	ErrPersistenceRead = errors.New("persistence read failure")
)

// Bounds for each configurable field, inclusive.
const (
	MinFocusMinutes      = 1
	MaxFocusMinutes      = 180
	MinShortBreakMinutes = 1
	MaxShortBreakMinutes = 60
	MinLongBreakMinutes  = 1
	MaxLongBreakMinutes  = 90
	MinLongBreakInterval = 2
	MaxLongBreakInterval = 10
)

// Config holds the user-editable timer settings.
type Config struct {
	FocusMinutes      int `json:"focusMinutes" yaml:"focus_minutes"`
	ShortBreakMinutes int `json:"shortBreakMinutes" yaml:"short_break_minutes"`
	LongBreakMinutes  int `json:"longBreakMinutes" yaml:"long_break_minutes"`
	LongBreakInterval int `json:"longBreakInterval" yaml:"long_break_interval"`
}

// DefaultConfig returns the classic 25/5/15 schedule with a long break every
// fourth focus session.
func DefaultConfig() Config {
	return Config{
		FocusMinutes:      25,
		ShortBreakMinutes: 5,
		LongBreakMinutes:  15,
		LongBreakInterval: 4,
	}
}

// ConfigError describes the first out-of-range field of a Config.
type ConfigError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s must be between %d and %d, got %d", ErrInvalidConfiguration, e.Field, e.Min, e.Max, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }

// Validate checks every field against its bound.
func (c Config) Validate() error {
	checks := []struct {
		field    string
		value    int
		min, max int
	}{
		{"focus minutes", c.FocusMinutes, MinFocusMinutes, MaxFocusMinutes},
		{"short break minutes", c.ShortBreakMinutes, MinShortBreakMinutes, MaxShortBreakMinutes},
		{"long break minutes", c.LongBreakMinutes, MinLongBreakMinutes, MaxLongBreakMinutes},
		{"long break interval", c.LongBreakInterval, MinLongBreakInterval, MaxLongBreakInterval},
	}
	for _, check := range checks {
		if check.value < check.min || check.value > check.max {
			return &ConfigError{Field: check.field, Value: check.value, Min: check.min, Max: check.max}
		}
	}
	return nil
}

// Minutes returns the configured length of mode in minutes.
func (c Config) Minutes(mode Mode) int {
	switch mode {
	case ModeFocus:
		return c.FocusMinutes
	case ModeShortBreak:
		return c.ShortBreakMinutes
	case ModeLongBreak:
		return c.LongBreakMinutes
	default:
		return 0
	}
}

// Seconds returns the full duration of mode in seconds.
func (c Config) Seconds(mode Mode) int {
	return c.Minutes(mode) * 60
}
