package pomodoro

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode is the kind of interval the timer is counting down.
type Mode string

const (
	ModeFocus      Mode = "focus"
	ModeShortBreak Mode = "shortBreak"
	ModeLongBreak  Mode = "longBreak"
)

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	return m == ModeFocus || m == ModeShortBreak || m == ModeLongBreak
}

// Label returns the human-readable name of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeFocus:
		return "Focus"
	case ModeShortBreak:
		return "Short Break"
	case ModeLongBreak:
		return "Long Break"
	default:
		return "Unknown"
	}
}

// ParseMode accepts the canonical mode names plus the short CLI aliases.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "focus", "work", "pomodoro":
		return ModeFocus, nil
	case "short", "shortbreak", "short-break", "short_break":
		return ModeShortBreak, nil
	case "long", "longbreak", "long-break", "long_break":
		return ModeLongBreak, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, value)
	}
}

// State is the mutable record of the engine.
type State struct {
	Config              Config
	Mode                Mode
	Running             bool
	SecondsRemaining    int
	CompletedFocusCount int
	// TargetEnd is the wall-clock instant the current interval ends.
	// It is the zero time whenever Running is false.
	TargetEnd time.Time
}

func defaultState(cfg Config) State {
	return State{
		Config:           cfg,
		Mode:             ModeFocus,
		SecondsRemaining: cfg.Seconds(ModeFocus),
	}
}

// Snapshot is an immutable view of the state with derived display values.
type Snapshot struct {
	State
	Label           string
	TotalSeconds    int
	MinutesPart     int
	SecondsPart     int
	ProgressPercent int
	// FocusUntilLongBreak counts the focus sessions still needed before the
	// next long break, including the current one when in focus mode.
	FocusUntilLongBreak int
}

func newSnapshot(st State) Snapshot {
	total := st.Config.Seconds(st.Mode)
	snap := Snapshot{
		State:           st,
		Label:           st.Mode.Label(),
		TotalSeconds:    total,
		MinutesPart:     st.SecondsRemaining / 60,
		SecondsPart:     st.SecondsRemaining % 60,
		ProgressPercent: progressPercent(total, st.SecondsRemaining),
	}
	if interval := st.Config.LongBreakInterval; interval > 0 {
		snap.FocusUntilLongBreak = interval - st.CompletedFocusCount%interval
	}
	return snap
}

// Clock formats the remaining time as MM:SS.
func (s Snapshot) Clock() string {
	return fmt.Sprintf("%02d:%02d", s.MinutesPart, s.SecondsPart)
}

func progressPercent(total, remaining int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(total-remaining) / float64(total)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// remainingUntil rounds the distance to target to whole seconds, never below zero.
func remainingUntil(target, now time.Time) int {
	secs := int(math.Round(target.Round(0).Sub(now.Round(0)).Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}

type persistedState struct {
	Configuration       Config `json:"configuration"`
	Mode                Mode   `json:"mode"`
	IsRunning           bool   `json:"isRunning"`
	SecondsRemaining    int    `json:"secondsRemaining"`
	CompletedFocusCount int    `json:"completedFocusCount"`
	// Unix milliseconds; null when paused.
	TargetEndTimestamp *int64 `json:"targetEndTimestamp"`
}

func encodeState(st State) (string, error) {
	rec := persistedState{
		Configuration:       st.Config,
		Mode:                st.Mode,
		IsRunning:           st.Running,
		SecondsRemaining:    st.SecondsRemaining,
		CompletedFocusCount: st.CompletedFocusCount,
	}
	if st.Running {
		ms := st.TargetEnd.UnixMilli()
		rec.TargetEndTimestamp = &ms
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

// decodeState parses a stored snapshot. Structurally invalid snapshots are
// rejected; a running flag without a target is downgraded to paused.
func decodeState(raw string) (State, error) {
	var rec persistedState
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrPersistenceRead, err)
	}
	if err := rec.Configuration.Validate(); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrPersistenceRead, err)
	}
	if !rec.Mode.Valid() {
		return State{}, fmt.Errorf("%w: mode %q", ErrPersistenceRead, rec.Mode)
	}
	if rec.SecondsRemaining < 0 || rec.CompletedFocusCount < 0 {
		return State{}, fmt.Errorf("%w: negative counters", ErrPersistenceRead)
	}
	st := State{
		Config:              rec.Configuration,
		Mode:                rec.Mode,
		SecondsRemaining:    rec.SecondsRemaining,
		CompletedFocusCount: rec.CompletedFocusCount,
	}
	if rec.IsRunning && rec.TargetEndTimestamp != nil {
		st.Running = true
		st.TargetEnd = time.UnixMilli(*rec.TargetEndTimestamp)
	}
	return st, nil
}
