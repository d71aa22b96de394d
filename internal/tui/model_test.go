package tui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/studybudd/internal/pomodoro"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestModel(t *testing.T) (*Model, *pomodoro.Engine, *fakeClock, *bytes.Buffer) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_760_000_000_000)}
	eng := pomodoro.New(nil, pomodoro.Options{Clock: clock})
	t.Cleanup(eng.Close)
	var bell bytes.Buffer
	return NewModel(eng, Options{Bell: &bell}), eng, clock, &bell
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}

// receive delivers the newest engine update to the model.
func receive(t *testing.T, m *Model) {
	t.Helper()
	msg := m.Init()()
	_, ok := msg.(snapshotMsg)
	require.True(t, ok, "expected a snapshot, got %T", msg)
	m.Update(msg)
}

func TestRenderInfoFormats(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	assert.Equal(t, "Completed 0 · long break in 4 · Progress 0%", m.renderInfo())

	m.snap.CompletedFocusCount = 3
	m.snap.FocusUntilLongBreak = 1
	m.snap.ProgressPercent = 40
	assert.Equal(t, "Completed 3 · long break next · Progress 40%", m.renderInfo())
}

func TestViewShowsModeAndClock(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	out := m.View()
	assert.Contains(t, out, "Focus")
	assert.Contains(t, out, "25:00")
	assert.Contains(t, out, "paused")
}

func TestSpaceTogglesEngine(t *testing.T) {
	m, eng, clock, _ := newTestModel(t)

	m.Update(space)
	assert.True(t, eng.Snapshot().Running)
	assert.True(t, m.snap.Running)

	clock.Advance(90 * time.Second)
	eng.Tick()
	receive(t, m)
	assert.Equal(t, "23:30", m.snap.Clock())

	m.Update(space)
	assert.False(t, eng.Snapshot().Running)
}

func TestFocusCompletionRingsBell(t *testing.T) {
	m, eng, clock, bell := newTestModel(t)

	m.Update(space)
	clock.Advance(25 * time.Minute)
	eng.Tick()
	receive(t, m)

	assert.Equal(t, "\a", bell.String())
	assert.Equal(t, pomodoro.ModeShortBreak, m.snap.Mode)
	assert.False(t, m.snap.Running)
	assert.Equal(t, "Focus complete. Short Break is ready.", m.notice)
	assert.Contains(t, m.View(), "05:00")
}

func TestBreakCompletionAnnounced(t *testing.T) {
	m, eng, clock, bell := newTestModel(t)
	require.NoError(t, eng.SwitchMode(pomodoro.ModeShortBreak))

	m.Update(space)
	clock.Advance(299 * time.Second)
	eng.Tick()
	receive(t, m)
	assert.Empty(t, m.notice)

	clock.Advance(time.Second)
	eng.Tick()
	receive(t, m)
	assert.Equal(t, pomodoro.ModeFocus, m.snap.Mode)
	assert.Equal(t, "Break over. Ready to focus.", m.notice)
	assert.Empty(t, bell.String())
}

func TestModeKeys(t *testing.T) {
	m, eng, _, _ := newTestModel(t)

	m.Update(runes("3"))
	assert.Equal(t, pomodoro.ModeLongBreak, eng.Snapshot().Mode)
	assert.Equal(t, "15:00", m.snap.Clock())

	m.Update(runes("2"))
	assert.Equal(t, pomodoro.ModeShortBreak, m.snap.Mode)

	m.Update(runes("R"))
	assert.Equal(t, pomodoro.ModeFocus, m.snap.Mode)
	assert.Equal(t, 0, m.snap.CompletedFocusCount)
}

func TestResetKeyRefillsCurrentMode(t *testing.T) {
	m, eng, clock, _ := newTestModel(t)

	m.Update(space)
	clock.Advance(10 * time.Minute)
	m.Update(runes("r"))
	snap := eng.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 1500, snap.SecondsRemaining)
}

func TestQuitUnsubscribes(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	// The initial snapshot may still be buffered.
	msg := m.Init()()
	if _, ok := msg.(snapshotMsg); ok {
		msg = m.Init()()
	}
	assert.IsType(t, updatesClosedMsg{}, msg)
}

func TestHelpToggle(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	assert.False(t, m.help.ShowAll)
	m.Update(runes("?"))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "reset all")
}

func TestKeyThatCompletesFocusRingsBell(t *testing.T) {
	m, _, clock, bell := newTestModel(t)

	m.Update(space)
	clock.Advance(25 * time.Minute)
	// No tick ran, so the toggle itself finishes the focus interval.
	m.Update(space)

	assert.Equal(t, "\a", bell.String())
	assert.Equal(t, pomodoro.ModeShortBreak, m.snap.Mode)
	assert.Equal(t, 1, m.snap.CompletedFocusCount)
	assert.True(t, m.snap.Running)
	assert.Equal(t, "Focus complete. Short Break is ready.", m.notice)

	receive(t, m)
	assert.Equal(t, "\a", bell.String())
}
