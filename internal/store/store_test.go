package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/studybudd/internal/model"
	"github.com/verte-zerg/studybudd/internal/pomodoro"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "studybudd.db"))
	require.NoError(t, err)
	st.location = time.UTC
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestGetSet(t *testing.T) {
	st := openTestStore(t)

	_, ok, err := st.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Set("k", "one"))
	require.NoError(t, st.Set("k", "two"))
	value, ok, err := st.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", value)
}

func TestStoreBacksEngineAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studybudd.db")
	st, err := Open(path)
	require.NoError(t, err)

	eng := pomodoro.New(st, pomodoro.Options{})
	require.NoError(t, eng.SwitchMode(pomodoro.ModeLongBreak))
	eng.Close()
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	eng = pomodoro.New(st, pomodoro.Options{})
	defer eng.Close()
	assert.Equal(t, pomodoro.ModeLongBreak, eng.Snapshot().Mode)
}

func TestInstallationIDIsStable(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	first, err := st.InstallationID(ctx)
	require.NoError(t, err)
	require.Len(t, first, 36)
	second, err := st.InstallationID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLogFocusCompletionAggregatesByDay(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.LogFocusCompletion(ctx, pomodoro.FocusCompleted{Minutes: 25, EndedAt: day}))
	require.NoError(t, st.LogFocusCompletion(ctx, pomodoro.FocusCompleted{Minutes: 50, EndedAt: day.Add(2 * time.Hour)}))
	require.NoError(t, st.LogFocusCompletion(ctx, pomodoro.FocusCompleted{Minutes: 25, EndedAt: day.Add(24 * time.Hour)}))

	days, err := st.ListDays(ctx, day.AddDate(0, 0, -7), day.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-14", days[0].Key())
	assert.Equal(t, 2, days[0].FocusSessions)
	assert.Equal(t, 75, days[0].FocusMinutes)
	assert.Equal(t, "2026-03-15", days[1].Key())
	assert.Equal(t, 1, days[1].FocusSessions)
	assert.Equal(t, 25, days[1].FocusMinutes)

	days, err = st.ListDays(ctx, day.AddDate(0, 0, 1), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, days, 1)

	sessions, err := st.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2026-03-15", sessions[0].LocalDay)
	assert.Equal(t, 50, sessions[1].Minutes)
	assert.Equal(t, string(pomodoro.ModeFocus), sessions[0].Mode)
	assert.True(t, sessions[1].EndedAt.Equal(day.Add(2*time.Hour)))

	all, err := st.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInsertFocusSessionRollsBackOnDuplicate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	session := model.FocusSession{
		ID:       "fixed",
		Mode:     "focus",
		Minutes:  25,
		EndedAt:  time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		LocalDay: "2026-01-02",
	}
	require.NoError(t, st.InsertFocusSession(ctx, session))
	require.Error(t, st.InsertFocusSession(ctx, session))

	days, err := st.ListDays(ctx, session.EndedAt, session.EndedAt)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 1, days[0].FocusSessions)
}

func TestListSessionsOrdersWithinSecond(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	whole := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	later := whole.Add(500 * time.Millisecond)
	require.NoError(t, st.LogFocusCompletion(ctx, pomodoro.FocusCompleted{Minutes: 25, EndedAt: later}))
	require.NoError(t, st.LogFocusCompletion(ctx, pomodoro.FocusCompleted{Minutes: 50, EndedAt: whole}))

	sessions, err := st.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].EndedAt.Equal(later))
	assert.True(t, sessions[1].EndedAt.Equal(whole))
}
