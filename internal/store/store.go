// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/studybudd/internal/model"
	"github.com/verte-zerg/studybudd/internal/pomodoro"

	_ "modernc.org/sqlite" // SQLite driver.
)

const installationIDKey = "installation_id"

// timestampLayout keeps every stored instant the same width so text ordering
// matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for timer snapshots and focus history.
type Store struct {
	db       *sql.DB
	location *time.Location
}

var _ pomodoro.KV = (*Store)(nil)
var _ pomodoro.CompletionSink = (*Store)(nil)

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The engine and the completion sink write from different goroutines.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, location: time.Local}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS focus_sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			minutes INTEGER NOT NULL,
			ended_at TEXT NOT NULL,
			local_day TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS productivity_days (
			day TEXT PRIMARY KEY,
			focus_sessions INTEGER NOT NULL,
			focus_minutes INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_focus_sessions_ended_at ON focus_sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_focus_sessions_local_day ON focus_sessions(local_day);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// InstallationID returns the identifier of this installation, creating it on
// first use.
func (s *Store) InstallationID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, installationIDKey).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`,
		installationIDKey, id, time.Now().UTC().Format(timestampLayout)); err != nil {
		return "", err
	}
	// Another writer may have won the insert.
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, installationIDKey).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// LogFocusCompletion records a finished focus interval and adds it to the
// aggregate of its local day.
func (s *Store) LogFocusCompletion(ctx context.Context, event pomodoro.FocusCompleted) error {
	endedAt := event.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	session := model.FocusSession{
		ID:       uuid.NewString(),
		Mode:     string(pomodoro.ModeFocus),
		Minutes:  event.Minutes,
		EndedAt:  endedAt,
		LocalDay: endedAt.In(s.location).Format(model.DayLayout),
	}
	return s.InsertFocusSession(ctx, session)
}

// InsertFocusSession stores a session and upserts its day aggregate in one
// transaction.
func (s *Store) InsertFocusSession(ctx context.Context, session model.FocusSession) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO focus_sessions (id, mode, minutes, ended_at, local_day) VALUES (?, ?, ?, ?, ?)`,
		session.ID,
		session.Mode,
		session.Minutes,
		session.EndedAt.UTC().Format(timestampLayout),
		session.LocalDay,
	); err != nil {
		return fmt.Errorf("insert focus session: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO productivity_days (day, focus_sessions, focus_minutes) VALUES (?, 1, ?)
		 ON CONFLICT(day) DO UPDATE SET
			focus_sessions = focus_sessions + 1,
			focus_minutes = focus_minutes + excluded.focus_minutes`,
		session.LocalDay, session.Minutes,
	); err != nil {
		return fmt.Errorf("upsert productivity day: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// ListDays returns the day aggregates between since and until, inclusive,
// ordered by day.
func (s *Store) ListDays(ctx context.Context, since, until time.Time) ([]model.DayAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, focus_sessions, focus_minutes
		 FROM productivity_days
		 WHERE day >= ? AND day <= ?
		 ORDER BY day ASC`,
		since.Format(model.DayLayout), until.Format(model.DayLayout))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var days []model.DayAggregate
	for rows.Next() {
		var agg model.DayAggregate
		var day string
		if err := rows.Scan(&day, &agg.FocusSessions, &agg.FocusMinutes); err != nil {
			return nil, err
		}
		parsed, err := time.ParseInLocation(model.DayLayout, day, s.location)
		if err != nil {
			return nil, err
		}
		agg.Day = parsed
		days = append(days, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

// ListSessions returns the most recent focus sessions, newest first. A
// non-positive limit returns all of them.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]model.FocusSession, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, minutes, ended_at, local_day
		 FROM focus_sessions
		 ORDER BY ended_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.FocusSession
	for rows.Next() {
		var session model.FocusSession
		var endedAt string
		if err := rows.Scan(&session.ID, &session.Mode, &session.Minutes, &endedAt, &session.LocalDay); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		session.EndedAt = parsed
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
