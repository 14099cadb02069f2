package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is a conversation that has been compacted at least once.
type Session struct {
	ID              int64
	SessionID       string
	Project         string
	StartedAt       int64
	UpdatedAt       int64
	CompactionCount int
}

const sessionColumns = `id, session_id, COALESCE(project, ''), started_at, updated_at, compaction_count`

// InitSession creates a session or returns the existing one. A non-empty
// project replaces the stored one.
func (db *DB) InitSession(sessionID, project string) (*Session, error) {
	now := time.Now().UnixMilli()

	_, err := db.Exec(`
		INSERT INTO sessions (session_id, project, started_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			project = CASE WHEN excluded.project != '' THEN excluded.project ELSE sessions.project END
	`, sessionID, project, now, now)
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}

	s, err := db.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("init session: %s vanished after insert", sessionID)
	}
	return s, nil
}

// GetSession returns a session by its session_id, or nil if there is none.
func (db *DB) GetSession(sessionID string) (*Session, error) {
	s, err := scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// GetRecentSessions returns the most recently compacted sessions first.
func (db *DB) GetRecentSessions(limit int) ([]Session, error) {
	rows, err := db.Query(`
		SELECT `+sessionColumns+`
		FROM sessions ORDER BY updated_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.SessionID, &s.Project, &s.StartedAt, &s.UpdatedAt, &s.CompactionCount); err != nil {
		return nil, err
	}
	return &s, nil
}
