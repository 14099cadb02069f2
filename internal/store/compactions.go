package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Compaction is one stored digest with the counters it was rendered with.
type Compaction struct {
	ID           string
	SessionID    string
	CreatedAt    int64
	Trigger      string // "manual", "auto", "api", ...
	Digest       string
	Entries      int
	Sparse       int
	Compressed   int
	Kept         int
	Dropped      int
	TokensBefore int
	TokensAfter  int
}

// Totals aggregates the whole store.
type Totals struct {
	Sessions     int
	Compactions  int
	TokensBefore int64
	TokensAfter  int64
}

const compactionColumns = `id, session_id, created_at, trigger_name, digest, entries, sparse, compressed, kept, dropped, tokens_before, tokens_after`

// SaveCompaction stores c, creating its session if needed. ID and CreatedAt
// are filled in when empty. Returns the stored record.
func (db *DB) SaveCompaction(c Compaction) (*Compaction, error) {
	if c.SessionID == "" {
		return nil, fmt.Errorf("save compaction: empty session id")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin save compaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO sessions (session_id, project, started_at, updated_at, compaction_count)
		VALUES (?, '', ?, ?, 1)
		ON CONFLICT(session_id) DO UPDATE SET
			updated_at = MAX(sessions.updated_at, excluded.updated_at),
			compaction_count = sessions.compaction_count + 1
	`, c.SessionID, c.CreatedAt, c.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO compactions (`+compactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.SessionID, c.CreatedAt, c.Trigger, c.Digest,
		c.Entries, c.Sparse, c.Compressed, c.Kept, c.Dropped, c.TokensBefore, c.TokensAfter); err != nil {
		return nil, fmt.Errorf("insert compaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit compaction: %w", err)
	}
	return &c, nil
}

// LatestCompaction returns the session's most recent digest, or nil.
func (db *DB) LatestCompaction(sessionID string) (*Compaction, error) {
	c, err := scanCompaction(db.QueryRow(`
		SELECT `+compactionColumns+`
		FROM compactions WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest compaction: %w", err)
	}
	return c, nil
}

// ListCompactions returns a session's digests, newest first.
func (db *DB) ListCompactions(sessionID string, limit int) ([]Compaction, error) {
	rows, err := db.Query(`
		SELECT `+compactionColumns+`
		FROM compactions WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list compactions: %w", err)
	}
	defer rows.Close()

	var out []Compaction
	for rows.Next() {
		c, err := scanCompaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compaction: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// PruneCompactions deletes digests created before the cutoff. Each
// session's latest digest is kept regardless of age, since it is the
// prior context for that session's next compaction.
func (db *DB) PruneCompactions(before time.Time) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM compactions
		WHERE created_at < ?
		AND id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY session_id ORDER BY created_at DESC, rowid DESC
				) AS rn
				FROM compactions
			) WHERE rn = 1
		)
	`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune compactions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Totals returns store-wide counts.
func (db *DB) Totals() (Totals, error) {
	var t Totals
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&t.Sessions); err != nil {
		return t, fmt.Errorf("count sessions: %w", err)
	}
	if err := db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(tokens_before), 0), COALESCE(SUM(tokens_after), 0)
		FROM compactions
	`).Scan(&t.Compactions, &t.TokensBefore, &t.TokensAfter); err != nil {
		return t, fmt.Errorf("sum compactions: %w", err)
	}
	return t, nil
}

func scanCompaction(row rowScanner) (*Compaction, error) {
	var c Compaction
	if err := row.Scan(&c.ID, &c.SessionID, &c.CreatedAt, &c.Trigger, &c.Digest,
		&c.Entries, &c.Sparse, &c.Compressed, &c.Kept, &c.Dropped, &c.TokensBefore, &c.TokensAfter); err != nil {
		return nil, err
	}
	return &c, nil
}
