package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	iteration   INTEGER NOT NULL,
	event       TEXT NOT NULL,
	action      TEXT,
	coordinate  TEXT,
	text        TEXT,
	reasoning   TEXT,
	thought     TEXT,
	detail      TEXT,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_session ON audit_log(session_id, created_at);
`

// SQLiteTrail stores records in an SQLite database for later review.
type SQLiteTrail struct {
	db *sql.DB
}

var _ Trail = (*SQLiteTrail)(nil)

// OpenSQLite opens the store at path, creating it and its schema as needed.
// ":memory:" opens a private in-memory store.
func OpenSQLite(path string) (*SQLiteTrail, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("audit store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit store: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit store: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit store: ping: %w", err)
	}
	return &SQLiteTrail{db: db}, nil
}

func (s *SQLiteTrail) Append(ctx context.Context, r Record) error {
	r = stamp(r)
	var coord sql.NullString
	if r.Coordinate != nil {
		b, err := json.Marshal(r.Coordinate)
		if err != nil {
			return fmt.Errorf("audit store: encode coordinate: %w", err)
		}
		coord = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, session_id, iteration, event, action, coordinate, text, reasoning, thought, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Iteration, string(r.Event), r.Action, coord, r.Text, r.Reasoning, r.Thought, r.Detail, r.Time.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("audit store: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. An empty sessionID
// matches every session.
func (s *SQLiteTrail) Recent(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, iteration, event, action, coordinate, text, reasoning, thought, detail, created_at
		FROM audit_log
		WHERE (? = '' OR session_id = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit store: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                                          Record
			event                                      string
			action, coord, text, reasoning, th, detail sql.NullString
			created                                    int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Iteration, &event, &action, &coord, &text, &reasoning, &th, &detail, &created); err != nil {
			return nil, fmt.Errorf("audit store: scan: %w", err)
		}
		r.Event = Event(event)
		r.Action, r.Text, r.Reasoning, r.Thought, r.Detail = action.String, text.String, reasoning.String, th.String, detail.String
		if coord.Valid && coord.String != "" {
			if err := json.Unmarshal([]byte(coord.String), &r.Coordinate); err != nil {
				return nil, fmt.Errorf("audit store: decode coordinate for %s: %w", r.ID, err)
			}
		}
		r.Time = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteTrail) Close() error {
	return s.db.Close()
}
