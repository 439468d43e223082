// Package history records the path visitors take through a conversation.
// Recording is best-effort: callers log failures and carry on.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// Step is one committed transition.
type Step struct {
	SessionID string
	Lang      string
	From      string
	Choice    string
	To        string
	At        time.Time
}

// Recorder accepts steps.
type Recorder interface {
	Record(ctx context.Context, step Step) error
}

// Nop discards every step.
type Nop struct{}

func (Nop) Record(context.Context, Step) error { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS choice_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	lang       TEXT NOT NULL,
	from_node  TEXT NOT NULL,
	choice_id  TEXT NOT NULL,
	to_node    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_choice_history_session ON choice_history(session_id, id);
`

// Store implements Recorder with SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and applies the schema.
// Creates the parent directory if it does not exist.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: in-memory databases are per-connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a step. A zero At is stamped with the current time.
func (s *Store) Record(ctx context.Context, step Step) error {
	if step.At.IsZero() {
		step.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO choice_history(session_id, lang, from_node, choice_id, to_node, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		step.SessionID, step.Lang, step.From, step.Choice, step.To, step.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// Path returns the steps of a session in the order they were recorded.
func (s *Store) Path(ctx context.Context, sessionID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, lang, from_node, choice_id, to_node, created_at FROM choice_history WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query path: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			st Step
			at string
		)
		if err := rows.Scan(&st.SessionID, &st.Lang, &st.From, &st.Choice, &st.To, &at); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse step time %q: %w", at, err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Popular counts how often each choice was taken from a node, across sessions.
func (s *Store) Popular(ctx context.Context, fromNode string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT choice_id, COUNT(*) FROM choice_history WHERE from_node = ? GROUP BY choice_id`,
		fromNode,
	)
	if err != nil {
		return nil, fmt.Errorf("query popular: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			choice string
			n      int
		)
		if err := rows.Scan(&choice, &n); err != nil {
			return nil, fmt.Errorf("scan popular: %w", err)
		}
		counts[choice] = n
	}
	return counts, rows.Err()
}
