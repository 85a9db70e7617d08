package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink is the durable sink. Besides the Sink contract it supports the
// queries behind the log view command and the audit CLI.
type SQLiteSink struct {
	mu   sync.Mutex
	conn *sql.DB
}

// OpenSQLite opens or creates the audit database at path and initializes
// the schema. Pass ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		user TEXT NOT NULL,
		command TEXT NOT NULL,
		args TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(ts DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_events(user);
	`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize audit schema: %w", err)
	}

	return &SQLiteSink{conn: conn}, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLiteSink) Write(rec Record) error {
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.Exec(
		`INSERT INTO audit_events (id, ts, user, command, args, outcome, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.User, rec.Command,
		string(args), string(rec.Outcome), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns the most recent limit records, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx,
		`SELECT id, ts, user, command, args, outcome, error
		 FROM audit_events ORDER BY seq DESC LIMIT ?`, limit)
}

// ByUser returns the most recent limit records for one user, newest first.
func (s *SQLiteSink) ByUser(ctx context.Context, user string, limit int) ([]Record, error) {
	return s.query(ctx,
		`SELECT id, ts, user, command, args, outcome, error
		 FROM audit_events WHERE user = ? ORDER BY seq DESC LIMIT ?`, user, limit)
}

func (s *SQLiteSink) query(ctx context.Context, q string, params ...any) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var ts int64
		var args string
		var detail sql.NullString
		if err := rows.Scan(&rec.ID, &ts, &rec.User, &rec.Command, &args, &rec.Outcome, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts)
		if detail.Valid {
			rec.Error = detail.String
		}
		if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
			rec.Args = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
