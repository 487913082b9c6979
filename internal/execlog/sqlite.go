package execlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists audit records to a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the log database and bootstraps the schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open execution log %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS execution_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		dataset_name TEXT NOT NULL,
		collection_name TEXT NOT NULL,
		fields_affected TEXT NOT NULL,
		action_type TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_execution_log_request ON execution_log(request_id);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap execution log schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Append inserts one record. Each append is its own implicit transaction.
func (s *SQLiteSink) Append(ctx context.Context, e Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_log
		 (request_id, dataset_name, collection_name, fields_affected, action_type, status, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Dataset, e.Collection, strings.Join(e.FieldsAffected, ","),
		string(e.Action), string(e.Status), e.Message, created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append execution log entry for %s:%s: %w", e.Dataset, e.Collection, err)
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
