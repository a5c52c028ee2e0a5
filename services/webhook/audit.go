package webhook

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Attempt is one recorded HTTP delivery attempt.
type Attempt struct {
	DeliveryID string
	Hook       string
	Kind       string
	Attempt    int
	Status     string
	Error      string
	CreatedAt  time.Time
}

// AuditLog persists delivery attempts in SQLite.
type AuditLog struct {
	db *sql.DB
}

// OpenAuditLog opens (or creates) the audit database at path. Use
// "file::memory:" for an ephemeral log.
func OpenAuditLog(path string) (*AuditLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS webhook_attempts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            delivery_id TEXT NOT NULL,
            hook TEXT NOT NULL,
            kind TEXT NOT NULL,
            attempt INTEGER NOT NULL,
            status TEXT NOT NULL,
            error TEXT,
            created_at TIMESTAMP NOT NULL
        );`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &AuditLog{db: db}, nil
}

// Close releases the database.
func (a *AuditLog) Close() error {
	if a == nil {
		return nil
	}
	return a.db.Close()
}

// Record appends an attempt.
func (a *AuditLog) Record(ctx context.Context, attempt Attempt) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO webhook_attempts (delivery_id, hook, kind, attempt, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.DeliveryID, attempt.Hook, attempt.Kind, attempt.Attempt, attempt.Status, attempt.Error, attempt.CreatedAt.UTC(),
	)
	return err
}

// Attempts lists the attempts recorded for hook in insertion order.
func (a *AuditLog) Attempts(ctx context.Context, hook string) ([]Attempt, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT delivery_id, hook, kind, attempt, status, COALESCE(error, ''), created_at FROM webhook_attempts WHERE hook = ? ORDER BY id`,
		hook,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var attempt Attempt
		if err := rows.Scan(&attempt.DeliveryID, &attempt.Hook, &attempt.Kind, &attempt.Attempt, &attempt.Status, &attempt.Error, &attempt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}
