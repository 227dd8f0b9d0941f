// Package postgres persists run records in PostgreSQL. The full record is
// stored as a JSONB payload next to the columns list views filter on.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"gocre/domain/core"
	"gocre/domain/run"
	"gocre/ports"
)

// Ledger implements ports.RunLedgerPort on a PostgreSQL connection.
type Ledger struct {
	db *sqlx.DB
}

// Connect opens and pings a PostgreSQL connection. The lib/pq driver must
// be linked by the binary importing this package.
func Connect(url string) (*sqlx.DB, error) {
	if url == "" {
		return nil, core.NewInvalidInputError("database_url", "DATABASE_URL is required")
	}
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureSchema creates the runs table when it does not exist yet.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			significant INT NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL,
			record JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_runs_status_started
		ON runs (status, started_at DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create runs index: %w", err)
	}

	log.Printf("[RunLedger] Schema ready")
	return nil
}

// SaveRun upserts the record keyed by run ID.
func (l *Ledger) SaveRun(ctx context.Context, record *run.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, fingerprint, significant, started_at, record)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			significant = EXCLUDED.significant,
			record = EXCLUDED.record`,
		string(record.ID), string(record.Status), string(record.Fingerprint.Fingerprint),
		record.Counts.Significant, record.StartedAt.Time(), payload)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", record.ID, err)
	}
	return nil
}

func (l *Ledger) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	var payload []byte
	err := l.db.QueryRowContext(ctx,
		`SELECT record FROM runs WHERE id = $1`, string(id)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, core.NewNotFoundError("run", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	var record run.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", id, err)
	}
	return &record, nil
}

func (l *Ledger) ListRuns(ctx context.Context, filters ports.RunFilters) ([]run.Summary, error) {
	query := `SELECT record FROM runs`
	args := []interface{}{}
	if filters.Status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*filters.Status))
	}
	query += ` ORDER BY started_at DESC, created_at DESC`
	if filters.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, len(args)+1)
		args = append(args, filters.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := []run.Summary{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		var record run.Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run row: %w", err)
		}
		summaries = append(summaries, record.Summarize())
	}
	return summaries, rows.Err()
}
