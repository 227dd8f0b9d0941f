package ports

import (
	"context"

	"gocre/domain/core"
	"gocre/domain/run"
)

// RunLedgerWriterPort provides write access to run records
// This is the ONLY way to persist runs - prevents read-after-write coupling
type RunLedgerWriterPort interface {
	SaveRun(ctx context.Context, record *run.Record) error
}

// RunLedgerReaderPort provides read-only access to stored runs
// Use this for queries, replay, and UI/API access
type RunLedgerReaderPort interface {
	GetRun(ctx context.Context, id core.RunID) (*run.Record, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]run.Summary, error)
}

// RunFilters for querying runs
type RunFilters struct {
	Status *run.Status
	Limit  int
	Offset int
}

// RunLedgerPort combines read and write access
type RunLedgerPort interface {
	RunLedgerWriterPort
	RunLedgerReaderPort
}
