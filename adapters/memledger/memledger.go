// Package memledger stores run records in process memory. It backs tests
// and ephemeral CLI runs where no database is configured.
package memledger

import (
	"context"
	"sync"

	"gocre/domain/core"
	"gocre/domain/run"
	"gocre/ports"
)

// Ledger implements ports.RunLedgerPort with map storage. Listing follows
// insertion order, newest first.
type Ledger struct {
	mu      sync.RWMutex
	records map[core.RunID]*run.Record
	order   []core.RunID
}

func New() *Ledger {
	return &Ledger{records: make(map[core.RunID]*run.Record)}
}

// SaveRun upserts a record. Saving the same run again overwrites it in
// place without changing its listing position.
func (l *Ledger) SaveRun(ctx context.Context, record *run.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stored := *record
	if _, exists := l.records[record.ID]; !exists {
		l.order = append(l.order, record.ID)
	}
	l.records[record.ID] = &stored
	return nil
}

func (l *Ledger) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, exists := l.records[id]
	if !exists {
		return nil, core.NewNotFoundError("run", string(id))
	}
	copied := *record
	return &copied, nil
}

func (l *Ledger) ListRuns(ctx context.Context, filters ports.RunFilters) ([]run.Summary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summaries := []run.Summary{}
	skipped := 0
	for i := len(l.order) - 1; i >= 0; i-- {
		record := l.records[l.order[i]]
		if filters.Status != nil && record.Status != *filters.Status {
			continue
		}
		if skipped < filters.Offset {
			skipped++
			continue
		}
		summaries = append(summaries, record.Summarize())
		if filters.Limit > 0 && len(summaries) >= filters.Limit {
			break
		}
	}
	return summaries, nil
}
