package run

import (
	"gocre/domain/cate"
	"gocre/domain/core"
	"gocre/domain/params"
)

// Record is the complete account of one run: the determinism fingerprint,
// the parameter echo, the rule funnel, the decomposition output, and the
// full-population effect predictions. It is the unit the ledger stores.
type Record struct {
	ID          core.RunID     `json:"run_id"`
	Fingerprint Fingerprint    `json:"fingerprint"`
	Status      Status         `json:"status"`
	Method      params.Method  `json:"method"`
	Hyper       params.Hyper   `json:"hyper"`
	Counts      Counts         `json:"counts"`
	Table       *cate.Table    `json:"table,omitempty"`
	Model       *cate.Model    `json:"model,omitempty"`
	Predictions []float64      `json:"predictions,omitempty"`
	Timings     []StageTiming  `json:"timings,omitempty"`
	StartedAt   core.Timestamp `json:"started_at"`
	CompletedAt core.Timestamp `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// NewRecord creates a pending record with its fingerprint computed up front,
// before any stage output exists.
func NewRecord(datasetHash core.DatasetHash, method params.Method, hyper params.Hyper) *Record {
	return &Record{
		ID:          core.RunID(core.NewID()),
		Fingerprint: NewFingerprint(datasetHash, method, hyper),
		Status:      StatusPending,
		Method:      method,
		Hyper:       hyper,
		StartedAt:   core.Now(),
	}
}

// Validate checks if the record is complete enough to store
func (r *Record) Validate() error {
	if core.ID(r.ID).IsEmpty() {
		return core.NewInvalidInputError("run_record", "run_id cannot be empty")
	}
	if r.Fingerprint.Fingerprint.IsEmpty() {
		return core.NewInvalidInputError("run_record", "fingerprint not computed")
	}
	if r.Status == "" {
		return core.NewInvalidInputError("run_record", "status cannot be empty")
	}
	return nil
}

// Summary is the list-view projection of a record.
type Summary struct {
	ID          core.RunID     `json:"run_id"`
	Status      Status         `json:"status"`
	StartedAt   core.Timestamp `json:"started_at"`
	DurationMS  int64          `json:"duration_ms"`
	Significant int            `json:"significant"`
}

// Summarize projects the record for list views
func (r *Record) Summarize() Summary {
	var duration int64
	for _, t := range r.Timings {
		duration += t.DurationMS
	}
	return Summary{
		ID:          r.ID,
		Status:      r.Status,
		StartedAt:   r.StartedAt,
		DurationMS:  duration,
		Significant: r.Counts.Significant,
	}
}
