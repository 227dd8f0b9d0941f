package ports

import (
	"context"

	"gocre/domain/sample"
)

// DatasetReaderPort loads observation sets from external tabular sources.
// Implementations map configured outcome/treatment columns and pass every
// remaining numeric column through as a covariate.
type DatasetReaderPort interface {
	ReadObservations(ctx context.Context, path string, mapping ColumnMapping) (*sample.Observations, error)
}

// ColumnMapping names the special columns of a tabular source.
type ColumnMapping struct {
	Outcome   string
	Treatment string
	// ITE optionally names a precomputed effect column.
	ITE string
}
