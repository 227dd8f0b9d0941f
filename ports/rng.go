package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream for a specific run/stage pair.
	// This ensures splitting, ensemble and resampling stages produce
	// identical results for the same run.
	Stream(ctx context.Context, runID, stageName string, baseSeed int64) (*rand.Rand, error)
}
