// Package rng provides deterministic random stream derivation. Every
// stochastic stage draws from a stream derived from the run seed, so a rerun
// with the same inputs replays bit for bit.
package rng

import (
	"context"
	"math/rand"
)

// Adapter implements ports.RNGPort.
type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

// SeededStream creates a deterministic random number generator for a named
// operation. The name is documentation; the seed alone fixes the stream.
func (a *Adapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(seed)), nil
}

// Stream creates a deterministic RNG stream for a run/stage pair. Hashing
// runID and stageName into the seed keeps stage streams independent while
// staying reproducible for the same run.
func (a *Adapter) Stream(ctx context.Context, runID, stageName string, baseSeed int64) (*rand.Rand, error) {
	seed := baseSeed
	if runID != "" {
		seed = int64(hashString(runID)) + seed
	}
	if stageName != "" {
		seed = int64(hashString(stageName)) + seed
	}
	return a.SeededStream(ctx, stageName, seed)
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
