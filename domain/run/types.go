package run

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"gocre/domain/core"
	"gocre/domain/params"
)

// Status represents the lifecycle state of a run
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StageName represents a named stage in the pipeline
type StageName string

// Pipeline stages, executed strictly in this order
const (
	StageInit      StageName = "init"
	StageSplit     StageName = "split"
	StageDiscover  StageName = "discover"
	StageInfer     StageName = "infer"
	StageDecompose StageName = "decompose"
	StagePredict   StageName = "predict"
	StageDone      StageName = "done"
)

// Stages returns the pipeline stages in execution order.
func Stages() []StageName {
	return []StageName{StageInit, StageSplit, StageDiscover, StageInfer, StageDecompose, StagePredict, StageDone}
}

// StageTiming records how long one stage took
type StageTiming struct {
	Stage      StageName `json:"stage"`
	DurationMS int64     `json:"duration_ms"`
}

// Counts is the rule funnel: how many candidates survived each stage.
type Counts struct {
	Generated        int `json:"generated"`
	AfterDecay       int `json:"after_decay"`
	AfterSupport     int `json:"after_support"`
	AfterCorrelation int `json:"after_correlation"`
	Selected         int `json:"selected"`
	Significant      int `json:"significant"`
}

// Fingerprint ensures deterministic replay: two runs over the same data,
// parameters, and seed hash identically.
type Fingerprint struct {
	DatasetHash core.DatasetHash `json:"dataset_hash"`
	MethodHash  core.Hash        `json:"method_hash"`
	HyperHash   core.Hash        `json:"hyper_hash"`
	Seed        int64            `json:"seed"`
	Fingerprint core.Hash        `json:"fingerprint"` // Hash of all above
}

// NewFingerprint creates a fingerprint from the determinism parameters
func NewFingerprint(datasetHash core.DatasetHash, method params.Method, hyper params.Hyper) Fingerprint {
	methodHash := hashJSON(method)
	hyperHash := hashJSON(hyper)

	data := fmt.Sprintf("dataset:%s|method:%s|hyper:%s|seed:%d",
		datasetHash, methodHash, hyperHash, method.Seed)
	sum := sha256.Sum256([]byte(data))

	return Fingerprint{
		DatasetHash: datasetHash,
		MethodHash:  methodHash,
		HyperHash:   hyperHash,
		Seed:        method.Seed,
		Fingerprint: core.Hash(fmt.Sprintf("%x", sum)),
	}
}

func hashJSON(v interface{}) core.Hash {
	data, _ := json.Marshal(v)
	return core.NewHash(data)
}
