package run

import (
	"testing"

	"gocre/domain/core"
	"gocre/domain/params"
)

func TestFingerprint_Deterministic(t *testing.T) {
	// Golden test - same inputs produce identical fingerprints
	datasetHash := core.DatasetHash("test-dataset")
	method := params.DefaultMethod()
	hyper := params.DefaultHyper()

	fp1 := NewFingerprint(datasetHash, method, hyper)
	fp2 := NewFingerprint(datasetHash, method, hyper)

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.DatasetHash != datasetHash {
		t.Errorf("DatasetHash mismatch: %s vs %s", fp1.DatasetHash, datasetHash)
	}
	if fp1.Seed != method.Seed {
		t.Errorf("Seed mismatch: %d vs %d", fp1.Seed, method.Seed)
	}
}

func TestFingerprint_Unique(t *testing.T) {
	// Different inputs should produce different fingerprints
	base := NewFingerprint(core.DatasetHash("test-dataset"), params.DefaultMethod(), params.DefaultHyper())

	otherData := NewFingerprint(core.DatasetHash("other-dataset"), params.DefaultMethod(), params.DefaultHyper())
	if otherData.Fingerprint == base.Fingerprint {
		t.Error("Fingerprint should change with the dataset")
	}

	otherSeed := params.DefaultMethod()
	otherSeed.Seed = 43
	if NewFingerprint(core.DatasetHash("test-dataset"), otherSeed, params.DefaultHyper()).Fingerprint == base.Fingerprint {
		t.Error("Fingerprint should change with the seed")
	}

	otherHyper := params.DefaultHyper()
	otherHyper.TDecay = 0.1
	if NewFingerprint(core.DatasetHash("test-dataset"), params.DefaultMethod(), otherHyper).Fingerprint == base.Fingerprint {
		t.Error("Fingerprint should change with the hyper parameters")
	}
}

func TestRecord_Complete(t *testing.T) {
	record := NewRecord(core.DatasetHash("test-dataset"), params.DefaultMethod(), params.DefaultHyper())

	if record.ID == "" {
		t.Error("RunID not set")
	}
	if record.Status != StatusPending {
		t.Errorf("New record should be pending, got %s", record.Status)
	}
	if record.Fingerprint.Fingerprint.IsEmpty() {
		t.Error("Fingerprint not computed")
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Record validation failed: %v", err)
	}

	record.Timings = []StageTiming{
		{Stage: StageSplit, DurationMS: 5},
		{Stage: StageDiscover, DurationMS: 20},
	}
	record.Counts.Significant = 2
	summary := record.Summarize()
	if summary.DurationMS != 25 {
		t.Errorf("Summary duration = %d, want 25", summary.DurationMS)
	}
	if summary.Significant != 2 {
		t.Errorf("Summary significant = %d, want 2", summary.Significant)
	}
}

func TestStagesOrder(t *testing.T) {
	stages := Stages()
	want := []StageName{StageInit, StageSplit, StageDiscover, StageInfer, StageDecompose, StagePredict, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("Expected %d stages, got %d", len(want), len(stages))
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("Stage %d = %s, want %s", i, stages[i], want[i])
		}
	}
}
