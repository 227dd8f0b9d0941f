// Package app orchestrates the causal rule pipeline: honest splitting, rule
// discovery, selection, effect decomposition, and full-population
// prediction, with every stage persisted to the run ledger as it completes.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/rule"
	"gocre/domain/run"
	"gocre/domain/sample"
	"gocre/internal/discovery"
	"gocre/internal/inference"
	"gocre/internal/selection"
	"gocre/ports"
)

// Pipeline wires the stage collaborators behind ports. The same instance
// serves any number of runs; per-run state lives in the run record.
type Pipeline struct {
	learner    ports.RuleLearnerPort
	estimators ports.EstimatorRegistryPort
	rng        ports.RNGPort
	ledger     ports.RunLedgerWriterPort
}

// Request carries one run's inputs: the data and the parameter envelopes.
type Request struct {
	Observations *sample.Observations
	Method       params.Method
	Hyper        params.Hyper
}

func NewPipeline(learner ports.RuleLearnerPort, estimators ports.EstimatorRegistryPort, rng ports.RNGPort, ledger ports.RunLedgerWriterPort) *Pipeline {
	return &Pipeline{
		learner:    learner,
		estimators: estimators,
		rng:        rng,
		ledger:     ledger,
	}
}

// Execute runs the full pipeline and returns the completed record. Stages
// run strictly in order; the first failure marks the run failed, persists
// it, and stops. Stage randomness is keyed by the run fingerprint rather
// than the run ID, so a rerun over identical inputs replays exactly.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*run.Record, error) {
	started := time.Now()

	if req.Observations == nil {
		return nil, core.NewInvalidInputError("observations", "nil observation set")
	}
	if err := req.Observations.Validate(); err != nil {
		return nil, err
	}
	if err := req.Method.Validate(); err != nil {
		return nil, err
	}
	if err := req.Hyper.Validate(); err != nil {
		return nil, err
	}

	record := run.NewRecord(req.Observations.Hash(), req.Method, req.Hyper)
	record.Status = run.StatusRunning
	if err := p.ledger.SaveRun(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting run: %w", err)
	}
	record.Timings = append(record.Timings,
		run.StageTiming{Stage: run.StageInit, DurationMS: time.Since(started).Milliseconds()})

	log.Printf("[Pipeline] Run %s started: n=%d method=%s/%s seed=%d",
		record.ID, req.Observations.RowCount(),
		req.Method.ITEMethodDis, req.Method.ITEMethodInf, req.Method.Seed)

	replayKey := string(record.Fingerprint.Fingerprint)

	var split *sample.Split
	err := p.runStage(ctx, record, run.StageSplit, func() error {
		stream, err := p.rng.Stream(ctx, replayKey, string(run.StageSplit), req.Method.Seed)
		if err != nil {
			return err
		}
		split, err = sample.HonestSplit(req.Observations, req.Method.RatioDis, stream)
		return err
	})
	if err != nil {
		return record, err
	}

	var filtered *discovery.FilterResult
	err = p.runStage(ctx, record, run.StageDiscover, func() error {
		stream, err := p.rng.Stream(ctx, replayKey, string(run.StageDiscover), req.Method.Seed)
		if err != nil {
			return err
		}
		iteSeed, genSeed := stream.Int63(), stream.Int63()

		ite, err := p.effectsFor(ctx, split.Discovery, req.Method.ITEMethodDis, iteSeed)
		if err != nil {
			return err
		}

		generator := discovery.NewGenerator(p.learner)
		candidates, err := generator.Generate(ctx, split.Discovery.Covariates, ite,
			req.Method.InterventionVars, req.Hyper, genSeed)
		if err != nil {
			return err
		}
		record.Counts.Generated = candidates.Len()

		matrix, err := rule.BuildMatrix(split.Discovery.Covariates, candidates)
		if err != nil {
			return err
		}
		filtered, err = discovery.ApplyFilters(candidates, matrix, ite, req.Hyper)
		if err != nil {
			return err
		}
		record.Counts.AfterDecay = filtered.Funnel.AfterDecay
		record.Counts.AfterSupport = filtered.Funnel.AfterSupport
		record.Counts.AfterCorrelation = filtered.Funnel.AfterCorrelation
		return nil
	})
	if err != nil {
		return record, err
	}

	var inferITE []float64
	var selected *rule.Set
	err = p.runStage(ctx, record, run.StageInfer, func() error {
		stream, err := p.rng.Stream(ctx, replayKey, string(run.StageInfer), req.Method.Seed)
		if err != nil {
			return err
		}
		iteSeed, selSeed := stream.Int63(), stream.Int63()

		inferITE, err = p.effectsFor(ctx, split.Inference, req.Method.ITEMethodInf, iteSeed)
		if err != nil {
			return err
		}

		matrix, err := rule.BuildMatrix(split.Inference.Covariates, filtered.Set)
		if err != nil {
			return err
		}
		selected, err = selection.NewSelector().Select(ctx, matrix, inferITE, req.Hyper, selSeed)
		if err != nil {
			return err
		}
		record.Counts.Selected = selected.Len()
		return nil
	})
	if err != nil {
		return record, err
	}

	err = p.runStage(ctx, record, run.StageDecompose, func() error {
		matrix, err := rule.BuildMatrix(split.Inference.Covariates, selected)
		if err != nil {
			return err
		}
		model, table, err := inference.Decompose(matrix, inferITE, req.Hyper.TPvalue)
		if err != nil {
			return err
		}
		record.Model = model
		record.Table = table
		record.Counts.Significant = len(table.RuleRows())
		return nil
	})
	if err != nil {
		return record, err
	}

	err = p.runStage(ctx, record, run.StagePredict, func() error {
		predictions, err := record.Model.PredictCovariates(req.Observations.Covariates)
		if err != nil {
			return err
		}
		record.Predictions = predictions
		return nil
	})
	if err != nil {
		return record, err
	}

	record.Status = run.StatusCompleted
	record.CompletedAt = core.Now()
	if err := p.ledger.SaveRun(ctx, record); err != nil {
		return record, fmt.Errorf("persisting run: %w", err)
	}

	log.Printf("[Pipeline] Run %s completed: %d generated, %d selected, %d significant",
		record.ID, record.Counts.Generated, record.Counts.Selected, record.Counts.Significant)
	return record, nil
}

// runStage executes one stage body, records its timing, and persists the
// record. A stage error marks the whole run failed before returning.
func (p *Pipeline) runStage(ctx context.Context, record *run.Record, stage run.StageName, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		p.markFailed(ctx, record, stage, err)
		return fmt.Errorf("stage %s: %w", stage, err)
	}

	elapsed := time.Since(start).Milliseconds()
	record.Timings = append(record.Timings, run.StageTiming{Stage: stage, DurationMS: elapsed})
	if err := p.ledger.SaveRun(ctx, record); err != nil {
		return fmt.Errorf("stage %s: persisting run: %w", stage, err)
	}

	log.Printf("[Pipeline] Stage %s completed in %dms", stage, elapsed)
	return nil
}

func (p *Pipeline) markFailed(ctx context.Context, record *run.Record, stage run.StageName, cause error) {
	record.Status = run.StatusFailed
	record.Error = fmt.Sprintf("stage %s: %v", stage, cause)
	record.CompletedAt = core.Now()
	if err := p.ledger.SaveRun(ctx, record); err != nil {
		log.Printf("[Pipeline] Failed to persist failed run %s: %v", record.ID, err)
	}
}

// effectsFor returns the unit effects for one side of the split: the
// caller-supplied vector when the dataset carries one, otherwise a fresh
// estimate by the configured method.
func (p *Pipeline) effectsFor(ctx context.Context, obs *sample.Observations, method string, seed int64) ([]float64, error) {
	if obs.HasITE() {
		log.Printf("[Pipeline] Using %d precomputed unit effects", len(obs.ITE))
		return obs.ITE, nil
	}
	estimator, err := p.estimators.Estimator(method)
	if err != nil {
		return nil, err
	}
	return estimator.EstimateITE(ctx, obs, seed)
}
