// Package pipeline drives the split-first plan generation state machine:
// split, base nutrition, parallel per-day fan-out, verification, reasons,
// merge and deterministic post-fixes. Every completed stage persists a
// checkpoint so a successor invocation resumes instead of regenerating.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fitstack/planworker/config"
	"github.com/fitstack/planworker/fault"
	"github.com/fitstack/planworker/metrics"
	"github.com/fitstack/planworker/plan"
	"github.com/fitstack/planworker/prompts"
)

// Generator is the LLM surface the pipeline needs.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokensHint int) (string, error)
}

// CheckpointSaver persists per-phase checkpoints.
type CheckpointSaver interface {
	SaveCheckpoint(ctx context.Context, jobID string, phase int, payload any) error
}

// Result is the orchestrator outcome. Plan is set iff Yielded is false and no
// fatal error occurred.
type Result struct {
	Plan    *plan.FinalPlan
	Yielded bool
}

// Orchestrator runs the generation state machine for one job.
type Orchestrator struct {
	gen         Generator
	checkpoints CheckpointSaver
	tunables    config.Tunables
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock sets the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an orchestrator.
func New(gen Generator, checkpoints CheckpointSaver, tunables config.Tunables, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:         gen,
		checkpoints: checkpoints,
		tunables:    tunables,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline for job, resuming from cp. redoSource carries the
// previous plan's days when the job is a redo; it is ignored otherwise. The
// orchestrator never mutates the job record - that is the queue's domain.
func (o *Orchestrator) Run(ctx context.Context, job *plan.Job, cp *plan.Checkpoint, redoSource map[string]*plan.Day, budget TimeBudget) (*Result, error) {
	if cp == nil {
		cp = &plan.Checkpoint{Phase: plan.PhaseNone}
	}

	if job.Redo && redoSource != nil {
		return o.runRedo(ctx, job, redoSource)
	}

	if yielded, remaining := budget(); yielded {
		o.logger.Info("Yielding before first stage", "job_id", job.ID, "remaining", remaining)
		return &Result{Yielded: true}, nil
	}

	// Stage 0: weekly split.
	if cp.Phase < plan.PhaseSplitComplete {
		if err := o.runSplit(ctx, job, cp); err != nil {
			return nil, err
		}
	}

	// Stage 1: base nutrition.
	if cp.Phase < plan.PhaseBaseNutritionComplete {
		if err := o.runBaseNutrition(ctx, job, cp); err != nil {
			return nil, err
		}
	}

	if yielded, remaining := budget(); yielded {
		o.logger.Info("Yielding before fan-out", "job_id", job.ID, "remaining", remaining)
		return &Result{Yielded: true}, nil
	}

	// Stage 2: parallel fan-out (workouts, nutrition adjustments, supplements).
	if cp.Phase < plan.PhaseSupplementsComplete {
		o.runFanOut(ctx, job, cp)
	}

	if yielded, remaining := budget(); yielded {
		o.logger.Info("Yielding before verification", "job_id", job.ID, "remaining", remaining)
		return &Result{Yielded: true}, nil
	}

	// Stage 3: verification. Log-only; never fails the pipeline.
	if cp.Phase < plan.PhaseVerifiersComplete {
		o.runVerification(ctx, job, cp)
	}

	// Stage 4: per-day reasons.
	if cp.Phase < plan.PhaseReasonsComplete {
		if err := o.runReasons(ctx, job, cp); err != nil {
			return nil, err
		}
	}

	days := o.merge(job, cp)
	o.postFix(job, days)

	return &Result{
		Plan: &plan.FinalPlan{
			ID:          uuid.New().String(),
			GeneratedAt: o.now().UTC(),
			Days:        days,
			EditCounts:  map[string]int{},
		},
	}, nil
}

// generate wraps one LLM call with timing and failure metrics.
func (o *Orchestrator) generate(ctx context.Context, stage string, p prompts.Pair, maxTokens int) (string, error) {
	start := o.now()
	text, err := o.gen.Generate(ctx, p.System, p.User, maxTokens)
	metrics.LLMCallDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMFailures.WithLabelValues(fault.Code(err)).Inc()
	}
	return text, err
}

// saveCheckpoint persists the checkpoint and advances the in-memory phase.
// Save failures are logged, not fatal: checkpointing is an optimization for
// resumption, not a correctness requirement within one invocation.
func (o *Orchestrator) saveCheckpoint(ctx context.Context, jobID string, cp *plan.Checkpoint, phase int) {
	cp.Phase = phase
	if err := o.checkpoints.SaveCheckpoint(ctx, jobID, phase, cp); err != nil {
		metrics.CheckpointSaves.WithLabelValues("error").Inc()
		o.logger.Warn("Checkpoint save failed, continuing",
			"job_id", jobID, "phase", phase, "error", err)
		return
	}
	metrics.CheckpointSaves.WithLabelValues("ok").Inc()
}

// observeStage records the stage duration metric.
func (o *Orchestrator) observeStage(stage string, start time.Time) {
	metrics.PhaseDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
