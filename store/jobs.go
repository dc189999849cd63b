package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fitstack/planworker/fault"
	"github.com/fitstack/planworker/plan"
)

// ErrJobNotFound is returned when the job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// GetJob fetches the full job record.
func (s *Store) GetJob(ctx context.Context, jobID string) (*plan.Job, error) {
	var (
		job        plan.Job
		profileRaw []byte
		status     string
		redoScope  *string
		redoReason *string
		lastError  *string
		holder     *string
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, profile, status, retry_count, max_retries,
		       target_plan_id, cycle_week_start, checkpoint_phase,
		       redo, redo_reason, redo_scope, redo_source_plan_id,
		       lease_holder, lease_expiry,
		       created_at, claimed_at, completed_at, last_error
		FROM plan_generation_jobs
		WHERE id = $1`, jobID,
	).Scan(
		&job.ID, &job.UserID, &profileRaw, &status, &job.RetryCount, &job.MaxRetries,
		&job.TargetPlanID, &job.CycleWeekStart, &job.CheckpointPhase,
		&job.Redo, &redoReason, &redoScope, &job.RedoSourcePlanID,
		&holder, &job.LeaseExpiry,
		&job.CreatedAt, &job.ClaimedAt, &job.CompletedAt, &lastError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("%w: %s", ErrJobNotFound, jobID))
	}
	if err != nil {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("get job: %w", err))
	}

	job.Status = plan.JobStatus(status)
	if redoScope != nil {
		job.RedoScope = plan.RedoScope(*redoScope)
	}
	if redoReason != nil {
		job.RedoReason = *redoReason
	}
	if lastError != nil {
		job.LastError = *lastError
	}
	if holder != nil {
		job.LeaseHolder = *holder
	}
	if err := json.Unmarshal(profileRaw, &job.Profile); err != nil {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("decode profile: %w", err))
	}
	return &job, nil
}

// LoadCheckpoint reads the job's checkpoint. A job that has never
// checkpointed returns an empty phase-0 checkpoint.
func (s *Store) LoadCheckpoint(ctx context.Context, jobID string) (*plan.Checkpoint, error) {
	var (
		phase int
		raw   []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT checkpoint_phase, COALESCE(checkpoint_data, 'null'::jsonb)
		FROM plan_generation_jobs
		WHERE id = $1`, jobID,
	).Scan(&phase, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("%w: %s", ErrJobNotFound, jobID))
	}
	if err != nil {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("load checkpoint: %w", err))
	}

	cp := &plan.Checkpoint{Phase: phase}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, cp); err != nil {
			// A corrupt payload is not worth failing the job over: resume
			// from scratch instead.
			s.logger.Warn("Corrupt checkpoint payload, restarting from phase 0",
				"job_id", jobID, "error", err)
			return &plan.Checkpoint{Phase: plan.PhaseNone}, nil
		}
		cp.Phase = phase
	}
	return cp, nil
}
