package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fitstack/planworker/fault"
)

// ClaimNextJob atomically claims one claimable job: pending with no live
// lease, or generating with an expired lease. Returns "" when no work is
// available. The selection and lease write happen inside the database
// function in a single statement.
func (s *Store) ClaimNextJob(ctx context.Context, workerID string, leaseSeconds int) (string, error) {
	var jobID *string
	err := s.pool.QueryRow(ctx,
		`SELECT claim_next_plan_job($1, $2)`,
		workerID, leaseSeconds,
	).Scan(&jobID)
	if err != nil {
		return "", fault.Wrap(fault.DBError, fmt.Errorf("claim job: %w", err))
	}
	if jobID == nil {
		return "", nil
	}
	return *jobID, nil
}

// ExtendLease extends the lease by extensionSeconds. Returns false when the
// caller no longer holds the lease; the worker must then stop mutating the
// job.
func (s *Store) ExtendLease(ctx context.Context, jobID, workerID string, extensionSeconds int) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT extend_job_lock($1, $2, $3)`,
		jobID, workerID, extensionSeconds,
	).Scan(&ok)
	if err != nil {
		return false, fault.Wrap(fault.DBError, fmt.Errorf("extend lease: %w", err))
	}
	return ok, nil
}

// CompleteJob transitions the job to completed and records the produced plan.
func (s *Store) CompleteJob(ctx context.Context, jobID, planID string) error {
	_, err := s.pool.Exec(ctx, `SELECT complete_plan_job($1, $2)`, jobID, planID)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("complete job: %w", err))
	}
	return nil
}

// FailJob records the failure. The database function returns the job to
// pending while retries remain, otherwise marks it terminally failed.
func (s *Store) FailJob(ctx context.Context, jobID, message, code string) error {
	_, err := s.pool.Exec(ctx, `SELECT fail_plan_job($1, $2, $3)`, jobID, message, code)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("fail job: %w", err))
	}
	return nil
}

// SaveCheckpoint persists the phase and payload for a job. Later phases
// overwrite earlier ones; the function rejects phase regressions.
func (s *Store) SaveCheckpoint(ctx context.Context, jobID string, phase int, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("marshal checkpoint: %w", err))
	}
	_, err = s.pool.Exec(ctx, `SELECT save_plan_checkpoint($1, $2, $3)`, jobID, phase, raw)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("save checkpoint: %w", err))
	}
	return nil
}
