package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fitstack/planworker/fault"
	"github.com/fitstack/planworker/plan"
)

// ErrPlanNotFound is returned when the plan id does not exist.
var ErrPlanNotFound = errors.New("plan not found")

// EnsureGeneratingPlan makes sure a plan record exists for the job in state
// generating and returns its id and prior status. When the job targets an
// existing plan that is already generated, the caller short-circuits.
func (s *Store) EnsureGeneratingPlan(ctx context.Context, userID, jobID string, targetPlanID, weekStart *string) (planID string, priorStatus string, err error) {
	if targetPlanID != nil && *targetPlanID != "" {
		err = s.pool.QueryRow(ctx, `
			SELECT id, status FROM weekly_base_plans WHERE id = $1`,
			*targetPlanID,
		).Scan(&planID, &priorStatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", fault.Wrap(fault.DBError, fmt.Errorf("%w: %s", ErrPlanNotFound, *targetPlanID))
		}
		if err != nil {
			return "", "", fault.Wrap(fault.DBError, fmt.Errorf("get plan: %w", err))
		}
		if priorStatus == "generated" {
			return planID, priorStatus, nil
		}
		_, err = s.pool.Exec(ctx, `
			UPDATE weekly_base_plans
			SET status = 'generating', generation_job_id = $2
			WHERE id = $1`,
			planID, jobID)
		if err != nil {
			return "", "", fault.Wrap(fault.DBError, fmt.Errorf("attach plan: %w", err))
		}
		return planID, priorStatus, nil
	}

	planID = uuid.New().String()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO weekly_base_plans (id, user_id, status, week_start_date, generation_job_id, is_locked)
		VALUES ($1, $2, 'generating', $3, $4, false)`,
		planID, userID, weekStart, jobID)
	if err != nil {
		return "", "", fault.Wrap(fault.DBError, fmt.Errorf("create plan: %w", err))
	}
	return planID, "generating", nil
}

// SavePlanDays writes the generated days and marks the plan record generated.
func (s *Store) SavePlanDays(ctx context.Context, planID string, days map[string]*plan.Day, generatedAt time.Time) error {
	raw, err := json.Marshal(days)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("marshal days: %w", err))
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE weekly_base_plans
		SET days = $2, status = 'generated', generated_at = $3
		WHERE id = $1`,
		planID, raw, generatedAt)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("save plan days: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fault.Wrap(fault.DBError, fmt.Errorf("%w: %s", ErrPlanNotFound, planID))
	}
	return nil
}

// ResetPlanPending returns the plan record to pending after a failed attempt,
// clearing the generated days. When retries remain the job link is removed so
// a fresh attempt can re-attach.
func (s *Store) ResetPlanPending(ctx context.Context, planID string, unlinkJob bool) error {
	query := `
		UPDATE weekly_base_plans
		SET status = 'pending', days = NULL
		WHERE id = $1`
	if unlinkJob {
		query = `
		UPDATE weekly_base_plans
		SET status = 'pending', days = NULL, generation_job_id = NULL
		WHERE id = $1`
	}
	_, err := s.pool.Exec(ctx, query, planID)
	if err != nil {
		return fault.Wrap(fault.DBError, fmt.Errorf("reset plan: %w", err))
	}
	return nil
}

// GetPlanDays loads the stored days of an existing plan (the redo source).
func (s *Store) GetPlanDays(ctx context.Context, planID string) (map[string]*plan.Day, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(days, 'null'::jsonb) FROM weekly_base_plans WHERE id = $1`,
		planID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("%w: %s", ErrPlanNotFound, planID))
	}
	if err != nil {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("get plan days: %w", err))
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var days map[string]*plan.Day
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fault.Wrap(fault.DBError, fmt.Errorf("decode plan days: %w", err))
	}
	return days, nil
}
