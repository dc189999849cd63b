package plan

import "time"

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobGenerating JobStatus = "generating"
	JobGenerated  JobStatus = "generated"
	JobFailed     JobStatus = "failed"
	JobCompleted  JobStatus = "completed"
)

// RedoScope selects which halves of an existing plan a redo rewrites.
type RedoScope string

const (
	RedoWorkout   RedoScope = "workout"
	RedoNutrition RedoScope = "nutrition"
	RedoBoth      RedoScope = "both"
)

// Job is one plan-generation unit of work as stored in plan_generation_jobs.
// Only the current lease holder (or the queue itself) may mutate it.
type Job struct {
	ID      string          `json:"id"`
	UserID  string          `json:"user_id"`
	Profile ProfileSnapshot `json:"profile"`
	Status  JobStatus       `json:"status"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	TargetPlanID   *string `json:"target_plan_id,omitempty"`
	CycleWeekStart *string `json:"cycle_week_start,omitempty"`

	CheckpointPhase int `json:"checkpoint_phase"`

	Redo             bool      `json:"redo"`
	RedoReason       string    `json:"redo_reason,omitempty"`
	RedoScope        RedoScope `json:"redo_scope,omitempty"`
	RedoSourcePlanID *string   `json:"redo_source_plan_id,omitempty"`

	LeaseHolder string     `json:"lease_holder,omitempty"`
	LeaseExpiry *time.Time `json:"lease_expiry,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// OnFinalRetry reports whether a failure recorded now would be terminal.
func (j *Job) OnFinalRetry() bool {
	return j.RetryCount >= j.MaxRetries-1
}
