// Package worker ties the queue, pipeline and notifier together: it claims one
// job per invocation, heartbeats the lease while the pipeline runs, and
// settles the job as completed, failed or yielded within the invocation
// budget.
package worker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fitstack/planworker/config"
	"github.com/fitstack/planworker/fault"
	"github.com/fitstack/planworker/metrics"
	"github.com/fitstack/planworker/pipeline"
	"github.com/fitstack/planworker/plan"
)

// Queue is the job-queue surface of the store.
type Queue interface {
	ClaimNextJob(ctx context.Context, workerID string, leaseSeconds int) (string, error)
	ExtendLease(ctx context.Context, jobID, workerID string, extensionSeconds int) (bool, error)
	CompleteJob(ctx context.Context, jobID, planID string) error
	FailJob(ctx context.Context, jobID, message, code string) error
}

// JobStore reads job records and checkpoints.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*plan.Job, error)
	LoadCheckpoint(ctx context.Context, jobID string) (*plan.Checkpoint, error)
}

// PlanStore reads and writes plan records.
type PlanStore interface {
	EnsureGeneratingPlan(ctx context.Context, userID, jobID string, targetPlanID, weekStart *string) (planID string, priorStatus string, err error)
	SavePlanDays(ctx context.Context, planID string, days map[string]*plan.Day, generatedAt time.Time) error
	ResetPlanPending(ctx context.Context, planID string, unlinkJob bool) error
	GetPlanDays(ctx context.Context, planID string) (map[string]*plan.Day, error)
}

// Pipeline runs the generation state machine.
type Pipeline interface {
	Run(ctx context.Context, job *plan.Job, cp *plan.Checkpoint, redoSource map[string]*plan.Day, budget pipeline.TimeBudget) (*pipeline.Result, error)
}

// Notifier delivers best-effort user notifications.
type Notifier interface {
	PlanReady(ctx context.Context, userID, planID string)
	PlanFailed(ctx context.Context, userID, jobID string)
}

// Invocation statuses reported in the response envelope.
const (
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
	StatusYielded          = "yielded"
	StatusNoJobs           = "no_jobs"
	StatusAlreadyGenerated = "already_generated"
)

// Outcome summarizes one invocation.
type Outcome struct {
	JobID   string
	PlanID  string
	Status  string
	Yielded bool
	Err     error
}

// Worker processes one job per invocation.
type Worker struct {
	queue    Queue
	jobs     JobStore
	plans    PlanStore
	pipe     Pipeline
	notifier Notifier
	tunables config.Tunables
	selfURL  string

	logger *slog.Logger
	now    func() time.Time
	// heartbeatTicks, when set, replaces the wall-clock heartbeat ticker.
	heartbeatTicks <-chan time.Time
	httpClient     *http.Client
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithClock sets the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// WithHeartbeatTicks replaces the heartbeat ticker channel (tests).
func WithHeartbeatTicks(ticks <-chan time.Time) Option {
	return func(w *Worker) {
		w.heartbeatTicks = ticks
	}
}

// WithSelfURL enables the yield handoff POST.
func WithSelfURL(url string) Option {
	return func(w *Worker) {
		w.selfURL = url
	}
}

// New creates a Worker.
func New(queue Queue, jobs JobStore, plans PlanStore, pipe Pipeline, notifier Notifier, tunables config.Tunables, opts ...Option) *Worker {
	w := &Worker{
		queue:      queue,
		jobs:       jobs,
		plans:      plans,
		pipe:       pipe,
		notifier:   notifier,
		tunables:   tunables,
		logger:     slog.Default(),
		now:        time.Now,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NewWorkerID builds a unique worker identity for one invocation.
func NewWorkerID() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("worker_%d_000000", time.Now().UnixMilli())
	}
	return fmt.Sprintf("worker_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// RunOnce claims and processes at most one job. The returned Outcome is always
// non-nil; Err is set on failed outcomes.
func (w *Worker) RunOnce(ctx context.Context) *Outcome {
	workerID := NewWorkerID()
	start := w.now()

	jobID, err := w.queue.ClaimNextJob(ctx, workerID, w.tunables.LeaseSeconds)
	if err != nil {
		w.logger.Error("Claim failed", "worker_id", workerID, "error", err)
		return &Outcome{Status: StatusFailed, Err: err}
	}
	if jobID == "" {
		metrics.JobOutcomes.WithLabelValues(StatusNoJobs).Inc()
		return &Outcome{Status: StatusNoJobs}
	}
	metrics.JobsClaimed.Inc()
	w.logger.Info("Job claimed", "worker_id", workerID, "job_id", jobID)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	stopHeartbeat := w.startHeartbeat(runCtx, cancelRun, jobID, workerID)
	defer stopHeartbeat()

	outcome := w.process(runCtx, jobID, workerID, start)
	metrics.JobOutcomes.WithLabelValues(outcome.Status).Inc()
	return outcome
}

// process runs the claimed job end to end.
func (w *Worker) process(ctx context.Context, jobID, workerID string, start time.Time) *Outcome {
	job, err := w.jobs.GetJob(ctx, jobID)
	if err != nil {
		return w.fail(ctx, jobID, "", nil, err)
	}

	planID, priorStatus, err := w.plans.EnsureGeneratingPlan(ctx, job.UserID, job.ID, job.TargetPlanID, job.CycleWeekStart)
	if err != nil {
		return w.fail(ctx, jobID, "", job, err)
	}
	if priorStatus == "generated" && !job.Redo {
		// The plan already exists: a predecessor finished the work but died
		// before settling the job.
		w.logger.Info("Plan already generated, settling job", "job_id", jobID, "plan_id", planID)
		if err := w.queue.CompleteJob(ctx, jobID, planID); err != nil {
			// The plan itself is intact; the next claim retries settlement.
			w.logger.Warn("Completion record failed", "job_id", jobID, "plan_id", planID, "error", err)
		}
		return &Outcome{JobID: jobID, PlanID: planID, Status: StatusAlreadyGenerated}
	}

	cp, err := w.jobs.LoadCheckpoint(ctx, jobID)
	if err != nil {
		return w.fail(ctx, jobID, planID, job, err)
	}

	var redoSource map[string]*plan.Day
	if job.Redo && job.RedoSourcePlanID != nil {
		redoSource, err = w.plans.GetPlanDays(ctx, *job.RedoSourcePlanID)
		if err != nil {
			return w.fail(ctx, jobID, planID, job, fault.Wrap(fault.RedoFailed, err))
		}
	}

	budget := pipeline.NewTimeBudget(start, w.tunables.InvocationBudget, w.tunables.YieldThreshold, w.now)
	result, err := w.pipe.Run(ctx, job, cp, redoSource, budget)
	if err != nil {
		return w.fail(ctx, jobID, planID, job, err)
	}

	if result.Yielded {
		return w.yield(ctx, jobID, workerID, planID)
	}

	if err := w.plans.SavePlanDays(ctx, planID, result.Plan.Days, result.Plan.GeneratedAt); err != nil {
		return w.fail(ctx, jobID, planID, job, err)
	}
	if err := w.queue.CompleteJob(ctx, jobID, planID); err != nil {
		// The plan days are already persisted, so the job must never be
		// failed or the plan reset from here. The next claim finds the
		// generated plan and settles the job through the short circuit
		// above.
		w.logger.Warn("Completion record failed, plan already persisted",
			"job_id", jobID, "plan_id", planID, "error", err)
	}

	w.logger.Info("Job completed", "job_id", jobID, "plan_id", planID,
		"elapsed", w.now().Sub(start))
	if w.notifier != nil {
		w.notifier.PlanReady(ctx, job.UserID, planID)
	}
	return &Outcome{JobID: jobID, PlanID: planID, Status: StatusCompleted}
}

// yield releases the job for a successor: the lease shrinks to one second so
// the next claim does not wait out the full lease, and the optional self URL
// is poked to spawn that successor immediately.
func (w *Worker) yield(ctx context.Context, jobID, workerID, planID string) *Outcome {
	if _, err := w.queue.ExtendLease(ctx, jobID, workerID, 1); err != nil {
		w.logger.Warn("Lease shrink on yield failed", "job_id", jobID, "error", err)
	}
	w.logger.Info("Yielded job to successor", "job_id", jobID)

	if w.selfURL != "" {
		go w.handoff(jobID)
	}
	return &Outcome{JobID: jobID, PlanID: planID, Status: StatusYielded, Yielded: true}
}

// handoff POSTs the self URL so a fresh invocation resumes the job without
// waiting for the external scheduler. Best effort.
func (w *Worker) handoff(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.selfURL, nil)
	if err != nil {
		return
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Warn("Yield handoff failed", "job_id", jobID, "error", err)
		return
	}
	resp.Body.Close()
}

// fail settles the job as failed, resets the plan record and, on the final
// retry, tells the user. The settlement uses a fresh context so a cancelled
// run context cannot block it.
func (w *Worker) fail(ctx context.Context, jobID, planID string, job *plan.Job, cause error) *Outcome {
	code := fault.Code(cause)
	w.logger.Error("Job failed", "job_id", jobID, "code", code, "error", cause)

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	terminal := job != nil && job.OnFinalRetry()
	if planID != "" {
		if err := w.plans.ResetPlanPending(settleCtx, planID, !terminal); err != nil {
			w.logger.Error("Plan reset failed", "plan_id", planID, "error", err)
		}
	}
	if err := w.queue.FailJob(settleCtx, jobID, cause.Error(), code); err != nil {
		w.logger.Error("Job fail record failed", "job_id", jobID, "error", err)
	}
	if terminal && w.notifier != nil {
		w.notifier.PlanFailed(settleCtx, job.UserID, jobID)
	}
	return &Outcome{JobID: jobID, PlanID: planID, Status: StatusFailed, Err: cause}
}

// startHeartbeat extends the lease on a fixed cadence until stopped. A
// rejected extension means the lease was lost; the run context is cancelled so
// the pipeline stops mutating shared state.
func (w *Worker) startHeartbeat(ctx context.Context, cancelRun context.CancelFunc, jobID, workerID string) (stop func()) {
	ticks := w.heartbeatTicks
	var ticker *time.Ticker
	if ticks == nil {
		ticker = time.NewTicker(w.tunables.HeartbeatPeriod)
		ticks = ticker.C
	}
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticks:
				ok, err := w.queue.ExtendLease(ctx, jobID, workerID, w.tunables.LeaseSeconds)
				if err != nil {
					metrics.HeartbeatFailures.Inc()
					w.logger.Warn("Heartbeat errored", "job_id", jobID, "error", err)
					continue
				}
				if !ok {
					metrics.HeartbeatFailures.Inc()
					w.logger.Error("Lease lost, aborting run", "job_id", jobID, "worker_id", workerID)
					cancelRun()
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		if ticker != nil {
			ticker.Stop()
		}
	}
}
