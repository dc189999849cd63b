package pipeline

import "time"

// TimeBudget reports whether the orchestrator should yield and how much of
// the invocation budget remains. It is consulted between stages only; the
// orchestrator never cancels an in-flight stage.
type TimeBudget func() (shouldYield bool, remaining time.Duration)

// NewTimeBudget builds a TimeBudget from a start instant, a total budget and
// a yield threshold. now is injectable for tests.
func NewTimeBudget(start time.Time, total, threshold time.Duration, now func() time.Time) TimeBudget {
	if now == nil {
		now = time.Now
	}
	return func() (bool, time.Duration) {
		remaining := total - now().Sub(start)
		return remaining < threshold, remaining
	}
}
