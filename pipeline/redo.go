package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fitstack/planworker/fault"
	"github.com/fitstack/planworker/plan"
	"github.com/fitstack/planworker/prompts"
)

// runRedo rewrites the scoped halves of an existing plan from the user's
// feedback. It makes at most three LLM calls (workouts, nutrition, reasons)
// and never touches the checkpointed generation path. A failed scoped rewrite
// is fatal; a failed reasons refresh falls back to generic blurbs.
func (o *Orchestrator) runRedo(ctx context.Context, job *plan.Job, source map[string]*plan.Day) (*Result, error) {
	start := time.Now()
	defer o.observeStage("redo", start)

	days := cloneDays(source)
	scope := job.RedoScope
	if scope == "" {
		scope = plan.RedoBoth
	}

	if scope == plan.RedoWorkout || scope == plan.RedoBoth {
		text, err := o.generate(ctx, "redo_workout",
			prompts.RedoWorkout(&job.Profile, job.RedoReason, days), o.tunables.DailyWorkoutMaxTokens)
		if err != nil {
			return nil, fault.Wrap(fault.WorkoutRedoFailed, err)
		}
		workouts := map[string]*plan.DayWorkout{}
		if err := jsonUnmarshal(text, &workouts); err != nil {
			return nil, fault.Wrap(fault.WorkoutRedoFailed, err)
		}
		for day, workout := range workouts {
			if plan.IsWeekday(day) && workout != nil && days[day] != nil {
				days[day].Workout = workout
			}
		}
	}

	if scope == plan.RedoNutrition || scope == plan.RedoBoth {
		text, err := o.generate(ctx, "redo_nutrition",
			prompts.RedoNutrition(&job.Profile, job.RedoReason, days), o.tunables.BaseNutritionMaxTokens)
		if err != nil {
			return nil, fault.Wrap(fault.NutritionRedo, err)
		}
		nutritionDays := map[string]*plan.DayNutrition{}
		if err := jsonUnmarshal(text, &nutritionDays); err != nil {
			return nil, fault.Wrap(fault.NutritionRedo, err)
		}
		for day, n := range nutritionDays {
			if plan.IsWeekday(day) && n != nil && days[day] != nil {
				days[day].Nutrition = n
			}
		}
	}

	reasons := map[string]string{}
	text, err := o.generate(ctx, "redo_reasons",
		prompts.RedoReasons(job.RedoReason, days), o.tunables.ReasonsMaxTokens)
	if err == nil {
		if parseErr := jsonUnmarshal(text, &reasons); parseErr != nil {
			reasons = map[string]string{}
		}
	}
	for _, day := range plan.Weekdays {
		d := days[day]
		if d == nil {
			continue
		}
		if reason, ok := reasons[day]; ok && reason != "" {
			d.Reason = reason
		} else if d.Reason == "" {
			d.Reason = "Revised per your feedback while keeping the weekly structure intact."
		}
	}

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

// cloneDays copies each day record one level deep so redo edits and the final
// clamps never mutate the caller's view of the source plan.
func cloneDays(source map[string]*plan.Day) map[string]*plan.Day {
	days := map[string]*plan.Day{}
	for day, d := range source {
		if d == nil {
			continue
		}
		copied := *d
		if d.Workout != nil {
			w := *d.Workout
			copied.Workout = &w
		}
		if d.Nutrition != nil {
			n := *d.Nutrition
			copied.Nutrition = &n
		}
		if d.Recovery != nil {
			r := *d.Recovery
			copied.Recovery = &r
		}
		days[day] = &copied
	}
	return days
}
