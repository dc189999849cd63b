package pipeline

import (
	"strings"

	"github.com/fitstack/planworker/nutrition"
	"github.com/fitstack/planworker/plan"
)

// Final-plan calorie bounds. Targets outside this band are a sign of a broken
// model reply, not an extreme user.
const (
	minDailyKcal = 1000.0
	maxDailyKcal = 6000.0
)

// merge assembles the seven final days from the checkpoint maps. Every slot a
// fan-out task failed to fill gets a deterministic substitute so the final
// plan always carries all seven days complete.
func (o *Orchestrator) merge(job *plan.Job, cp *plan.Checkpoint) map[string]*plan.Day {
	days := map[string]*plan.Day{}

	for _, day := range plan.Weekdays {
		splitDay := cp.WorkoutSplit[day]

		d := &plan.Day{
			Workout:   cp.DailyWorkouts[day],
			Nutrition: cp.DailyNutrition[day],
			Reason:    cp.DailyReasons[day],
		}

		if d.Workout == nil {
			o.logger.Warn("Merging substitute workout", "job_id", job.ID, "day", day)
			d.Workout = substituteWorkout(splitDay)
		}
		if d.Nutrition == nil {
			o.logger.Warn("Merging substitute nutrition", "job_id", job.ID, "day", day)
			d.Nutrition = substituteNutrition(cp.BaseNutrition, cp.NutritionDeltas[day])
		}
		if cp.SupplementsData != nil {
			d.Recovery = cp.SupplementsData.Days[day]
		}
		if d.Recovery == nil {
			d.Recovery = &plan.DayRecovery{
				Mobility:    []string{"10 min light stretching"},
				Sleep:       []string{"Aim for 7-9 hours of sleep"},
				Supplements: []string{},
			}
		}
		if d.Reason == "" {
			d.Reason = fallbackReasons(cp.WorkoutSplit)[day]
		}

		days[day] = d
	}

	if cp.SupplementsData != nil {
		fanOutAddOns(days, cp.SupplementsData.RecommendedAddOns, job.Profile.CurrentSupplements)
	}

	return days
}

// substituteWorkout is the deterministic workout used when a fan-out slot is
// empty. Rest days get an active-recovery block; training days a minimal
// bodyweight session honoring the split's focus.
func substituteWorkout(splitDay plan.SplitDay) *plan.DayWorkout {
	if splitDay.Rest {
		return &plan.DayWorkout{
			Focus: []string{"Rest", "Recovery"},
			Blocks: []plan.WorkoutBlock{{
				Name: "Active Recovery",
				Items: []plan.WorkoutItem{
					{Exercise: "Easy walk", Sets: 1, Reps: "20-30 min"},
					{Exercise: "Full-body stretching", Sets: 1, Reps: "10 min"},
				},
			}},
		}
	}
	focus := splitDay.Focus
	if len(focus) == 0 {
		focus = []string{"Full Body"}
	}
	return &plan.DayWorkout{
		Focus: focus,
		Blocks: []plan.WorkoutBlock{
			{
				Name: "Warm-up",
				Items: []plan.WorkoutItem{
					{Exercise: "Dynamic stretching", Sets: 1, Reps: "5 min"},
					{Exercise: "Light cardio", Sets: 1, Reps: "5 min"},
				},
			},
			{
				Name: "Main",
				Items: []plan.WorkoutItem{
					{Exercise: "Bodyweight squat", Sets: 3, Reps: "12-15"},
					{Exercise: "Push-up", Sets: 3, Reps: "8-12"},
					{Exercise: "Plank", Sets: 3, Reps: "30-45s"},
				},
			},
			{
				Name: "Cool-down",
				Items: []plan.WorkoutItem{
					{Exercise: "Static stretching", Sets: 1, Reps: "5 min"},
				},
			},
		},
	}
}

// substituteNutrition derives a day's nutrition from the base template plus
// the day's intensity delta.
func substituteNutrition(base *plan.BaseNutrition, delta *plan.NutritionDelta) *plan.DayNutrition {
	if base == nil {
		return &plan.DayNutrition{TotalKcal: 2000, ProteinG: 100, MealsPerDay: 3, HydrationL: 2.5}
	}

	day := &plan.DayNutrition{
		TotalKcal:   base.Calories,
		ProteinG:    base.Protein,
		MealsPerDay: base.MealsPerDay,
		HydrationL:  base.HydrationLiters,
	}
	for _, tmpl := range base.Meals {
		day.Meals = append(day.Meals, plan.Meal{Name: tmpl.Name, Items: tmpl.Items})
	}
	if delta != nil {
		// Delta percentages apply to the carb share of calories (roughly half)
		// and to protein grams directly.
		carbShare := 0.5
		day.TotalKcal += base.Calories * carbShare * delta.CarbsPct / 100
		day.ProteinG += base.Protein * delta.ProteinPct / 100
		day.HydrationL += delta.WaterL
		day.Adjustments = delta.Notes
	}
	return day
}

// fanOutAddOns copies the week-level recommended add-ons into each day's
// supplement card, dropping anything already on the user's current list and
// deduplicating by name.
func fanOutAddOns(days map[string]*plan.Day, addOns []plan.SupplementItem, current []string) {
	taken := map[string]bool{}
	for _, name := range current {
		taken[strings.ToLower(name)] = true
	}

	var filtered []plan.SupplementItem
	seen := map[string]bool{}
	for _, item := range addOns {
		key := strings.ToLower(item.Name)
		if key == "" || taken[key] || seen[key] {
			continue
		}
		seen[key] = true
		filtered = append(filtered, item)
	}

	for _, d := range days {
		if d.Recovery == nil {
			continue
		}
		d.Recovery.SupplementCard.AddOns = filtered
	}
}

// postFix applies the deterministic final pass: calorie totals bounded to a
// sane band around the target, missing protein replaced by the computed
// target, the meal count pinned to the user's declared figure, hydration
// defaulted and recovery arrays made non-nil for serialization.
func (o *Orchestrator) postFix(job *plan.Job, days map[string]*plan.Day) {
	target := nutrition.CalorieTarget(&job.Profile)
	proteinTarget := nutrition.ProteinTarget(&job.Profile)
	lo := maxOf(minDailyKcal, target-100)
	hi := minOf(maxDailyKcal, target+100)

	for day, d := range days {
		if r := d.Recovery; r != nil {
			if r.Mobility == nil {
				r.Mobility = []string{}
			}
			if r.Sleep == nil {
				r.Sleep = []string{}
			}
			if r.Supplements == nil {
				r.Supplements = []string{}
			}
		}

		n := d.Nutrition
		if n == nil {
			continue
		}
		if n.TotalKcal < lo || n.TotalKcal > hi {
			o.logger.Debug("Clamping daily calories",
				"job_id", job.ID, "day", day, "from", n.TotalKcal, "lo", lo, "hi", hi)
			n.TotalKcal = clampTo(n.TotalKcal, lo, hi)
		}
		if n.ProteinG <= 0 {
			n.ProteinG = proteinTarget
		}
		if n.HydrationL <= 0 {
			n.HydrationL = 2.5
		}
		n.MealsPerDay = job.Profile.Meals()
	}
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
