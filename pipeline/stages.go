package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/fitstack/planworker/fault"
	"github.com/fitstack/planworker/nutrition"
	"github.com/fitstack/planworker/plan"
	"github.com/fitstack/planworker/prompts"
)

// runSplit executes stage 0: the weekly split. A bubbled error here aborts
// the pipeline.
func (o *Orchestrator) runSplit(ctx context.Context, job *plan.Job, cp *plan.Checkpoint) error {
	start := time.Now()
	defer o.observeStage("split", start)

	text, err := o.generate(ctx, "split", prompts.Split(&job.Profile), o.tunables.SplitMaxTokens)
	if err != nil {
		return fault.Wrap(fault.GenerationError, err)
	}

	var split plan.WorkoutSplit
	if err := jsonUnmarshal(text, &split); err != nil {
		return err
	}

	// Backfill any weekday the model dropped with a rest skeleton.
	for _, day := range plan.Weekdays {
		if _, ok := split[day]; !ok {
			o.logger.Warn("Split missing weekday, inserting rest day",
				"job_id", job.ID, "day", day)
			split[day] = plan.RestSkeleton()
		}
	}
	// Strip anything that is not a weekday key.
	for key := range split {
		if !plan.IsWeekday(key) {
			delete(split, key)
		}
	}

	if got := split.TrainingDayCount(); got != job.Profile.TrainingDays {
		// Tolerated: the split is used as produced.
		o.logger.Warn("Split training-day count disagrees with profile",
			"job_id", job.ID, "want", job.Profile.TrainingDays, "got", got)
	}

	cp.WorkoutSplit = split
	o.saveCheckpoint(ctx, job.ID, cp, plan.PhaseSplitComplete)
	return nil
}

// runBaseNutrition executes stage 1. A bubbled error aborts the pipeline.
func (o *Orchestrator) runBaseNutrition(ctx context.Context, job *plan.Job, cp *plan.Checkpoint) error {
	start := time.Now()
	defer o.observeStage("base_nutrition", start)

	calorieTarget := nutrition.CalorieTarget(&job.Profile)
	proteinTarget := nutrition.ProteinTarget(&job.Profile)

	pair := prompts.BaseNutrition(&job.Profile, calorieTarget, proteinTarget)
	text, err := o.generate(ctx, "base_nutrition", pair, o.tunables.BaseNutritionMaxTokens)
	if err != nil {
		return fault.Wrap(fault.GenerationError, err)
	}

	var base plan.BaseNutrition
	if err := jsonUnmarshal(text, &base); err != nil {
		return err
	}

	cp.BaseNutrition = &base
	o.saveCheckpoint(ctx, job.ID, cp, plan.PhaseBaseNutritionComplete)
	return nil
}

// runFanOut executes stage 2: seven daily workouts, seven nutrition
// adjustments and one supplements call, all concurrent under one barrier.
// Individual failures leave a nil slot (workouts, nutrition) or trigger the
// deterministic fallback (supplements); they never abort the pipeline.
func (o *Orchestrator) runFanOut(ctx context.Context, job *plan.Job, cp *plan.Checkpoint) {
	start := time.Now()
	defer o.observeStage("fan_out", start)

	n := len(plan.Weekdays)
	workouts := make([]*plan.DayWorkout, n)
	nutritionDays := make([]*plan.DayNutrition, n)
	var supplements *plan.SupplementsData

	var wg sync.WaitGroup

	for i, day := range plan.Weekdays {
		splitDay := cp.WorkoutSplit[day]

		wg.Add(2)
		go func(i int, day string, splitDay plan.SplitDay) {
			defer wg.Done()
			workouts[i] = o.dailyWorkout(ctx, job, day, splitDay)
		}(i, day, splitDay)

		go func(i int, day string, splitDay plan.SplitDay) {
			defer wg.Done()
			nutritionDays[i] = o.dailyNutrition(ctx, job, day, splitDay, cp.BaseNutrition)
		}(i, day, splitDay)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		supplements = o.weeklySupplements(ctx, job, cp.WorkoutSplit)
	}()

	wg.Wait()

	// Results are assembled only after the barrier: no stage observes a
	// partial result from a parallel peer.
	cp.DailyWorkouts = map[string]*plan.DayWorkout{}
	cp.DailyNutrition = map[string]*plan.DayNutrition{}
	cp.NutritionDeltas = map[string]*plan.NutritionDelta{}
	for i, day := range plan.Weekdays {
		if workouts[i] != nil {
			cp.DailyWorkouts[day] = workouts[i]
		}
		if nutritionDays[i] != nil {
			cp.DailyNutrition[day] = nutritionDays[i]
		}
		splitDay := cp.WorkoutSplit[day]
		delta := prompts.IntensityDelta(splitDay.Intensity, splitDay.Rest)
		cp.NutritionDeltas[day] = &delta
	}
	cp.SupplementsData = supplements

	o.saveCheckpoint(ctx, job.ID, cp, plan.PhaseSupplementsComplete)
}

// dailyWorkout generates one day's workout; nil on failure.
func (o *Orchestrator) dailyWorkout(ctx context.Context, job *plan.Job, day string, splitDay plan.SplitDay) *plan.DayWorkout {
	maxTokens := o.tunables.DailyWorkoutMaxTokens
	if splitDay.Rest {
		maxTokens = o.tunables.RestDayMaxTokens
	}

	text, err := o.generate(ctx, "daily_workout", prompts.DailyWorkout(&job.Profile, day, splitDay), maxTokens)
	if err != nil {
		o.logger.Warn("Daily workout failed", "job_id", job.ID, "day", day, "error", err)
		return nil
	}
	var workout plan.DayWorkout
	if err := jsonUnmarshal(text, &workout); err != nil {
		o.logger.Warn("Daily workout unparseable", "job_id", job.ID, "day", day, "error", err)
		return nil
	}
	if len(workout.Focus) == 0 {
		workout.Focus = splitDay.Focus
	}
	return &workout
}

// dailyNutrition generates one day's adjusted nutrition; nil on failure.
func (o *Orchestrator) dailyNutrition(ctx context.Context, job *plan.Job, day string, splitDay plan.SplitDay, base *plan.BaseNutrition) *plan.DayNutrition {
	pair := prompts.NutritionAdjustment(&job.Profile, day, splitDay, base)
	text, err := o.generate(ctx, "nutrition_adjustment", pair, o.tunables.AdjustmentMaxTokens)
	if err != nil {
		o.logger.Warn("Nutrition adjustment failed", "job_id", job.ID, "day", day, "error", err)
		return nil
	}
	var nutritionDay plan.DayNutrition
	if err := jsonUnmarshal(text, &nutritionDay); err != nil {
		o.logger.Warn("Nutrition adjustment unparseable", "job_id", job.ID, "day", day, "error", err)
		return nil
	}
	return &nutritionDay
}

// weeklySupplements generates the supplements schedule, falling back to the
// deterministic schedule on any failure.
func (o *Orchestrator) weeklySupplements(ctx context.Context, job *plan.Job, split plan.WorkoutSplit) *plan.SupplementsData {
	text, err := o.generate(ctx, "supplements", prompts.Supplements(&job.Profile, split), o.tunables.SupplementsMaxTokens)
	if err == nil {
		var data plan.SupplementsData
		if err := jsonUnmarshal(text, &data); err == nil && len(data.Days) > 0 {
			return &data
		}
		o.logger.Warn("Supplements reply unparseable, using fallback", "job_id", job.ID)
	} else {
		o.logger.Warn("Supplements call failed, using fallback", "job_id", job.ID, "error", err)
	}
	return fallbackSupplements(&job.Profile, split)
}

// runVerification executes stage 3: one workout verifier per present day, one
// nutrition verifier per present day, and one supplements verifier, all
// concurrent. Verifier failures downgrade to a clean verdict; numeric
// deviations beyond tolerance are clamped in place. Nothing here fails the
// pipeline.
func (o *Orchestrator) runVerification(ctx context.Context, job *plan.Job, cp *plan.Checkpoint) {
	start := time.Now()
	defer o.observeStage("verification", start)

	calorieTarget := nutrition.CalorieTarget(&job.Profile)
	proteinTarget := nutrition.ProteinTarget(&job.Profile)

	var wg sync.WaitGroup

	for _, day := range plan.Weekdays {
		if workout, ok := cp.DailyWorkouts[day]; ok {
			wg.Add(1)
			go func(day string, workout *plan.DayWorkout) {
				defer wg.Done()
				verdict := o.verify(ctx, "verify_workout", prompts.VerifyWorkout(&job.Profile, day, cp.WorkoutSplit[day], workout))
				if !verdict.IsValid {
					o.logger.Warn("Workout verifier reported errors",
						"job_id", job.ID, "day", day, "errors", verdict.Errors)
				}
			}(day, workout)
		}

		if nutritionDay, ok := cp.DailyNutrition[day]; ok {
			wg.Add(1)
			go func(day string, nutritionDay *plan.DayNutrition) {
				defer wg.Done()
				calcKcal, calcProtein, _ := nutrition.EstimateMeals(nutritionDay.Meals)
				verdict := o.verify(ctx, "verify_nutrition",
					prompts.VerifyNutrition(&job.Profile, day, nutritionDay, calcKcal, calcProtein))
				if verdict.CalculatedKcal == 0 {
					verdict.CalculatedKcal = calcKcal
				}
				if verdict.CalculatedProtein == 0 {
					verdict.CalculatedProtein = calcProtein
				}
				clampNutrition(nutritionDay, verdict, calorieTarget, proteinTarget)
				if !verdict.IsValid {
					o.logger.Warn("Nutrition verifier reported errors",
						"job_id", job.ID, "day", day, "errors", verdict.Errors)
				}
			}(day, nutritionDay)
		}
	}

	if cp.SupplementsData != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdict := o.verify(ctx, "verify_supplements", prompts.VerifySupplements(&job.Profile, cp.SupplementsData))
			if !verdict.IsValid {
				o.logger.Warn("Supplements verifier reported errors",
					"job_id", job.ID, "errors", verdict.Errors)
			}
		}()
	}

	wg.Wait()
	o.saveCheckpoint(ctx, job.ID, cp, plan.PhaseVerifiersComplete)
}

// verify runs one verifier call, downgrading any failure to a clean verdict.
func (o *Orchestrator) verify(ctx context.Context, stage string, pair prompts.Pair) *plan.VerifierResult {
	clean := &plan.VerifierResult{IsValid: true, Errors: []string{}}

	text, err := o.generate(ctx, stage, pair, o.tunables.AdjustmentMaxTokens)
	if err != nil {
		return clean
	}
	var verdict plan.VerifierResult
	if err := jsonUnmarshal(text, &verdict); err != nil {
		return clean
	}
	if verdict.Errors == nil {
		verdict.Errors = []string{}
	}
	return &verdict
}

// clampNutrition overwrites stated totals that drifted beyond tolerance from
// the calculated figures, pulling them inside the target band while keeping
// the calculated value on record.
func clampNutrition(day *plan.DayNutrition, verdict *plan.VerifierResult, calorieTarget, proteinTarget float64) {
	day.CalculatedKcal = verdict.CalculatedKcal
	day.CalculatedProtein = verdict.CalculatedProtein

	if diff := day.TotalKcal - verdict.CalculatedKcal; diff > prompts.KcalTolerance || diff < -prompts.KcalTolerance {
		day.TotalKcal = clampTo(day.TotalKcal, calorieTarget-100, calorieTarget+100)
	}
	if diff := day.ProteinG - verdict.CalculatedProtein; diff > prompts.ProteinTolerance || diff < -prompts.ProteinTolerance {
		day.ProteinG = clampTo(day.ProteinG, proteinTarget-20, proteinTarget+20)
	}
}

// runReasons executes stage 4: the per-day blurbs. LLM failure falls back to
// deterministic blurbs; only parse-of-nothing aborts.
func (o *Orchestrator) runReasons(ctx context.Context, job *plan.Job, cp *plan.Checkpoint) error {
	start := time.Now()
	defer o.observeStage("reasons", start)

	pair := prompts.Reasons(&job.Profile, cp.WorkoutSplit, cp.NutritionDeltas)
	reasons := map[string]string{}

	text, err := o.generate(ctx, "reasons", pair, o.tunables.ReasonsMaxTokens)
	if err == nil {
		if parseErr := jsonUnmarshal(text, &reasons); parseErr != nil {
			reasons = map[string]string{}
		}
	}
	if len(reasons) == 0 {
		o.logger.Warn("Reasons unavailable, using deterministic fallback", "job_id", job.ID)
		reasons = fallbackReasons(cp.WorkoutSplit)
	}

	cp.DailyReasons = reasons
	o.saveCheckpoint(ctx, job.ID, cp, plan.PhaseReasonsComplete)
	return nil
}

// clampTo bounds v to [lo, hi].
func clampTo(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
