package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/planworker/config"
	"github.com/fitstack/planworker/fault"
	"github.com/fitstack/planworker/plan"
)

// fakeGenerator dispatches on the system prompt so each stage can be scripted
// independently. Calls are recorded for cardinality assertions.
type fakeGenerator struct {
	mu       sync.Mutex
	calls    []string
	generate func(system, user string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string, _ int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, stageOf(system))
	f.mu.Unlock()
	return f.generate(system, user)
}

func (f *fakeGenerator) countCalls(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.calls {
		if s == stage {
			n++
		}
	}
	return n
}

// stageOf classifies a system prompt by its distinctive opening.
func stageOf(system string) string {
	switch {
	case strings.Contains(system, "designing a weekly workout split"):
		return "split"
	case strings.Contains(system, "building a daily base nutrition template"):
		return "base_nutrition"
	case strings.Contains(system, "programming a single day's workout"),
		strings.Contains(system, "recovery coach"):
		return "daily_workout"
	case strings.Contains(system, "adjusting a base nutrition day"):
		return "adjustment"
	case strings.Contains(system, "weekly supplement and recovery schedule"):
		return "supplements"
	case strings.Contains(system, "auditing a single day's workout"):
		return "verify_workout"
	case strings.Contains(system, "auditing a single day's nutrition"):
		return "verify_nutrition"
	case strings.Contains(system, "auditing a weekly supplement schedule"):
		return "verify_supplements"
	case strings.Contains(system, "writing one short blurb per day"):
		return "reasons"
	case strings.Contains(system, "revising the workout half"):
		return "redo_workout"
	case strings.Contains(system, "revising the nutrition half"):
		return "redo_nutrition"
	case strings.Contains(system, "refreshing the per-day motivation blurbs"):
		return "redo_reasons"
	default:
		return "unknown"
	}
}

// fakeSaver records checkpoint saves.
type fakeSaver struct {
	mu     sync.Mutex
	phases []int
	err    error
}

func (f *fakeSaver) SaveCheckpoint(_ context.Context, _ string, phase int, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.phases = append(f.phases, phase)
	return nil
}

func neverYield() (bool, time.Duration)  { return false, time.Minute }
func alwaysYield() (bool, time.Duration) { return true, 0 }

func testJob() *plan.Job {
	weight := 80.0
	return &plan.Job{
		ID:     "job-1",
		UserID: "user-1",
		Profile: plan.ProfileSnapshot{
			Goal:         plan.GoalMuscleGain,
			TrainingDays: 4,
			MealCount:    3,
			WeightKg:     &weight,
		},
		MaxRetries: 3,
	}
}

func splitJSON() string {
	split := plan.WorkoutSplit{}
	training := map[string]bool{"monday": true, "tuesday": true, "thursday": true, "friday": true}
	for _, day := range plan.Weekdays {
		if training[day] {
			split[day] = plan.SplitDay{Focus: []string{"Chest"}, Intensity: plan.IntensityHigh}
		} else {
			split[day] = plan.RestSkeleton()
		}
	}
	raw, _ := json.Marshal(split)
	return string(raw)
}

func baseNutritionJSON() string {
	base := plan.BaseNutrition{
		Calories: 2400, Protein: 170, Carbs: 260, Fats: 75,
		MealsPerDay: 3, HydrationLiters: 2.5,
		Meals: []plan.MealTemplate{
			{Name: "Breakfast", TargetCalories: 800, TargetProtein: 55,
				Items: []plan.MealItem{{Food: "oats", Quantity: "80g"}}},
		},
	}
	raw, _ := json.Marshal(base)
	return string(raw)
}

func workoutJSON() string {
	w := plan.DayWorkout{
		Focus: []string{"Chest"},
		Blocks: []plan.WorkoutBlock{
			{Name: "Main", Items: []plan.WorkoutItem{{Exercise: "Bench press", Sets: 4, Reps: "8-10"}}},
		},
	}
	raw, _ := json.Marshal(w)
	return string(raw)
}

func nutritionDayJSON(kcal float64) string {
	n := plan.DayNutrition{
		TotalKcal: kcal, ProteinG: 170, MealsPerDay: 3, HydrationL: 2.5,
		Meals: []plan.Meal{
			{Name: "Breakfast", Items: []plan.MealItem{{Food: "oats", Quantity: "80g"}}},
		},
	}
	raw, _ := json.Marshal(n)
	return string(raw)
}

func supplementsJSON() string {
	data := plan.SupplementsData{Days: map[string]*plan.DayRecovery{}}
	for _, day := range plan.Weekdays {
		data.Days[day] = &plan.DayRecovery{
			Mobility: []string{"stretch"},
			Sleep:    []string{"sleep well"},
		}
	}
	data.RecommendedAddOns = []plan.SupplementItem{{Name: "vitamin D3", Dose: "2000 IU"}}
	raw, _ := json.Marshal(data)
	return string(raw)
}

func reasonsJSON() string {
	reasons := map[string]string{}
	for _, day := range plan.Weekdays {
		reasons[day] = "Because it fits the plan."
	}
	raw, _ := json.Marshal(reasons)
	return string(raw)
}

func verifierJSON() string {
	return `{"isValid": true, "errors": []}`
}

// happyGenerate scripts every stage with a valid reply.
func happyGenerate(system, _ string) (string, error) {
	switch stageOf(system) {
	case "split":
		return splitJSON(), nil
	case "base_nutrition":
		return baseNutritionJSON(), nil
	case "daily_workout":
		return workoutJSON(), nil
	case "adjustment":
		return nutritionDayJSON(2400), nil
	case "supplements":
		return supplementsJSON(), nil
	case "verify_workout", "verify_nutrition", "verify_supplements":
		return verifierJSON(), nil
	case "reasons":
		return reasonsJSON(), nil
	default:
		return "", fmt.Errorf("unexpected stage: %s", system[:40])
	}
}

func newTestOrchestrator(gen Generator, saver CheckpointSaver) *Orchestrator {
	return New(gen, saver, config.DefaultConfig().Tunables)
}

func TestRunHappyPath(t *testing.T) {
	gen := &fakeGenerator{generate: happyGenerate}
	saver := &fakeSaver{}
	orch := newTestOrchestrator(gen, saver)

	result, err := orch.Run(context.Background(), testJob(), nil, nil, neverYield)
	require.NoError(t, err)
	require.NotNil(t, result.Plan)
	assert.False(t, result.Yielded)

	assert.Len(t, result.Plan.Days, 7)
	for _, day := range plan.Weekdays {
		d := result.Plan.Days[day]
		require.NotNil(t, d, day)
		assert.NotNil(t, d.Workout, day)
		assert.NotNil(t, d.Nutrition, day)
		assert.NotNil(t, d.Recovery, day)
		assert.NotEmpty(t, d.Reason, day)
	}

	// One split, one base, seven workouts, seven adjustments, one supplements,
	// one reasons.
	assert.Equal(t, 1, gen.countCalls("split"))
	assert.Equal(t, 1, gen.countCalls("base_nutrition"))
	assert.Equal(t, 7, gen.countCalls("daily_workout"))
	assert.Equal(t, 7, gen.countCalls("adjustment"))
	assert.Equal(t, 1, gen.countCalls("supplements"))
	assert.Equal(t, 1, gen.countCalls("reasons"))
	assert.Equal(t, 0, gen.countCalls("unknown"))

	// Phases persist in order.
	assert.Equal(t, []int{
		plan.PhaseSplitComplete,
		plan.PhaseBaseNutritionComplete,
		plan.PhaseSupplementsComplete,
		plan.PhaseVerifiersComplete,
		plan.PhaseReasonsComplete,
	}, saver.phases)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	gen := &fakeGenerator{generate: happyGenerate}
	saver := &fakeSaver{}
	orch := newTestOrchestrator(gen, saver)

	var split plan.WorkoutSplit
	require.NoError(t, json.Unmarshal([]byte(splitJSON()), &split))
	var base plan.BaseNutrition
	require.NoError(t, json.Unmarshal([]byte(baseNutritionJSON()), &base))

	cp := &plan.Checkpoint{
		Phase:         plan.PhaseBaseNutritionComplete,
		WorkoutSplit:  split,
		BaseNutrition: &base,
	}

	result, err := orch.Run(context.Background(), testJob(), cp, nil, neverYield)
	require.NoError(t, err)
	require.NotNil(t, result.Plan)

	// Completed stages are never re-run.
	assert.Equal(t, 0, gen.countCalls("split"))
	assert.Equal(t, 0, gen.countCalls("base_nutrition"))
	assert.Equal(t, 7, gen.countCalls("daily_workout"))
}

func TestRunYieldsBeforeFanOut(t *testing.T) {
	gen := &fakeGenerator{generate: happyGenerate}
	saver := &fakeSaver{}
	orch := newTestOrchestrator(gen, saver)

	calls := 0
	budget := func() (bool, time.Duration) {
		calls++
		// First check passes; the pre-fan-out check trips.
		return calls > 1, 10 * time.Second
	}

	result, err := orch.Run(context.Background(), testJob(), nil, nil, budget)
	require.NoError(t, err)
	assert.True(t, result.Yielded)
	assert.Nil(t, result.Plan)

	// Split and base nutrition completed and checkpointed before the yield.
	assert.Equal(t, 1, gen.countCalls("split"))
	assert.Equal(t, 1, gen.countCalls("base_nutrition"))
	assert.Equal(t, 0, gen.countCalls("daily_workout"))
	assert.Equal(t, []int{plan.PhaseSplitComplete, plan.PhaseBaseNutritionComplete}, saver.phases)
}

func TestRunYieldsImmediately(t *testing.T) {
	gen := &fakeGenerator{generate: happyGenerate}
	orch := newTestOrchestrator(gen, &fakeSaver{})

	result, err := orch.Run(context.Background(), testJob(), nil, nil, alwaysYield)
	require.NoError(t, err)
	assert.True(t, result.Yielded)
	assert.Empty(t, gen.calls)
}

func TestRunSplitFailureIsFatal(t *testing.T) {
	gen := &fakeGenerator{generate: func(system, user string) (string, error) {
		if stageOf(system) == "split" {
			return "", fault.New(fault.AITimeout, "stream stalled")
		}
		return happyGenerate(system, user)
	}}
	orch := newTestOrchestrator(gen, &fakeSaver{})

	_, err := orch.Run(context.Background(), testJob(), nil, nil, neverYield)
	require.Error(t, err)
	assert.Equal(t, fault.AITimeout, fault.Code(err))
}

func TestRunFanOutFailuresFallBack(t *testing.T) {
	gen := &fakeGenerator{generate: func(system, user string) (string, error) {
		switch stageOf(system) {
		case "daily_workout":
			return "", errors.New("boom")
		case "supplements":
			return "not json at all", nil
		default:
			return happyGenerate(system, user)
		}
	}}
	saver := &fakeSaver{}
	orch := newTestOrchestrator(gen, saver)

	job := testJob()
	result, err := orch.Run(context.Background(), job, nil, nil, neverYield)
	require.NoError(t, err)
	require.NotNil(t, result.Plan)

	// Every day still has a workout (the deterministic substitute) and a
	// recovery block from the supplements fallback.
	for _, day := range plan.Weekdays {
		d := result.Plan.Days[day]
		require.NotNil(t, d.Workout, day)
		assert.NotEmpty(t, d.Workout.Blocks, day)
		require.NotNil(t, d.Recovery, day)
	}

	// Fallback add-ons are goal-keyed and fanned into every day.
	monday := result.Plan.Days["monday"]
	assert.NotEmpty(t, monday.Recovery.SupplementCard.AddOns)
}

func TestFallbackSupplementsSkipsCurrent(t *testing.T) {
	p := &plan.ProfileSnapshot{
		Goal:               plan.GoalMuscleGain,
		CurrentSupplements: []string{"Creatine Monohydrate"},
	}
	split := plan.WorkoutSplit{}
	for _, day := range plan.Weekdays {
		split[day] = plan.RestSkeleton()
	}

	data := fallbackSupplements(p, split)
	require.Len(t, data.Days, 7)
	for _, item := range data.RecommendedAddOns {
		assert.NotEqual(t, "creatine monohydrate", strings.ToLower(item.Name))
	}
}

func TestVerifierClampsDriftedTotals(t *testing.T) {
	gen := &fakeGenerator{generate: func(system, user string) (string, error) {
		switch stageOf(system) {
		case "adjustment":
			// Stated total wildly above anything the meals add up to.
			return nutritionDayJSON(5200), nil
		case "verify_nutrition":
			return `{"isValid": false, "errors": ["totals disagree"], "calculatedCalories": 400, "calculatedProtein": 14}`, nil
		default:
			return happyGenerate(system, user)
		}
	}}
	orch := newTestOrchestrator(gen, &fakeSaver{})

	job := testJob()
	result, err := orch.Run(context.Background(), job, nil, nil, neverYield)
	require.NoError(t, err)

	// Target for this profile: TDEE(default BMR factors apply) * 1.10 with
	// weight 80. The clamp pulls the stated total within 100 kcal of target.
	n := result.Plan.Days["monday"].Nutrition
	require.NotNil(t, n)
	assert.InDelta(t, 400, n.CalculatedKcal, 0.01)
	assert.LessOrEqual(t, n.TotalKcal, maxDailyKcal)
	assert.Less(t, n.TotalKcal, 5200.0, "stated total should have been clamped")
}

func TestPostFixDefaultsProteinAndMealCount(t *testing.T) {
	gen := &fakeGenerator{generate: func(system, user string) (string, error) {
		if stageOf(system) == "adjustment" {
			// Reply omits protein_g and invents a meal count.
			return `{"total_kcal": 2400, "meals_per_day": 5, "hydration_l": 2.5, "meals": []}`, nil
		}
		return happyGenerate(system, user)
	}}
	orch := newTestOrchestrator(gen, &fakeSaver{})

	job := testJob() // 80 kg, muscle gain, 3 declared meals
	target := 2400
	job.Profile.DailyCalorieTarget = &target

	result, err := orch.Run(context.Background(), job, nil, nil, neverYield)
	require.NoError(t, err)

	for _, day := range plan.Weekdays {
		n := result.Plan.Days[day].Nutrition
		require.NotNil(t, n, day)
		// Missing protein defaults to the computed target (2.2 g/kg x 80).
		assert.InDelta(t, 176, n.ProteinG, 0.01, day)
		// The declared meal count wins over the model's figure.
		assert.Equal(t, 3, n.MealsPerDay, day)
	}
}

func TestPostFixBackfillsRecoveryArrays(t *testing.T) {
	orch := newTestOrchestrator(&fakeGenerator{generate: happyGenerate}, &fakeSaver{})

	job := testJob()
	days := map[string]*plan.Day{
		"monday": {
			Nutrition: &plan.DayNutrition{TotalKcal: 2400, ProteinG: 170, MealsPerDay: 3, HydrationL: 2.5},
			Recovery:  &plan.DayRecovery{Mobility: []string{"stretch"}},
		},
	}

	orch.postFix(job, days)

	r := days["monday"].Recovery
	assert.Equal(t, []string{"stretch"}, r.Mobility)
	assert.NotNil(t, r.Sleep)
	assert.NotNil(t, r.Supplements)
}

func TestReasonsFallbackOnFailure(t *testing.T) {
	gen := &fakeGenerator{generate: func(system, user string) (string, error) {
		if stageOf(system) == "reasons" {
			return "", fault.New(fault.AIError, "empty reply")
		}
		return happyGenerate(system, user)
	}}
	orch := newTestOrchestrator(gen, &fakeSaver{})

	result, err := orch.Run(context.Background(), testJob(), nil, nil, neverYield)
	require.NoError(t, err)
	for _, day := range plan.Weekdays {
		assert.NotEmpty(t, result.Plan.Days[day].Reason, day)
	}
}

func TestCheckpointSaveFailureIsNonFatal(t *testing.T) {
	gen := &fakeGenerator{generate: happyGenerate}
	saver := &fakeSaver{err: errors.New("db down")}
	orch := newTestOrchestrator(gen, saver)

	result, err := orch.Run(context.Background(), testJob(), nil, nil, neverYield)
	require.NoError(t, err)
	require.NotNil(t, result.Plan)
	assert.Len(t, result.Plan.Days, 7)
}

func TestRunRedoWorkoutScope(t *testing.T) {
	gen := &fakeGenerator{generate: func(system, user string) (string, error) {
		switch stageOf(system) {
		case "redo_workout":
			out := map[string]*plan.DayWorkout{}
			for _, day := range plan.Weekdays {
				var w plan.DayWorkout
				_ = json.Unmarshal([]byte(workoutJSON()), &w)
				w.Focus = []string{"Revised"}
				out[day] = &w
			}
			raw, _ := json.Marshal(out)
			return string(raw), nil
		case "redo_reasons":
			return reasonsJSON(), nil
		default:
			return "", fmt.Errorf("unexpected stage in workout-scope redo")
		}
	}}
	orch := newTestOrchestrator(gen, &fakeSaver{})

	job := testJob()
	job.Redo = true
	job.RedoReason = "too much pressing volume"
	job.RedoScope = plan.RedoWorkout
	target := 2400
	job.Profile.DailyCalorieTarget = &target

	source := map[string]*plan.Day{}
	for _, day := range plan.Weekdays {
		var w plan.DayWorkout
		require.NoError(t, json.Unmarshal([]byte(workoutJSON()), &w))
		var n plan.DayNutrition
		require.NoError(t, json.Unmarshal([]byte(nutritionDayJSON(2400)), &n))
		source[day] = &plan.Day{Workout: &w, Nutrition: &n, Reason: "original"}
	}

	result, err := orch.Run(context.Background(), job, nil, source, neverYield)
	require.NoError(t, err)
	require.NotNil(t, result.Plan)

	assert.Equal(t, 1, gen.countCalls("redo_workout"))
	assert.Equal(t, 0, gen.countCalls("redo_nutrition"))
	assert.Equal(t, 1, gen.countCalls("redo_reasons"))

	for _, day := range plan.Weekdays {
		d := result.Plan.Days[day]
		assert.Equal(t, []string{"Revised"}, d.Workout.Focus, day)
		// Nutrition untouched by workout-scope redo.
		assert.InDelta(t, 2400, d.Nutrition.TotalKcal, 0.01, day)
	}

	// Source days must not have been mutated.
	assert.Equal(t, []string{"Chest"}, source["monday"].Workout.Focus)
}

func TestRunRedoWorkoutFailureCode(t *testing.T) {
	gen := &fakeGenerator{generate: func(system, _ string) (string, error) {
		return "", errors.New("boom")
	}}
	orch := newTestOrchestrator(gen, &fakeSaver{})

	job := testJob()
	job.Redo = true
	job.RedoScope = plan.RedoWorkout
	source := map[string]*plan.Day{"monday": {Reason: "original"}}

	_, err := orch.Run(context.Background(), job, nil, source, neverYield)
	require.Error(t, err)
	assert.Equal(t, fault.WorkoutRedoFailed, fault.Code(err))
}

func TestSplitBackfillsMissingWeekdays(t *testing.T) {
	gen := &fakeGenerator{generate: func(system, user string) (string, error) {
		if stageOf(system) == "split" {
			// Only five days; saturday and sunday missing, plus a junk key.
			return `{
				"monday": {"rest": false, "focus": ["Chest"], "intensity": "high"},
				"tuesday": {"rest": false, "focus": ["Back"], "intensity": "moderate"},
				"wednesday": {"rest": true, "focus": ["Rest", "Recovery"], "intensity": "rest"},
				"thursday": {"rest": false, "focus": ["Legs"], "intensity": "high"},
				"friday": {"rest": false, "focus": ["Shoulders"], "intensity": "moderate"},
				"notes": {"rest": false, "focus": ["??"], "intensity": "high"}
			}`, nil
		}
		return happyGenerate(system, user)
	}}
	saver := &fakeSaver{}
	orch := newTestOrchestrator(gen, saver)

	result, err := orch.Run(context.Background(), testJob(), nil, nil, neverYield)
	require.NoError(t, err)

	require.Len(t, result.Plan.Days, 7)
	sat := result.Plan.Days["saturday"]
	require.NotNil(t, sat.Workout)
	assert.Contains(t, sat.Workout.Focus, "Rest")
	_, hasJunk := result.Plan.Days["notes"]
	assert.False(t, hasJunk)
}

func TestNewTimeBudget(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := start
	now := func() time.Time { return current }

	budget := NewTimeBudget(start, 120*time.Second, 25*time.Second, now)

	yield, remaining := budget()
	assert.False(t, yield)
	assert.Equal(t, 120*time.Second, remaining)

	current = start.Add(96 * time.Second)
	yield, remaining = budget()
	assert.True(t, yield)
	assert.Equal(t, 24*time.Second, remaining)

	current = start.Add(95 * time.Second)
	yield, _ = budget()
	assert.False(t, yield)
}
