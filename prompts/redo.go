package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/fitstack/planworker/plan"
)

// RedoWorkout builds the prompt pair that rewrites the previous plan's
// workouts based on the user's free-text reason. The nutrition half is left
// untouched by this call.
func RedoWorkout(p *plan.ProfileSnapshot, reason string, days map[string]*plan.Day) Pair {
	system := fmt.Sprintf(`You are revising the workout half of an existing 7-day plan based on user feedback.

Rules:
- Change only what the feedback asks for; keep everything else structurally identical.
- Keep the same weekday keys and the warm-up/main/cool-down block structure.
- Respect the banned exercise list: %s.

%s

Output shape: an object keyed by the seven weekdays, each value a workout:
{
  "monday": {
    "focus": ["Chest", "Triceps"],
    "blocks": [
      {"name": "Warm-up", "items": [{"exercise": "Arm circles", "sets": 2, "reps": "15"}]},
      {"name": "Main", "items": [{"exercise": "Dumbbell bench press", "sets": 4, "reps": "8-10", "rir": 2}]},
      {"name": "Cool-down", "items": [{"exercise": "Chest stretch", "sets": 1, "reps": "30s"}]}
    ]
  }
}`, listOrNone(p.AvoidExercises), OutputRules)

	user := fmt.Sprintf(`User feedback: %q

Current workouts:
%s

Return the revised seven-day workouts JSON now.`, reason, workoutsJSON(days))

	return Pair{System: system, User: user}
}

// RedoNutrition is the nutrition counterpart of RedoWorkout.
func RedoNutrition(p *plan.ProfileSnapshot, reason string, days map[string]*plan.Day) Pair {
	system := fmt.Sprintf(`You are revising the nutrition half of an existing 7-day plan based on user feedback.

Rules:
- Change only what the feedback asks for; keep meal count and names unless the feedback targets them.
- STRICTLY BANNED foods: %s.
- Keep daily totals within 100 kcal of the originals unless the feedback asks otherwise.

%s

Output shape: an object keyed by the seven weekdays, each value a day's nutrition:
{
  "monday": {
    "total_kcal": 2450,
    "protein_g": 176,
    "meals_per_day": %d,
    "hydration_l": 2.5,
    "meals": [
      {"name": "Breakfast", "items": [{"food": "oats", "quantity": "80g"}]}
    ]
  }
}`, listOrNone(BannedFoods(p)), OutputRules, p.Meals())

	user := fmt.Sprintf(`User feedback: %q

Current nutrition:
%s

Return the revised seven-day nutrition JSON now.`, reason, nutritionJSON(days))

	return Pair{System: system, User: user}
}

// RedoReasons asks for fresh per-day blurbs after a redo.
func RedoReasons(reason string, days map[string]*plan.Day) Pair {
	system := fmt.Sprintf(`You are refreshing the per-day motivation blurbs of a revised 7-day plan.

Requirements:
- One short blurb per weekday key: %s.
- Acknowledge the revision where relevant; stay concrete about each day's focus.

%s

Output shape:
{
  "monday": "Updated per your feedback - lighter pressing volume, same chest focus."
}`, WeekdayList, OutputRules)

	focuses := map[string]any{}
	for day, d := range days {
		if d != nil && d.Workout != nil {
			focuses[day] = d.Workout.Focus
		}
	}
	payload, _ := json.Marshal(focuses)

	user := fmt.Sprintf(`The plan was revised because: %q

Day focuses:
%s

Return the seven-day reasons JSON now.`, reason, payload)

	return Pair{System: system, User: user}
}

func workoutsJSON(days map[string]*plan.Day) string {
	out := map[string]*plan.DayWorkout{}
	for day, d := range days {
		if d != nil {
			out[day] = d.Workout
		}
	}
	payload, _ := json.Marshal(out)
	return string(payload)
}

func nutritionJSON(days map[string]*plan.Day) string {
	out := map[string]*plan.DayNutrition{}
	for day, d := range days {
		if d != nil {
			out[day] = d.Nutrition
		}
	}
	payload, _ := json.Marshal(out)
	return string(payload)
}
