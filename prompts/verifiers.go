package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// Verifier tolerances: a day fails only beyond these deviations.
const (
	KcalTolerance    = 200.0
	ProteinTolerance = 20.0
)

const verifierShape = `Output shape:
{
  "isValid": true,
  "errors": []
}`

// VerifyWorkout builds the errors-only verifier prompt for one day's workout.
func VerifyWorkout(p *plan.ProfileSnapshot, weekday string, day plan.SplitDay, workout *plan.DayWorkout) Pair {
	system := fmt.Sprintf(`You are auditing a single day's workout. Report ERRORS ONLY - do not suggest improvements.

Fail the day only for:
- An exercise from the banned list: %s.
- Focus that contradicts the planned focus (%s).
- Sets outside 1-10 or RIR outside 0-5.
- A non-rest day missing warm-up, main or cool-down blocks.

If none of these apply, return isValid true with an empty errors array.

%s

%s`, listOrNone(p.AvoidExercises), strings.Join(day.Focus, ", "), verifierShape, OutputRules)

	payload, _ := json.Marshal(workout)
	user := fmt.Sprintf("Audit this %s workout:\n\n%s\n\nReturn the verdict JSON now.", weekday, payload)
	return Pair{System: system, User: user}
}

// VerifyNutrition builds the errors-only verifier prompt for one day's
// nutrition. calculatedKcal/calculatedProtein come from the food estimator;
// the verifier fails the day only beyond the stated tolerances.
func VerifyNutrition(p *plan.ProfileSnapshot, weekday string, nutrition *plan.DayNutrition, calculatedKcal, calculatedProtein float64) Pair {
	banned := BannedFoods(p)

	system := fmt.Sprintf(`You are auditing a single day's nutrition. Report ERRORS ONLY.

Independently calculated from a food table:
- Calculated calories: %.0f kcal
- Calculated protein: %.0f g

Fail the day only for:
- |stated total_kcal - calculated calories| > %.0f kcal
- |stated protein_g - calculated protein| > %.0f g
- Any food from the banned list: %s.

Include the calculated figures in your verdict.

Output shape:
{
  "isValid": true,
  "errors": [],
  "calculatedCalories": %.0f,
  "calculatedProtein": %.0f
}

%s`, calculatedKcal, calculatedProtein, KcalTolerance, ProteinTolerance,
		listOrNone(banned), calculatedKcal, calculatedProtein, OutputRules)

	payload, _ := json.Marshal(nutrition)
	user := fmt.Sprintf("Audit this %s nutrition:\n\n%s\n\nReturn the verdict JSON now.", weekday, payload)
	return Pair{System: system, User: user}
}

// VerifySupplements builds the errors-only verifier prompt for the weekly
// supplements schedule.
func VerifySupplements(p *plan.ProfileSnapshot, data *plan.SupplementsData) Pair {
	system := fmt.Sprintf(`You are auditing a weekly supplement schedule. Report ERRORS ONLY.

Fail only for:
- A recommended add-on the user already takes (current: %s).
- Fewer than 2 or more than 4 recommended add-ons.
- A day missing mobility, sleep or supplement guidance entirely.

%s

%s`, listOrNone(p.CurrentSupplements), verifierShape, OutputRules)

	payload, _ := json.Marshal(data)
	user := fmt.Sprintf("Audit this weekly supplement schedule:\n\n%s\n\nReturn the verdict JSON now.", payload)
	return Pair{System: system, User: user}
}
