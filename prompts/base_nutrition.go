package prompts

import (
	"fmt"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// BaseNutrition builds the prompt pair for the base-nutrition stage.
// calorieTarget and proteinTarget come from the deterministic calculator.
func BaseNutrition(p *plan.ProfileSnapshot, calorieTarget, proteinTarget float64) Pair {
	mealNames := MealNames(p.Meals())
	banned := BannedFoods(p)

	bannedLine := "No foods are banned by dietary preference."
	if len(banned) > 0 {
		bannedLine = fmt.Sprintf("STRICTLY BANNED foods (never include these or dishes containing them): %s.", strings.Join(banned, ", "))
	}

	system := fmt.Sprintf(`You are a sports nutritionist building a daily base nutrition template.

Dietary rules:
- %s
- Every meal item must be a single food with a concrete quantity (grams preferred).

Macro targets for the day:
- Calories: %.0f kcal (stay within 100 kcal)
- Protein: %.0f g (stay within 10 g)
- Carbs and fats split sensibly from the remaining calories.

Meal structure:
- Exactly %d meals, named in this order: %s.
- Each meal carries its own calorie and protein target; meal targets must sum to the daily targets.
- Hydration: recommend liters of water for the day (2.0-3.5 typical).

%s

Output shape:
{
  "calories": 2600,
  "protein": 176,
  "carbs": 290,
  "fats": 80,
  "meals_per_day": %d,
  "hydration_liters": 2.5,
  "meals": [
    {
      "name": "Breakfast",
      "target_calories": 650,
      "target_protein": 44,
      "items": [
        {"food": "oats", "quantity": "80g"},
        {"food": "greek yogurt", "quantity": "200g"}
      ]
    }
  ]
}`, bannedLine, calorieTarget, proteinTarget, len(mealNames), strings.Join(mealNames, ", "), OutputRules, len(mealNames))

	user := fmt.Sprintf(`Build the base daily nutrition template for this user:

%s
Return the base nutrition JSON now.`, profileSummary(p))

	return Pair{System: system, User: user}
}
