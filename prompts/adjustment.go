package prompts

import (
	"fmt"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// IntensityDelta returns the deterministic macro delta for a day's intensity:
// carbs and protein as percentages of base, water in liters. Fats are never
// adjusted.
func IntensityDelta(intensity string, rest bool) plan.NutritionDelta {
	switch {
	case rest || intensity == plan.IntensityRest:
		return plan.NutritionDelta{CarbsPct: -15, WaterL: -0.3}
	case intensity == plan.IntensityHigh:
		return plan.NutritionDelta{CarbsPct: 10, ProteinPct: 5, WaterL: 0.5}
	case intensity == plan.IntensityLow:
		return plan.NutritionDelta{CarbsPct: -8}
	default:
		return plan.NutritionDelta{}
	}
}

// NutritionAdjustment builds the prompt pair for one day's nutrition,
// adjusting the base template by the day's intensity delta.
func NutritionAdjustment(p *plan.ProfileSnapshot, weekday string, day plan.SplitDay, base *plan.BaseNutrition) Pair {
	delta := IntensityDelta(day.Intensity, day.Rest)
	banned := BannedFoods(p)

	bannedLine := "No foods are banned by dietary preference."
	if len(banned) > 0 {
		bannedLine = fmt.Sprintf("STRICTLY BANNED foods: %s.", strings.Join(banned, ", "))
	}

	system := fmt.Sprintf(`You are a sports nutritionist adjusting a base nutrition day for training load.

Adjustment for this day (intensity %q):
- Carbs: %+.0f%% relative to base
- Protein: %+.0f%% relative to base
- Fats: unchanged
- Water: %+.1f L relative to base

Rules:
- %s
- Keep the same meal names and count as the base template.
- Recalculate total_kcal and protein_g after the adjustment.
- List each change you made in "adjustments" as a short human-readable line.

%s

Output shape:
{
  "total_kcal": 2450,
  "protein_g": 180,
  "carbs_g": 250,
  "fats_g": 80,
  "meals_per_day": %d,
  "hydration_l": 3.0,
  "meals": [
    {
      "name": "Breakfast",
      "items": [
        {"food": "oats", "quantity": "90g"}
      ]
    }
  ],
  "adjustments": ["+10%% carbs for high-intensity training day"]
}`,
		day.Intensity, delta.CarbsPct, delta.ProteinPct, delta.WaterL,
		bannedLine, OutputRules, p.Meals())

	baseJSON := fmt.Sprintf(`- Base calories: %.0f kcal
- Base protein: %.0f g
- Base carbs: %.0f g
- Base fats: %.0f g
- Base hydration: %.1f L
- Base meals: %s`,
		base.Calories, base.Protein, base.Carbs, base.Fats, base.HydrationLiters, baseMealLines(base))

	user := fmt.Sprintf(`Adjust nutrition for %s (focus: %s).

Base template:
%s

User profile:
%s
Return the adjusted day nutrition JSON now.`,
		weekday, strings.Join(day.Focus, ", "), baseJSON, profileSummary(p))

	return Pair{System: system, User: user}
}

// baseMealLines renders the base meal templates compactly for the user prompt.
func baseMealLines(base *plan.BaseNutrition) string {
	var b strings.Builder
	for _, meal := range base.Meals {
		fmt.Fprintf(&b, "\n  - %s (%.0f kcal, %.0f g protein):", meal.Name, meal.TargetCalories, meal.TargetProtein)
		for _, item := range meal.Items {
			fmt.Fprintf(&b, " %s %s;", item.Food, item.Quantity)
		}
	}
	if b.Len() == 0 {
		return "none"
	}
	return b.String()
}
