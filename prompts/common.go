// Package prompts builds the system/user prompt pairs for every pipeline
// stage. Prompts are the contract surface against the model: they render the
// profile constraints, enumerate dietary bans, and embed the exact JSON shape
// the recovery parser repairs toward.
package prompts

import (
	"fmt"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// Pair is one stage's system and user prompt.
type Pair struct {
	System string
	User   string
}

// OutputRules is appended to every system prompt. The parser copes with
// markdown anyway, but telling the model not to emit it saves repair passes.
const OutputRules = `Output rules:
- Respond with RAW JSON only. No markdown code fences, no backticks.
- No text before or after the JSON object.
- No comments inside the JSON. No trailing commas.
- Use double quotes for all keys and string values.`

// WeekdayList is the required seven-day key set, in order.
var WeekdayList = strings.Join(plan.Weekdays, ", ")

// MealNames returns the canonical meal names for a given daily meal count
// (1-8). Counts outside the range fall back to 3.
func MealNames(count int) []string {
	switch count {
	case 1:
		return []string{"OMAD"}
	case 2:
		return []string{"First Meal", "Second Meal"}
	case 3:
		return []string{"Breakfast", "Lunch", "Dinner"}
	case 4:
		return []string{"Breakfast", "Lunch", "Afternoon Snack", "Dinner"}
	case 5:
		return []string{"Breakfast", "Morning Snack", "Lunch", "Afternoon Snack", "Dinner"}
	case 6:
		return []string{"Breakfast", "Morning Snack", "Lunch", "Afternoon Snack", "Dinner", "Evening Snack"}
	case 7:
		return []string{"Breakfast", "Morning Snack", "Lunch", "Pre-Workout", "Post-Workout", "Dinner", "Evening Snack"}
	case 8:
		return []string{"Breakfast", "Morning Snack", "Lunch", "Pre-Workout", "Post-Workout", "Dinner", "Evening Snack", "Before Bed"}
	default:
		return []string{"Breakfast", "Lunch", "Dinner"}
	}
}

// Dietary preference tokens.
const (
	DietVegetarian = "vegetarian"
	DietEggitarian = "eggitarian"
	DietNonVeg     = "non_veg"
)

var (
	vegetarianBanned = []string{"meat", "chicken", "fish", "seafood", "eggs", "beef", "pork", "salmon", "tuna", "shrimp"}
	eggitarianBanned = []string{"meat", "chicken", "fish", "seafood", "beef", "pork", "salmon", "tuna", "shrimp"}
	nonVegBanned     = []string{}
)

// BannedFoods returns the banned-food list for the profile's dietary
// preference, plus any explicit avoid-foods.
func BannedFoods(p *plan.ProfileSnapshot) []string {
	var banned []string
	for _, pref := range p.DietaryPrefs {
		switch strings.ToLower(pref) {
		case DietVegetarian:
			banned = append(banned, vegetarianBanned...)
		case DietEggitarian:
			banned = append(banned, eggitarianBanned...)
		case DietNonVeg:
			banned = append(banned, nonVegBanned...)
		}
	}
	banned = append(banned, p.AvoidFoods...)
	return banned
}

// listOrNone renders a string list for prompt text.
func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// profileSummary renders the profile lines shared by most user prompts.
func profileSummary(p *plan.ProfileSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Goal: %s\n", p.Goal)
	fmt.Fprintf(&b, "- Training days per week: %d\n", p.TrainingDays)
	fmt.Fprintf(&b, "- Available equipment: %s\n", listOrNone(p.Equipment))
	fmt.Fprintf(&b, "- Dietary preference: %s\n", listOrNone(p.DietaryPrefs))
	fmt.Fprintf(&b, "- Meals per day: %d\n", p.Meals())
	if p.Age != nil {
		fmt.Fprintf(&b, "- Age: %d\n", *p.Age)
	}
	if p.Sex != "" {
		fmt.Fprintf(&b, "- Sex: %s\n", p.Sex)
	}
	if p.HeightCm != nil {
		fmt.Fprintf(&b, "- Height: %.0f cm\n", *p.HeightCm)
	}
	if p.WeightKg != nil {
		fmt.Fprintf(&b, "- Weight: %.1f kg\n", *p.WeightKg)
	}
	if p.ActivityLevel != "" {
		fmt.Fprintf(&b, "- Activity level: %s\n", p.ActivityLevel)
	}
	if p.ExperienceLevel != "" {
		fmt.Fprintf(&b, "- Experience level: %s\n", p.ExperienceLevel)
	}
	if len(p.Injuries) > 0 {
		fmt.Fprintf(&b, "- Injuries: %s\n", listOrNone(p.Injuries))
	}
	if len(p.AvoidExercises) > 0 {
		fmt.Fprintf(&b, "- Exercises to avoid: %s\n", listOrNone(p.AvoidExercises))
	}
	if len(p.CurrentSupplements) > 0 {
		fmt.Fprintf(&b, "- Current supplements: %s\n", listOrNone(p.CurrentSupplements))
	}
	if p.SpecialRequests != "" {
		fmt.Fprintf(&b, "- Special requests: %s\n", p.SpecialRequests)
	}
	if p.RegenerationNotes != "" {
		fmt.Fprintf(&b, "- Regeneration request: %s\n", p.RegenerationNotes)
	}
	return b.String()
}
