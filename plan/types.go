// Package plan defines the domain types shared across the plan-generation
// worker: the user profile snapshot, the weekly split, per-day artifacts,
// checkpoints and the final assembled plan.
package plan

import "time"

// Goal is the user's primary training goal.
type Goal string

const (
	GoalWeightLoss     Goal = "weight_loss"
	GoalMuscleGain     Goal = "muscle_gain"
	GoalEndurance      Goal = "endurance"
	GoalGeneralFitness Goal = "general_fitness"
	GoalFlexibility    Goal = "flexibility_mobility"
)

// Weekdays lists the seven plan keys in week order. Every per-day map in this
// package is keyed by exactly these values.
var Weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// IsWeekday reports whether key is one of the seven plan keys.
func IsWeekday(key string) bool {
	for _, d := range Weekdays {
		if d == key {
			return true
		}
	}
	return false
}

// ProfileSnapshot is the immutable copy of the user's profile taken at job
// creation. Optional scalar fields are pointers so "unknown" is distinguishable
// from zero.
type ProfileSnapshot struct {
	Goal         Goal     `json:"goal"`
	TrainingDays int      `json:"training_days"`
	Equipment    []string `json:"equipment"`
	DietaryPrefs []string `json:"dietary_prefs"`
	MealCount    int      `json:"meal_count"`

	Age           *int     `json:"age,omitempty"`
	Sex           string   `json:"sex,omitempty"`
	HeightCm      *float64 `json:"height_cm,omitempty"`
	WeightKg      *float64 `json:"weight_kg,omitempty"`
	ActivityLevel string   `json:"activity_level,omitempty"`

	DailyCalorieTarget *int     `json:"daily_calorie_target,omitempty"`
	CurrentSupplements []string `json:"current_supplements,omitempty"`
	AvoidExercises     []string `json:"avoid_exercises,omitempty"`
	AvoidFoods         []string `json:"avoid_foods,omitempty"`
	Injuries           []string `json:"injuries,omitempty"`
	PreferredTimes     []string `json:"preferred_times,omitempty"`
	SpecialRequests    string   `json:"special_requests,omitempty"`
	RegenerationNotes  string   `json:"regeneration_notes,omitempty"`
	ExperienceLevel    string   `json:"experience_level,omitempty"`
}

// Meals returns the declared meal count, defaulting to 3 when unset or out of
// the 1-8 range.
func (p *ProfileSnapshot) Meals() int {
	if p.MealCount < 1 || p.MealCount > 8 {
		return 3
	}
	return p.MealCount
}

// Intensity levels for a split day.
const (
	IntensityHigh     = "high"
	IntensityModerate = "moderate"
	IntensityLow      = "low"
	IntensityRest     = "rest"
)

// SplitDay describes one weekday of the workout split.
type SplitDay struct {
	Rest             bool     `json:"rest"`
	Focus            []string `json:"focus"`
	Intensity        string   `json:"intensity"`
	PrimaryMuscles   []string `json:"primary_muscles,omitempty"`
	SecondaryMuscles []string `json:"secondary_muscles,omitempty"`
}

// WorkoutSplit maps each of the seven weekday keys to its split day.
type WorkoutSplit map[string]SplitDay

// RestSkeleton returns the deterministic rest-day entry used to backfill
// weekdays the model left out.
func RestSkeleton() SplitDay {
	return SplitDay{
		Rest:      true,
		Focus:     []string{"Rest", "Recovery"},
		Intensity: IntensityRest,
	}
}

// TrainingDayCount returns the number of non-rest days in the split.
func (s WorkoutSplit) TrainingDayCount() int {
	n := 0
	for _, day := range s {
		if !day.Rest {
			n++
		}
	}
	return n
}

// MealItem is one food with a free-form quantity ("150g", "1 cup").
type MealItem struct {
	Food     string `json:"food"`
	Quantity string `json:"quantity"`
}

// MealTemplate is one of the base meals the nutrition stage produces.
type MealTemplate struct {
	Name           string     `json:"name"`
	TargetCalories float64    `json:"target_calories"`
	TargetProtein  float64    `json:"target_protein"`
	Items          []MealItem `json:"items"`
}

// BaseNutrition holds the daily scalar targets and the base meal templates.
type BaseNutrition struct {
	Calories        float64        `json:"calories"`
	Protein         float64        `json:"protein"`
	Carbs           float64        `json:"carbs"`
	Fats            float64        `json:"fats"`
	MealsPerDay     int            `json:"meals_per_day"`
	HydrationLiters float64        `json:"hydration_liters"`
	Meals           []MealTemplate `json:"meals"`
}

// WorkoutItem is a single exercise prescription.
type WorkoutItem struct {
	Exercise string `json:"exercise"`
	Sets     int    `json:"sets"`
	Reps     string `json:"reps"`
	RIR      *int   `json:"rir,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// WorkoutBlock groups exercises under a named section (warm-up, main, cool-down).
type WorkoutBlock struct {
	Name  string        `json:"name"`
	Items []WorkoutItem `json:"items"`
}

// DayWorkout is the full workout for one day.
type DayWorkout struct {
	Focus  []string       `json:"focus"`
	Blocks []WorkoutBlock `json:"blocks"`
}

// Meal is a concrete meal in a day's nutrition.
type Meal struct {
	Name  string     `json:"name"`
	Items []MealItem `json:"items"`
}

// DayNutrition is the nutrition prescription for one day.
type DayNutrition struct {
	TotalKcal   float64  `json:"total_kcal"`
	ProteinG    float64  `json:"protein_g"`
	CarbsG      *float64 `json:"carbs_g,omitempty"`
	FatsG       *float64 `json:"fats_g,omitempty"`
	MealsPerDay int      `json:"meals_per_day"`
	Meals       []Meal   `json:"meals"`
	HydrationL  float64  `json:"hydration_l"`
	Adjustments []string `json:"adjustments,omitempty"`

	// CalculatedKcal and CalculatedProtein carry the food-estimator figures
	// recorded during verification. Informational only.
	CalculatedKcal    float64 `json:"calculated_kcal,omitempty"`
	CalculatedProtein float64 `json:"calculated_protein,omitempty"`
}

// NutritionDelta is the per-day adjustment relative to base nutrition.
type NutritionDelta struct {
	CarbsPct   float64  `json:"carbs_pct"`
	ProteinPct float64  `json:"protein_pct"`
	WaterL     float64  `json:"water_l"`
	Notes      []string `json:"notes,omitempty"`
}

// SupplementItem is one supplement with timing guidance.
type SupplementItem struct {
	Name   string `json:"name"`
	Dose   string `json:"dose,omitempty"`
	Timing string `json:"timing,omitempty"`
	Note   string `json:"note,omitempty"`
}

// SupplementCard separates what the user already takes from recommended add-ons.
type SupplementCard struct {
	Current []SupplementItem `json:"current"`
	AddOns  []SupplementItem `json:"addOns"`
}

// DayRecovery is the recovery block for one day.
type DayRecovery struct {
	Mobility       []string       `json:"mobility"`
	Sleep          []string       `json:"sleep"`
	Supplements    []string       `json:"supplements"`
	SupplementCard SupplementCard `json:"supplementCard"`
}

// SupplementsData is the weekly supplements stage output: one recovery block
// per day plus the week-level recommended add-ons that get fanned out into
// every day's card.
type SupplementsData struct {
	Days              map[string]*DayRecovery `json:"days"`
	RecommendedAddOns []SupplementItem        `json:"recommendedAddOns,omitempty"`
}

// Day is one fully assembled day of the final plan.
type Day struct {
	Workout   *DayWorkout   `json:"workout"`
	Nutrition *DayNutrition `json:"nutrition"`
	Recovery  *DayRecovery  `json:"recovery"`
	Reason    string        `json:"reason"`
}

// FinalPlan is the terminal merge output written to the plan record.
type FinalPlan struct {
	ID          string          `json:"id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Days        map[string]*Day `json:"days"`
	IsLocked    bool            `json:"is_locked"`
	EditCounts  map[string]int  `json:"edit_counts"`
}

// VerifierResult is the errors-only verdict a verifier stage returns.
type VerifierResult struct {
	IsValid           bool     `json:"isValid"`
	Errors            []string `json:"errors"`
	CalculatedKcal    float64  `json:"calculatedCalories,omitempty"`
	CalculatedProtein float64  `json:"calculatedProtein,omitempty"`
}
