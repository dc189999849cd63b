// Package nutrition holds the deterministic nutrition math: BMR/TDEE and
// calorie/protein targets from the profile, plus a static food table used to
// estimate meal calories without calling the model.
package nutrition

import "github.com/fitstack/planworker/plan"

// Defaults when body metrics are missing.
const (
	DefaultBMR           = 2000.0
	fallbackProteinShare = 0.30 // of calories, when weight is unknown
)

// activityFactors maps activity level to the TDEE multiplier.
var activityFactors = map[string]float64{
	"sedentary":         1.2,
	"lightly_active":    1.375,
	"moderately_active": 1.55,
	"very_active":       1.725,
	"extra_active":      1.9,
}

const defaultActivityFactor = 1.55

// BMR computes basal metabolic rate with the Mifflin-St Jeor formula.
// Returns the 2000 kcal default unless sex, height, weight and age are all
// present.
func BMR(p *plan.ProfileSnapshot) float64 {
	if p.WeightKg == nil || p.HeightCm == nil || p.Age == nil || p.Sex == "" {
		return DefaultBMR
	}
	weight, height, age := *p.WeightKg, *p.HeightCm, float64(*p.Age)
	base := 10*weight + 6.25*height - 5*age
	if p.Sex == "male" {
		return base + 5
	}
	return base - 161
}

// TDEE multiplies BMR by the activity factor.
func TDEE(p *plan.ProfileSnapshot) float64 {
	factor, ok := activityFactors[p.ActivityLevel]
	if !ok {
		factor = defaultActivityFactor
	}
	return BMR(p) * factor
}

// CalorieTarget returns the explicit user target when set, otherwise TDEE
// adjusted by goal.
func CalorieTarget(p *plan.ProfileSnapshot) float64 {
	if p.DailyCalorieTarget != nil && *p.DailyCalorieTarget > 0 {
		return float64(*p.DailyCalorieTarget)
	}
	tdee := TDEE(p)
	switch p.Goal {
	case plan.GoalWeightLoss:
		return tdee * 0.85
	case plan.GoalMuscleGain:
		return tdee * 1.10
	default:
		return tdee
	}
}

// ProteinTarget returns grams of protein per day: 2.2 g/kg for muscle gain,
// 1.8 g/kg otherwise, or 30% of the calorie target over 4 kcal/g when weight
// is unknown.
func ProteinTarget(p *plan.ProfileSnapshot) float64 {
	if p.WeightKg == nil || *p.WeightKg <= 0 {
		return CalorieTarget(p) * fallbackProteinShare / 4
	}
	if p.Goal == plan.GoalMuscleGain {
		return *p.WeightKg * 2.2
	}
	return *p.WeightKg * 1.8
}
