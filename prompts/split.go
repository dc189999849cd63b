package prompts

import (
	"fmt"

	"github.com/fitstack/planworker/plan"
)

// splitHeuristics maps the training goal to its pairing guidance.
var splitHeuristics = map[plan.Goal]string{
	plan.GoalMuscleGain: `Use a push/pull/legs structure, or an upper/lower split for 4 training days.
Pair large and small muscle groups that work together (Chest+Triceps, Back+Biceps, Legs+Core).
Never train the same muscle group on consecutive days.`,
	plan.GoalWeightLoss: `Bias toward full-body and circuit-style days that maximize energy expenditure.
Alternate high and moderate intensity; keep at least one low-intensity active-recovery day.`,
	plan.GoalEndurance: `Bias toward conditioning and cardio-focused days with one or two strength days for support.
Alternate hard conditioning days with easier aerobic days.`,
	plan.GoalGeneralFitness: `Balance upper-body, lower-body and full-body days across the week.
Spread intensity evenly; no two consecutive high-intensity days.`,
	plan.GoalFlexibility: `Center the week on mobility, yoga and flexibility sessions with light strength support.
Intensity should rarely exceed moderate.`,
}

// Split builds the prompt pair for the weekly split stage.
func Split(p *plan.ProfileSnapshot) Pair {
	heuristics, ok := splitHeuristics[p.Goal]
	if !ok {
		heuristics = splitHeuristics[plan.GoalGeneralFitness]
	}

	system := fmt.Sprintf(`You are an expert strength and conditioning coach designing a weekly workout split.

Goal-specific structure:
%s

Hard requirements:
- The JSON object must contain EXACTLY these seven keys: %s.
- Exactly %d days must be training days (rest=false); the rest are rest days.
- intensity must be one of: "high", "moderate", "low", "rest".
- Rest days use focus ["Rest", "Recovery"], intensity "rest" and rest=true.

%s

Output shape (keys shown for monday apply to every weekday):
{
  "monday": {
    "rest": false,
    "focus": ["Chest", "Triceps"],
    "intensity": "high",
    "primary_muscles": ["chest", "triceps"],
    "secondary_muscles": ["front delts"]
  },
  "sunday": {
    "rest": true,
    "focus": ["Rest", "Recovery"],
    "intensity": "rest"
  }
}`, heuristics, WeekdayList, p.TrainingDays, OutputRules)

	user := fmt.Sprintf(`Design the weekly split for this user:

%s
Return the seven-day split JSON now.`, profileSummary(p))

	return Pair{System: system, User: user}
}
