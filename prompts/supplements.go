package prompts

import (
	"fmt"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// goalSupplements maps the training goal to its essential and optional lists.
var goalSupplements = map[plan.Goal]struct {
	essential string
	optional  string
}{
	plan.GoalMuscleGain: {
		essential: "creatine monohydrate, whey or plant protein, vitamin D3",
		optional:  "citrulline malate, beta-alanine, ZMA",
	},
	plan.GoalWeightLoss: {
		essential: "whey or plant protein, omega-3, vitamin D3",
		optional:  "caffeine (pre-workout), green tea extract, fiber supplement",
	},
	plan.GoalEndurance: {
		essential: "electrolytes, omega-3, vitamin D3",
		optional:  "beta-alanine, beetroot extract, iron (if deficient)",
	},
	plan.GoalGeneralFitness: {
		essential: "omega-3, vitamin D3, magnesium",
		optional:  "whey or plant protein, creatine monohydrate",
	},
	plan.GoalFlexibility: {
		essential: "omega-3, magnesium, vitamin D3",
		optional:  "collagen peptides, curcumin",
	},
}

// Supplements builds the prompt pair for the weekly supplements stage. The
// model sees the whole split so timing notes can reference training days.
func Supplements(p *plan.ProfileSnapshot, split plan.WorkoutSplit) Pair {
	lists, ok := goalSupplements[p.Goal]
	if !ok {
		lists = goalSupplements[plan.GoalGeneralFitness]
	}

	ageLine := "Age unknown: keep guidance age-neutral."
	if p.Age != nil {
		switch {
		case *p.Age < 25:
			ageLine = "User is under 25: emphasize food-first; supplements are additive only."
		case *p.Age < 45:
			ageLine = "User is 25-44: standard adult dosing applies."
		default:
			ageLine = "User is 45+: add joint and bone support considerations; flag interactions with common medications."
		}
	}

	system := fmt.Sprintf(`You are a sports nutritionist producing a weekly supplement and recovery schedule.

Goal-keyed guidance:
- Essential for this goal: %s
- Optional for this goal: %s
- %s

Requirements:
- For EACH of the seven days (%s) produce mobility items, sleep tips, and
  timing notes for the supplements the user ALREADY takes.
- Recommend 2-4 add-on supplements the user does NOT already take, as the
  week-level "recommendedAddOns" list. Never recommend something from the
  user's current list.
- Timing notes must reference that day's training (pre/post workout) or rest.

%s

Output shape:
{
  "days": {
    "monday": {
      "mobility": ["10 min hip opener before training"],
      "sleep": ["Lights out 22:30; 7.5h minimum before a high-intensity day"],
      "supplements": ["creatine 5g with post-workout meal"],
      "supplementCard": {
        "current": [
          {"name": "creatine", "dose": "5g", "timing": "post-workout"}
        ],
        "addOns": []
      }
    }
  },
  "recommendedAddOns": [
    {"name": "vitamin D3", "dose": "2000 IU", "timing": "with breakfast", "note": "supports recovery"}
  ]
}
The "days" object must contain all seven weekday keys.`,
		lists.essential, lists.optional, ageLine, WeekdayList, OutputRules)

	user := fmt.Sprintf(`Build the weekly supplement and recovery schedule.

User profile:
%s
Current supplements: %s

Weekly split:
%s
Return the supplements JSON now.`,
		profileSummary(p), listOrNone(p.CurrentSupplements), splitSummary(split))

	return Pair{System: system, User: user}
}

// splitSummary renders the split one line per day for prompt context.
func splitSummary(split plan.WorkoutSplit) string {
	var b strings.Builder
	for _, day := range plan.Weekdays {
		entry, ok := split[day]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", day, strings.Join(entry.Focus, "/"), entry.Intensity)
	}
	return b.String()
}
