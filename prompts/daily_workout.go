package prompts

import (
	"fmt"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// DailyWorkout builds the prompt pair for one day's workout. The split day
// fixes the expected focus and intensity; rest days get a deterministic
// mobility block request instead of a training session.
func DailyWorkout(p *plan.ProfileSnapshot, weekday string, day plan.SplitDay) Pair {
	if day.Rest {
		return restDayWorkout(weekday)
	}

	experience := p.ExperienceLevel
	if experience == "" {
		experience = "intermediate"
	}

	system := fmt.Sprintf(`You are an expert personal trainer programming a single day's workout.

Session parameters:
- Focus: %s
- Intensity: %s
- Experience level: %s (beginner: 2-3 sets, RIR 2-3; intermediate: 3-4 sets, RIR 1-3; advanced: 3-5 sets, RIR 0-2)
- Only use equipment the user has. Bodyweight movements are always allowed.
- NEVER program these exercises: %s.

Structure requirements:
- At least three blocks, in order: "Warm-up", "Main", "Cool-down".
- Warm-up: 2-3 light preparatory movements.
- Main: 3-6 exercises matching the focus; sets 1-10, reps as a string ("8-12"), rir 0-5.
- Cool-down: 2-3 stretches or low-intensity movements.

%s

Output shape:
{
  "focus": [%s],
  "blocks": [
    {
      "name": "Warm-up",
      "items": [
        {"exercise": "Arm circles", "sets": 2, "reps": "15", "notes": "both directions"}
      ]
    },
    {
      "name": "Main",
      "items": [
        {"exercise": "Barbell bench press", "sets": 4, "reps": "8-10", "rir": 2}
      ]
    },
    {
      "name": "Cool-down",
      "items": [
        {"exercise": "Chest doorway stretch", "sets": 1, "reps": "30s per side"}
      ]
    }
  ]
}`,
		strings.Join(day.Focus, ", "),
		day.Intensity,
		experience,
		listOrNone(p.AvoidExercises),
		OutputRules,
		quotedList(day.Focus))

	user := fmt.Sprintf(`Program %s for this user:

%s
- Equipment: %s

Return the day's workout JSON now.`, weekday, profileSummary(p), listOrNone(p.Equipment))

	return Pair{System: system, User: user}
}

// restDayWorkout asks for the short deterministic mobility block of a rest day.
func restDayWorkout(weekday string) Pair {
	system := fmt.Sprintf(`You are a recovery coach. Produce a short rest-day mobility session.

Requirements:
- focus is exactly ["Rest", "Recovery"].
- One block named "Mobility" with 3-4 gentle items (walking, stretching, foam rolling).
- No strength training.

%s

Output shape:
{
  "focus": ["Rest", "Recovery"],
  "blocks": [
    {
      "name": "Mobility",
      "items": [
        {"exercise": "Easy walk", "sets": 1, "reps": "20 min"},
        {"exercise": "Hamstring stretch", "sets": 2, "reps": "30s per side"}
      ]
    }
  ]
}`, OutputRules)

	user := fmt.Sprintf("Produce the rest-day mobility session for %s. Return the JSON now.", weekday)
	return Pair{System: system, User: user}
}

// quotedList renders items as a comma-separated list of JSON strings.
func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
