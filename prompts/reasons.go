package prompts

import (
	"fmt"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// Reasons builds the prompt pair for the per-day motivation blurbs.
func Reasons(p *plan.ProfileSnapshot, split plan.WorkoutSplit, deltas map[string]*plan.NutritionDelta) Pair {
	system := fmt.Sprintf(`You are a motivating fitness coach writing one short blurb per day.

Requirements:
- One entry per weekday key: %s.
- Each blurb is 1-2 sentences, references that day's training focus, its
  nutrition emphasis, and recovery where relevant.
- Rest-day blurbs explain why recovery drives progress.
- Tone: encouraging, concrete, never generic filler.

%s

Output shape:
{
  "monday": "Chest and triceps today - the extra carbs fuel your heaviest pressing of the week.",
  "sunday": "Full rest. Sleep and mobility today are what turn this week's work into strength."
}`, WeekdayList, OutputRules)

	var days strings.Builder
	for _, day := range plan.Weekdays {
		entry, ok := split[day]
		if !ok {
			continue
		}
		line := fmt.Sprintf("- %s: %s (%s)", day, strings.Join(entry.Focus, "/"), entry.Intensity)
		if delta, ok := deltas[day]; ok && delta != nil {
			line += fmt.Sprintf(", carbs %+.0f%%, water %+.1f L", delta.CarbsPct, delta.WaterL)
		}
		days.WriteString(line + "\n")
	}

	user := fmt.Sprintf(`Write the daily blurbs for a user whose goal is %s.

Week overview:
%s
Return the seven-day reasons JSON now.`, p.Goal, days.String())

	return Pair{System: system, User: user}
}
