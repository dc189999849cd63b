package pipeline

import (
	"fmt"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// goalAddOns is the deterministic add-on pool used when the supplements call
// fails. Candidates already on the user's current list are skipped.
var goalAddOns = map[plan.Goal][]plan.SupplementItem{
	plan.GoalMuscleGain: {
		{Name: "creatine monohydrate", Dose: "5g", Timing: "daily, any time", Note: "supports strength and lean mass"},
		{Name: "whey protein", Dose: "25-30g", Timing: "post-workout", Note: "covers the protein target on training days"},
		{Name: "vitamin D3", Dose: "2000 IU", Timing: "with breakfast", Note: "supports recovery and bone health"},
	},
	plan.GoalWeightLoss: {
		{Name: "whey protein", Dose: "25-30g", Timing: "with the smallest meal", Note: "preserves lean mass in a deficit"},
		{Name: "omega-3", Dose: "1-2g EPA+DHA", Timing: "with a meal", Note: "supports joint and heart health"},
		{Name: "vitamin D3", Dose: "2000 IU", Timing: "with breakfast", Note: "commonly low during calorie restriction"},
	},
	plan.GoalEndurance: {
		{Name: "electrolytes", Dose: "1 serving", Timing: "during long sessions", Note: "replaces sodium lost to sweat"},
		{Name: "omega-3", Dose: "1-2g EPA+DHA", Timing: "with a meal", Note: "supports recovery between sessions"},
		{Name: "vitamin D3", Dose: "2000 IU", Timing: "with breakfast", Note: "supports bone loading"},
	},
	plan.GoalGeneralFitness: {
		{Name: "omega-3", Dose: "1-2g EPA+DHA", Timing: "with a meal", Note: "general health baseline"},
		{Name: "vitamin D3", Dose: "2000 IU", Timing: "with breakfast", Note: "general health baseline"},
		{Name: "magnesium", Dose: "300mg", Timing: "before bed", Note: "supports sleep quality"},
	},
	plan.GoalFlexibility: {
		{Name: "magnesium", Dose: "300mg", Timing: "before bed", Note: "supports muscle relaxation"},
		{Name: "collagen peptides", Dose: "10g", Timing: "before mobility work", Note: "supports connective tissue"},
		{Name: "omega-3", Dose: "1-2g EPA+DHA", Timing: "with a meal", Note: "supports joint comfort"},
	},
}

// fallbackSupplements builds a deterministic weekly schedule from the split
// and the user's current supplement list.
func fallbackSupplements(p *plan.ProfileSnapshot, split plan.WorkoutSplit) *plan.SupplementsData {
	current := make([]plan.SupplementItem, 0, len(p.CurrentSupplements))
	taken := map[string]bool{}
	for _, name := range p.CurrentSupplements {
		current = append(current, plan.SupplementItem{Name: name, Timing: "as usual"})
		taken[strings.ToLower(name)] = true
	}

	pool, ok := goalAddOns[p.Goal]
	if !ok {
		pool = goalAddOns[plan.GoalGeneralFitness]
	}
	var addOns []plan.SupplementItem
	for _, item := range pool {
		if !taken[strings.ToLower(item.Name)] {
			addOns = append(addOns, item)
		}
	}

	days := map[string]*plan.DayRecovery{}
	for _, day := range plan.Weekdays {
		entry := split[day]
		rec := &plan.DayRecovery{
			Sleep: []string{"Aim for 7-9 hours of sleep"},
			SupplementCard: plan.SupplementCard{
				Current: current,
				AddOns:  addOns,
			},
		}
		if entry.Rest {
			rec.Mobility = []string{"20 min full-body stretching or a walk"}
		} else {
			rec.Mobility = []string{fmt.Sprintf("10 min mobility work for %s before training", strings.ToLower(strings.Join(entry.Focus, " and ")))}
		}
		for _, name := range p.CurrentSupplements {
			timing := "with a main meal"
			if !entry.Rest {
				timing = "around the workout"
			}
			rec.Supplements = append(rec.Supplements, fmt.Sprintf("%s %s", name, timing))
		}
		days[day] = rec
	}

	return &plan.SupplementsData{Days: days, RecommendedAddOns: addOns}
}

// fallbackReasons builds deterministic per-day blurbs from the split.
func fallbackReasons(split plan.WorkoutSplit) map[string]string {
	reasons := map[string]string{}
	for _, day := range plan.Weekdays {
		entry := split[day]
		if entry.Rest {
			reasons[day] = "Rest day to let your muscles recover and adapt before the next session."
			continue
		}
		focus := strings.ToLower(strings.Join(entry.Focus, " and "))
		if focus == "" {
			focus = "full body"
		}
		reasons[day] = fmt.Sprintf("A %s-intensity %s session placed here to balance training stress across the week.", entry.Intensity, focus)
	}
	return reasons
}
