package nutrition

import (
	"testing"

	"github.com/fitstack/planworker/plan"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name        string
		food        string
		quantity    string
		wantKcal    float64
		wantProtein float64
	}{
		{
			name: "chicken breast by grams",
			food: "grilled chicken breast", quantity: "150g",
			wantKcal: 247.5, wantProtein: 46.5,
		},
		{
			name: "specific key wins over generic",
			food: "chicken breast", quantity: "100g",
			wantKcal: 165, wantProtein: 31,
		},
		{
			name: "generic chicken",
			food: "chicken curry", quantity: "100g",
			wantKcal: 190, wantProtein: 27,
		},
		{
			name: "whey by scoop",
			food: "whey protein", quantity: "1 scoop",
			wantKcal: 120, wantProtein: 24,
		},
		{
			name: "rice by cup with descriptor",
			food: "rice", quantity: "1 cup cooked",
			wantKcal: 312, wantProtein: 6.48,
		},
		{
			name: "unitless is grams",
			food: "oats", quantity: "80",
			wantKcal: 311.2, wantProtein: 13.52,
		},
		{
			name: "empty quantity defaults to 100g",
			food: "tofu", quantity: "",
			wantKcal: 76, wantProtein: 8,
		},
		{
			name: "unknown food uses fallback",
			food: "dragon fruit smoothie bowl", quantity: "100g",
			wantKcal: 150, wantProtein: 8,
		},
		{
			name: "unparseable quantity defaults to 100g",
			food: "banana", quantity: "a few",
			wantKcal: 89, wantProtein: 1.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(tt.food, tt.quantity)
			if !almostEqual(got.Kcal, tt.wantKcal) {
				t.Errorf("Kcal = %v, want %v", got.Kcal, tt.wantKcal)
			}
			if !almostEqual(got.Protein, tt.wantProtein) {
				t.Errorf("Protein = %v, want %v", got.Protein, tt.wantProtein)
			}
		})
	}
}

func TestEstimateMeals(t *testing.T) {
	meals := []plan.Meal{
		{
			Name: "Breakfast",
			Items: []plan.MealItem{
				{Food: "oats", Quantity: "80g"},
				{Food: "banana", Quantity: "100g"},
			},
		},
		{
			Name: "Lunch",
			Items: []plan.MealItem{
				{Food: "chicken breast", Quantity: "200g"},
			},
		},
	}

	totalKcal, totalProtein, breakdown := EstimateMeals(meals)

	// oats 311.2 + banana 89 + chicken 330
	if !almostEqual(totalKcal, 730.2) {
		t.Errorf("totalKcal = %v, want 730.2", totalKcal)
	}
	// oats 13.52 + banana 1.1 + chicken 62
	if !almostEqual(totalProtein, 76.62) {
		t.Errorf("totalProtein = %v, want 76.62", totalProtein)
	}
	if len(breakdown) != 2 {
		t.Fatalf("breakdown length = %d, want 2", len(breakdown))
	}
	if breakdown[0].Name != "Breakfast" || !almostEqual(breakdown[0].Kcal, 400.2) {
		t.Errorf("breakfast estimate = %+v", breakdown[0])
	}
}
