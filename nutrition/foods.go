package nutrition

import (
	"strconv"
	"strings"

	"github.com/fitstack/planworker/plan"
)

// FoodFacts is the per-100g nutrition of one table entry.
type FoodFacts struct {
	Kcal    float64
	Protein float64
}

// fallbackFacts is used when a food matches nothing in the table.
var fallbackFacts = FoodFacts{Kcal: 150, Protein: 8}

// foodEntry pairs a lookup key with its facts. Matching is case-insensitive
// substring in insertion order, so more specific names come first.
type foodEntry struct {
	key   string
	facts FoodFacts
}

// foodTable holds approximate kcal/protein per 100 g for common foods.
var foodTable = []foodEntry{
	{"chicken breast", FoodFacts{165, 31}},
	{"chicken", FoodFacts{190, 27}},
	{"turkey", FoodFacts{135, 29}},
	{"beef", FoodFacts{250, 26}},
	{"pork", FoodFacts{242, 27}},
	{"salmon", FoodFacts{208, 20}},
	{"tuna", FoodFacts{132, 28}},
	{"shrimp", FoodFacts{99, 24}},
	{"fish", FoodFacts{140, 24}},
	{"egg white", FoodFacts{52, 11}},
	{"egg", FoodFacts{155, 13}},
	{"paneer", FoodFacts{265, 18}},
	{"tofu", FoodFacts{76, 8}},
	{"tempeh", FoodFacts{193, 19}},
	{"greek yogurt", FoodFacts{59, 10}},
	{"yogurt", FoodFacts{61, 3.5}},
	{"curd", FoodFacts{62, 3.5}},
	{"cottage cheese", FoodFacts{98, 11}},
	{"cheese", FoodFacts{350, 25}},
	{"milk", FoodFacts{62, 3.2}},
	{"whey", FoodFacts{400, 80}},
	{"protein powder", FoodFacts{380, 75}},
	{"lentils", FoodFacts{116, 9}},
	{"dal", FoodFacts{116, 9}},
	{"chickpeas", FoodFacts{164, 9}},
	{"kidney beans", FoodFacts{127, 8.7}},
	{"black beans", FoodFacts{132, 8.9}},
	{"beans", FoodFacts{130, 8.5}},
	{"quinoa", FoodFacts{120, 4.4}},
	{"brown rice", FoodFacts{111, 2.6}},
	{"rice", FoodFacts{130, 2.7}},
	{"oats", FoodFacts{389, 16.9}},
	{"oatmeal", FoodFacts{71, 2.5}},
	{"whole wheat bread", FoodFacts{247, 13}},
	{"bread", FoodFacts{265, 9}},
	{"roti", FoodFacts{264, 9}},
	{"chapati", FoodFacts{264, 9}},
	{"pasta", FoodFacts{131, 5}},
	{"sweet potato", FoodFacts{86, 1.6}},
	{"potato", FoodFacts{77, 2}},
	{"banana", FoodFacts{89, 1.1}},
	{"apple", FoodFacts{52, 0.3}},
	{"berries", FoodFacts{50, 0.7}},
	{"orange", FoodFacts{47, 0.9}},
	{"avocado", FoodFacts{160, 2}},
	{"almonds", FoodFacts{579, 21}},
	{"peanut butter", FoodFacts{588, 25}},
	{"peanuts", FoodFacts{567, 26}},
	{"nuts", FoodFacts{600, 18}},
	{"olive oil", FoodFacts{884, 0}},
	{"butter", FoodFacts{717, 0.9}},
	{"ghee", FoodFacts{900, 0}},
	{"spinach", FoodFacts{23, 2.9}},
	{"broccoli", FoodFacts{34, 2.8}},
	{"salad", FoodFacts{20, 1.5}},
	{"vegetables", FoodFacts{40, 2}},
	{"honey", FoodFacts{304, 0.3}},
}

// unitGrams maps a quantity unit to its gram equivalent.
var unitGrams = map[string]float64{
	"g":      1,
	"gram":   1,
	"grams":  1,
	"oz":     28.35,
	"ounce":  28.35,
	"ounces": 28.35,
	"cup":    240,
	"cups":   240,
	"tbsp":   15,
	"tsp":    5,
	"slice":  30,
	"slices": 30,
	"piece":  100,
	"pieces": 100,
	"scoop":  30,
	"scoops": 30,
	"ml":     1,
	"l":      1000,
	"kg":     1000,
}

// Estimate returns the approximate kcal and protein for one meal item.
// Quantity parsing: leading number plus unit, converted to grams; unitless is
// grams; empty or unparseable quantities default to 100 g.
func Estimate(food, quantity string) FoodFacts {
	grams := parseGrams(quantity)
	facts := lookupFood(food)
	scale := grams / 100
	return FoodFacts{
		Kcal:    facts.Kcal * scale,
		Protein: facts.Protein * scale,
	}
}

// MealEstimate is the per-meal breakdown of EstimateMeals.
type MealEstimate struct {
	Name    string
	Kcal    float64
	Protein float64
}

// EstimateMeals sums estimated kcal/protein across a day's meals.
func EstimateMeals(meals []plan.Meal) (totalKcal, totalProtein float64, breakdown []MealEstimate) {
	breakdown = make([]MealEstimate, 0, len(meals))
	for _, meal := range meals {
		var kcal, protein float64
		for _, item := range meal.Items {
			facts := Estimate(item.Food, item.Quantity)
			kcal += facts.Kcal
			protein += facts.Protein
		}
		totalKcal += kcal
		totalProtein += protein
		breakdown = append(breakdown, MealEstimate{Name: meal.Name, Kcal: kcal, Protein: protein})
	}
	return totalKcal, totalProtein, breakdown
}

// lookupFood matches by case-insensitive substring against table keys in
// insertion order.
func lookupFood(name string) FoodFacts {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return fallbackFacts
	}
	for _, entry := range foodTable {
		if strings.Contains(lower, entry.key) {
			return entry.facts
		}
	}
	return fallbackFacts
}

// parseGrams converts a free-form quantity ("150g", "1 cup", "2 scoops",
// "200") to grams.
func parseGrams(quantity string) float64 {
	q := strings.ToLower(strings.TrimSpace(quantity))
	if q == "" {
		return 100
	}

	// Leading number, optionally fractional.
	i := 0
	for i < len(q) && (q[i] >= '0' && q[i] <= '9' || q[i] == '.') {
		i++
	}
	if i == 0 {
		return 100
	}
	n, err := strconv.ParseFloat(q[:i], 64)
	if err != nil || n <= 0 {
		return 100
	}

	unit := strings.TrimSpace(q[i:])
	unit = strings.TrimPrefix(unit, " ")
	if unit == "" {
		return n // unitless is grams
	}
	// First word only: "cup cooked" -> "cup".
	if j := strings.IndexByte(unit, ' '); j > 0 {
		unit = unit[:j]
	}
	if factor, ok := unitGrams[unit]; ok {
		return n * factor
	}
	return n
}
