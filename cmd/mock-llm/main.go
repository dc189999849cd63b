// Package main implements a mock LLM server for local plan-generation runs.
// It serves OpenAI-compatible streaming /chat/completions responses with
// deterministic fixtures, classifying each request by its system prompt so
// every pipeline stage gets a plausible reply. This removes the need for a
// real model endpoint while wiring or load-testing the worker.
//
// Usage:
//
//	mock-llm -port 11434 [-delay 200ms]
//
// Point the worker at it with LLM_ENDPOINT=http://localhost:11434 and any
// provider/model; credentials are ignored.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// classify picks a fixture by the distinctive opening of each stage's system
// prompt.
func classify(system string) string {
	switch {
	case strings.Contains(system, "weekly workout split"):
		return "split"
	case strings.Contains(system, "base nutrition template"):
		return "base_nutrition"
	case strings.Contains(system, "single day's workout"), strings.Contains(system, "recovery coach"):
		return "daily_workout"
	case strings.Contains(system, "adjusting a base nutrition day"):
		return "adjustment"
	case strings.Contains(system, "supplement and recovery schedule"):
		return "supplements"
	case strings.Contains(system, "Report ERRORS ONLY"):
		return "verifier"
	case strings.Contains(system, "blurb"):
		return "reasons"
	case strings.Contains(system, "revising the workout half"):
		return "redo_workout"
	case strings.Contains(system, "revising the nutrition half"):
		return "redo_nutrition"
	default:
		return "reasons"
	}
}

func fixture(stage string) string {
	switch stage {
	case "split":
		split := map[string]any{}
		training := map[string]bool{"monday": true, "tuesday": true, "thursday": true, "friday": true}
		for _, day := range weekdays {
			if training[day] {
				split[day] = map[string]any{
					"rest": false, "focus": []string{"Full Body"}, "intensity": "moderate",
					"primary_muscles": []string{"quads", "chest", "back"},
				}
			} else {
				split[day] = map[string]any{
					"rest": true, "focus": []string{"Rest", "Recovery"}, "intensity": "rest",
				}
			}
		}
		return mustJSON(split)
	case "base_nutrition":
		return mustJSON(map[string]any{
			"calories": 2400, "protein": 160, "carbs": 260, "fats": 75,
			"meals_per_day": 3, "hydration_liters": 2.5,
			"meals": []map[string]any{
				{"name": "Breakfast", "target_calories": 700, "target_protein": 45,
					"items": []map[string]string{{"food": "oats", "quantity": "80g"}, {"food": "greek yogurt", "quantity": "200g"}}},
				{"name": "Lunch", "target_calories": 900, "target_protein": 60,
					"items": []map[string]string{{"food": "chicken breast", "quantity": "180g"}, {"food": "rice", "quantity": "150g"}}},
				{"name": "Dinner", "target_calories": 800, "target_protein": 55,
					"items": []map[string]string{{"food": "salmon", "quantity": "170g"}, {"food": "sweet potato", "quantity": "200g"}}},
			},
		})
	case "daily_workout":
		return mustJSON(map[string]any{
			"focus": []string{"Full Body"},
			"blocks": []map[string]any{
				{"name": "Warm-up", "items": []map[string]any{
					{"exercise": "Dynamic stretching", "sets": 1, "reps": "5 min"}}},
				{"name": "Main", "items": []map[string]any{
					{"exercise": "Goblet squat", "sets": 4, "reps": "8-10", "rir": 2},
					{"exercise": "Push-up", "sets": 3, "reps": "10-12"},
					{"exercise": "One-arm row", "sets": 3, "reps": "10-12"}}},
				{"name": "Cool-down", "items": []map[string]any{
					{"exercise": "Static stretching", "sets": 1, "reps": "5 min"}}},
			},
		})
	case "adjustment":
		return mustJSON(map[string]any{
			"total_kcal": 2400, "protein_g": 160, "meals_per_day": 3, "hydration_l": 2.5,
			"meals": []map[string]any{
				{"name": "Breakfast", "items": []map[string]string{{"food": "oats", "quantity": "80g"}}},
				{"name": "Lunch", "items": []map[string]string{{"food": "chicken breast", "quantity": "180g"}}},
				{"name": "Dinner", "items": []map[string]string{{"food": "salmon", "quantity": "170g"}}},
			},
		})
	case "supplements":
		days := map[string]any{}
		for _, day := range weekdays {
			days[day] = map[string]any{
				"mobility":    []string{"10 min hip opener"},
				"sleep":       []string{"Lights out by 23:00"},
				"supplements": []string{"vitamin D3 with breakfast"},
				"supplementCard": map[string]any{
					"current": []any{},
					"addOns":  []any{},
				},
			}
		}
		return mustJSON(map[string]any{
			"days": days,
			"recommendedAddOns": []map[string]string{
				{"name": "vitamin D3", "dose": "2000 IU", "timing": "with breakfast"},
				{"name": "omega-3", "dose": "1g EPA+DHA", "timing": "with a meal"},
			},
		})
	case "verifier":
		return `{"isValid": true, "errors": [], "calculatedCalories": 2350, "calculatedProtein": 155}`
	case "redo_workout":
		out := map[string]any{}
		for _, day := range weekdays {
			var w map[string]any
			_ = json.Unmarshal([]byte(fixture("daily_workout")), &w)
			out[day] = w
		}
		return mustJSON(out)
	case "redo_nutrition":
		out := map[string]any{}
		for _, day := range weekdays {
			var n map[string]any
			_ = json.Unmarshal([]byte(fixture("adjustment")), &n)
			out[day] = n
		}
		return mustJSON(out)
	default: // reasons
		reasons := map[string]string{}
		for _, day := range weekdays {
			reasons[day] = "Balanced placement of training stress keeps recovery on track this week."
		}
		return mustJSON(reasons)
	}
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

type server struct {
	delay time.Duration
	calls atomic.Int64
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	system := ""
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			break
		}
	}
	stage := classify(system)
	reply := fixture(stage)
	n := s.calls.Add(1)
	log.Printf("call=%d model=%s stage=%s chars=%d", n, req.Model, stage, len(reply))

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	// Stream in chunks the way a real endpoint would.
	const chunkSize = 120
	for i := 0; i < len(reply); i += chunkSize {
		end := i + chunkSize
		if end > len(reply) {
			end = len(reply)
		}
		frame := map[string]any{
			"choices": []map[string]any{
				{"delta": map[string]string{"content": reply[i:end]}},
			},
		}
		fmt.Fprintf(w, "data: %s\n\n", mustJSON(frame))
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func main() {
	port := flag.Int("port", 11434, "listen port")
	delay := flag.Duration("delay", 0, "artificial per-call delay")
	flag.Parse()

	s := &server{delay: *delay}
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", s.handleChat)
	mux.HandleFunc("/v1/chat/completions", s.handleChat)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock-llm listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
