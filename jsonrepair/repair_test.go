package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/fitstack/planworker/fault"
)

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"goal": "muscle_gain"}`,
			wantKey: "goal",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"goal\": \"muscle_gain\"}\n```",
			wantKey: "goal",
		},
		{
			name:    "code block with trailing prose",
			input:   "```json\n{\"goal\": \"muscle_gain\"}\n```\n\nHere is your plan!",
			wantKey: "goal",
		},
		{
			name:    "unclosed code fence",
			input:   "```json\n{\"goal\": \"muscle_gain\"}",
			wantKey: "goal",
		},
		{
			name:    "prose before and after",
			input:   "Sure! Here is the JSON:\n{\"monday\": {\"rest\": false}}\nLet me know if you need changes.",
			wantKey: "monday",
		},
		{
			name:    "single-quoted strings",
			input:   `{'goal': 'muscle_gain'}`,
			wantKey: "goal",
		},
		{
			name:    "bare keys",
			input:   `{goal: "muscle_gain", days: 4}`,
			wantKey: "goal",
		},
		{
			name:    "trailing comma",
			input:   `{"meals": ["oats", "rice",],}`,
			wantKey: "meals",
		},
		{
			name:    "double commas",
			input:   `{"a": 1,, "b": 2}`,
			wantKey: "a",
		},
		{
			name:    "dangling ellipsis",
			input:   "{\"meals\": [\"oats\", \"rice\", ...]}",
			wantKey: "meals",
		},
		{
			name:    "missing comma between string values",
			input:   "{\"a\": \"one\"\n\"b\": \"two\"}",
			wantKey: "a",
		},
		{
			name:    "missing comma after number",
			input:   "{\"kcal\": 2450\n\"protein\": 176}",
			wantKey: "kcal",
		},
		{
			name:    "missing comma after closing brace",
			input:   "{\"monday\": {\"rest\": true}\n\"tuesday\": {\"rest\": false}}",
			wantKey: "monday",
		},
		{
			name:    "raw newline inside string",
			input:   "{\"note\": \"line one\nline two\"}",
			wantKey: "note",
		},
		{
			name:    "truncated mid string",
			input:   `{"monday": {"focus": ["Chest", "Tri`,
			wantKey: "monday",
		},
		{
			name:    "truncated after key",
			input:   `{"monday": {"rest": false}, "tuesday":`,
			wantKey: "monday",
		},
		{
			name:    "truncated mid array",
			input:   `{"meals": [{"name": "Breakfast", "items": [{"food": "oats",`,
			wantKey: "meals",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "I'm sorry, I can't help with that.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]any
			err := Unmarshal(tt.input, &out)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", out)
				}
				if fault.Code(err) != fault.JSONParseError {
					t.Errorf("expected JSON_PARSE_ERROR, got %s", fault.Code(err))
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := out[tt.wantKey]; !ok {
				t.Errorf("key %q missing from result %v", tt.wantKey, out)
			}
		})
	}
}

// Each repair stage must leave already-valid JSON parseable: the cascade
// relies on being able to over-apply later stages without corrupting input an
// earlier stage already fixed.
func TestStagesPreserveValidJSON(t *testing.T) {
	valid := `{"monday": {"rest": false, "focus": ["Chest"], "note": "8-10 reps"}, "kcal": 2450.5, "ok": true, "none": null}`

	stages := []struct {
		name string
		fn   func(string) string
	}{
		{"StripFences", StripFences},
		{"ExtractObject", ExtractObject},
		{"LexicalFix", LexicalFix},
		{"StructuralFix", StructuralFix},
		{"RecoverTruncation", RecoverTruncation},
	}

	text := valid
	for _, stage := range stages {
		text = stage.fn(text)
		var out map[string]any
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			t.Fatalf("%s broke valid JSON: %v\noutput: %s", stage.name, err, text)
		}
	}
}

func TestExtractObjectPicksLargestRegion(t *testing.T) {
	input := `First: {"a": 1}. The real payload: {"monday": {"rest": false}, "tuesday": {"rest": true}}.`
	got := ExtractObject(input)

	var out map[string]any
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("extracted region does not parse: %v", err)
	}
	if _, ok := out["monday"]; !ok {
		t.Errorf("expected the larger object, got %s", got)
	}
}

func TestRecoverTruncationBalancesNesting(t *testing.T) {
	input := `{"days": {"monday": {"meals": [{"name": "Breakfast"`
	got := RecoverTruncation(input)

	var out map[string]any
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("recovered text does not parse: %v\noutput: %s", err, got)
	}
}

func TestParseIntoTypedStruct(t *testing.T) {
	type splitDay struct {
		Rest      bool     `json:"rest"`
		Focus     []string `json:"focus"`
		Intensity string   `json:"intensity"`
	}

	input := "```json\n{\"monday\": {rest: false, 'focus': [\"Chest\", \"Triceps\"], \"intensity\": \"high\",}}\n```"
	var out map[string]splitDay
	if err := Unmarshal(input, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	day, ok := out["monday"]
	if !ok {
		t.Fatal("monday missing")
	}
	if day.Rest || len(day.Focus) != 2 || day.Intensity != "high" {
		t.Errorf("unexpected day: %+v", day)
	}
}
