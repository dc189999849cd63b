// Package jsonrepair extracts and repairs JSON objects from LLM replies.
// The repair stack is strictly ordered by invasiveness: fence stripping,
// object extraction, lexical fixes, structural fixes, truncation recovery.
// Each stage is an independent transform; Unmarshal composes them and stops
// at the first stage whose output parses.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/fitstack/planworker/fault"
)

var (
	// fencePattern matches JSON inside markdown code blocks: ```json { ... } ```
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")
	// ellipsisPattern matches dangling ellipses the model emits mid-structure.
	ellipsisPattern = regexp.MustCompile(`,?\s*\.\.\.+`)
	// singleQuotedPattern matches single-quoted keys or values.
	singleQuotedPattern = regexp.MustCompile(`'([^'\\]*)'`)
	// bareKeyPattern matches unquoted object keys.
	bareKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)(\s*):`)
	// doubleCommaPattern matches consecutive commas.
	doubleCommaPattern = regexp.MustCompile(`,\s*,`)
	// emptyValuePattern matches a key with no value before a closer or comma.
	emptyValuePattern = regexp.MustCompile(`:\s*([,}\]])`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

	// Missing-comma patterns: a closed value followed by the next key with
	// only whitespace between. The string/string case requires a newline so
	// whitespace inside prose is not mistaken for a boundary.
	missingCommaAfterBrace  = regexp.MustCompile(`([}\]])(\s+)"`)
	missingCommaAfterString = regexp.MustCompile(`"(\s*\n\s*)"`)
	missingCommaAfterNumber = regexp.MustCompile(`([0-9])(\s*\n\s*)"`)
	missingCommaAfterWord   = regexp.MustCompile(`\b(true|false|null)(\s*\n\s*)"`)

	// bareValuePattern matches an unquoted word value.
	bareValuePattern = regexp.MustCompile(`:(\s*)([A-Za-z][A-Za-z0-9 _\-/]*?)(\s*)([,}\]])`)

	// trailingKeyTail matches a truncated trailing key or key:value fragment.
	trailingKeyTail = regexp.MustCompile(`,\s*"[^"\n]*"?\s*(:\s*)?$`)
)

// StripFences removes Markdown code fences, returning the fenced content when
// present and the input otherwise.
func StripFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	// A fence that was never closed (truncated reply).
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}

// ExtractObject returns the largest brace-balanced region of text, falling
// back to the longest suffix starting at the first '{'.
func ExtractObject(text string) string {
	best := ""
	inString, escaped := false, false
	depth := 0
	start := -1
	firstBrace := -1

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			if firstBrace < 0 {
				firstBrace = i
			}
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := text[start : i+1]
					if len(candidate) > len(best) {
						best = candidate
					}
				}
			}
		}
	}

	if best != "" {
		return best
	}
	if firstBrace >= 0 {
		return text[firstBrace:]
	}
	return ""
}

// LexicalFix applies character-level repairs: control characters and ellipses
// stripped, single quotes converted, bare keys quoted, double commas
// collapsed, empty values plugged with null, trailing commas removed.
func LexicalFix(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
			continue
		}
		if r == '…' {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()

	s = ellipsisPattern.ReplaceAllString(s, "")
	s = singleQuotedPattern.ReplaceAllString(s, `"$1"`)
	s = bareKeyPattern.ReplaceAllString(s, `$1"$2"$3:`)
	for doubleCommaPattern.MatchString(s) {
		s = doubleCommaPattern.ReplaceAllString(s, ",")
	}
	s = emptyValuePattern.ReplaceAllString(s, ": null$1")
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	return s
}

// StructuralFix inserts missing commas between adjacent values, escapes raw
// newlines inside strings, and quotes bare word values.
func StructuralFix(text string) string {
	s := escapeNewlinesInStrings(text)

	s = missingCommaAfterBrace.ReplaceAllString(s, `$1,$2"`)
	s = missingCommaAfterString.ReplaceAllString(s, `",$1"`)
	s = missingCommaAfterNumber.ReplaceAllString(s, `$1,$2"`)
	s = missingCommaAfterWord.ReplaceAllString(s, `$1,$2"`)

	s = bareValuePattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := bareValuePattern.FindStringSubmatch(m)
		word := sub[2]
		switch strings.TrimSpace(word) {
		case "true", "false", "null":
			return m
		}
		return ":" + sub[1] + `"` + word + `"` + sub[3] + sub[4]
	})

	return s
}

// escapeNewlinesInStrings replaces raw newlines inside string literals with
// the \n escape. A newline followed by a line that starts with structure
// (quote, brace, bracket) is left alone: it is more likely a missing-comma
// boundary than embedded prose.
func escapeNewlinesInStrings(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			b.WriteByte(ch)
			continue
		}
		switch {
		case inString && ch == '\\':
			escaped = true
			b.WriteByte(ch)
		case ch == '"':
			inString = !inString
			b.WriteByte(ch)
		case inString && ch == '\n':
			next := strings.TrimLeft(text[i+1:], " \t")
			if len(next) > 0 && (next[0] == '"' || next[0] == '}' || next[0] == ']' || next[0] == '{') {
				inString = false
				b.WriteByte('"')
				b.WriteByte('\n')
			} else {
				b.WriteString(`\n`)
			}
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// RecoverTruncation repairs a JSON object cut off mid-stream: trailing
// incomplete fragments are dropped, an unterminated string is closed, and
// unclosed brackets and braces are balanced in nesting order.
func RecoverTruncation(text string) string {
	s := strings.TrimRight(text, " \t\r\n")
	s = trailingKeyTail.ReplaceAllString(s, "")
	s = strings.TrimRight(s, " \t\r\n")

	inString, escaped := false, false
	var stack []byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		s += `"`
	}

	s = strings.TrimRight(s, " \t\r\n")
	for {
		if strings.HasSuffix(s, ",") {
			s = strings.TrimRight(strings.TrimSuffix(s, ","), " \t\r\n")
			continue
		}
		if strings.HasSuffix(s, ":") {
			s += " null"
		}
		break
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}

	// Closing brackets may have landed right after a trailing comma.
	for pass := 0; pass < 3 && trailingCommaPattern.MatchString(s); pass++ {
		s = trailingCommaPattern.ReplaceAllString(s, "$1")
	}

	return s
}

// Unmarshal parses a possibly malformed LLM reply into v, applying repair
// stages of increasing invasiveness until one parses.
func Unmarshal(text string, v any) error {
	extracted := ExtractObject(StripFences(text))
	if extracted == "" {
		return fault.New(fault.JSONParseError, "no JSON object found in response (%d chars)", len(text))
	}

	lexical := LexicalFix(extracted)
	structural := StructuralFix(lexical)
	recovered := RecoverTruncation(structural)

	var lastErr error
	for _, candidate := range []string{extracted, lexical, structural, recovered} {
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fault.Wrap(fault.JSONParseError, lastErr)
}

// Parse is Unmarshal into a generic map.
func Parse(text string) (map[string]any, error) {
	var out map[string]any
	if err := Unmarshal(text, &out); err != nil {
		return nil, err
	}
	return out, nil
}
