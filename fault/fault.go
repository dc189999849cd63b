// Package fault defines the coded errors that cross component boundaries.
// Codes surface as the token before the first colon in a job's error message,
// which is what the queue records as the failure code.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	ConfigError       = "CONFIG_ERROR"
	AuthError         = "AUTH_ERROR"
	RateLimited       = "RATE_LIMITED"
	QuotaExceeded     = "QUOTA_EXCEEDED"
	AIError           = "AI_ERROR"
	AITimeout         = "AI_TIMEOUT"
	JSONParseError    = "JSON_PARSE_ERROR"
	ValidationFailed  = "VALIDATION_FAILED"
	DBError           = "DB_ERROR"
	GenerationError   = "GENERATION_ERROR"
	WorkoutRedoFailed = "WORKOUT_REDO_FAILED"
	NutritionRedo     = "NUTRITION_REDO_FAILED"
	RedoFailed        = "REDO_FAILED"
	UnexpectedError   = "UNEXPECTED_ERROR"
)

// Error is a coded error. Its message renders as "CODE: detail".
type Error struct {
	Code string
	err  error
}

func (e *Error) Error() string {
	return e.Code + ": " + e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// New creates a coded error from a format string.
func New(code, format string, args ...any) error {
	return &Error{Code: code, err: fmt.Errorf(format, args...)}
}

// Wrap attaches a code to an existing error. If err already carries a code it
// is preserved.
func Wrap(code string, err error) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}
	return &Error{Code: code, err: err}
}

// Code extracts the code from err, falling back to parsing the "CODE: ..."
// prefix of its message, then to UNEXPECTED_ERROR.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		token := strings.TrimSpace(msg[:i])
		if token != "" && !strings.ContainsAny(token, " \t") {
			return token
		}
	}
	return UnexpectedError
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}
