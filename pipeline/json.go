package pipeline

import (
	"github.com/fitstack/planworker/fault"
	"github.com/fitstack/planworker/jsonrepair"
)

// jsonUnmarshal decodes a model reply through the repair cascade, coding
// failures as JSON_PARSE_ERROR.
func jsonUnmarshal(text string, v any) error {
	if err := jsonrepair.Unmarshal(text, v); err != nil {
		return fault.Wrap(fault.JSONParseError, err)
	}
	return nil
}
