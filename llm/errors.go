package llm

import "github.com/fitstack/planworker/fault"

// Error classification for retry decisions. Auth and quota failures will not
// improve on retry; rate limits and timeouts might.

// IsFatal returns true if the error should not be retried.
func IsFatal(err error) bool {
	switch fault.Code(err) {
	case fault.AuthError, fault.QuotaExceeded, fault.ConfigError:
		return true
	}
	return false
}

// IsTransient returns true if the error may succeed on retry.
func IsTransient(err error) bool {
	switch fault.Code(err) {
	case fault.RateLimited, fault.AITimeout, fault.AIError:
		return true
	}
	return false
}
