package config

import "strings"

// RetryBackoffMode selects how retry delays grow between attempts.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff maps user input onto a known mode, case and
// surrounding-whitespace insensitive. Unknown input yields the empty mode.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	mode := RetryBackoffMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
		return mode
	}
	return ""
}
