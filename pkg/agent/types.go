package agent

import (
	"errors"
	"net"
	"strings"
	"time"
)

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AuthProfile represents authentication credentials for LLM providers
type AuthProfile struct {
	ID            string `json:"id" mapstructure:"id"`
	Provider      string `json:"provider" mapstructure:"provider"` // "anthropic", "openai", "gemini"
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	Priority      int    `json:"priority" mapstructure:"priority"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty" mapstructure:"-"`
	FailureCount  int    `json:"failure_count" mapstructure:"-"`
}

// Options controls a Runner.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	// MaxTurns bounds the number of model calls in one run.
	MaxTurns int
	// TopK is the number of long-term hits included when memory is attached.
	TopK int
	// ParallelSteps dispatches every step of a plan at once.
	ParallelSteps bool
	// CorrectivePlans asks the model once per run to retry a reply that held no plan.
	CorrectivePlans bool
}

// DefaultOptions returns default runner options
func DefaultOptions() Options {
	return Options{
		MaxTokens:     1024,
		MaxTurns:      5,
		TopK:          3,
		ParallelSteps: true,
	}
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"econnreset", "etimedout", "connection reset",
		"429", "rate limit",
		"500", "502", "503", "504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// backoffDelay returns 1s, 2s, 4s, ... for attempt 0, 1, 2, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}
