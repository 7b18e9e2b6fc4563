package workflow

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds automatic retries of retriable verification failures
type RetryPolicy struct {
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// DefaultRetryPolicy returns the default verification retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// NoRetry disables automatic retries
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// Backoff returns the delay before retry number attempt (0-based):
// InitialDelay * Multiplier^attempt with ±10% jitter, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	backoff := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt))
	backoff *= 0.9 + 0.2*rand.Float64()

	if p.MaxDelay > 0 && backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	return time.Duration(backoff)
}

// wait sleeps for the backoff of attempt or until ctx ends
func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	d := p.Backoff(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
