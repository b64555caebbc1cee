package stream

import (
	"math"
	"time"

	"github.com/rileyhilliard/trainwatch/internal/errors"
)

// Policy is the bounded exponential backoff used between reconnect attempts.
type Policy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxRetries   int
}

// DefaultPolicy returns 1s initial delay, x2 growth, 30s cap, 5 retries.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: 1 * time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
		MaxRetries:   5,
	}
}

// Delay returns min(InitialDelay * Multiplier^attempt, MaxDelay).
// Negative attempts are treated as zero.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt has reached the retry ceiling.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxRetries
}

// Schedule lists the delays of every retry the policy allows, in order.
func (p Policy) Schedule() []time.Duration {
	if p.MaxRetries <= 0 {
		return nil
	}
	out := make([]time.Duration, p.MaxRetries)
	for i := range out {
		out[i] = p.Delay(i)
	}
	return out
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	switch {
	case p.InitialDelay <= 0:
		return errors.New(errors.ErrConfig,
			"reconnect.initial_delay must be positive",
			"Use a duration like 1s or 500ms")
	case p.Multiplier < 1:
		return errors.New(errors.ErrConfig,
			"reconnect.multiplier must be at least 1",
			"Use 2 for classic exponential backoff")
	case p.MaxDelay < p.InitialDelay:
		return errors.New(errors.ErrConfig,
			"reconnect.max_delay must not be shorter than reconnect.initial_delay",
			"Raise max_delay (default 30s)")
	case p.MaxRetries < 0:
		return errors.New(errors.ErrConfig,
			"reconnect.max_retries must not be negative",
			"Use 0 to disable reconnects")
	}
	return nil
}
