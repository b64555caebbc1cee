package stream

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/rileyhilliard/trainwatch/internal/errors"
)

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{5000, 30 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicySchedule(t *testing.T) {
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, DefaultPolicy().Schedule())

	p := DefaultPolicy()
	p.MaxRetries = 0
	assert.Nil(t, p.Schedule())
}

func TestPolicyExhausted(t *testing.T) {
	p := DefaultPolicy()
	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(4))
	assert.True(t, p.Exhausted(5))
	assert.True(t, p.Exhausted(6))
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
		valid  bool
	}{
		{"default", func(*Policy) {}, true},
		{"zero retries", func(p *Policy) { p.MaxRetries = 0 }, true},
		{"zero initial", func(p *Policy) { p.InitialDelay = 0 }, false},
		{"shrinking multiplier", func(p *Policy) { p.Multiplier = 0.5 }, false},
		{"max below initial", func(p *Policy) { p.MaxDelay = 500 * time.Millisecond }, false},
		{"negative retries", func(p *Policy) { p.MaxRetries = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestPolicyDelayProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("delay never exceeds the cap", prop.ForAll(
		func(attempt int) bool {
			return DefaultPolicy().Delay(attempt) <= 30*time.Second
		},
		gen.IntRange(-10, 10000),
	))

	properties.Property("delay never drops below the initial delay", prop.ForAll(
		func(attempt int) bool {
			return DefaultPolicy().Delay(attempt) >= time.Second
		},
		gen.IntRange(-10, 10000),
	))

	properties.Property("delay is non-decreasing in attempt", prop.ForAll(
		func(attempt int) bool {
			p := DefaultPolicy()
			return p.Delay(attempt) <= p.Delay(attempt+1)
		},
		gen.IntRange(0, 10000),
	))

	properties.Property("schedule length equals max retries", prop.ForAll(
		func(max int) bool {
			p := DefaultPolicy()
			p.MaxRetries = max
			return len(p.Schedule()) == max
		},
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
