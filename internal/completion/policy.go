package completion

import (
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 30 * time.Second
)

// Policy fixes the retry ladder for one client.
type Policy struct {
	PrimaryModel  string
	FallbackModel string

	// MaxAttempts is the attempt budget per model.
	MaxAttempts int

	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter is the random fraction in [0,1) added on top of each delay.
	Jitter float64
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	return p
}

// Delay returns the backoff after the given failed attempt, 1-based:
// BaseDelay doubled per failure, capped at MaxDelay, plus jitter.
func (p Policy) Delay(failedAttempt int) time.Duration {
	if failedAttempt < 1 {
		failedAttempt = 1
	}
	delay := p.MaxDelay
	if shift := uint(failedAttempt - 1); shift < 32 {
		delay = p.BaseDelay << shift
		if delay <= 0 || delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	if p.Jitter > 0 {
		delay += time.Duration(rand.Float64() * p.Jitter * float64(delay))
	}
	return delay
}
