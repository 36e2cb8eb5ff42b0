package retry

import (
	"math/rand"
	"time"
)

// BackoffConfig shapes the pause between attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Jitter scales each delay by a random factor in [0.5, 1.5).
	Jitter bool
}

// DefaultBackoff is used by medium adapters for transient failures.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

// Delay returns the pause after the given failed attempt (1-based). The
// first retry always waits exactly InitialDelay.
func (b BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return b.InitialDelay
	}
	growth := b.Multiplier
	if growth < 1 {
		growth = 1
	}
	delay := float64(b.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= growth
		if b.MaxDelay > 0 && delay >= float64(b.MaxDelay) {
			delay = float64(b.MaxDelay)
			break
		}
	}
	if b.Jitter {
		scale := 0.5
		if rng != nil {
			scale += rng.Float64()
		}
		delay *= scale
	}
	return time.Duration(delay)
}
