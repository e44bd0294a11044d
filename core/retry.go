package core

import (
	"math"
	"math/rand"
	"time"
)

const jitterFraction = 0.2

// NextDelay computes the backoff before attempt+1, or false once the attempt
// budget is spent. attempt is 1-based: NextDelay(1, ...) is the delay after
// the first failed attempt.
func NextDelay(attempt int, config RetryConfig) (time.Duration, bool) {
	return NextDelayWithRand(attempt, config, nil)
}

// NextDelayWithRand is NextDelay with an injectable random source so jitter
// stays reproducible under a fixed seed.
func NextDelayWithRand(attempt int, config RetryConfig, rng *rand.Rand) (time.Duration, bool) {
	if attempt < 1 {
		attempt = 1
	}
	if attempt >= config.MaxAttempts {
		return 0, false
	}

	base := float64(config.BaseDelay)
	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	next := time.Duration(base * math.Pow(multiplier, float64(attempt-1)))
	if next < 0 || next > config.MaxDelay {
		next = config.MaxDelay
	}

	if config.Jitter {
		next = applyJitter(next, rng)
		if next > config.MaxDelay {
			next = config.MaxDelay
		}
	}
	if next < 0 {
		next = 0
	}
	return next, true
}

// applyJitter spreads the delay uniformly across ±20% of its value.
func applyJitter(delay time.Duration, rng *rand.Rand) time.Duration {
	if delay <= 0 {
		return delay
	}
	var unit float64
	if rng != nil {
		unit = rng.Float64()
	} else {
		unit = rand.Float64()
	}
	factor := 1 - jitterFraction + 2*jitterFraction*unit
	return time.Duration(float64(delay) * factor)
}
