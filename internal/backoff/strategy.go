package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Calculate returns the delay for the given zero-based attempt. base is the
	// delay for attempt 0, multiplier the growth factor, jitter the width of the
	// uniform random window added on top, and maxDelay the hard cap.
	Calculate(attempt int, base, maxDelay time.Duration, multiplier float64, jitter time.Duration) time.Duration
}

// ExponentialJitterStrategy grows the delay as base*multiplier^attempt and adds
// a uniformly random amount in [0, jitter). The result never exceeds maxDelay.
type ExponentialJitterStrategy struct{}

// Calculate implements Strategy.
func (s ExponentialJitterStrategy) Calculate(attempt int, base, maxDelay time.Duration, multiplier float64, jitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(base) * pow(multiplier, attempt))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}

	if jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// DecorrelatedJitterStrategy picks a delay uniformly between base and
// base*3^attempt, capped at maxDelay. It ignores multiplier and jitter.
type DecorrelatedJitterStrategy struct{}

// Calculate implements Strategy.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, base, maxDelay time.Duration, multiplier float64, jitter time.Duration) time.Duration {
	if attempt <= 0 {
		if base > maxDelay {
			return maxDelay
		}
		return base
	}

	if attempt > 10 {
		attempt = 10
	}

	lower := float64(base)
	upper := lower * pow(3.0, attempt)

	capDelay := float64(maxDelay)
	if upper > capDelay || upper < 0 {
		upper = capDelay
	}
	if upper < lower {
		upper = lower
	}

	result := time.Duration(lower + rand.Float64()*(upper-lower))
	if result < 0 || result > maxDelay {
		result = maxDelay
	}
	return result
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

// Pow returns base^exponent for a non-negative integer exponent.
func Pow(base float64, exponent int) float64 {
	return pow(base, exponent)
}
