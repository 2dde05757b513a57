package backoff

import (
	"time"
)

// Calculator binds a Strategy to a fixed cap, multiplier and jitter window so
// callers only supply the attempt number and the per-call base delay.
type Calculator struct {
	strategy   Strategy
	maxDelay   time.Duration
	multiplier float64
	jitter     time.Duration
}

// NewCalculator creates a calculator for the given strategy and parameters.
func NewCalculator(strategy Strategy, maxDelay time.Duration, multiplier float64, jitter time.Duration) *Calculator {
	if strategy == nil {
		strategy = ExponentialJitterStrategy{}
	}
	return &Calculator{
		strategy:   strategy,
		maxDelay:   maxDelay,
		multiplier: multiplier,
		jitter:     jitter,
	}
}

// Delay returns the delay before retry number attempt+1.
func (c *Calculator) Delay(attempt int, base time.Duration) time.Duration {
	return c.strategy.Calculate(attempt, base, c.maxDelay, c.multiplier, c.jitter)
}

// Strategy returns the strategy in use.
func (c *Calculator) Strategy() Strategy {
	return c.strategy
}

// MaxDelay returns the cap applied to every delay.
func (c *Calculator) MaxDelay() time.Duration {
	return c.maxDelay
}
