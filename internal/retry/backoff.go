package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes how long to wait before a retry.
// attempt is one-based: 1 is the wait before the first retry.
type Backoff interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff waits base * multiplier^attempt plus a random jitter
// in [0, maxJitter).
type ExponentialBackoff struct {
	base       time.Duration
	multiplier float64
	maxDelay   time.Duration
	maxJitter  time.Duration

	// jitterFunc returns values in [0, 1). Defaults to rand.Float64.
	jitterFunc func() float64
}

// BackoffOption configures an ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

// WithBaseDelay sets the base the exponent scales. The first retry waits
// base * multiplier.
func WithBaseDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.base = d
	}
}

// WithMultiplier sets the growth factor between attempts.
func WithMultiplier(m float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.multiplier = m
	}
}

// WithMaxDelay caps the exponential part of the delay. Zero means no cap.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.maxDelay = d
	}
}

// WithMaxJitter bounds the random part of the delay. Zero disables jitter.
func WithMaxJitter(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.maxJitter = d
	}
}

// WithJitterFunc replaces the random source, mostly for tests.
func WithJitterFunc(f func() float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitterFunc = f
	}
}

// NewExponentialBackoff returns a backoff with the package defaults
// (200ms base, doubling, up to 100ms jitter) overridden by opts. With the
// defaults successive retries wait 400ms, 800ms and 1.6s plus jitter.
func NewExponentialBackoff(opts ...BackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		base:       DefaultBaseDelay,
		multiplier: 2,
		maxJitter:  DefaultMaxJitter,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NextDelay implements Backoff.
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(b.base) * math.Pow(b.multiplier, float64(attempt)))
	if b.maxDelay > 0 && delay > b.maxDelay {
		delay = b.maxDelay
	}

	if b.maxJitter > 0 {
		jitterFunc := b.jitterFunc
		if jitterFunc == nil {
			jitterFunc = rand.Float64
		}
		delay += time.Duration(jitterFunc() * float64(b.maxJitter))
	}

	return delay
}

// ConstantBackoff waits the same duration before every retry.
type ConstantBackoff time.Duration

// NextDelay implements Backoff.
func (c ConstantBackoff) NextDelay(int) time.Duration {
	return time.Duration(c)
}
