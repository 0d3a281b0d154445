// Package retry re-executes database work that failed for a transient
// reason (dropped connection, timeout, serialization failure) using
// exponential backoff with jitter.
//
// A Policy is an explicit value handed to whoever needs it. Production code
// builds one with New and the defaults below; tests pass NoRetry() or a
// policy with a zero backoff so nothing sleeps.
//
//	policy := retry.New(retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
//	    logger.Warn().Int("attempt", attempt).Dur("delay", delay).Err(err).Msg("retrying")
//	}))
//
//	err := policy.Execute(ctx, func(ctx context.Context) error {
//	    return doWork(ctx)
//	})
package retry

import "time"

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = 200 * time.Millisecond

	// DefaultMaxJitter bounds the random delay added on every retry.
	DefaultMaxJitter = 100 * time.Millisecond
)
