package retry

import (
	"context"
	"time"
)

// Policy runs an operation and retries it while its error is transient.
//
// A Policy is immutable once built and safe for concurrent use.
type Policy struct {
	classifier ErrorClassifier
	backoff    Backoff
	maxRetries int
	onRetry    func(attempt int, err error, delay time.Duration)
}

// Option configures a Policy.
type Option func(*Policy)

// WithClassifier replaces the PostgreSQL classifier.
func WithClassifier(c ErrorClassifier) Option {
	return func(p *Policy) {
		p.classifier = c
	}
}

// WithBackoff replaces the exponential backoff.
func WithBackoff(b Backoff) Option {
	return func(p *Policy) {
		p.backoff = b
	}
}

// WithMaxRetries sets how many retries follow the first attempt.
// Zero disables retrying.
func WithMaxRetries(n int) Option {
	return func(p *Policy) {
		if n < 0 {
			n = 0
		}
		p.maxRetries = n
	}
}

// WithOnRetry registers a hook called before each wait. attempt is
// one-based: 1 is the first retry.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *Policy) {
		p.onRetry = fn
	}
}

// New builds a Policy with the PostgreSQL classifier, exponential backoff
// and DefaultMaxRetries, then applies opts.
func New(opts ...Option) *Policy {
	p := &Policy{
		classifier: NewPostgresClassifier(),
		backoff:    NewExponentialBackoff(),
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// NoRetry returns a policy that runs each operation exactly once.
func NoRetry() *Policy {
	return New(WithMaxRetries(0), WithBackoff(ConstantBackoff(0)))
}

// MaxRetries reports the configured retry budget.
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// Execute runs op until it succeeds, fails fatally, the retry budget is
// spent or ctx is done. The last error is returned as is.
func (p *Policy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)

	for attempt := 1; err != nil && attempt <= p.maxRetries; attempt++ {
		if !p.classifier.IsTransient(err) {
			return err
		}

		// A cancelled caller gets its own error back, never another attempt.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := p.backoff.NextDelay(attempt)
		if p.onRetry != nil {
			p.onRetry(attempt, err, delay)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = op(ctx)
	}

	return err
}

// Do is Execute for operations that produce a value.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
