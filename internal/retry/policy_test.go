package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyOp fails with err for the first failures invocations, then succeeds.
type flakyOp struct {
	calls    int
	failures int
	err      error
}

func (f *flakyOp) run(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

var transientErr = &pgconn.PgError{Code: "08006", Message: "connection failure"}

func zeroDelayPolicy(opts ...Option) *Policy {
	return New(append([]Option{WithBackoff(ConstantBackoff(0))}, opts...)...)
}

func TestPolicy_SucceedsFirstTime(t *testing.T) {
	op := &flakyOp{}

	err := zeroDelayPolicy().Execute(context.Background(), op.run)

	require.NoError(t, err)
	assert.Equal(t, 1, op.calls)
}

func TestPolicy_RecoversAfterTwoTransientFailures(t *testing.T) {
	op := &flakyOp{failures: 2, err: transientErr}

	var delays []time.Duration
	policy := zeroDelayPolicy(WithOnRetry(func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
		assert.ErrorIs(t, err, transientErr)
	}))

	err := policy.Execute(context.Background(), op.run)

	require.NoError(t, err)
	assert.Equal(t, 3, op.calls)
	assert.Len(t, delays, 2, "exactly two backoff waits before the successful attempt")
}

// recordingBackoff remembers which attempts asked for a delay and never waits.
type recordingBackoff struct {
	attempts []int
}

func (r *recordingBackoff) NextDelay(attempt int) time.Duration {
	r.attempts = append(r.attempts, attempt)
	return 0
}

func TestPolicy_BackoffAttemptsAreOneBased(t *testing.T) {
	op := &flakyOp{failures: 100, err: transientErr}
	backoff := &recordingBackoff{}

	_ = New(WithBackoff(backoff)).Execute(context.Background(), op.run)

	require.Equal(t, []int{1, 2, 3}, backoff.attempts)

	schedule := NewExponentialBackoff(WithMaxJitter(0))
	var delays []time.Duration
	for _, attempt := range backoff.attempts {
		delays = append(delays, schedule.NextDelay(attempt))
	}
	assert.Equal(t, []time.Duration{400 * time.Millisecond, 800 * time.Millisecond, 1600 * time.Millisecond}, delays)
}

func TestPolicy_FatalErrorIsNotRetried(t *testing.T) {
	fatal := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	op := &flakyOp{failures: 10, err: fatal}

	err := zeroDelayPolicy().Execute(context.Background(), op.run)

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, op.calls)
}

func TestPolicy_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	op := &flakyOp{failures: 100, err: transientErr}

	err := zeroDelayPolicy().Execute(context.Background(), op.run)

	assert.ErrorIs(t, err, transientErr)
	assert.Equal(t, DefaultMaxRetries+1, op.calls, "three retries means four attempts")
}

func TestPolicy_TimeoutIsTransient(t *testing.T) {
	op := &flakyOp{failures: 1, err: context.DeadlineExceeded}

	err := zeroDelayPolicy().Execute(context.Background(), op.run)

	require.NoError(t, err)
	assert.Equal(t, 2, op.calls)
}

func TestPolicy_CancellationIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := &flakyOp{failures: 10, err: transientErr}
	err := zeroDelayPolicy().Execute(ctx, op.run)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, op.calls)
}

func TestPolicy_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	op := &flakyOp{failures: 10, err: transientErr}
	policy := New(
		WithBackoff(ConstantBackoff(time.Hour)),
		WithOnRetry(func(int, error, time.Duration) { cancel() }),
	)

	err := policy.Execute(ctx, op.run)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, op.calls)
}

func TestNoRetry_RunsOnce(t *testing.T) {
	op := &flakyOp{failures: 10, err: transientErr}

	err := NoRetry().Execute(context.Background(), op.run)

	assert.ErrorIs(t, err, transientErr)
	assert.Equal(t, 1, op.calls)
	assert.Zero(t, NoRetry().MaxRetries())
}

func TestDo_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), zeroDelayPolicy(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, transientErr
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
}

func TestDo_KeepsZeroValueOnFailure(t *testing.T) {
	boom := errors.New("boom")
	got, err := Do(context.Background(), zeroDelayPolicy(), func(context.Context) (string, error) {
		return "partial", boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, got)
}
