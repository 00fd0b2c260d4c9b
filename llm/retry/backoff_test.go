package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/types"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func transient() error {
	return types.NewUpstreamError("test", "temporary").WithRetryable(true)
}

func TestRetryer_SuccessFirstTry(t *testing.T) {
	r := New(fastPolicy(3), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_RetryThenSuccess(t *testing.T) {
	var retries []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }
	r := New(p, zap.NewNop())

	calls := 0
	v, err := Do(context.Background(), r, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", transient()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestRetryer_Exhausted(t *testing.T) {
	r := New(fastPolicy(1), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return transient()
	})

	assert.Equal(t, 2, calls, "one transient retry")
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
}

func TestRetryer_NonRetryableStopsImmediately(t *testing.T) {
	r := New(fastPolicy(3), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return types.NewError(types.ErrUnauthorized, "bad key")
	})

	assert.Equal(t, 1, calls)
	assert.True(t, types.IsErrorCode(err, types.ErrUnauthorized))
}

func TestRetryer_CustomShouldRetry(t *testing.T) {
	sentinel := errors.New("plain")
	p := fastPolicy(2)
	p.ShouldRetry = func(err error) bool { return errors.Is(err, sentinel) }
	r := New(p, nil)

	calls := 0
	_ = r.Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	assert.Equal(t, 3, calls)
}

func TestRetryer_ContextCancelledDuringBackoff(t *testing.T) {
	p := fastPolicy(5)
	p.InitialDelay = time.Second
	p.MaxDelay = time.Second
	r := New(p, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Do(ctx, func(context.Context) error { return transient() })

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryer_Delay(t *testing.T) {
	r := New(Policy{MaxRetries: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}, nil)

	assert.Equal(t, time.Duration(0), r.Delay(0))
	assert.Equal(t, 100*time.Millisecond, r.Delay(1))
	assert.Equal(t, 200*time.Millisecond, r.Delay(2))
	assert.Equal(t, 300*time.Millisecond, r.Delay(3), "capped at max delay")
}

func TestRetryer_DelayWithJitterStaysInRange(t *testing.T) {
	r := New(Policy{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: true}, nil)
	for i := 0; i < 50; i++ {
		d := r.Delay(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

func TestPolicy_Normalized(t *testing.T) {
	p := Policy{MaxRetries: -1, Multiplier: 0.5}.normalized()
	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 5*time.Second, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.NotNil(t, p.ShouldRetry)

	d := DefaultPolicy()
	assert.Equal(t, 1, d.MaxRetries)
}
