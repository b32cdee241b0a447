package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	attempts, err := Do(context.Background(), fastRetry(2), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestDo_OneRetryOnTransient(t *testing.T) {
	var calls int
	attempts, err := Do(context.Background(), fastRetry(2), func(_ context.Context) error {
		calls++
		if calls == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, attempts)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	attempts, err := Do(context.Background(), fastRetry(2), func(_ context.Context) error {
		calls++
		return kindErr{retry: true}
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, attempts)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	attempts, err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return errors.New("http 404")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestDo_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := Do(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second}, func(_ context.Context) error {
		calls++
		cancel()
		return context.DeadlineExceeded
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var seen []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { seen = append(seen, attempt) }

	_, err := Do(context.Background(), cfg, func(_ context.Context) error {
		return context.DeadlineExceeded
	})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	val, attempts, err := DoVal(context.Background(), fastRetry(2), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", kindErr{retry: true}
		}
		return "<html>", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "<html>", val)
	assert.Equal(t, 2, attempts)
}

func TestComputeBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, computeBackoff(5, cfg))

	cfg.JitterFraction = 0.5
	for range 20 {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestFromRender(t *testing.T) {
	rc := FromRender(config.RenderConfig{Retries: 1, BackoffMillis: 250, MaxBackoffMillis: 1000})
	assert.Equal(t, 2, rc.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, time.Second, rc.MaxBackoff)

	rc = FromRender(config.RenderConfig{Retries: 0})
	assert.Equal(t, 1, rc.MaxAttempts)
}
