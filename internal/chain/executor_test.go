package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
)

func testPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, FallbackSwitch: true}
}

func TestExecuteSwitchesToFallbackOnFirstRateLimit(t *testing.T) {
	exec := NewExecutor(NewPool(), "http://primary", "http://fallback", testPolicy())

	var urls []string
	err := exec.Execute(context.Background(), func(_ context.Context, h *Handle) error {
		urls = append(urls, h.URL)
		if h.URL == "http://primary" {
			return &HTTPError{Status: 429, Body: "too many requests"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"http://primary", "http://fallback"}, urls)
}

func TestExecuteSwitchesAtMostOnce(t *testing.T) {
	exec := NewExecutor(NewPool(), "http://primary", "http://fallback", testPolicy())

	var urls []string
	err := exec.Execute(context.Background(), func(_ context.Context, h *Handle) error {
		urls = append(urls, h.URL)
		return &HTTPError{Status: 429, Body: "too many requests"}
	})

	assert.Equal(t, []string{"http://primary", "http://fallback", "http://fallback"}, urls)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CatRateLimited, appErr.Category)
	assert.Equal(t, RateLimitRetryAfter, appErr.RetryAfter)
}

func TestExecuteNoSwitchWhenRateLimitArrivesLate(t *testing.T) {
	exec := NewExecutor(NewPool(), "http://primary", "http://fallback", testPolicy())

	var urls []string
	attempt := 0
	err := exec.Execute(context.Background(), func(_ context.Context, h *Handle) error {
		urls = append(urls, h.URL)
		attempt++
		if attempt == 1 {
			return errors.New("connection reset")
		}
		return &HTTPError{Status: 429, Body: "too many requests"}
	})

	// The fallback gate only opens on the very first attempt.
	assert.Equal(t, []string{"http://primary", "http://primary", "http://primary"}, urls)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CatRateLimited, appErr.Category)
}

func TestExecuteFatalNotRetried(t *testing.T) {
	exec := NewExecutor(NewPool(), "http://primary", "http://fallback", testPolicy())

	calls := 0
	err := exec.Execute(context.Background(), func(_ context.Context, h *Handle) error {
		calls++
		return &HTTPError{Status: 400, Body: "bad request"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	var httpErr *HTTPError
	assert.ErrorAs(t, err, &httpErr)
}

func TestExecuteExhaustionReturnsLastRawError(t *testing.T) {
	exec := NewExecutor(NewPool(), "http://primary", "", testPolicy())

	calls := 0
	last := errors.New("connection refused")
	err := exec.Execute(context.Background(), func(_ context.Context, h *Handle) error {
		calls++
		return fmt.Errorf("attempt %d: %w", calls, last)
	})

	assert.Equal(t, 3, calls)
	require.ErrorIs(t, err, last)
	var appErr *apperrors.AppError
	assert.False(t, errors.As(err, &appErr), "transient exhaustion must surface the raw error")
}

func TestExecuteSucceedsAfterTransientFailure(t *testing.T) {
	exec := NewExecutor(NewPool(), "http://primary", "", testPolicy())

	calls := 0
	err := exec.Execute(context.Background(), func(_ context.Context, h *Handle) error {
		calls++
		if calls < 3 {
			return errors.New("timeout awaiting response")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperrors.Category
	}{
		{"http 429", &HTTPError{Status: 429}, apperrors.CatRateLimited},
		{"http 503", &HTTPError{Status: 503}, apperrors.CatServerUnavailable},
		{"http 400", &HTTPError{Status: 400}, apperrors.CatValidation},
		{"rate limit text", errors.New("rate limit exceeded"), apperrors.CatRateLimited},
		{"quota text", errors.New("monthly quota reached"), apperrors.CatRateLimited},
		{"rpc invalid params", errors.New("rpc error -32602: invalid params"), apperrors.CatValidation},
		{"deadline", context.DeadlineExceeded, apperrors.CatTransientNetwork},
		{"connection refused", errors.New("dial tcp: connection refused"), apperrors.CatTransientNetwork},
		{"unknown", errors.New("something odd"), apperrors.CatTransientNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestPoolReusesHandlePerURL(t *testing.T) {
	pool := NewPool()
	a := pool.Handle("http://one")
	b := pool.Handle("http://one")
	c := pool.Handle("http://two")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
