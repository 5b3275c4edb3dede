package chain

import (
	"context"
	"time"

	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/logger"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/metrics"
)

// RateLimitRetryAfter is the fixed hint surfaced when every attempt ended
// rate limited.
const RateLimitRetryAfter = 60 * time.Second

// Policy defines retry behavior for one upstream call.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	FallbackSwitch bool
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	BaseDelay:      500 * time.Millisecond,
	FallbackSwitch: true,
}

// Operation is one fallible call against an endpoint handle.
type Operation func(ctx context.Context, h *Handle) error

// Executor retries operations against a primary/fallback endpoint pair.
type Executor struct {
	pool     *Pool
	primary  string
	fallback string
	policy   Policy
}

func NewExecutor(pool *Pool, primary, fallback string, policy Policy) *Executor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy.BaseDelay
	}
	return &Executor{pool: pool, primary: primary, fallback: fallback, policy: policy}
}

// Execute runs op with classification-driven retries. Non-retryable
// failures surface immediately. The fallback endpoint is switched to at
// most once, and only when the very first attempt came back rate limited.
// If attempts run out and the last failure was a rate limit, the returned
// error is a distinguished rate-limit error carrying a retry-after hint;
// otherwise the last raw error is returned.
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	current := e.pool.Handle(e.primary)
	switched := false

	var lastErr error
	var lastCat apperrors.Category

	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		err := op(ctx, current)
		if err == nil {
			return nil
		}
		lastErr = err
		lastCat = Classify(err)

		if !lastCat.Retryable() {
			return err
		}
		metrics.RPCRetries.WithLabelValues(string(lastCat)).Inc()

		if attempt == 0 && lastCat == apperrors.CatRateLimited &&
			e.policy.FallbackSwitch && e.fallback != "" && !switched {
			logger.Warn("rate limited on primary, switching to fallback endpoint",
				"primary", e.primary, "fallback", e.fallback)
			current = e.pool.Handle(e.fallback)
			switched = true
			continue
		}

		if attempt == e.policy.MaxAttempts-1 {
			break
		}

		delay := e.policy.BaseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if lastCat == apperrors.CatRateLimited {
		return apperrors.NewRateLimited("upstream rate limited", RateLimitRetryAfter, lastErr)
	}
	return lastErr
}
