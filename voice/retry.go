package voice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// RetryPolicy controls the RetryEmbedder's backoff schedule.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// QuotaBase is the first wait after a quota rejection; each further
	// wait doubles, capped at QuotaCeiling.
	QuotaBase    time.Duration
	QuotaCeiling time.Duration

	// TransientStep is multiplied by the attempt count after a transient
	// failure (step, 2*step, ...).
	TransientStep time.Duration
}

// DefaultRetryPolicy matches the provider adapter contract: 3 attempts,
// 60s/120s quota backoff with a 240s ceiling, 1s-per-attempt transient
// backoff.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:   3,
	QuotaBase:     60 * time.Second,
	QuotaCeiling:  240 * time.Second,
	TransientStep: time.Second,
}

// RetryEmbedder wraps an Embedder with the retry policy. It holds no mutable
// state across calls; retry counters are local to a single invocation.
type RetryEmbedder struct {
	inner  Embedder
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryEmbedder wraps inner with policy. A zero policy gets defaults.
func NewRetryEmbedder(inner Embedder, policy RetryPolicy) *RetryEmbedder {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	if policy.QuotaCeiling <= 0 {
		policy.QuotaCeiling = DefaultRetryPolicy.QuotaCeiling
	}
	return &RetryEmbedder{
		inner:  inner,
		policy: policy,
		sleep:  sleepContext,
	}
}

// Embed calls the wrapped provider, retrying per policy. Empty input fails
// immediately with ErrInvalidInput. After exhaustion the last provider error
// is returned unchanged, so errors.Is(err, ErrQuotaExceeded) still holds for
// callers deciding whether to halt a batch.
func (e *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		vec, err := e.inner.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		lastErr = err

		if attempt == e.policy.MaxAttempts {
			break
		}

		wait := e.backoff(err, attempt)
		log.Printf("[EMBED] attempt %d/%d failed (%v), retrying in %s",
			attempt, e.policy.MaxAttempts, err, wait)
		if serr := e.sleep(ctx, wait); serr != nil {
			return nil, serr
		}
	}
	return nil, lastErr
}

// Dimensions returns the wrapped provider's vector size.
func (e *RetryEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

func (e *RetryEmbedder) backoff(err error, attempt int) time.Duration {
	if errors.Is(err, ErrQuotaExceeded) {
		wait := e.policy.QuotaBase << (attempt - 1)
		if wait > e.policy.QuotaCeiling {
			wait = e.policy.QuotaCeiling
		}
		return wait
	}
	return e.policy.TransientStep * time.Duration(attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
