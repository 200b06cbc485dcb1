package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines backoff behavior for failed gateway calls.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     15 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

type retryClient struct {
	inner  Client
	policy RetryPolicy
}

// WithRetry wraps a client so that Complete calls are retried according to
// the policy. Stream calls pass through untouched: replaying a stream after
// content has already been delivered would duplicate output downstream.
func WithRetry(c Client, policy RetryPolicy) Client {
	return &retryClient{inner: c, policy: policy}
}

func (r *retryClient) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	attempt := 0
	for {
		completion, err := r.inner.Complete(ctx, messages, opts)
		if err == nil {
			return completion, nil
		}

		class := Classify(err)
		if class == RetryClassNonRetryable {
			return Completion{}, err
		}
		if attempt >= r.policy.MaxRetries {
			return Completion{}, fmt.Errorf("retries exhausted after %d attempts: %w", attempt+1, err)
		}
		// "maybe" errors get at most two extra attempts regardless of policy.
		if class == RetryClassMaybe && attempt >= 2 {
			return Completion{}, fmt.Errorf("retries exhausted after %d attempts: %w", attempt+1, err)
		}

		delay := r.delay(attempt, err)
		select {
		case <-ctx.Done():
			return Completion{}, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
		attempt++
	}
}

func (r *retryClient) Stream(ctx context.Context, messages []Message, opts Options) <-chan Fragment {
	return r.inner.Stream(ctx, messages, opts)
}

func (r *retryClient) delay(attempt int, err error) time.Duration {
	if hint := RetryAfterHint(err); hint > 0 {
		if hint > r.policy.MaxDelay {
			return r.policy.MaxDelay
		}
		return hint
	}

	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		delay += rand.Float64() * 0.2 * delay
	}
	return time.Duration(delay)
}
