package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClient returns scripted results per attempt.
type fakeClient struct {
	calls   int
	results []error
	content string
}

func (f *fakeClient) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	err := f.results[f.calls]
	f.calls++
	if err != nil {
		return Completion{}, err
	}
	return Completion{Content: f.content}, nil
}

func (f *fakeClient) Stream(ctx context.Context, messages []Message, opts Options) <-chan Fragment {
	ch := make(chan Fragment, 2)
	ch <- Fragment{Content: f.content}
	ch <- Fragment{Final: true}
	close(ch)
	return ch
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	fake := &fakeClient{
		results: []error{errors.New("503 service unavailable"), nil},
		content: "ok",
	}
	client := WithRetry(fake, fastPolicy())

	completion, err := client.Complete(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completion.Content != "ok" {
		t.Errorf("content = %q, want ok", completion.Content)
	}
	if fake.calls != 2 {
		t.Errorf("calls = %d, want 2", fake.calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	fake := &fakeClient{
		results: []error{errors.New("401 unauthorized"), nil},
	}
	client := WithRetry(fake, fastPolicy())

	if _, err := client.Complete(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	transient := errors.New("429 too many requests")
	fake := &fakeClient{
		results: []error{transient, transient, transient, transient},
	}
	client := WithRetry(fake, fastPolicy())

	_, err := client.Complete(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, transient) {
		t.Errorf("expected wrapped original error, got %v", err)
	}
	if fake.calls != 4 {
		t.Errorf("calls = %d, want 4", fake.calls)
	}
}

func TestRetryHonorsContextCancel(t *testing.T) {
	transient := errors.New("502 bad gateway")
	fake := &fakeClient{
		results: []error{transient, transient, transient, transient},
	}
	client := WithRetry(fake, RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   1.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, nil, Options{})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}
