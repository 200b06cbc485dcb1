package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want RetryClass
	}{
		{errors.New("429 too many requests"), RetryClassRetryable},
		{errors.New("rate limit exceeded"), RetryClassRetryable},
		{errors.New("503 service unavailable"), RetryClassRetryable},
		{errors.New("connection refused"), RetryClassRetryable},
		{errors.New("context deadline exceeded"), RetryClassMaybe},
		{errors.New("maximum context length is 8192 tokens"), RetryClassMaybe},
		{errors.New("401 unauthorized"), RetryClassNonRetryable},
		{errors.New("invalid api key"), RetryClassNonRetryable},
		{errors.New("402 payment required"), RetryClassNonRetryable},
		{errors.New("something inexplicable"), RetryClassNonRetryable},
		{nil, RetryClassNonRetryable},
	}

	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestClassifyRespectsWrappedClass(t *testing.T) {
	inner := &GatewayError{Err: errors.New("weird provider failure"), Class: RetryClassRetryable}
	wrapped := fmt.Errorf("call failed: %w", inner)

	if got := Classify(wrapped); got != RetryClassRetryable {
		t.Errorf("Classify(wrapped) = %s, want retryable", got)
	}
}

func TestWrapError(t *testing.T) {
	err := WrapError(errors.New("429 too many requests"), http.StatusTooManyRequests, "7")

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %T", err)
	}
	if !gwErr.RateLimit {
		t.Error("expected RateLimit to be set")
	}
	if gwErr.Class != RetryClassRetryable {
		t.Errorf("class = %s, want retryable", gwErr.Class)
	}
	if hint := RetryAfterHint(err); hint != 7*time.Second {
		t.Errorf("RetryAfterHint = %v, want 7s", hint)
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError(nil, 0, "") != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestExtractErrorMetadata(t *testing.T) {
	status, retryAfter := extractErrorMetadata(errors.New("error, status code: 429, retry-after: 30"))
	if status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", status)
	}
	if retryAfter != "30" {
		t.Errorf("retryAfter = %q, want 30", retryAfter)
	}
}
