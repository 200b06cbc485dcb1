package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RetryClass indicates whether a failed gateway call should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"
	RetryClassMaybe        RetryClass = "maybe"
	RetryClassNonRetryable RetryClass = "non_retryable"
)

// GatewayError wraps a provider error with classification metadata.
type GatewayError struct {
	Err        error
	Class      RetryClass
	HTTPStatus int
	RetryAfter string // raw Retry-After header value if present
	RateLimit  bool
	Timeout    bool
	Auth       bool
	Quota      bool
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("gateway error: %s", e.Class)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Classify maps a provider error to a retry class. Providers rarely expose
// typed errors consistently, so this falls back to message inspection.
func Classify(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Class
	}

	errStr := strings.ToLower(err.Error())

	// Rate limits and server-side failures are worth retrying.
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return RetryClassRetryable
	}
	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return RetryClassRetryable
	}
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "temporary failure") {
		return RetryClassRetryable
	}

	if strings.Contains(errStr, "deadline exceeded") {
		return RetryClassMaybe
	}
	if strings.Contains(errStr, "context length") ||
		strings.Contains(errStr, "token limit") ||
		strings.Contains(errStr, "maximum context length") {
		return RetryClassMaybe
	}

	// Auth, bad requests and quota exhaustion will not improve on retry.
	if strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "invalid api key") {
		return RetryClassNonRetryable
	}
	if strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "bad request") ||
		strings.Contains(errStr, "invalid request") {
		return RetryClassNonRetryable
	}
	if strings.Contains(errStr, "402") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "billing") ||
		strings.Contains(errStr, "payment required") {
		return RetryClassNonRetryable
	}

	return RetryClassNonRetryable
}

// WrapError attaches classification metadata to a provider error.
func WrapError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}
	return &GatewayError{
		Err:        err,
		Class:      Classify(err),
		HTTPStatus: httpStatus,
		RetryAfter: retryAfter,
		RateLimit:  httpStatus == http.StatusTooManyRequests,
		Timeout:    httpStatus == http.StatusGatewayTimeout || httpStatus == http.StatusRequestTimeout,
		Auth:       httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden,
		Quota:      httpStatus == http.StatusPaymentRequired,
	}
}

// RetryAfterHint returns the server-requested backoff, or 0 if none was given.
func RetryAfterHint(err error) time.Duration {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.RetryAfter != "" {
		var seconds int
		if _, err := fmt.Sscanf(gwErr.RetryAfter, "%d", &seconds); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if t, err := time.Parse(time.RFC1123, gwErr.RetryAfter); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	return 0
}

// extractErrorMetadata pulls an HTTP status and Retry-After value out of a
// provider SDK error message.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	errStr := err.Error()
	var httpStatus int
	var retryAfter string

	statusCodes := []struct {
		token string
		code  int
	}{
		{"429", http.StatusTooManyRequests},
		{"500", http.StatusInternalServerError},
		{"502", http.StatusBadGateway},
		{"503", http.StatusServiceUnavailable},
		{"504", http.StatusGatewayTimeout},
		{"401", http.StatusUnauthorized},
		{"403", http.StatusForbidden},
		{"402", http.StatusPaymentRequired},
		{"400", http.StatusBadRequest},
	}
	for _, sc := range statusCodes {
		if strings.Contains(errStr, sc.token) {
			httpStatus = sc.code
			break
		}
	}

	lower := strings.ToLower(errStr)
	if idx := strings.Index(lower, "retry-after"); idx != -1 {
		remaining := strings.TrimLeft(errStr[idx+len("retry-after"):], ": ")
		if parts := strings.Fields(remaining); len(parts) > 0 {
			retryAfter = strings.Trim(parts[0], ",;")
		}
	}

	return httpStatus, retryAfter
}
