// Package retry wraps boundary-facing operations (calls that can fail with
// a transient network error) in bounded exponential backoff, the same
// go-retry idiom the upstream org-provisioning service uses for Temporal
// namespace calls.
package retry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ccrouter/ccr/pkg/logger"
)

// retryableCodes are the error identifiers that make a NetworkError eligible
// for retry, matched case-sensitively against Code, ErrorCode, or Type.
var retryableCodes = map[string]bool{
	"ECONNRESET":          true,
	"ETIMEDOUT":           true,
	"ECONNREFUSED":        true,
	"rate_limit_exceeded": true,
}

// retryableStatus are the HTTP status codes eligible for retry.
var retryableStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// NetworkError is the shape WithRetry's classifier understands. Callers at
// the HTTP/SDK boundary should wrap a downstream failure in one of these
// before calling WithRetry so the retryable identifiers (err.code,
// err.error.code, err.type, or the string form of err.status) are visible.
type NetworkError struct {
	Err       error
	Code      string
	ErrorCode string
	Type      string
	Status    int
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "network error"
}

func (e *NetworkError) Unwrap() error { return e.Err }

func isRetryable(err error) bool {
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	for _, candidate := range []string{ne.Code, ne.ErrorCode, ne.Type} {
		if candidate != "" && retryableCodes[candidate] {
			return true
		}
	}
	if ne.Status != 0 {
		if retryableStatus[ne.Status] {
			return true
		}
		// also accept a string-form match, per the spec's "string form of err.status"
		if retryableCodes[strconv.Itoa(ne.Status)] {
			return true
		}
	}
	return false
}

const (
	maxAttempts  = 3
	initialDelay = time.Second
)

// WithRetry runs fn up to maxAttempts times with exponential backoff
// starting at 1s (waits of 1s, then 2s), retrying only when the returned error
// classifies as retryable per isRetryable. A non-retryable error fails
// immediately. label identifies the operation in logs.
func WithRetry(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx)
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(initialDelay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		innerErr := fn(ctx)
		if innerErr == nil {
			return nil
		}
		if !isRetryable(innerErr) {
			return innerErr
		}
		log.Info("retrying after transient failure", "operation", label, "attempt", attempt, "error", innerErr)
		return retry.RetryableError(innerErr)
	})
	if err != nil {
		log.Error("operation failed after retries", "operation", label, "attempts", attempt, "error", err)
	}
	return err
}
