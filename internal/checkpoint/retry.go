// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
)

// RetryBaseDelay is the first backoff after a throttled upload. It doubles
// on every attempt. Tests override it to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 5

// ErrThrottled marks a mirror error worth retrying.
var ErrThrottled = errors.New("object store throttled the request")

// Throttled reports whether err is a rate-limit or temporarily unavailable
// response from an S3-compatible store.
func Throttled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrThrottled) {
		return true
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusServiceUnavailable:
		return true
	case resp.Code == "SlowDown", resp.Code == "RequestLimitExceeded":
		return true
	}
	return false
}

// RetryingMirror retries throttled uploads of the wrapped Mirror with
// exponential backoff. Other errors are returned immediately.
type RetryingMirror struct {
	next       Mirror
	maxRetries int
	logger     *slog.Logger
}

// WithRetry wraps m. maxRetries <= 0 selects the default of 5.
func WithRetry(m Mirror, maxRetries int, logger *slog.Logger) *RetryingMirror {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingMirror{next: m, maxRetries: maxRetries, logger: logger}
}

// Put uploads data, sleeping RetryBaseDelay, 2x, 4x, ... between throttled
// attempts. After maxRetries the last error is returned.
func (r *RetryingMirror) Put(ctx context.Context, name string, data []byte) error {
	for attempt := 0; ; attempt++ {
		err := r.next.Put(ctx, name, data)
		if !Throttled(err) || attempt >= r.maxRetries {
			return err
		}

		backoff := RetryBaseDelay << attempt
		r.logger.Warn("checkpoint upload throttled, retrying",
			"name", name, "backoff", backoff, "attempt", attempt+1, "max", r.maxRetries)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
