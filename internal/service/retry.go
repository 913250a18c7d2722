package service

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	domainErrors "github.com/aviary-platform/auth-service/internal/domain/errors"
)

const (
	retryAttempts = 2
	retryBase     = 50 * time.Millisecond
)

// withRetry runs fn with a short exponential backoff. Only errors tagged
// ErrStorageUnavailable are retried; domain errors pass through untouched.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(retryAttempts, retry.NewExponential(retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if domainErrors.IsStorageUnavailable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
