package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation performs one attempt. attempt is zero-based so the operation can
// build fresh state for every retry instead of mutating the previous one.
type Operation func(attempt int) error

// IsRetryable reports whether a failed attempt should be retried.
type IsRetryable func(err error) bool

const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 10 * time.Millisecond
)

// ErrRetriesExhausted is joined with the last error when every attempt failed
// with a retryable error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Try runs op with the default policy, retrying on duplicate key errors.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxAttempts, DefaultBackoff, IsMongoDuplicateKeyError)
}

// WithRetries runs op up to maxAttempts times. Non-retryable errors are
// returned as-is on the first occurrence. The pause between attempts grows
// linearly with the attempt number and is cut short by ctx.
func WithRetries(ctx context.Context, op Operation, maxAttempts int, backoff time.Duration, retryable IsRetryable) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = op(attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * backoff):
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, err)
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key
// error (code 11000, or 11001/12582 on older servers).
func IsMongoDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
