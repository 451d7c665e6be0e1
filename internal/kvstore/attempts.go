package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "job-notifier/internal/common/errors"
)

// AttemptCounter bounds delivery attempts per contact within a rolling
// window that starts at the first attempt.
type AttemptCounter struct {
	store  Store
	max    int64
	window time.Duration
}

// NewAttemptCounter allows max attempts per window. max <= 0 disables the bound.
func NewAttemptCounter(store Store, max int, window time.Duration) *AttemptCounter {
	return &AttemptCounter{store: store, max: int64(max), window: window}
}

func attemptKey(contactID string) string {
	return "attempts:" + contactID
}

// Begin records one attempt for contactID. Once the bound is passed it
// returns ATTEMPTS_EXHAUSTED and the caller must not send.
func (c *AttemptCounter) Begin(ctx context.Context, contactID string) (int64, error) {
	n, err := c.store.Incr(ctx, attemptKey(contactID), c.window)
	if err != nil {
		return 0, err
	}
	if c.max > 0 && n > c.max {
		return n, apperrors.NewAttemptsExhaustedError(contactID, n)
	}
	return n, nil
}

// Count returns the attempts recorded in the current window.
func (c *AttemptCounter) Count(ctx context.Context, contactID string) (int64, error) {
	v, ok, err := c.store.Get(ctx, attemptKey(contactID))
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("attempt counter %s: %w", contactID, err)
	}
	return n, nil
}

// Reset clears the counter for contactID.
func (c *AttemptCounter) Reset(ctx context.Context, contactID string) error {
	return c.store.Delete(ctx, attemptKey(contactID))
}
