package chatstream

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxRetries bounds the total number of attempts per request.
	MaxRetries = 3
	// RetryDelay is the base backoff unit. Attempt n waits n*RetryDelay.
	RetryDelay = time.Second
)

// StreamError carries the server's error payload for a failed chat
// request. Retry mirrors the server's judgment on whether another
// attempt can succeed.
type StreamError struct {
	Message string
	Retry   bool
	Status  int
}

func (e *StreamError) Error() string {
	return e.Message
}

// Retryable reports whether the server marked the failure transient.
func Retryable(err error) bool {
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Retry
	}
	return false
}

// retrier reruns an attempt with linear backoff. The sleep hook exists
// for tests.
type retrier struct {
	maxRetries int
	delay      time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func newRetrier() *retrier {
	return &retrier{
		maxRetries: MaxRetries,
		delay:      RetryDelay,
		sleep:      sleepContext,
	}
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

// run executes attempt up to maxRetries times. Only failures the server
// marked retryable are retried; backoff before attempt n is n-1 times
// the base delay. The last error is returned once attempts run out.
func (r *retrier) run(ctx context.Context, attempt func(ctx context.Context) error) error {
	var lastErr error
	for n := 1; n <= r.maxRetries; n++ {
		if n > 1 {
			if err := r.sleep(ctx, time.Duration(n-1)*r.delay); err != nil {
				return err
			}
		}
		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if !Retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
