package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/dgallion1/mdchunk/internal/pathstore"
)

// MaxRetries is the number of retries after the first failed publish attempt.
const MaxRetries = 3

// IsRetryable reports whether a publish error is worth retrying: server
// errors, rate limiting and transport failures.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *pathstore.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter, doubling
// from base and capped at 30 base units.
func Backoff(attempt int, base time.Duration) time.Duration {
	d := time.Duration(1<<uint(attempt)) * base
	if limit := 30 * base; d > limit {
		d = limit
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// withRetry runs op until it succeeds, fails with a permanent error, or
// MaxRetries retries are used up.
func withRetry(ctx context.Context, base time.Duration, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil || attempt >= MaxRetries || !IsRetryable(err) {
			return err
		}
		t := time.NewTimer(Backoff(attempt, base))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
