package chain

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	maxAttempts  = 3
	baseBackoff  = 250 * time.Millisecond
	backoffLimit = 5 * time.Second
)

// withRetry runs fn up to maxAttempts times with jittered exponential
// backoff. Context cancellation and permanent errors stop immediately;
// everything else is treated as transient upstream noise until attempts
// run out, at which point the last error surfaces to the caller.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := baseBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		// Full jitter keeps synchronized pollers from hammering the
		// endpoint in lockstep.
		sleep := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		backoff *= 2
		if backoff > backoffLimit {
			backoff = backoffLimit
		}
	}
	return err
}
