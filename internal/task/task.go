package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrUnavailable wraps a collaborator call that kept failing after retries.
// Callers treat it as a soft failure: the surrounding flow continues without
// the artifact.
var ErrUnavailable = errors.New("collaborator unavailable")

// Policy is the uniform retry discipline applied to every external call.
type Policy struct {
	Name           string
	MaxTries       uint
	AttemptTimeout time.Duration
}

// Permanent marks an error as not worth retrying (e.g. the collaborator
// rejected the input rather than failing).
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn under p: each attempt gets its own timeout, failed attempts are
// retried with exponential backoff up to MaxTries, and exhaustion is
// reported as ErrUnavailable wrapping the last cause. Permanent errors
// surface unmodified.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	tries := p.MaxTries
	if tries == 0 {
		tries = 3
	}
	attemptTimeout := p.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}

	attempt := 0
	op := func() (T, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		v, err := fn(attemptCtx)
		if err != nil {
			var perm *backoff.PermanentError
			if !errors.As(err, &perm) {
				log.Printf("[task] %s attempt %d failed: %v", p.Name, attempt, err)
			}
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(tries),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			var zero T
			return zero, perm.Unwrap()
		}
		var zero T
		return zero, fmt.Errorf("%s: %w: %w", p.Name, ErrUnavailable, err)
	}
	return v, nil
}
