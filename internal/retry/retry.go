// Package retry runs an operation under a bounded attempt policy.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// BackoffFunc returns the wait before the next attempt. attempt counts from 0
// and names the attempt that just failed.
type BackoffFunc func(attempt int, err error) time.Duration

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds how often and how patiently an operation is retried
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Sleep       SleepFunc
	// OnRetry is called before each wait, if set
	OnRetry func(attempt int, err error, wait time.Duration)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without further attempts
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls op until it succeeds, returns a permanent error, or the attempts
// run out. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = op(ctx, attempt)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts-1 {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return err
		}
	}
	return err
}

// Sleep waits for d, returning early with ctx.Err() on cancellation
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Exponential waits 2^attempt seconds plus up to jitter of random slack
func Exponential(jitter time.Duration) BackoffFunc {
	return func(attempt int, _ error) time.Duration {
		base := time.Duration(1<<uint(attempt)) * time.Second
		if jitter > 0 {
			base += rand.N(jitter)
		}
		return base
	}
}

// Fixed always waits d
func Fixed(d time.Duration) BackoffFunc {
	return func(int, error) time.Duration { return d }
}

// When picks between two backoffs depending on the failure
func When(match func(error) bool, then, otherwise BackoffFunc) BackoffFunc {
	return func(attempt int, err error) time.Duration {
		if match(err) {
			return then(attempt, err)
		}
		return otherwise(attempt, err)
	}
}
