// Package retry applies a bounded, fixed-delay retry policy to transient I/O operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is returned when every attempt failed with a transient error.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds retries of a transient operation.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Default returns the watch-source policy: five attempts one second apart.
func Default() Policy {
	return Policy{MaxAttempts: 5, Delay: time.Second}
}

// Do runs op until it succeeds, fails with a non-transient error, the attempt
// budget is spent, or ctx is done. op receives the 1-based attempt number.
// The number of attempts made is always returned.
func (p Policy) Do(ctx context.Context, op func(attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(maxAttempts-1))
	b = backoff.WithContext(b, ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := op(attempts)
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)

	switch {
	case err == nil:
		return attempts, nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return attempts, err
	case IsTransient(err) && attempts >= maxAttempts:
		return attempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	default:
		return attempts, err
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is a retryable I/O failure: file-system and
// syscall errors (permission denied included), truncated reads, and errors
// marked with Transient. Content errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return true
	}

	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return true
	}

	return errors.Is(err, fs.ErrPermission) || errors.Is(err, io.ErrUnexpectedEOF)
}
