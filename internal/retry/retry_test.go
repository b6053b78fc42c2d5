package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 5, Delay: time.Millisecond}
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Delay)
}

func TestDoRetryBoundary(t *testing.T) {
	for k := 0; k <= 7; k++ {
		t.Run(fmt.Sprintf("%d failures", k), func(t *testing.T) {
			calls := 0
			attempts, err := fastPolicy().Do(context.Background(), func(attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				if calls <= k {
					return &fs.PathError{Op: "open", Path: "uploads/x.json", Err: fs.ErrPermission}
				}
				return nil
			})

			if k < 5 {
				require.NoError(t, err)
				assert.Equal(t, k+1, attempts)
				assert.Equal(t, k+1, calls)
				return
			}

			assert.ErrorIs(t, err, ErrExhausted)
			assert.ErrorIs(t, err, fs.ErrPermission)
			assert.Equal(t, 5, attempts)
			assert.Equal(t, 5, calls)
		})
	}
}

func TestDoStopsOnNonTransient(t *testing.T) {
	content := errors.New("invalid json")
	calls := 0

	attempts, err := fastPolicy().Do(context.Background(), func(int) error {
		calls++
		return content
	})

	assert.ErrorIs(t, err, content)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Delay: time.Hour}

	done := make(chan struct{})
	var attempts int
	var err error
	go func() {
		defer close(done)
		attempts, err = p.Do(ctx, func(int) error {
			return Transient(errors.New("busy"))
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	attempts, err := fastPolicy().Do(ctx, func(int) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
	assert.Equal(t, 0, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	attempts, err := Policy{}.Do(context.Background(), func(int) error {
		calls++
		return Transient(errors.New("io"))
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("content")))
	assert.True(t, IsTransient(&fs.PathError{Op: "read", Path: "f", Err: errors.New("i/o error")}))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", fs.ErrPermission)))
	assert.True(t, IsTransient(io.ErrUnexpectedEOF))
	assert.True(t, IsTransient(Transient(errors.New("busy"))))
	assert.Nil(t, Transient(nil))
}
