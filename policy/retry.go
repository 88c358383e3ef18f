package policy

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/MrEthical07/authflow/transport"
)

// Retry is the backoff policy for transport failures. Only network failures
// and the listed HTTP statuses are retried; everything else surfaces at once.
type Retry struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Statuses     []int

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, err error)
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetry returns 3 attempts from 300ms, capped at 5s, on 500/502/503/504.
func DefaultRetry() Retry {
	return Retry{
		MaxAttempts:  3,
		InitialDelay: 300 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Statuses:     []int{500, 502, 503, 504},
	}
}

// Retryable reports whether err is a transient transport failure.
func (r Retry) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *transport.StatusError
	if errors.As(err, &se) {
		return slices.Contains(r.Statuses, se.Status)
	}

	var ne *transport.NetworkError
	return errors.As(err, &ne)
}

// Delay returns the wait before attempt+1, where attempt counts from 1.
func (r Retry) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := r.InitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

func (r Retry) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
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

// Do calls fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. The last error is returned unchanged.
func Do[T any](ctx context.Context, r Retry, fn func(context.Context) (T, error)) (T, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		out T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err = fn(ctx)
		if err == nil || !r.Retryable(err) || attempt == attempts {
			return out, err
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, err)
		}
		if serr := r.sleep(ctx, r.Delay(attempt)); serr != nil {
			return out, err
		}
	}
	return out, err
}
