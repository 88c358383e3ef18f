package rate

import (
	"context"
	"errors"
	"time"
)

// Config is the per-key window budget.
type Config struct {
	Max    int
	Window time.Duration
}

// Validate rejects budgets that could never admit a request.
func (c Config) Validate() error {
	if c.Max <= 0 {
		return errors.New("rate: Max must be > 0")
	}
	if c.Window <= 0 {
		return errors.New("rate: Window must be > 0")
	}
	return nil
}

// Limiter admits or rejects one attempt for key.
type Limiter interface {
	// Allow records an attempt and returns ErrRateLimited when the window
	// budget is exceeded.
	Allow(ctx context.Context, key string) error
	// Reset clears the window for key.
	Reset(ctx context.Context, key string) error
}

// Unlimited admits everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) error { return nil }
func (Unlimited) Reset(context.Context, string) error { return nil }
