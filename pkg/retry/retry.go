package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config holds retry configuration
type Config struct {
	MaxAttempts  int           // Retries after the first call; 0 disables retrying
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound for any single delay
	Multiplier   float64       // Exponential backoff multiplier
	Jitter       bool          // Randomise each delay by up to ±25%

	// RetryOn lists the errors worth retrying, matched with errors.Is.
	// Empty means every error is retried.
	RetryOn []error
}

// DefaultConfig retries three times starting at 10ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Do calls fn until it succeeds, returns an error outside cfg.RetryOn, the
// context is done, or cfg.MaxAttempts retries have been spent.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled: %w (last error: %v)", err, lastErr)
			}
			return fmt.Errorf("retry cancelled: %w", err)
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err, cfg.RetryOn) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled during wait: %w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(Delay(cfg, attempt)):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts+1, lastErr)
}

// Delay returns the backoff before retry number attempt+1.
func Delay(cfg Config, attempt int) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	d := time.Duration(delay)

	if cfg.Jitter {
		if j := int64(d / 4); j > 0 {
			d = d - time.Duration(j) + time.Duration(rand.Int63n(2*j+1))
		}
	}
	return d
}

func shouldRetry(err error, retryOn []error) bool {
	if len(retryOn) == 0 {
		return true
	}
	for _, target := range retryOn {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
