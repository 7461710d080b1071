package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errConflict = errors.New("conflict")
	errMissing  = errors.New("missing")
)

func fastConfig(retries int) Config {
	return Config{
		MaxAttempts:  retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		RetryOn:      []error{errConflict},
	}
}

func TestDo_SucceedsFirstTime(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesWrappedConflict(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(attempt int) error {
		calls++
		if attempt < 2 {
			return fmt.Errorf("save user: %w", errConflict)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnErrorOutsideRetryOn(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(int) error {
		calls++
		return errMissing
	})

	assert.ErrorIs(t, err, errMissing)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), func(int) error {
		calls++
		return errConflict
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 3, calls)
}

func TestDo_EmptyRetryOnRetriesEverything(t *testing.T) {
	cfg := fastConfig(1)
	cfg.RetryOn = nil

	calls := 0
	err := Do(context.Background(), cfg, func(int) error {
		calls++
		return errMissing
	})

	assert.ErrorIs(t, err, errMissing)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), func(int) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDelay(t *testing.T) {
	cfg := Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 10*time.Millisecond, Delay(cfg, 0))
	assert.Equal(t, 20*time.Millisecond, Delay(cfg, 1))
	assert.Equal(t, 40*time.Millisecond, Delay(cfg, 2))
	assert.Equal(t, 50*time.Millisecond, Delay(cfg, 3))
}

func TestDelay_JitterStaysInBand(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: true}

	for i := 0; i < 50; i++ {
		d := Delay(cfg, 0)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
