package services

import (
	"context"

	"djbook/internal/core/domain"
	"djbook/pkg/retry"
)

// onConflict re-runs fn while the store reports that another writer changed
// the record first. fn must re-read whatever it checks.
func onConflict(ctx context.Context, fn func() error) error {
	cfg := retry.DefaultConfig()
	cfg.RetryOn = []error{domain.ErrConcurrentUpdateConflict}
	return retry.Do(ctx, cfg, func(int) error { return fn() })
}
