package redis

import (
	"context"
	"time"

	"djbook/internal/core/ports"
	"djbook/pkg/distributed"

	"github.com/redis/go-redis/v9"
)

// UserLocker is the cross-instance per-user critical section.
type UserLocker struct {
	locks *distributed.LockManager
}

func NewUserLocker(client redis.UniversalClient, ttl time.Duration) *UserLocker {
	return &UserLocker{locks: distributed.NewLockManager(client, keyPrefix+"lock:user:", ttl)}
}

var _ ports.UserLocker = (*UserLocker)(nil)

func (l *UserLocker) Lock(ctx context.Context, username string) (func(), error) {
	return l.locks.Acquire(ctx, username)
}
