package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLockTimeout = errors.New("lock acquisition timeout")
	ErrLockNotHeld = errors.New("lock was not held by this instance")
)

// Only the holder that set the token may release or extend the key.
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// DistributedLock is a single-holder redis lock (SET NX PX) renewed at half
// its TTL while held.
type DistributedLock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
	poll   time.Duration

	mu        sync.Mutex
	stopRenew chan struct{}
}

func newLock(client redis.UniversalClient, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    key,
		token:  newToken(),
		ttl:    ttl,
		poll:   25 * time.Millisecond,
	}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Key returns the full redis key.
func (l *DistributedLock) Key() string { return l.key }

// TryLock attempts to acquire the lock without blocking
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to try lock %s: %w", l.key, err)
	}
	if acquired {
		l.startRenewal()
	}
	return acquired, nil
}

// Lock blocks until the lock is acquired, ctx is done or timeout elapses.
func (l *DistributedLock) Lock(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, l.key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// Unlock releases the lock if this instance still holds it.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if l.stopRenew != nil {
		close(l.stopRenew)
		l.stopRenew = nil
	}
	l.mu.Unlock()

	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *DistributedLock) startRenewal() {
	stop := make(chan struct{})
	l.mu.Lock()
	l.stopRenew = stop
	l.mu.Unlock()

	go func() {
		ticker := time.NewTicker(l.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
				n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
				cancel()
				if err != nil || n == 0 {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// LockManager hands out locks under a common key prefix.
type LockManager struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewLockManager(client redis.UniversalClient, prefix string, ttl time.Duration) *LockManager {
	return &LockManager{client: client, prefix: prefix, ttl: ttl}
}

// NewLock returns an unacquired lock for key.
func (lm *LockManager) NewLock(key string) *DistributedLock {
	return newLock(lm.client, lm.prefix+key, lm.ttl)
}

// Acquire blocks for up to the lock TTL and returns a release function.
func (lm *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	lock := lm.NewLock(key)
	if err := lock.Lock(ctx, lm.ttl); err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), lm.ttl)
		defer cancel()
		_ = lock.Unlock(ctx)
	}, nil
}
