package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

const userKeyPrefix = keyPrefix + "user:"

// RedisUserRepository stores each user as a JSON document. Every write is a
// WATCH/MULTI read-modify-write so concurrent instances cannot clobber one
// another.
type RedisUserRepository struct {
	client redis.UniversalClient
}

func NewRedisUserRepository(client redis.UniversalClient) ports.UserRepository {
	return &RedisUserRepository{client: client}
}

func userKey(username string) string {
	return userKeyPrefix + username
}

func (r *RedisUserRepository) Create(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	created, err := r.client.SetNX(ctx, userKey(user.Username), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create user in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, user.Username)
	}
	return nil
}

func (r *RedisUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.read(ctx, r.client, username)
}

func (r *RedisUserRepository) read(ctx context.Context, c getter, username string) (*domain.User, error) {
	data, err := c.Get(ctx, userKey(username)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Redis: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *RedisUserRepository) UpdateBanRecord(ctx context.Context, user *domain.User, expectedVersion int64) error {
	return r.update(ctx, user.Username, func(stored *domain.User) error {
		if stored.Version != expectedVersion {
			return fmt.Errorf("%w: user %s at version %d, expected %d",
				domain.ErrConcurrentUpdateConflict, user.Username, stored.Version, expectedVersion)
		}
		stored.CurrentIP = user.CurrentIP
		stored.IPHistory = append([]string(nil), user.IPHistory...)
		stored.BanStrikeCount = user.BanStrikeCount
		stored.IsPermanentBan = user.IsPermanentBan
		stored.IsGloballyMuted = user.IsGloballyMuted
		stored.Version = user.Version
		return nil
	})
}

func (r *RedisUserRepository) UpdateCurrentIP(ctx context.Context, username, ip string) error {
	return r.update(ctx, username, func(u *domain.User) error {
		u.CurrentIP = ip
		return nil
	})
}

func (r *RedisUserRepository) UpdateRole(ctx context.Context, username string, role domain.Role) error {
	return r.update(ctx, username, func(u *domain.User) error {
		u.Role = role
		return nil
	})
}

func (r *RedisUserRepository) SetVenueOwner(ctx context.Context, username string, owner bool) error {
	return r.update(ctx, username, func(u *domain.User) error {
		u.IsVenueOwner = owner
		return nil
	})
}

// update applies fn inside WATCH. A write racing between the read and EXEC
// aborts the transaction, surfaced as ErrConcurrentUpdateConflict.
func (r *RedisUserRepository) update(ctx context.Context, username string, fn func(*domain.User) error) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "redis", "update", "users")
	defer span.End()

	key := userKey(username)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		user, err := r.read(ctx, tx, username)
		if err != nil {
			return err
		}
		if err := fn(user); err != nil {
			return err
		}
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: user %s modified concurrently", domain.ErrConcurrentUpdateConflict, username)
	}
	return err
}
