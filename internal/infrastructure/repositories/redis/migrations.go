package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"djbook/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schemaVersionKey = keyPrefix + "schema:version"

// Migration is one forward step of the keyspace layout.
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, client redis.UniversalClient) error
}

// Migrate runs every migration newer than the stored schema version.
func Migrate(ctx context.Context, client redis.UniversalClient, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations() {
		if m.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", m.Version, "description", m.Description)
		}
		if err := m.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if err := client.Set(ctx, schemaVersionKey, m.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		currentVersion = m.Version
	}

	if logger != nil {
		logger.Infow("schema is up to date", "version", currentVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client redis.UniversalClient) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "initial user, venue and booking keyspace",
			Up:          func(ctx context.Context, client redis.UniversalClient) error { return nil },
		},
		{
			Version:     2,
			Description: "backfill user version for optimistic ban-record updates",
			Up:          backfillUserVersions,
		},
	}
}

// backfillUserVersions sets version 1 on user documents written before
// ban-record updates were version-checked.
func backfillUserVersions(ctx context.Context, client redis.UniversalClient) error {
	iter := client.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}

		var user domain.User
		if err := json.Unmarshal(data, &user); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if user.Version > 0 {
			continue
		}
		user.Version = 1
		encoded, err := json.Marshal(&user)
		if err != nil {
			return err
		}
		if err := client.Set(ctx, key, encoded, 0).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
