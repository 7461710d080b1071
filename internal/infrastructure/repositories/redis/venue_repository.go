package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisVenueRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisVenueRepository(client redis.UniversalClient) ports.VenueRepository {
	return &RedisVenueRepository{
		client: client,
		prefix: keyPrefix + "venue:",
	}
}

func (r *RedisVenueRepository) venueKey(name string) string {
	return r.prefix + name
}

func (r *RedisVenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	data, err := json.Marshal(venue)
	if err != nil {
		return fmt.Errorf("failed to marshal venue: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.venueKey(venue.Name), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create venue in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", domain.ErrVenueExists, venue.Name)
	}
	return nil
}

func (r *RedisVenueRepository) GetByName(ctx context.Context, name string) (*domain.Venue, error) {
	data, err := r.client.Get(ctx, r.venueKey(name)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrVenueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue from Redis: %w", err)
	}

	var venue domain.Venue
	if err := json.Unmarshal(data, &venue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal venue: %w", err)
	}
	return &venue, nil
}

// Update overwrites an existing venue; SET XX refuses to create one.
func (r *RedisVenueRepository) Update(ctx context.Context, venue *domain.Venue) error {
	data, err := json.Marshal(venue)
	if err != nil {
		return fmt.Errorf("failed to marshal venue: %w", err)
	}

	ok, err := r.client.SetXX(ctx, r.venueKey(venue.Name), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update venue in Redis: %w", err)
	}
	if !ok {
		return domain.ErrVenueNotFound
	}
	return nil
}
