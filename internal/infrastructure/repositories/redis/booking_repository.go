package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

// RedisBookingRepository stores bookings as JSON documents plus one id set
// per DJ and per venue for listing.
type RedisBookingRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBookingRepository(client redis.UniversalClient) ports.BookingRepository {
	return &RedisBookingRepository{
		client: client,
		prefix: keyPrefix + "booking:",
	}
}

func (r *RedisBookingRepository) bookingKey(id domain.BookingID) string {
	return r.prefix + string(id)
}

func (r *RedisBookingRepository) byDJKey(dj string) string {
	return r.prefix + "by_dj:" + dj
}

func (r *RedisBookingRepository) byVenueKey(venue string) string {
	return r.prefix + "by_venue:" + venue
}

func (r *RedisBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "redis", "create", "bookings")
	defer span.End()

	data, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.bookingKey(booking.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create booking in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("booking already exists: %s", booking.ID)
	}

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.byDJKey(booking.DJUsername), string(booking.ID))
		pipe.SAdd(ctx, r.byVenueKey(booking.VenueName), string(booking.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index booking: %w", err)
	}
	return nil
}

func (r *RedisBookingRepository) GetByID(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	return r.read(ctx, r.client, id)
}

func (r *RedisBookingRepository) read(ctx context.Context, c getter, id domain.BookingID) (*domain.Booking, error) {
	data, err := c.Get(ctx, r.bookingKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking from Redis: %w", err)
	}

	var booking domain.Booking
	if err := json.Unmarshal(data, &booking); err != nil {
		return nil, fmt.Errorf("failed to unmarshal booking: %w", err)
	}
	return &booking, nil
}

func (r *RedisBookingRepository) UpdateStatus(ctx context.Context, id domain.BookingID, from, to domain.BookingStatus) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "redis", "update_status", "bookings")
	defer span.End()

	key := r.bookingKey(id)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		booking, err := r.read(ctx, tx, id)
		if err != nil {
			return err
		}
		if booking.Status != from {
			return fmt.Errorf("%w: booking %s is %s, not %s", domain.ErrConcurrentUpdateConflict, id, booking.Status, from)
		}
		booking.Status = to
		data, err := json.Marshal(booking)
		if err != nil {
			return fmt.Errorf("failed to marshal booking: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: booking %s modified concurrently", domain.ErrConcurrentUpdateConflict, id)
	}
	return err
}

func (r *RedisBookingRepository) ListByDJ(ctx context.Context, djUsername string) ([]*domain.Booking, error) {
	return r.listSet(ctx, r.byDJKey(djUsername))
}

func (r *RedisBookingRepository) ListByVenue(ctx context.Context, venueName string) ([]*domain.Booking, error) {
	return r.listSet(ctx, r.byVenueKey(venueName))
}

func (r *RedisBookingRepository) listSet(ctx context.Context, setKey string) ([]*domain.Booking, error) {
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings from Redis: %w", err)
	}

	bookings := make([]*domain.Booking, 0, len(ids))
	for _, id := range ids {
		booking, err := r.GetByID(ctx, domain.BookingID(id))
		if errors.Is(err, domain.ErrBookingNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
	return bookings, nil
}
