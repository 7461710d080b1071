package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
)

type MemoryBookingRepository struct {
	bookings map[domain.BookingID]domain.Booking
	mu       sync.RWMutex
}

func NewMemoryBookingRepository() ports.BookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[domain.BookingID]domain.Booking),
	}
}

func (r *MemoryBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[booking.ID]; exists {
		return fmt.Errorf("booking already exists: %s", booking.ID)
	}

	r.bookings[booking.ID] = *booking
	return nil
}

func (r *MemoryBookingRepository) GetByID(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, exists := r.bookings[id]
	if !exists {
		return nil, domain.ErrBookingNotFound
	}

	return &booking, nil
}

func (r *MemoryBookingRepository) UpdateStatus(ctx context.Context, id domain.BookingID, from, to domain.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, exists := r.bookings[id]
	if !exists {
		return domain.ErrBookingNotFound
	}
	if booking.Status != from {
		return fmt.Errorf("%w: booking %s is %s, not %s", domain.ErrConcurrentUpdateConflict, id, booking.Status, from)
	}

	booking.Status = to
	r.bookings[id] = booking
	return nil
}

func (r *MemoryBookingRepository) ListByDJ(ctx context.Context, djUsername string) ([]*domain.Booking, error) {
	return r.list(func(b domain.Booking) bool { return b.DJUsername == djUsername }), nil
}

func (r *MemoryBookingRepository) ListByVenue(ctx context.Context, venueName string) ([]*domain.Booking, error) {
	return r.list(func(b domain.Booking) bool { return b.VenueName == venueName }), nil
}

// list returns matches ordered by creation time for stable output.
func (r *MemoryBookingRepository) list(match func(domain.Booking) bool) []*domain.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Booking, 0)
	for _, b := range r.bookings {
		if match(b) {
			b := b
			result = append(result, &b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
