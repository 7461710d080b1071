package memory

import (
	"context"
	"fmt"
	"sync"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
)

type MemoryVenueRepository struct {
	venues map[string]domain.Venue
	mu     sync.RWMutex
}

func NewMemoryVenueRepository() ports.VenueRepository {
	return &MemoryVenueRepository{
		venues: make(map[string]domain.Venue),
	}
}

func (r *MemoryVenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.venues[venue.Name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrVenueExists, venue.Name)
	}

	r.venues[venue.Name] = *venue
	return nil
}

func (r *MemoryVenueRepository) GetByName(ctx context.Context, name string) (*domain.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	venue, exists := r.venues[name]
	if !exists {
		return nil, domain.ErrVenueNotFound
	}

	return &venue, nil
}

func (r *MemoryVenueRepository) Update(ctx context.Context, venue *domain.Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.venues[venue.Name]; !exists {
		return domain.ErrVenueNotFound
	}

	r.venues[venue.Name] = *venue
	return nil
}
