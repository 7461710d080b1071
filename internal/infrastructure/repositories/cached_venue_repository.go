package repositories

import (
	"context"
	"time"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/pkg/cache"
)

// CachedVenueRepository serves GetByName from a TTL cache and drops the
// entry on every write through it. Copies are handed out so callers cannot
// mutate cached state.
type CachedVenueRepository struct {
	base  ports.VenueRepository
	cache *cache.TTL[domain.Venue]
}

func NewCachedVenueRepository(base ports.VenueRepository, ttl time.Duration) *CachedVenueRepository {
	return &CachedVenueRepository{
		base:  base,
		cache: cache.New[domain.Venue](ttl, ttl, nil),
	}
}

var _ ports.VenueRepository = (*CachedVenueRepository)(nil)

func (r *CachedVenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	if err := r.base.Create(ctx, venue); err != nil {
		return err
	}
	r.cache.Delete(venue.Name)
	return nil
}

func (r *CachedVenueRepository) GetByName(ctx context.Context, name string) (*domain.Venue, error) {
	v, err := r.cache.GetOrLoad(ctx, name, func(ctx context.Context) (domain.Venue, error) {
		venue, err := r.base.GetByName(ctx, name)
		if err != nil {
			return domain.Venue{}, err
		}
		return *venue, nil
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *CachedVenueRepository) Update(ctx context.Context, venue *domain.Venue) error {
	r.cache.Delete(venue.Name)
	if err := r.base.Update(ctx, venue); err != nil {
		return err
	}
	r.cache.Delete(venue.Name)
	return nil
}

// Stats exposes hit/miss counters.
func (r *CachedVenueRepository) Stats() cache.Stats {
	return r.cache.Stats()
}

func (r *CachedVenueRepository) Close() {
	r.cache.Stop()
}
