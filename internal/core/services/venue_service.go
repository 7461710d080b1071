package services

import (
	"context"
	"fmt"
	"strings"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/pkg/clock"
	"djbook/pkg/validation"

	"go.uber.org/zap"
)

type venueService struct {
	venues ports.VenueRepository
	users  ports.UserRepository
	clock  clock.Clock
	log    *zap.SugaredLogger
}

func NewVenueService(venues ports.VenueRepository, users ports.UserRepository, clk clock.Clock, log *zap.SugaredLogger) ports.VenueService {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &venueService{venues: venues, users: users, clock: clk, log: log}
}

// CreateVenue registers a new open venue and marks its creator as a venue
// owner.
func (s *venueService) CreateVenue(ctx context.Context, owner, name string) (*domain.Venue, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateVenueName(name); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}
	if user.IsPermanentBan {
		return nil, domain.ErrPermanentlyBanned
	}
	switch {
	case user.Role == domain.RoleVenueOwner, user.Role.IsStaff(), user.IsVenueOwner:
	default:
		return nil, fmt.Errorf("%w: role %s cannot create venues", domain.ErrForbidden, user.Role)
	}

	venue := &domain.Venue{
		Name:          name,
		OwnerUsername: owner,
		IsOpen:        true,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.venues.Create(ctx, venue); err != nil {
		return nil, err
	}

	if !user.IsVenueOwner {
		err := onConflict(ctx, func() error {
			return s.users.SetVenueOwner(ctx, owner, true)
		})
		if err != nil {
			return nil, fmt.Errorf("mark venue owner: %w", err)
		}
	}

	s.log.Infow("venue created", "venue", name, "owner", owner)
	return venue, nil
}

func (s *venueService) GetVenue(ctx context.Context, name string) (*domain.Venue, error) {
	return s.venues.GetByName(ctx, name)
}

// SetOpen toggles whether the venue accepts new bookings. Only the owner or
// staff may do it.
func (s *venueService) SetOpen(ctx context.Context, actor, name string, open bool) (*domain.Venue, error) {
	venue, err := s.venues.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByUsername(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	if !user.Role.IsStaff() && !(user.IsVenueOwner && venue.OwnedBy(user.Username)) {
		return nil, fmt.Errorf("%w: %s does not manage venue %s", domain.ErrForbidden, actor, name)
	}

	if venue.IsOpen == open {
		return venue, nil
	}
	venue.IsOpen = open
	if err := s.venues.Update(ctx, venue); err != nil {
		return nil, err
	}

	s.log.Infow("venue availability changed", "venue", name, "open", open, "actor", actor)
	return venue, nil
}
