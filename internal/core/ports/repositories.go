package ports

import (
	"context"

	"djbook/internal/core/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// UpdateBanRecord writes the ban-related fields and IP history of user
	// only if the stored version still equals expectedVersion, and stores
	// user.Version as the new version. A stale version yields
	// domain.ErrConcurrentUpdateConflict.
	UpdateBanRecord(ctx context.Context, user *domain.User, expectedVersion int64) error
	UpdateCurrentIP(ctx context.Context, username, ip string) error
	UpdateRole(ctx context.Context, username string, role domain.Role) error
	SetVenueOwner(ctx context.Context, username string, owner bool) error
}

type VenueRepository interface {
	Create(ctx context.Context, venue *domain.Venue) error
	GetByName(ctx context.Context, name string) (*domain.Venue, error)
	Update(ctx context.Context, venue *domain.Venue) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id domain.BookingID) (*domain.Booking, error)
	// UpdateStatus moves the booking from one status to another only if it
	// is still in from. Otherwise it returns
	// domain.ErrConcurrentUpdateConflict and leaves the booking untouched.
	UpdateStatus(ctx context.Context, id domain.BookingID, from, to domain.BookingStatus) error
	ListByDJ(ctx context.Context, djUsername string) ([]*domain.Booking, error)
	ListByVenue(ctx context.Context, venueName string) ([]*domain.Booking, error)
}

// UserLocker provides the per-user critical section for ban-record writes.
type UserLocker interface {
	Lock(ctx context.Context, username string) (unlock func(), err error)
}

// EventPublisher announces committed state changes to other instances.
type EventPublisher interface {
	PublishViolation(ctx context.Context, outcome *domain.EnforcementOutcome) error
	PublishBookingStatus(ctx context.Context, booking *domain.Booking) error
}
