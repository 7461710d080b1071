package ports

import (
	"context"

	"djbook/internal/core/domain"
)

type AbuseLedger interface {
	RecordViolation(ctx context.Context, v domain.Violation) (*domain.EnforcementOutcome, error)
	SharesIPHistory(ctx context.Context, usernameA, usernameB string) (bool, error)
	BanRecord(ctx context.Context, username string) (*domain.BanRecord, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error)
	Present(ctx context.Context, viewer string, id domain.BookingID) (*domain.PresentedBooking, error)
	ListForDJ(ctx context.Context, viewer, djUsername string) ([]*domain.PresentedBooking, error)
	ListForVenue(ctx context.Context, viewer, venueName string) ([]*domain.PresentedBooking, error)
	Confirm(ctx context.Context, actor string, id domain.BookingID) (*domain.Booking, error)
	Cancel(ctx context.Context, actor string, id domain.BookingID) (*domain.Booking, error)
	Calendar(ctx context.Context, viewer string, id domain.BookingID) ([]byte, error)
	DJCalendar(ctx context.Context, viewer, djUsername string) ([]byte, error)
}

type CreateBookingRequest struct {
	DJUsername    string
	DJName        string
	VenueName     string
	StreamingLink string
	Anchor        domain.RecurrenceAnchor
}

type VenueService interface {
	CreateVenue(ctx context.Context, owner, name string) (*domain.Venue, error)
	GetVenue(ctx context.Context, name string) (*domain.Venue, error)
	SetOpen(ctx context.Context, actor, name string, open bool) (*domain.Venue, error)
}

type UserService interface {
	Register(ctx context.Context, username, password string, role domain.Role, ip string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password, ip string) (*domain.User, error)
	GetUser(ctx context.Context, username string) (*domain.User, error)
	SetRole(ctx context.Context, actor, username string, role domain.Role) (*domain.User, error)
}

// Metrics receives core events for observability. Implementations must be
// safe for concurrent use.
type Metrics interface {
	RecordViolation(decision domain.EnforcementDecision)
	RecordBanUpdateConflict()
	RecordBookingCreated(venueName string)
	RecordPresentation(linkVisible bool)
}
