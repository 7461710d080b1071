package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/infrastructure/calendar"
	"djbook/pkg/clock"
	"djbook/pkg/tracing"
	"djbook/pkg/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingDeps groups the collaborators of the booking service. Events and
// Metrics are optional.
type BookingDeps struct {
	Bookings   ports.BookingRepository
	Venues     ports.VenueRepository
	Users      ports.UserRepository
	Recurrence *RecurrenceResolver
	Presenter  *Presenter
	Events     ports.EventPublisher
	Metrics    ports.Metrics
	Clock      clock.Clock
	Logger     *zap.SugaredLogger
}

type bookingService struct {
	BookingDeps
}

func NewBookingService(deps BookingDeps) ports.BookingService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	return &bookingService{BookingDeps: deps}
}

func (s *bookingService) CreateBooking(ctx context.Context, req ports.CreateBookingRequest) (*domain.Booking, error) {
	req.DJName = strings.TrimSpace(req.DJName)
	req.StreamingLink = strings.TrimSpace(req.StreamingLink)

	if err := validation.ValidateDisplayName(req.DJName); err != nil {
		return nil, err
	}
	if err := validation.ValidateStreamingLink(req.StreamingLink); err != nil {
		return nil, err
	}
	if err := req.Anchor.Validate(); err != nil {
		return nil, err
	}

	dj, err := s.Users.GetByUsername(ctx, req.DJUsername)
	if err != nil {
		return nil, fmt.Errorf("load dj: %w", err)
	}
	if dj.IsPermanentBan {
		return nil, domain.ErrPermanentlyBanned
	}
	if dj.Role != domain.RoleDJ && !dj.Role.IsStaff() {
		return nil, fmt.Errorf("%w: role %s cannot book venues", domain.ErrForbidden, dj.Role)
	}

	venue, err := s.Venues.GetByName(ctx, req.VenueName)
	if err != nil {
		return nil, err
	}
	if !venue.IsOpen {
		return nil, fmt.Errorf("%w: %s", domain.ErrVenueClosed, venue.Name)
	}

	booking := &domain.Booking{
		ID:               domain.BookingID(uuid.NewString()),
		DJUsername:       dj.Username,
		DJName:           req.DJName,
		VenueName:        venue.Name,
		StreamingLink:    req.StreamingLink,
		RecurrenceAnchor: req.Anchor,
		Status:           domain.BookingStatusPending,
		CreatedAt:        s.Clock.Now().UTC(),
	}
	if err := s.Bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.Logger.Infow("booking created",
		"booking_id", booking.ID,
		"dj", dj.Username,
		"venue", venue.Name,
		"anchor", booking.RecurrenceAnchor.String(),
	)
	if s.Metrics != nil {
		s.Metrics.RecordBookingCreated(venue.Name)
	}
	s.publish(ctx, booking)
	return booking, nil
}

func (s *bookingService) Present(ctx context.Context, viewer string, id domain.BookingID) (*domain.PresentedBooking, error) {
	ctx, span := tracing.TraceBookingOperation(ctx, "present", viewer, string(id))
	defer span.End()

	booking, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	v, err := s.viewer(ctx, viewer)
	if err != nil {
		return nil, err
	}
	venue, err := s.venueOrNil(ctx, booking.VenueName)
	if err != nil {
		return nil, err
	}

	return s.present(v, booking, venue), nil
}

func (s *bookingService) ListForDJ(ctx context.Context, viewer, djUsername string) ([]*domain.PresentedBooking, error) {
	if _, err := s.Users.GetByUsername(ctx, djUsername); err != nil {
		return nil, err
	}
	bookings, err := s.Bookings.ListByDJ(ctx, djUsername)
	if err != nil {
		return nil, err
	}
	return s.presentAll(ctx, viewer, bookings)
}

func (s *bookingService) ListForVenue(ctx context.Context, viewer, venueName string) ([]*domain.PresentedBooking, error) {
	if _, err := s.Venues.GetByName(ctx, venueName); err != nil {
		return nil, err
	}
	bookings, err := s.Bookings.ListByVenue(ctx, venueName)
	if err != nil {
		return nil, err
	}
	return s.presentAll(ctx, viewer, bookings)
}

// Confirm moves a pending booking to confirmed. Only the owner of the
// booked venue or staff may confirm.
func (s *bookingService) Confirm(ctx context.Context, actor string, id domain.BookingID) (*domain.Booking, error) {
	return s.transition(ctx, actor, id, domain.BookingStatusConfirmed, func(u *domain.User, b *domain.Booking, v *domain.Venue) bool {
		return u.Role.IsStaff() || (u.IsVenueOwner && v.OwnedBy(u.Username))
	})
}

// Cancel is terminal. The booking DJ, the venue owner or staff may cancel.
func (s *bookingService) Cancel(ctx context.Context, actor string, id domain.BookingID) (*domain.Booking, error) {
	return s.transition(ctx, actor, id, domain.BookingStatusCancelled, func(u *domain.User, b *domain.Booking, v *domain.Venue) bool {
		return u.Role.IsStaff() || (u.IsVenueOwner && v.OwnedBy(u.Username)) || b.DJUsername == u.Username
	})
}

func (s *bookingService) transition(
	ctx context.Context,
	actor string,
	id domain.BookingID,
	to domain.BookingStatus,
	allowed func(*domain.User, *domain.Booking, *domain.Venue) bool,
) (*domain.Booking, error) {
	ctx, span := tracing.TraceBookingOperation(ctx, string(to), actor, string(id))
	defer span.End()

	user, err := s.Users.GetByUsername(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}

	// The write only lands if the status is still the one checked here;
	// a concurrent transition forces a re-read and a fresh check.
	var booking *domain.Booking
	err = onConflict(ctx, func() error {
		b, err := s.Bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		venue, err := s.venueOrNil(ctx, b.VenueName)
		if err != nil {
			return err
		}
		if !allowed(user, b, venue) {
			return fmt.Errorf("%w: %s may not mark booking %s %s", domain.ErrForbidden, actor, id, to)
		}
		if !b.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, b.Status, to)
		}
		if err := s.Bookings.UpdateStatus(ctx, id, b.Status, to); err != nil {
			return err
		}
		b.Status = to
		booking = b
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	s.Logger.Infow("booking status changed", "booking_id", id, "status", to, "actor", actor)
	s.publish(ctx, booking)
	return booking, nil
}

// Calendar renders one booking as an iCalendar document. The streaming link
// is included only when the viewer may see it.
func (s *bookingService) Calendar(ctx context.Context, viewer string, id domain.BookingID) ([]byte, error) {
	booking, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.viewer(ctx, viewer)
	if err != nil {
		return nil, err
	}
	venue, err := s.venueOrNil(ctx, booking.VenueName)
	if err != nil {
		return nil, err
	}

	event, err := s.calendarEvent(v, booking, venue)
	if err != nil {
		return nil, err
	}
	return calendar.Render([]calendar.Event{event}, s.Clock.Now()), nil
}

// DJCalendar renders every booking of a DJ as one feed.
func (s *bookingService) DJCalendar(ctx context.Context, viewer, djUsername string) ([]byte, error) {
	if _, err := s.Users.GetByUsername(ctx, djUsername); err != nil {
		return nil, err
	}
	bookings, err := s.Bookings.ListByDJ(ctx, djUsername)
	if err != nil {
		return nil, err
	}
	v, err := s.viewer(ctx, viewer)
	if err != nil {
		return nil, err
	}

	venues := make(map[string]*domain.Venue)
	events := make([]calendar.Event, 0, len(bookings))
	for _, b := range bookings {
		venue, ok := venues[b.VenueName]
		if !ok {
			if venue, err = s.venueOrNil(ctx, b.VenueName); err != nil {
				return nil, err
			}
			venues[b.VenueName] = venue
		}
		event, err := s.calendarEvent(v, b, venue)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return calendar.Render(events, s.Clock.Now()), nil
}

func (s *bookingService) calendarEvent(viewer *domain.User, b *domain.Booking, venue *domain.Venue) (calendar.Event, error) {
	// the series starts at the first occurrence after creation
	start, err := s.Recurrence.NextOccurrence(b.RecurrenceAnchor, b.CreatedAt)
	if err != nil {
		return calendar.Event{}, err
	}

	p := s.present(viewer, b, venue)
	link := ""
	if p.StreamingLinkVisible {
		link = p.StreamingLink
	}

	return calendar.Event{
		UID:         string(b.ID) + "@djbook",
		Summary:     fmt.Sprintf("%s at %s", b.DJName, b.VenueName),
		Location:    b.VenueName,
		Description: p.Schedule,
		URL:         link,
		Start:       start,
		RRule:       s.Recurrence.RRule(b.RecurrenceAnchor),
		Cancelled:   b.Status == domain.BookingStatusCancelled,
		Confirmed:   b.Status == domain.BookingStatusConfirmed,
	}, nil
}

func (s *bookingService) presentAll(ctx context.Context, viewer string, bookings []*domain.Booking) ([]*domain.PresentedBooking, error) {
	v, err := s.viewer(ctx, viewer)
	if err != nil {
		return nil, err
	}

	venues := make(map[string]*domain.Venue)
	out := make([]*domain.PresentedBooking, 0, len(bookings))
	for _, b := range bookings {
		venue, ok := venues[b.VenueName]
		if !ok {
			if venue, err = s.venueOrNil(ctx, b.VenueName); err != nil {
				return nil, err
			}
			venues[b.VenueName] = venue
		}
		out = append(out, s.present(v, b, venue))
	}

	SortByNextOccurrence(out)
	return out, nil
}

func (s *bookingService) present(viewer *domain.User, b *domain.Booking, venue *domain.Venue) *domain.PresentedBooking {
	p := s.Presenter.Present(viewer, b, venue, s.Clock.Now())
	if s.Metrics != nil {
		s.Metrics.RecordPresentation(p.StreamingLinkVisible)
	}
	return p
}

// viewer resolves the requesting user. Anonymous or unknown viewers are nil
// and see only public fields.
func (s *bookingService) viewer(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, nil
	}
	u, err := s.Users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

// venueOrNil treats a missing venue as no venue: nobody matches ownership.
func (s *bookingService) venueOrNil(ctx context.Context, name string) (*domain.Venue, error) {
	v, err := s.Venues.GetByName(ctx, name)
	if errors.Is(err, domain.ErrVenueNotFound) {
		return nil, nil
	}
	return v, err
}

func (s *bookingService) publish(ctx context.Context, b *domain.Booking) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishBookingStatus(ctx, b); err != nil {
		s.Logger.Warnw("failed to publish booking event", "booking_id", b.ID, "error", err)
	}
}

// SortByNextOccurrence orders upcoming bookings soonest first and puts
// bookings without a next occurrence last. Ties break on id.
func SortByNextOccurrence(list []*domain.PresentedBooking) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].NextOccurrence, list[j].NextOccurrence
		switch {
		case a == nil && b == nil:
			return list[i].ID < list[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return list[i].ID < list[j].ID
	})
}
