package services

import (
	"time"

	"djbook/internal/core/domain"
)

// Presenter composes recurrence and visibility into the view handed to
// consumers. It borrows its inputs and never mutates them.
type Presenter struct {
	recurrence *RecurrenceResolver
	visibility *VisibilityResolver
}

func NewPresenter(recurrence *RecurrenceResolver, visibility *VisibilityResolver) *Presenter {
	return &Presenter{recurrence: recurrence, visibility: visibility}
}

// Present builds the viewer-specific view of booking. venue may be nil.
// Cancelled bookings have no next occurrence.
func (p *Presenter) Present(viewer *domain.User, booking *domain.Booking, venue *domain.Venue, now time.Time) *domain.PresentedBooking {
	vis := p.visibility.Resolve(viewer, booking, venue)

	out := &domain.PresentedBooking{
		ID:                   booking.ID,
		DJName:               booking.DJName,
		VenueName:            booking.VenueName,
		Status:               booking.Status,
		Schedule:             booking.RecurrenceAnchor.String() + " " + p.recurrence.Location().String(),
		StreamingLink:        vis.Reveal(domain.FieldStreamingLink, booking.StreamingLink),
		StreamingLinkVisible: vis.Visible(domain.FieldStreamingLink),
	}

	if booking.Status != domain.BookingStatusCancelled {
		// Stored anchors are validated at creation, so an error here means
		// a corrupt record; it is presented without a next occurrence.
		if next, err := p.recurrence.NextOccurrence(booking.RecurrenceAnchor, now); err == nil {
			out.NextOccurrence = &next
		}
	}

	return out
}
