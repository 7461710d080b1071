package services

import (
	"djbook/internal/core/domain"
)

// VisibilityRule is one (predicate, outcome) pair. Rules for a field are
// evaluated in order and the first matching rule decides.
type VisibilityRule struct {
	Name    string
	Matches func(viewer *domain.User, booking *domain.Booking, venue *domain.Venue) bool
	Visible bool
}

// Visibility is the per-field outcome of one resolution.
type Visibility struct {
	fields map[domain.Field]bool
}

// Visible reports whether the viewer may see field verbatim.
func (v Visibility) Visible(field domain.Field) bool {
	return v.fields[field]
}

// Reveal returns raw when the field is visible and the redaction sentinel
// otherwise.
func (v Visibility) Reveal(field domain.Field, raw string) string {
	if v.fields[field] {
		return raw
	}
	return domain.RedactedSentinel
}

// VisibilityResolver decides, per viewer and per field, what a booking may
// reveal. Resolution is pure: no I/O, no mutation.
type VisibilityResolver struct {
	order []domain.Field
	rules map[domain.Field][]VisibilityRule
}

// NewVisibilityResolver returns a resolver with the streaming link rules
// registered.
func NewVisibilityResolver() *VisibilityResolver {
	r := &VisibilityResolver{rules: make(map[domain.Field][]VisibilityRule)}
	r.Register(domain.FieldStreamingLink,
		VisibilityRule{Name: "staff", Matches: viewerIsStaff, Visible: true},
		VisibilityRule{Name: "venue_owner", Matches: viewerOwnsVenue, Visible: true},
		VisibilityRule{Name: "booking_dj", Matches: viewerIsBookingDJ, Visible: true},
	)
	return r
}

// Register appends rules for field. Fields with no matching rule are hidden.
// Register is not safe to call concurrently with Resolve; wire rules at
// construction time.
func (r *VisibilityResolver) Register(field domain.Field, rules ...VisibilityRule) {
	if _, ok := r.rules[field]; !ok {
		r.order = append(r.order, field)
	}
	r.rules[field] = append(r.rules[field], rules...)
}

// Resolve evaluates every registered field. venue may be nil when the
// referenced venue does not exist; ownership rules then never match.
func (r *VisibilityResolver) Resolve(viewer *domain.User, booking *domain.Booking, venue *domain.Venue) Visibility {
	out := Visibility{fields: make(map[domain.Field]bool, len(r.order))}
	for _, field := range r.order {
		out.fields[field] = r.decide(field, viewer, booking, venue)
	}
	return out
}

func (r *VisibilityResolver) decide(field domain.Field, viewer *domain.User, booking *domain.Booking, venue *domain.Venue) bool {
	if viewer == nil || booking == nil {
		return false
	}
	for _, rule := range r.rules[field] {
		if rule.Matches(viewer, booking, venue) {
			return rule.Visible
		}
	}
	return false
}

func viewerIsStaff(viewer *domain.User, _ *domain.Booking, _ *domain.Venue) bool {
	return viewer.Role.IsStaff()
}

func viewerOwnsVenue(viewer *domain.User, _ *domain.Booking, venue *domain.Venue) bool {
	return viewer.IsVenueOwner && venue.OwnedBy(viewer.Username)
}

func viewerIsBookingDJ(viewer *domain.User, booking *domain.Booking, _ *domain.Venue) bool {
	return viewer.Username != "" && viewer.Username == booking.DJUsername
}
