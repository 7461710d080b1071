package services

import (
	"testing"

	"djbook/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

const secretLink = "https://stream.example/s/abc123"

func testBooking() *domain.Booking {
	return &domain.Booking{
		ID:               "b-1",
		DJUsername:       "dj_alex",
		DJName:           "DJ Alex",
		VenueName:        "The Basement",
		StreamingLink:    secretLink,
		RecurrenceAnchor: domain.RecurrenceAnchor{Weekday: 5, Hour: 22},
		Status:           domain.BookingStatusPending,
	}
}

func testVenue() *domain.Venue {
	return &domain.Venue{Name: "The Basement", OwnerUsername: "owner_olga", IsOpen: true}
}

func TestVisibilityResolver_StreamingLink(t *testing.T) {
	r := NewVisibilityResolver()
	booking := testBooking()
	venue := testVenue()

	tests := []struct {
		name    string
		viewer  *domain.User
		venue   *domain.Venue
		visible bool
	}{
		{"anonymous", nil, venue, false},
		{"guest", &domain.User{Username: "gus", Role: domain.RoleGuest}, venue, false},
		{"other dj", &domain.User{Username: "dj_bob", Role: domain.RoleDJ}, venue, false},
		{"booking dj", &domain.User{Username: "dj_alex", Role: domain.RoleDJ}, venue, true},
		{"manager", &domain.User{Username: "mia", Role: domain.RoleManager}, venue, true},
		{"sysadmin", &domain.User{Username: "root", Role: domain.RoleSysAdmin}, nil, true},
		{"venue owner", &domain.User{Username: "owner_olga", Role: domain.RoleVenueOwner, IsVenueOwner: true}, venue, true},
		{"owner of another venue", &domain.User{Username: "owner_pete", Role: domain.RoleVenueOwner, IsVenueOwner: true}, venue, false},
		{"owner name without owner flag", &domain.User{Username: "owner_olga", Role: domain.RoleGuest}, venue, false},
		{"owner with missing venue", &domain.User{Username: "owner_olga", Role: domain.RoleVenueOwner, IsVenueOwner: true}, nil, false},
		{"empty username", &domain.User{Role: domain.RoleGuest}, venue, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vis := r.Resolve(tt.viewer, booking, tt.venue)
			assert.Equal(t, tt.visible, vis.Visible(domain.FieldStreamingLink))
			if tt.visible {
				assert.Equal(t, secretLink, vis.Reveal(domain.FieldStreamingLink, booking.StreamingLink))
			} else {
				assert.Equal(t, domain.RedactedSentinel, vis.Reveal(domain.FieldStreamingLink, booking.StreamingLink))
			}
		})
	}
}

func TestVisibilityResolver_UnregisteredFieldHidden(t *testing.T) {
	r := NewVisibilityResolver()
	admin := &domain.User{Username: "root", Role: domain.RoleSysAdmin}

	vis := r.Resolve(admin, testBooking(), testVenue())
	assert.False(t, vis.Visible(domain.Field("phone_number")))
	assert.Equal(t, domain.RedactedSentinel, vis.Reveal(domain.Field("phone_number"), "555"))
}

func TestVisibilityResolver_RegisterFirstMatchWins(t *testing.T) {
	r := NewVisibilityResolver()
	notes := domain.Field("notes")
	r.Register(notes,
		VisibilityRule{Name: "deny dj", Matches: viewerIsBookingDJ, Visible: false},
		VisibilityRule{Name: "any viewer", Matches: func(*domain.User, *domain.Booking, *domain.Venue) bool { return true }, Visible: true},
	)

	dj := &domain.User{Username: "dj_alex", Role: domain.RoleDJ}
	guest := &domain.User{Username: "gus", Role: domain.RoleGuest}

	assert.False(t, r.Resolve(dj, testBooking(), testVenue()).Visible(notes))
	assert.True(t, r.Resolve(guest, testBooking(), testVenue()).Visible(notes))
	// registering a new field leaves existing ones intact
	assert.True(t, r.Resolve(dj, testBooking(), testVenue()).Visible(domain.FieldStreamingLink))
}

func TestVisibilityResolver_DoesNotMutateInputs(t *testing.T) {
	r := NewVisibilityResolver()
	booking := testBooking()
	venue := testVenue()
	before, venueBefore := *booking, *venue

	r.Resolve(&domain.User{Username: "gus", Role: domain.RoleGuest}, booking, venue)
	assert.Equal(t, before, *booking)
	assert.Equal(t, venueBefore, *venue)
}
