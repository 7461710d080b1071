package domain

import "time"

// RedactedSentinel replaces a hidden field. It is never empty so consumers
// can tell "redacted" apart from "not set".
const RedactedSentinel = "Hidden - Venue Owner/Admin Only"

// Field names a sensitive booking field gated by visibility rules.
type Field string

const (
	FieldStreamingLink Field = "streaming_link"
)

// PresentedBooking is the only booking shape handed to external consumers.
type PresentedBooking struct {
	ID                   BookingID     `json:"id"`
	DJName               string        `json:"dj_name"`
	VenueName            string        `json:"venue_name"`
	Status               BookingStatus `json:"status"`
	Schedule             string        `json:"schedule"`
	NextOccurrence       *time.Time    `json:"next_occurrence"`
	StreamingLink        string        `json:"streaming_link"`
	StreamingLinkVisible bool          `json:"streaming_link_visible"`
}
