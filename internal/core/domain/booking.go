package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type BookingID string

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a weekly recurring slot. RecurrenceAnchor never changes after
// creation; rescheduling means a new booking.
type Booking struct {
	ID               BookingID        `json:"id"`
	DJUsername       string           `json:"dj_username"`
	DJName           string           `json:"dj_name"`
	VenueName        string           `json:"venue_name"`
	StreamingLink    string           `json:"streaming_link"`
	RecurrenceAnchor RecurrenceAnchor `json:"recurrence_anchor"`
	Status           BookingStatus    `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// CanTransition reports whether the status change is allowed.
// Cancelled is terminal.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	switch s {
	case BookingStatusPending:
		return to == BookingStatusConfirmed || to == BookingStatusCancelled
	case BookingStatusConfirmed:
		return to == BookingStatusCancelled
	}
	return false
}

// RecurrenceAnchor is a weekday plus time-of-day in the canonical timezone.
type RecurrenceAnchor struct {
	Weekday time.Weekday `json:"weekday"`
	Hour    int          `json:"hour"`
	Minute  int          `json:"minute"`
}

// NewRecurrenceAnchor validates and builds an anchor.
func NewRecurrenceAnchor(weekday time.Weekday, hour, minute int) (RecurrenceAnchor, error) {
	a := RecurrenceAnchor{Weekday: weekday, Hour: hour, Minute: minute}
	if err := a.Validate(); err != nil {
		return RecurrenceAnchor{}, err
	}
	return a, nil
}

func (a RecurrenceAnchor) Validate() error {
	if a.Weekday < time.Sunday || a.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidAnchor, a.Weekday)
	}
	if a.Hour < 0 || a.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidAnchor, a.Hour)
	}
	if a.Minute < 0 || a.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidAnchor, a.Minute)
	}
	return nil
}

func (a RecurrenceAnchor) String() string {
	return fmt.Sprintf("%s %02d:%02d", a.Weekday, a.Hour, a.Minute)
}

// ParseRecurrenceAnchor parses a weekday name ("friday", "Fri") and a
// 24-hour "HH:MM" time of day.
func ParseRecurrenceAnchor(weekday, timeOfDay string) (RecurrenceAnchor, error) {
	wd, ok := parseWeekday(weekday)
	if !ok {
		return RecurrenceAnchor{}, fmt.Errorf("%w: unknown weekday %q", ErrInvalidAnchor, weekday)
	}

	parts := strings.Split(strings.TrimSpace(timeOfDay), ":")
	if len(parts) != 2 {
		return RecurrenceAnchor{}, fmt.Errorf("%w: time of day %q must be HH:MM", ErrInvalidAnchor, timeOfDay)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return RecurrenceAnchor{}, fmt.Errorf("%w: bad hour %q", ErrInvalidAnchor, parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return RecurrenceAnchor{}, fmt.Errorf("%w: bad minute %q", ErrInvalidAnchor, parts[1])
	}

	return NewRecurrenceAnchor(wd, hour, minute)
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return 0, false
}
