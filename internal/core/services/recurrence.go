package services

import (
	"fmt"
	"time"

	"djbook/internal/core/domain"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

var icsWeekdays = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// RecurrenceResolver computes concrete occurrences of weekly anchors in a
// single canonical timezone. It holds no state beyond the location and is
// safe for concurrent use. Results must not be cached: "now" moves.
type RecurrenceResolver struct {
	loc *time.Location
}

func NewRecurrenceResolver(loc *time.Location) *RecurrenceResolver {
	if loc == nil {
		loc = time.UTC
	}
	return &RecurrenceResolver{loc: loc}
}

func (r *RecurrenceResolver) Location() *time.Location {
	return r.loc
}

// NextOccurrence returns the earliest instant >= now that falls on the
// anchor's weekday and time of day. An occurrence exactly at now is itself
// the next occurrence.
func (r *RecurrenceResolver) NextOccurrence(anchor domain.RecurrenceAnchor, now time.Time) (time.Time, error) {
	rule, err := r.rule(anchor, now)
	if err != nil {
		return time.Time{}, err
	}

	next := rule.After(now, true)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: no occurrence after %s", domain.ErrInvalidAnchor, now.Format(time.RFC3339))
	}
	return next.In(r.loc), nil
}

// Occurrences lists the next n occurrences starting at now (inclusive).
func (r *RecurrenceResolver) Occurrences(anchor domain.RecurrenceAnchor, now time.Time, n int) ([]time.Time, error) {
	first, err := r.NextOccurrence(anchor, now)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		// AddDate keeps the wall-clock time across DST changes.
		out = append(out, first.AddDate(0, 0, 7*i))
	}
	return out, nil
}

// RRule renders the anchor as an iCalendar RRULE value.
func (r *RecurrenceResolver) RRule(anchor domain.RecurrenceAnchor) string {
	return fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;BYHOUR=%d;BYMINUTE=%d;BYSECOND=0",
		icsWeekdays[anchor.Weekday], anchor.Hour, anchor.Minute)
}

func (r *RecurrenceResolver) rule(anchor domain.RecurrenceAnchor, now time.Time) (*rrule.RRule, error) {
	if err := anchor.Validate(); err != nil {
		return nil, err
	}

	// Start the rule a full week before now so the current week's
	// candidate is always part of the set.
	local := now.In(r.loc)
	dtstart := time.Date(local.Year(), local.Month(), local.Day()-7, 0, 0, 0, 0, r.loc)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtstart,
		Byweekday: []rrule.Weekday{rruleWeekdays[anchor.Weekday]},
		Byhour:    []int{anchor.Hour},
		Byminute:  []int{anchor.Minute},
		Bysecond:  []int{0},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAnchor, err)
	}
	return rule, nil
}
