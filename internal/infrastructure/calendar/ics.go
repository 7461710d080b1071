// Package calendar renders recurring bookings as iCalendar feeds.
package calendar

import (
	"time"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//djbook//bookings//EN"

// Event is one weekly recurring booking in calendar form.
type Event struct {
	UID         string
	Summary     string
	Location    string
	Description string
	// URL is omitted when empty; callers pass only links the viewer may see.
	URL       string
	Start     time.Time
	RRule     string
	Cancelled bool
	Confirmed bool
}

// Render serializes events into a VCALENDAR. Start times are written as
// local wall-clock time with a TZID so the weekly rule follows DST shifts.
func Render(events []Event, stamp time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		ev := cal.AddEvent(e.UID)
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(e.Summary)
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if e.URL != "" {
			ev.SetProperty(ical.ComponentPropertyUrl, e.URL)
		}

		tzid := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{e.Start.Location().String()}}
		ev.SetProperty(ical.ComponentPropertyDtStart, e.Start.Format("20060102T150405"), tzid)

		switch {
		case e.Cancelled:
			ev.SetProperty(ical.ComponentPropertyStatus, "CANCELLED")
		case e.Confirmed:
			ev.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
			ev.AddProperty(ical.ComponentPropertyRrule, e.RRule)
		default:
			ev.SetProperty(ical.ComponentPropertyStatus, "TENTATIVE")
			ev.AddProperty(ical.ComponentPropertyRrule, e.RRule)
		}
	}

	return []byte(cal.Serialize())
}
