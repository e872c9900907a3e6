// Package ics renders expanded event occurrences as an iCalendar feed.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/availability-scheduler/internal/application"
)

const productID = "-//availability-scheduler//calendar//EN"

// BuildEventCalendar serializes the given occurrences into an iCalendar
// document. Callers are expected to pass concrete occurrences as produced
// by expansion; recurrence templates are rendered as plain events with no
// RRULE, since their occurrences have already been materialized.
func BuildEventCalendar(events []application.Event, generatedAt time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	stamp := generatedAt.UTC()
	for _, event := range events {
		ve := cal.AddEvent(event.ID)
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(event.Start.UTC())
		ve.SetEndAt(event.End.UTC())
		ve.SetSummary(event.Title)
		if event.Description != nil && *event.Description != "" {
			ve.SetDescription(*event.Description)
		}
		if event.Venue != nil && *event.Venue != "" {
			ve.SetLocation(*event.Venue)
		}
		if !event.CreatedAt.IsZero() {
			ve.SetCreatedTime(event.CreatedAt.UTC())
		}
		if !event.UpdatedAt.IsZero() {
			ve.SetModifiedAt(event.UpdatedAt.UTC())
		}
	}

	return cal.Serialize()
}
