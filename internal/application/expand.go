package application

import (
	"time"

	"github.com/example/availability-scheduler/internal/recurrence"
)

// ExpandEvents resolves recurring events into the concrete occurrences that
// fall inside the inclusive [start, end] window. Non-recurring events are
// passed through when they start inside the window; results are ordered by
// start time.
func ExpandEvents(events []Event, start, end time.Time) []Event {
	return recurrence.Expand(events, start, end)
}

// ExpandAvailability resolves recurring availability slots into concrete
// occurrences, with the same window semantics as ExpandEvents.
func ExpandAvailability(slots []AvailabilitySlot, start, end time.Time) []AvailabilitySlot {
	return recurrence.Expand(slots, start, end)
}
