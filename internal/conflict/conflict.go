package conflict

import "time"

// Event is the minimal projection of an event occurrence needed for
// overlap detection. Recurring events must be expanded before detection;
// the detector only reasons about concrete intervals.
type Event struct {
	ID          string
	OrganizerID string
	Venue       *string
	Start       time.Time
	End         time.Time
}

// Type describes the kind of conflict detected between events.
type Type string

const (
	// TypeOrganizer indicates the organizer is double-booked.
	TypeOrganizer Type = "organizer"
	// TypeVenue indicates the venue is double-booked.
	TypeVenue Type = "venue"
)

// Conflict details an overlapping event relation that callers can surface
// to users as a warning.
type Conflict struct {
	WithEventID string
	Type        Type
	OrganizerID string
	Venue       *string
}

// Detect reports conflicts between the candidate and each existing event.
// Intervals are treated as half-open: back-to-back events do not conflict.
func Detect(existing []Event, candidate Event) []Conflict {
	var conflicts []Conflict

	for _, other := range existing {
		if other.ID == candidate.ID {
			continue
		}
		if !overlaps(candidate, other) {
			continue
		}

		if candidate.OrganizerID != "" && candidate.OrganizerID == other.OrganizerID {
			conflicts = append(conflicts, Conflict{
				WithEventID: other.ID,
				Type:        TypeOrganizer,
				OrganizerID: candidate.OrganizerID,
			})
		}

		if candidate.Venue != nil && other.Venue != nil && *candidate.Venue == *other.Venue {
			venue := *candidate.Venue
			conflicts = append(conflicts, Conflict{
				WithEventID: other.ID,
				Type:        TypeVenue,
				Venue:       &venue,
			})
		}
	}

	return conflicts
}

func overlaps(a, b Event) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
