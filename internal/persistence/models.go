package persistence

import "time"

// Event represents a stored event record. When Recurring is set the row is
// a template: Start and End carry the time-of-day and duration of each
// occurrence rather than one concrete instance.
type Event struct {
	ID             string
	Title          string
	Description    *string
	OrganizerID    string
	Venue          *string
	Start          time.Time
	End            time.Time
	Recurring      bool
	DayOfWeek      *time.Weekday
	RecurrenceEnd  *time.Time
	ExceptionDates []time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AvailabilitySlot represents a stored availability window for one user.
// Recurrence semantics match Event.
type AvailabilitySlot struct {
	ID             string
	UserID         string
	Note           *string
	Start          time.Time
	End            time.Time
	Recurring      bool
	DayOfWeek      *time.Weekday
	RecurrenceEnd  *time.Time
	ExceptionDates []time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// User represents an account in the scheduler domain.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}
