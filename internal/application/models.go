package application

import (
	"time"

	"github.com/example/availability-scheduler/internal/recurrence"
)

// Role identifies the permission tier assigned to a user account.
type Role string

const (
	// RoleAdmin may manage users and any event or availability slot.
	RoleAdmin Role = "admin"
	// RoleOrganizer may manage events they own and their own availability.
	RoleOrganizer Role = "organizer"
	// RoleMember may manage their own availability and read events.
	RoleMember Role = "member"
)

// Valid reports whether the role is one of the recognized tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleMember:
		return true
	}
	return false
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanOrganize reports whether the principal may create and manage events.
func (p Principal) CanOrganize() bool {
	return p.Role == RoleAdmin || p.Role == RoleOrganizer
}

// RecurrenceInput captures caller provided recurrence fields shared by
// events and availability slots. DayOfWeek uses 0 for Sunday through 6 for
// Saturday; when present the item repeats weekly, otherwise daily.
type RecurrenceInput struct {
	Recurring      bool
	DayOfWeek      *int
	RecurrenceEnd  *time.Time
	ExceptionDates []time.Time
}

// EventInput captures caller provided event fields.
type EventInput struct {
	OrganizerID string
	Title       string
	Description *string
	Venue       *string
	Start       time.Time
	End         time.Time
	Recurrence  RecurrenceInput
}

// Event represents a persisted event. A recurring event acts as a template:
// Start and End carry the time-of-day and duration of each occurrence. After
// expansion each occurrence is an Event whose ID identifies the instance and
// whose Recurring flag is cleared.
type Event struct {
	ID             string
	OrganizerID    string
	Title          string
	Description    *string
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

// Template converts the event into its recurrence descriptor.
func (e Event) Template() recurrence.Template {
	return recurrence.Template{
		ID:         e.ID,
		Start:      e.Start,
		End:        e.End,
		Recurring:  e.Recurring,
		Weekday:    e.DayOfWeek,
		Until:      e.RecurrenceEnd,
		Exceptions: e.ExceptionDates,
	}
}

// Instance produces the concrete occurrence derived from this template.
func (e Event) Instance(id string, start, end time.Time) Event {
	out := e
	out.ID = id
	out.Start = start
	out.End = end
	out.Recurring = false
	out.DayOfWeek = nil
	out.RecurrenceEnd = nil
	out.ExceptionDates = nil
	return out
}

// ConflictWarning describes a double-booking that should be surfaced to callers.
type ConflictWarning struct {
	EventID     string
	Type        string
	OrganizerID string
	Venue       *string
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an existing event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
}

// ListPeriod identifies the range preset requested for listings.
type ListPeriod string

const (
	// ListPeriodNone indicates no preset; caller supplied explicit bounds.
	ListPeriodNone ListPeriod = ""
	// ListPeriodDay constrains results to a single UTC day.
	ListPeriodDay ListPeriod = "day"
	// ListPeriodWeek constrains results to the Monday-start UTC week containing the reference time.
	ListPeriodWeek ListPeriod = "week"
	// ListPeriodMonth constrains results to the UTC month containing the reference time.
	ListPeriodMonth ListPeriod = "month"
)

// ListEventsParams wraps the data required to list events. When Start and
// End are both set (directly or via a period preset) recurring events are
// expanded into concrete occurrences within that window.
type ListEventsParams struct {
	Principal       Principal
	OrganizerID     string
	Start           *time.Time
	End             *time.Time
	Period          ListPeriod
	PeriodReference time.Time
}

// AvailabilityInput captures caller provided availability slot fields.
type AvailabilityInput struct {
	UserID     string
	Note       *string
	Start      time.Time
	End        time.Time
	Recurrence RecurrenceInput
}

// AvailabilitySlot represents a persisted availability window for one user.
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

// Template converts the slot into its recurrence descriptor.
func (s AvailabilitySlot) Template() recurrence.Template {
	return recurrence.Template{
		ID:         s.ID,
		Start:      s.Start,
		End:        s.End,
		Recurring:  s.Recurring,
		Weekday:    s.DayOfWeek,
		Until:      s.RecurrenceEnd,
		Exceptions: s.ExceptionDates,
	}
}

// Instance produces the concrete occurrence derived from this template.
func (s AvailabilitySlot) Instance(id string, start, end time.Time) AvailabilitySlot {
	out := s
	out.ID = id
	out.Start = start
	out.End = end
	out.Recurring = false
	out.DayOfWeek = nil
	out.RecurrenceEnd = nil
	out.ExceptionDates = nil
	return out
}

// CreateAvailabilityParams wraps the data required to create a slot.
type CreateAvailabilityParams struct {
	Principal Principal
	Input     AvailabilityInput
}

// UpdateAvailabilityParams wraps the data required to update a slot.
type UpdateAvailabilityParams struct {
	Principal Principal
	SlotID    string
	Input     AvailabilityInput
}

// ListAvailabilityParams wraps the data required to list availability slots.
type ListAvailabilityParams struct {
	Principal       Principal
	UserID          string
	Start           *time.Time
	End             *time.Time
	Period          ListPeriod
	PeriodReference time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Role        Role
	Password    string
	Disabled    bool
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
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

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}
