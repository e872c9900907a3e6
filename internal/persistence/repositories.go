package persistence

import (
	"context"
	"time"
)

// EventFilter narrows event queries. Recurring templates always match the
// time bounds because their occurrences may fall anywhere inside the
// queried range; only concrete rows are filtered by Start/End.
type EventFilter struct {
	OrganizerID string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// EventRepository stores event records and their exception dates.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// AvailabilityFilter narrows availability queries. Recurring templates
// always match the time bounds, as with EventFilter.
type AvailabilityFilter struct {
	UserID      string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// AvailabilityRepository stores availability slots.
type AvailabilityRepository interface {
	CreateSlot(ctx context.Context, slot AvailabilitySlot) error
	UpdateSlot(ctx context.Context, slot AvailabilitySlot) error
	GetSlot(ctx context.Context, id string) (AvailabilitySlot, error)
	ListSlots(ctx context.Context, filter AvailabilityFilter) ([]AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, id string) error
}

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
