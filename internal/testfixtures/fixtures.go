package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/availability-scheduler/internal/application"
	"github.com/example/availability-scheduler/internal/persistence"
	"github.com/example/availability-scheduler/internal/recurrence"
)

var (
	userCounter         uint64
	eventCounter        uint64
	availabilityCounter uint64
	sessionCounter      uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	Role         application.Role
	Password     string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		Role:         application.RoleMember,
		Password:     fmt.Sprintf("secret-%03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserRole sets the role on the generated fixture.
func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserPassword overrides the plaintext password used for Input values.
func WithUserPassword(password string) UserOption {
	return func(f *UserFixture) {
		f.Password = password
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserDisabled sets the disabled flag on the generated fixture.
func WithUserDisabled(disabled bool) UserOption {
	return func(f *UserFixture) {
		f.Disabled = disabled
	}
}

// WithUserCreatedAt sets the created timestamp on the fixture.
func WithUserCreatedAt(t time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = t
	}
}

// WithUserUpdatedAt sets the updated timestamp on the fixture.
func WithUserUpdatedAt(t time.Time) UserOption {
	return func(f *UserFixture) {
		f.UpdatedAt = t
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		Disabled:    f.Disabled,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: f.Role}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Role:         string(f.Role),
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		Password:    f.Password,
		Disabled:    f.Disabled,
	}
}

// ----------------------------- Event fixtures ----------------------------

// EventFixture represents a deterministic event record. The zero fixture is a
// one-off event; recurrence options turn it into a repeating template.
type EventFixture struct {
	ID             string
	OrganizerID    string
	Title          string
	Description    string
	Venue          string
	Start          time.Time
	End            time.Time
	Recurring      bool
	DayOfWeek      *time.Weekday
	RecurrenceEnd  *time.Time
	ExceptionDates []time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a deterministic event fixture with optional overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	id := fmt.Sprintf("event-%03d", idx)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := EventFixture{
		ID:          id,
		OrganizerID: fmt.Sprintf("user-%03d", idx),
		Title:       fmt.Sprintf("Event %03d", idx),
		Start:       start,
		End:         start.Add(time.Hour),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventOrganizer sets the organizer ID.
func WithEventOrganizer(id string) EventOption {
	return func(f *EventFixture) {
		f.OrganizerID = id
	}
}

// WithEventTitle overrides the title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// WithEventDescription sets the description.
func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) {
		f.Description = description
	}
}

// WithEventVenue sets the venue.
func WithEventVenue(venue string) EventOption {
	return func(f *EventFixture) {
		f.Venue = venue
	}
}

// WithoutEventVenue clears the venue.
func WithoutEventVenue() EventOption {
	return func(f *EventFixture) {
		f.Venue = ""
	}
}

// WithEventStartEnd sets the start and end times.
func WithEventStartEnd(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventWeekly marks the event as repeating weekly on the given weekday.
func WithEventWeekly(day time.Weekday) EventOption {
	return func(f *EventFixture) {
		weekday := day
		f.Recurring = true
		f.DayOfWeek = &weekday
	}
}

// WithEventDaily marks the event as repeating daily.
func WithEventDaily() EventOption {
	return func(f *EventFixture) {
		f.Recurring = true
		f.DayOfWeek = nil
	}
}

// WithEventRecurrenceEnd sets the final date of the repetition.
func WithEventRecurrenceEnd(t time.Time) EventOption {
	return func(f *EventFixture) {
		until := t
		f.RecurrenceEnd = &until
	}
}

// WithEventExceptions sets the dates on which no occurrence is produced.
func WithEventExceptions(dates ...time.Time) EventOption {
	return func(f *EventFixture) {
		f.ExceptionDates = append([]time.Time(nil), dates...)
	}
}

// WithEventCreatedAt sets the created timestamp.
func WithEventCreatedAt(t time.Time) EventOption {
	return func(f *EventFixture) {
		f.CreatedAt = t
	}
}

// WithEventUpdatedAt sets the updated timestamp.
func WithEventUpdatedAt(t time.Time) EventOption {
	return func(f *EventFixture) {
		f.UpdatedAt = t
	}
}

// WithEventTimestamps sets both created and updated timestamps.
func WithEventTimestamps(created, updated time.Time) EventOption {
	return func(f *EventFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:             f.ID,
		OrganizerID:    f.OrganizerID,
		Title:          f.Title,
		Description:    optionalString(f.Description),
		Venue:          optionalString(f.Venue),
		Start:          f.Start,
		End:            f.End,
		Recurring:      f.Recurring,
		DayOfWeek:      copyWeekdayPtr(f.DayOfWeek),
		RecurrenceEnd:  copyTimePtr(f.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), f.ExceptionDates...),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:             f.ID,
		Title:          f.Title,
		Description:    optionalString(f.Description),
		OrganizerID:    f.OrganizerID,
		Venue:          optionalString(f.Venue),
		Start:          f.Start,
		End:            f.End,
		Recurring:      f.Recurring,
		DayOfWeek:      copyWeekdayPtr(f.DayOfWeek),
		RecurrenceEnd:  copyTimePtr(f.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), f.ExceptionDates...),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Input returns the fixture as an application.EventInput.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		OrganizerID: f.OrganizerID,
		Title:       f.Title,
		Description: optionalString(f.Description),
		Venue:       optionalString(f.Venue),
		Start:       f.Start,
		End:         f.End,
		Recurrence:  f.recurrenceInput(),
	}
}

// Template returns the fixture as a recurrence.Template.
func (f EventFixture) Template() recurrence.Template {
	return f.Application().Template()
}

func (f EventFixture) recurrenceInput() application.RecurrenceInput {
	input := application.RecurrenceInput{
		Recurring:      f.Recurring,
		RecurrenceEnd:  copyTimePtr(f.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), f.ExceptionDates...),
	}
	if f.DayOfWeek != nil {
		day := int(*f.DayOfWeek)
		input.DayOfWeek = &day
	}
	return input
}

// ------------------------- Availability fixtures -------------------------

// AvailabilityFixture represents a deterministic availability slot.
// Recurrence options behave the same way as on EventFixture.
type AvailabilityFixture struct {
	ID             string
	UserID         string
	Note           string
	Start          time.Time
	End            time.Time
	Recurring      bool
	DayOfWeek      *time.Weekday
	RecurrenceEnd  *time.Time
	ExceptionDates []time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AvailabilityOption configures the generated availability fixture.
type AvailabilityOption func(*AvailabilityFixture)

// NewAvailabilityFixture returns a deterministic availability fixture with
// optional overrides.
func NewAvailabilityFixture(opts ...AvailabilityOption) AvailabilityFixture {
	idx := atomic.AddUint64(&availabilityCounter, 1)
	id := fmt.Sprintf("slot-%03d", idx)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := AvailabilityFixture{
		ID:        id,
		UserID:    fmt.Sprintf("user-%03d", idx),
		Start:     start,
		End:       start.Add(2 * time.Hour),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAvailabilityID overrides the slot ID.
func WithAvailabilityID(id string) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.ID = id
	}
}

// WithAvailabilityUserID sets the owner ID.
func WithAvailabilityUserID(id string) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.UserID = id
	}
}

// WithAvailabilityNote sets the note.
func WithAvailabilityNote(note string) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Note = note
	}
}

// WithAvailabilityStartEnd sets the start and end times.
func WithAvailabilityStartEnd(start, end time.Time) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Start = start
		f.End = end
	}
}

// WithAvailabilityWeekly marks the slot as repeating weekly on the given weekday.
func WithAvailabilityWeekly(day time.Weekday) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		weekday := day
		f.Recurring = true
		f.DayOfWeek = &weekday
	}
}

// WithAvailabilityDaily marks the slot as repeating daily.
func WithAvailabilityDaily() AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.Recurring = true
		f.DayOfWeek = nil
	}
}

// WithAvailabilityRecurrenceEnd sets the final date of the repetition.
func WithAvailabilityRecurrenceEnd(t time.Time) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		until := t
		f.RecurrenceEnd = &until
	}
}

// WithAvailabilityExceptions sets the dates on which no occurrence is produced.
func WithAvailabilityExceptions(dates ...time.Time) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.ExceptionDates = append([]time.Time(nil), dates...)
	}
}

// WithAvailabilityTimestamps sets both created and updated timestamps.
func WithAvailabilityTimestamps(created, updated time.Time) AvailabilityOption {
	return func(f *AvailabilityFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.AvailabilitySlot value.
func (f AvailabilityFixture) Application() application.AvailabilitySlot {
	return application.AvailabilitySlot{
		ID:             f.ID,
		UserID:         f.UserID,
		Note:           optionalString(f.Note),
		Start:          f.Start,
		End:            f.End,
		Recurring:      f.Recurring,
		DayOfWeek:      copyWeekdayPtr(f.DayOfWeek),
		RecurrenceEnd:  copyTimePtr(f.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), f.ExceptionDates...),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.AvailabilitySlot value.
func (f AvailabilityFixture) Persistence() persistence.AvailabilitySlot {
	return persistence.AvailabilitySlot{
		ID:             f.ID,
		UserID:         f.UserID,
		Note:           optionalString(f.Note),
		Start:          f.Start,
		End:            f.End,
		Recurring:      f.Recurring,
		DayOfWeek:      copyWeekdayPtr(f.DayOfWeek),
		RecurrenceEnd:  copyTimePtr(f.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), f.ExceptionDates...),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Input returns the fixture as an application.AvailabilityInput.
func (f AvailabilityFixture) Input() application.AvailabilityInput {
	input := application.AvailabilityInput{
		UserID: f.UserID,
		Note:   optionalString(f.Note),
		Start:  f.Start,
		End:    f.End,
		Recurrence: application.RecurrenceInput{
			Recurring:      f.Recurring,
			RecurrenceEnd:  copyTimePtr(f.RecurrenceEnd),
			ExceptionDates: append([]time.Time(nil), f.ExceptionDates...),
		},
	}
	if f.DayOfWeek != nil {
		day := int(*f.DayOfWeek)
		input.Recurrence.DayOfWeek = &day
	}
	return input
}

// Template returns the fixture as a recurrence.Template.
func (f AvailabilityFixture) Template() recurrence.Template {
	return f.Application().Template()
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	id := fmt.Sprintf("session-%03d", idx)
	created := referenceTime
	fixture := SessionFixture{
		ID:          id,
		UserID:      fmt.Sprintf("user-%03d", idx),
		Token:       fmt.Sprintf("token-%03d", idx),
		Fingerprint: fmt.Sprintf("fingerprint-%03d", idx),
		ExpiresAt:   created.Add(8 * time.Hour),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUserID sets the user ID.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the token value.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionFingerprint sets the session fingerprint.
func WithSessionFingerprint(fp string) SessionOption {
	return func(f *SessionFixture) {
		f.Fingerprint = fp
	}
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionTimestamps sets both created and updated timestamps.
func WithSessionTimestamps(created, updated time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// WithSessionRevokedAt sets the optional revoked timestamp.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
	}
}

// WithoutSessionRevoked clears any revoked timestamp.
func WithoutSessionRevoked() SessionOption {
	return func(f *SessionFixture) {
		f.RevokedAt = nil
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	v := value
	return &v
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	t := *src
	return &t
}

func copyWeekdayPtr(src *time.Weekday) *time.Weekday {
	if src == nil {
		return nil
	}
	d := *src
	return &d
}
