package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/availability-scheduler/internal/conflict"
	"github.com/example/availability-scheduler/internal/persistence"
	"github.com/example/availability-scheduler/internal/recurrence"
)

// conflictWindow bounds how far ahead recurring events are expanded when
// checking a candidate for double-bookings.
const conflictWindow = 60 * 24 * time.Hour

// EventRepository captures the persistence interactions needed by the service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventRepositoryFilter) ([]Event, error)
}

// EventRepositoryFilter narrows queries issued to the event repository.
type EventRepositoryFilter struct {
	OrganizerID string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// UserDirectory exposes user lookup operations.
type UserDirectory interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// EventService orchestrates validation, authorization, and persistence for events.
type EventService struct {
	events      EventRepository
	users       UserDirectory
	warnings    *warningCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events EventRepository, users UserDirectory, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, users, idGenerator, now, nil)
}

// NewEventServiceWithLogger constructs an EventService with a specified logger.
func NewEventServiceWithLogger(events EventRepository, users UserDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		users:       users,
		warnings:    newWarningCache(0, 0, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates the request before delegating to persistence.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (Event, []ConflictWarning, error) {
	if s == nil {
		return Event{}, nil, fmt.Errorf("EventService is nil")
	}
	input := params.Input
	principal := params.Principal

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", principal.UserID)

	if input.OrganizerID == "" {
		input.OrganizerID = principal.UserID
	}
	if !principal.CanOrganize() {
		return Event{}, nil, ErrUnauthorized
	}
	if input.OrganizerID != principal.UserID && !principal.IsAdmin() {
		return Event{}, nil, ErrUnauthorized
	}

	vErr := &ValidationError{}
	validateEventCore(input, vErr)
	validateRecurrence(input.Recurrence, vErr)
	if vErr.HasErrors() {
		return Event{}, nil, vErr
	}

	if err := s.ensureOrganizerExists(ctx, input.OrganizerID); err != nil {
		return Event{}, nil, err
	}

	createdAt := s.now().UTC()
	event := Event{
		ID:          s.idGenerator(),
		OrganizerID: input.OrganizerID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Venue:       trimPtr(input.Venue),
		Start:       input.Start.UTC(),
		End:         input.End.UTC(),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	applyRecurrence(&event.Recurring, &event.DayOfWeek, &event.RecurrenceEnd, &event.ExceptionDates, input.Recurrence)

	if s.events == nil {
		return event, nil, nil
	}

	warnings, err := s.detectConflicts(ctx, event)
	if err != nil {
		return Event{}, nil, err
	}

	persisted, err := s.events.CreateEvent(ctx, event)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
		return Event{}, nil, mapEventRepoError(err)
	}

	s.warnings.Invalidate()
	logger.With("event_id", persisted.ID, "conflicts", len(warnings)).InfoContext(ctx, "event created")
	return persisted, warnings, nil
}

// UpdateEvent applies validation and authorization before updating persistence state.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (Event, []ConflictWarning, error) {
	if s == nil {
		return Event{}, nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, nil, fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "UpdateEvent", "event_id", params.EventID)

	existing, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return Event{}, nil, mapEventRepoError(err)
	}

	principal := params.Principal
	input := params.Input

	if existing.OrganizerID != principal.UserID && !principal.IsAdmin() {
		return Event{}, nil, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if input.OrganizerID != "" && input.OrganizerID != existing.OrganizerID {
		vErr.add("organizer_id", "organizer cannot be changed")
	}
	validateEventCore(input, vErr)
	validateRecurrence(input.Recurrence, vErr)
	if vErr.HasErrors() {
		return Event{}, nil, vErr
	}

	updated := existing
	updated.Title = strings.TrimSpace(input.Title)
	updated.Description = input.Description
	updated.Venue = trimPtr(input.Venue)
	updated.Start = input.Start.UTC()
	updated.End = input.End.UTC()
	updated.UpdatedAt = s.now().UTC()
	applyRecurrence(&updated.Recurring, &updated.DayOfWeek, &updated.RecurrenceEnd, &updated.ExceptionDates, input.Recurrence)

	warnings, err := s.detectConflicts(ctx, updated)
	if err != nil {
		return Event{}, nil, err
	}

	persisted, err := s.events.UpdateEvent(ctx, updated)
	if err != nil {
		logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
		return Event{}, nil, mapEventRepoError(err)
	}

	s.warnings.Invalidate()
	logger.With("conflicts", len(warnings)).InfoContext(ctx, "event updated")
	return persisted, warnings, nil
}

// GetEvent returns a single event. Any authenticated principal may read events.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	if principal.UserID == "" {
		return Event{}, ErrUnauthorized
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	return event, nil
}

// NextEventOccurrence reports the next occurrence of the event strictly
// after the supplied reference time. ok is false when none remains.
func (s *EventService) NextEventOccurrence(ctx context.Context, principal Principal, eventID string, after time.Time) (time.Time, bool, error) {
	event, err := s.GetEvent(ctx, principal, eventID)
	if err != nil {
		return time.Time{}, false, err
	}
	next, ok := recurrence.NextOccurrence(event.Template(), after)
	return next, ok, nil
}

// DeleteEvent ensures authorization before delegating to persistence.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEvent", "event_id", eventID)

	existing, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return mapEventRepoError(err)
	}

	if existing.OrganizerID != principal.UserID && !principal.IsAdmin() {
		return ErrUnauthorized
	}

	if err := s.events.DeleteEvent(ctx, eventID); err != nil {
		logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
		return mapEventRepoError(err)
	}

	s.warnings.Invalidate()
	logger.InfoContext(ctx, "event deleted")
	return nil
}

// ListEvents enumerates events visible to the requesting principal. When the
// requested window has both bounds, recurring events are expanded into the
// occurrences falling inside it.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) ([]Event, []ConflictWarning, error) {
	if s == nil {
		return nil, nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, nil, fmt.Errorf("event repository not configured")
	}
	if params.Principal.UserID == "" {
		return nil, nil, ErrUnauthorized
	}

	filter := buildEventListFilter(params)

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var ordered []Event
	if filter.StartsAfter != nil && filter.EndsBefore != nil {
		ordered = ExpandEvents(events, *filter.StartsAfter, *filter.EndsBefore)
	} else {
		ordered = make([]Event, len(events))
		copy(ordered, events)
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Start.Equal(ordered[j].Start) {
				return ordered[i].ID < ordered[j].ID
			}
			return ordered[i].Start.Before(ordered[j].Start)
		})
	}

	cacheKey := buildWarningCacheKey(params, filter)
	warnings, cached := s.warnings.Get(cacheKey)
	if !cached {
		warnings = detectListConflicts(ordered)
		s.warnings.Store(cacheKey, warnings)
	}

	return ordered, warnings, nil
}

func (s *EventService) ensureOrganizerExists(ctx context.Context, id string) error {
	if s.users == nil {
		return nil
	}
	exists, err := s.users.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	vErr := &ValidationError{}
	vErr.add("organizer_id", "organizer does not exist")
	return vErr
}

func (s *EventService) detectConflicts(ctx context.Context, candidate Event) ([]ConflictWarning, error) {
	if s == nil || s.events == nil {
		return nil, nil
	}

	events, err := s.events.ListEvents(ctx, EventRepositoryFilter{})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	winStart, winEnd := conflictDetectionWindow(candidate)
	existing := occurrencesForConflicts(events, winStart, winEnd)

	seen := make(map[string]struct{})
	var warnings []ConflictWarning
	for _, occ := range occurrencesForConflicts([]Event{candidate}, winStart, winEnd) {
		for _, c := range conflict.Detect(existing, occ) {
			warning := toConflictWarning(c)
			key := warning.EventID + "|" + warning.Type
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			warnings = append(warnings, warning)
		}
	}
	sortWarnings(warnings)
	return warnings, nil
}

// conflictDetectionWindow picks the occurrence range that a candidate is
// checked against. Concrete events use their own span; recurring events are
// checked up to their recurrence end, capped by conflictWindow.
func conflictDetectionWindow(candidate Event) (time.Time, time.Time) {
	start := candidate.Start.UTC()
	if !candidate.Recurring {
		return start, candidate.End.UTC()
	}
	end := start.Add(conflictWindow)
	if candidate.RecurrenceEnd != nil && candidate.RecurrenceEnd.Before(end) {
		end = candidate.RecurrenceEnd.UTC().AddDate(0, 0, 1)
	}
	return start, end
}

// occurrencesForConflicts expands events into conflict detector input. Each
// occurrence carries the ID of its source event so that warnings refer to
// templates rather than synthetic instance IDs. Concrete events bypass the
// window entirely and recurring ones are expanded from a day earlier, so
// occurrences that begin before the window but overlap into it still count.
func occurrencesForConflicts(events []Event, winStart, winEnd time.Time) []conflict.Event {
	var out []conflict.Event
	for _, event := range events {
		if !event.Recurring {
			out = append(out, conflict.Event{
				ID:          event.ID,
				OrganizerID: event.OrganizerID,
				Venue:       event.Venue,
				Start:       event.Start,
				End:         event.End,
			})
			continue
		}
		for _, occ := range ExpandEvents([]Event{event}, winStart.AddDate(0, 0, -1), winEnd) {
			out = append(out, conflict.Event{
				ID:          event.ID,
				OrganizerID: occ.OrganizerID,
				Venue:       occ.Venue,
				Start:       occ.Start,
				End:         occ.End,
			})
		}
	}
	return out
}

func detectListConflicts(events []Event) []ConflictWarning {
	if len(events) <= 1 {
		return nil
	}

	converted := make([]conflict.Event, len(events))
	for i, event := range events {
		converted[i] = conflict.Event{
			ID:          event.ID,
			OrganizerID: event.OrganizerID,
			Venue:       event.Venue,
			Start:       event.Start,
			End:         event.End,
		}
	}

	var warnings []ConflictWarning
	for i := range converted {
		if i+1 >= len(converted) {
			break
		}
		for _, c := range conflict.Detect(converted[i+1:], converted[i]) {
			warnings = append(warnings, toConflictWarning(c))
		}
	}

	if len(warnings) == 0 {
		return nil
	}
	sortWarnings(warnings)
	return warnings
}

func toConflictWarning(c conflict.Conflict) ConflictWarning {
	warning := ConflictWarning{
		EventID:     c.WithEventID,
		Type:        string(c.Type),
		OrganizerID: c.OrganizerID,
	}
	if c.Venue != nil {
		venue := *c.Venue
		warning.Venue = &venue
	}
	return warning
}

func sortWarnings(warnings []ConflictWarning) {
	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].EventID == warnings[j].EventID {
			return warnings[i].Type < warnings[j].Type
		}
		return warnings[i].EventID < warnings[j].EventID
	})
}

func validateEventCore(input EventInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}

	if input.Start.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if input.End.IsZero() {
		vErr.add("end_time", "end time is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.Start.Before(input.End) {
		vErr.add("time", "start time must be before end time")
	}
}

func validateRecurrence(input RecurrenceInput, vErr *ValidationError) {
	if !input.Recurring {
		if input.DayOfWeek != nil {
			vErr.add("day_of_week", "day of week requires a recurring item")
		}
		if input.RecurrenceEnd != nil {
			vErr.add("recurrence_end_date", "recurrence end requires a recurring item")
		}
		if len(input.ExceptionDates) > 0 {
			vErr.add("exception_dates", "exception dates require a recurring item")
		}
		return
	}

	if input.DayOfWeek != nil && (*input.DayOfWeek < 0 || *input.DayOfWeek > 6) {
		vErr.add("day_of_week", "day of week must be between 0 (Sunday) and 6 (Saturday)")
	}
}

// applyRecurrence copies validated recurrence input onto a model, normalizing
// all calendar fields to UTC date precision.
func applyRecurrence(recurring *bool, dayOfWeek **time.Weekday, recurrenceEnd **time.Time, exceptions *[]time.Time, input RecurrenceInput) {
	*recurring = input.Recurring
	*dayOfWeek = nil
	*recurrenceEnd = nil
	*exceptions = nil
	if !input.Recurring {
		return
	}

	if input.DayOfWeek != nil {
		weekday := time.Weekday(*input.DayOfWeek)
		*dayOfWeek = &weekday
	}
	if input.RecurrenceEnd != nil {
		end := truncateToDate(*input.RecurrenceEnd)
		*recurrenceEnd = &end
	}
	if len(input.ExceptionDates) > 0 {
		dates := make([]time.Time, 0, len(input.ExceptionDates))
		for _, date := range input.ExceptionDates {
			dates = append(dates, truncateToDate(date))
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		*exceptions = dates
	}
}

func truncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*p)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func buildEventListFilter(params ListEventsParams) EventRepositoryFilter {
	startsAfter := params.Start
	endsBefore := params.End

	if params.Period != ListPeriodNone {
		start, end := computePeriodRange(params.Period, params.PeriodReference)
		if startsAfter == nil {
			startsAfter = &start
		}
		if endsBefore == nil {
			endsBefore = &end
		}
	}

	return EventRepositoryFilter{
		OrganizerID: params.OrganizerID,
		StartsAfter: startsAfter,
		EndsBefore:  endsBefore,
	}
}

func computePeriodRange(period ListPeriod, reference time.Time) (time.Time, time.Time) {
	switch period {
	case ListPeriodDay:
		start := startOfDay(reference)
		return start, endOfRange(start.AddDate(0, 0, 1))
	case ListPeriodWeek:
		start := startOfWeek(reference)
		return start, endOfRange(start.AddDate(0, 0, 7))
	case ListPeriodMonth:
		start := startOfMonth(reference)
		return start, endOfRange(start.AddDate(0, 1, 0))
	default:
		return time.Time{}, time.Time{}
	}
}

// endOfRange converts an exclusive boundary into the inclusive bound the
// expansion window expects.
func endOfRange(exclusive time.Time) time.Time {
	return exclusive.Add(-time.Second)
}

func startOfDay(t time.Time) time.Time {
	return truncateToDate(t)
}

func startOfWeek(t time.Time) time.Time {
	start := startOfDay(t)
	// Monday starts the week; Go numbers Monday as 1, Sunday as 0.
	offset := (int(start.Weekday()) + 6) % 7
	return start.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	start := startOfDay(t)
	return time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("day_of_week", "day of week must be between 0 (Sunday) and 6 (Saturday)")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("organizer_id", "organizer does not exist")
		return vErr
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
