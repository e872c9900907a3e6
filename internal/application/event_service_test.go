package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/availability-scheduler/internal/persistence"
)

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}

func validEventInput(organizerID string) EventInput {
	return EventInput{
		OrganizerID: organizerID,
		Title:       "Planning session",
		Start:       time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func TestEventService_CreateEvent(t *testing.T) {
	t.Parallel()

	t.Run("persists a valid event", func(t *testing.T) {
		t.Parallel()

		repo := newEventRepositoryStub()
		svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)

		event, warnings, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     validEventInput("user-1"),
		})
		if err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
		if event.ID == "" {
			t.Fatal("expected generated event ID")
		}
		if len(warnings) != 0 {
			t.Fatalf("expected no warnings, got %v", warnings)
		}
		if !event.CreatedAt.Equal(fixedNow()) {
			t.Fatalf("created at = %v, want %v", event.CreatedAt, fixedNow())
		}
		if len(repo.events) != 1 {
			t.Fatalf("stored %d events, want 1", len(repo.events))
		}
	})

	t.Run("defaults organizer to the principal", func(t *testing.T) {
		t.Parallel()

		repo := newEventRepositoryStub()
		svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)

		input := validEventInput("")
		event, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     input,
		})
		if err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
		if event.OrganizerID != "user-1" {
			t.Fatalf("organizer = %q, want user-1", event.OrganizerID)
		}
	})

	t.Run("rejects members", func(t *testing.T) {
		t.Parallel()

		svc := NewEventService(newEventRepositoryStub(), allUsersExist{}, nil, fixedNow)

		_, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleMember},
			Input:     validEventInput("user-1"),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects creating for another organizer without admin", func(t *testing.T) {
		t.Parallel()

		svc := NewEventService(newEventRepositoryStub(), allUsersExist{}, nil, fixedNow)

		_, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     validEventInput("user-2"),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates core fields", func(t *testing.T) {
		t.Parallel()

		svc := NewEventService(newEventRepositoryStub(), allUsersExist{}, nil, fixedNow)

		input := validEventInput("user-1")
		input.Title = "   "
		input.End = input.Start

		_, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleAdmin},
			Input:     input,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["title"]; !ok {
			t.Errorf("expected title error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["time"]; !ok {
			t.Errorf("expected time error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("validates recurrence fields", func(t *testing.T) {
		t.Parallel()

		svc := NewEventService(newEventRepositoryStub(), allUsersExist{}, nil, fixedNow)

		bad := 7
		input := validEventInput("user-1")
		input.Recurrence = RecurrenceInput{Recurring: true, DayOfWeek: &bad}

		_, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     input,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["day_of_week"]; !ok {
			t.Errorf("expected day_of_week error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects recurrence fields on non-recurring events", func(t *testing.T) {
		t.Parallel()

		svc := NewEventService(newEventRepositoryStub(), allUsersExist{}, nil, fixedNow)

		day := 1
		input := validEventInput("user-1")
		input.Recurrence = RecurrenceInput{Recurring: false, DayOfWeek: &day}

		_, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     input,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("normalizes recurrence dates to UTC midnight", func(t *testing.T) {
		t.Parallel()

		repo := newEventRepositoryStub()
		svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)

		jst := time.FixedZone("JST", 9*3600)
		day := 1
		until := time.Date(2024, 6, 30, 18, 30, 0, 0, jst)
		input := validEventInput("user-1")
		input.Recurrence = RecurrenceInput{
			Recurring:      true,
			DayOfWeek:      &day,
			RecurrenceEnd:  &until,
			ExceptionDates: []time.Time{time.Date(2024, 3, 11, 15, 0, 0, 0, jst)},
		}

		event, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     input,
		})
		if err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
		if event.DayOfWeek == nil || *event.DayOfWeek != time.Monday {
			t.Errorf("day of week = %v, want Monday", event.DayOfWeek)
		}
		wantEnd := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
		if event.RecurrenceEnd == nil || !event.RecurrenceEnd.Equal(wantEnd) {
			t.Errorf("recurrence end = %v, want %v", event.RecurrenceEnd, wantEnd)
		}
		wantException := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
		if len(event.ExceptionDates) != 1 || !event.ExceptionDates[0].Equal(wantException) {
			t.Errorf("exceptions = %v, want [%v]", event.ExceptionDates, wantException)
		}
	})

	t.Run("reports unknown organizer", func(t *testing.T) {
		t.Parallel()

		svc := NewEventService(newEventRepositoryStub(), noUsersExist{}, nil, fixedNow)

		_, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     validEventInput("user-1"),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["organizer_id"]; !ok {
			t.Errorf("expected organizer_id error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("warns about organizer double-booking", func(t *testing.T) {
		t.Parallel()

		repo := newEventRepositoryStub()
		svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)

		first, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     validEventInput("user-1"),
		})
		if err != nil {
			t.Fatalf("first CreateEvent failed: %v", err)
		}

		overlapping := validEventInput("user-1")
		overlapping.Start = overlapping.Start.Add(30 * time.Minute)
		overlapping.End = overlapping.End.Add(30 * time.Minute)

		_, warnings, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     overlapping,
		})
		if err != nil {
			t.Fatalf("second CreateEvent failed: %v", err)
		}
		if len(warnings) != 1 {
			t.Fatalf("warnings = %v, want one", warnings)
		}
		if warnings[0].EventID != first.ID || warnings[0].Type != "organizer" {
			t.Fatalf("unexpected warning %+v", warnings[0])
		}
	})

	t.Run("warns when a recurring event collides with a concrete one", func(t *testing.T) {
		t.Parallel()

		repo := newEventRepositoryStub()
		svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)

		// Concrete meeting on Monday 2024-03-11.
		concrete := validEventInput("user-1")
		concrete.Start = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
		concrete.End = time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
		existing, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     concrete,
		})
		if err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}

		day := 1
		weekly := validEventInput("user-1")
		weekly.Start = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
		weekly.End = time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
		weekly.Recurrence = RecurrenceInput{Recurring: true, DayOfWeek: &day}

		_, warnings, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     weekly,
		})
		if err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
		found := false
		for _, w := range warnings {
			if w.EventID == existing.ID && w.Type == "organizer" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected warning against %s, got %v", existing.ID, warnings)
		}
	})
}

func TestEventService_UpdateEvent(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) (*EventService, *eventRepositoryStub, Event) {
		t.Helper()
		repo := newEventRepositoryStub()
		svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)
		event, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     validEventInput("user-1"),
		})
		if err != nil {
			t.Fatalf("seed CreateEvent failed: %v", err)
		}
		return svc, repo, event
	}

	t.Run("updates own event", func(t *testing.T) {
		t.Parallel()

		svc, repo, event := seed(t)
		input := validEventInput("user-1")
		input.Title = "Rescheduled planning"

		updated, _, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			EventID:   event.ID,
			Input:     input,
		})
		if err != nil {
			t.Fatalf("UpdateEvent failed: %v", err)
		}
		if updated.Title != "Rescheduled planning" {
			t.Fatalf("title = %q", updated.Title)
		}
		if repo.events[event.ID].Title != "Rescheduled planning" {
			t.Fatal("expected persisted update")
		}
	})

	t.Run("rejects other organizers", func(t *testing.T) {
		t.Parallel()

		svc, _, event := seed(t)
		_, _, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
			Principal: Principal{UserID: "user-2", Role: RoleOrganizer},
			EventID:   event.ID,
			Input:     validEventInput("user-1"),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("admin may update any event", func(t *testing.T) {
		t.Parallel()

		svc, _, event := seed(t)
		_, _, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
			Principal: Principal{UserID: "admin-1", Role: RoleAdmin},
			EventID:   event.ID,
			Input:     validEventInput("user-1"),
		})
		if err != nil {
			t.Fatalf("UpdateEvent as admin failed: %v", err)
		}
	})

	t.Run("organizer cannot be changed", func(t *testing.T) {
		t.Parallel()

		svc, _, event := seed(t)
		input := validEventInput("user-2")
		_, _, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
			Principal: Principal{UserID: "admin-1", Role: RoleAdmin},
			EventID:   event.ID,
			Input:     input,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["organizer_id"]; !ok {
			t.Errorf("expected organizer_id error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("missing event maps to ErrNotFound", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := seed(t)
		_, _, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			EventID:   "missing",
			Input:     validEventInput("user-1"),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEventService_DeleteEvent(t *testing.T) {
	t.Parallel()

	repo := newEventRepositoryStub()
	svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)
	event, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
		Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
		Input:     validEventInput("user-1"),
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if err := svc.DeleteEvent(context.Background(), Principal{UserID: "user-2", Role: RoleMember}, event.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.DeleteEvent(context.Background(), Principal{UserID: "user-1", Role: RoleOrganizer}, event.ID); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if err := svc.DeleteEvent(context.Background(), Principal{UserID: "user-1", Role: RoleOrganizer}, event.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestEventService_ListEvents(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) *EventService {
		t.Helper()
		repo := newEventRepositoryStub()
		svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)

		day := 1
		weekly := validEventInput("user-1")
		weekly.Title = "Weekly sync"
		weekly.Start = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
		weekly.End = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
		weekly.Recurrence = RecurrenceInput{Recurring: true, DayOfWeek: &day}

		concrete := validEventInput("user-2")
		concrete.Title = "One-off review"
		concrete.Start = time.Date(2024, 3, 13, 14, 0, 0, 0, time.UTC)
		concrete.End = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)

		for organizer, input := range map[string]EventInput{"user-1": weekly, "user-2": concrete} {
			if _, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
				Principal: Principal{UserID: organizer, Role: RoleOrganizer},
				Input:     input,
			}); err != nil {
				t.Fatalf("seed CreateEvent failed: %v", err)
			}
		}
		return svc
	}

	t.Run("expands recurring events within an explicit window", func(t *testing.T) {
		t.Parallel()

		svc := seed(t)
		start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)

		events, _, err := svc.ListEvents(context.Background(), ListEventsParams{
			Principal: Principal{UserID: "viewer", Role: RoleMember},
			Start:     &start,
			End:       &end,
		})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}

		// Four Mondays in March 2024 plus the one-off review.
		if len(events) != 5 {
			t.Fatalf("got %d events, want 5", len(events))
		}
		for i := 1; i < len(events); i++ {
			if events[i].Start.Before(events[i-1].Start) {
				t.Fatalf("events out of order at %d", i)
			}
		}
		for _, event := range events {
			if event.Recurring {
				t.Fatalf("expanded occurrence still recurring: %+v", event)
			}
		}
	})

	t.Run("week preset expands the Monday-start week", func(t *testing.T) {
		t.Parallel()

		svc := seed(t)
		events, _, err := svc.ListEvents(context.Background(), ListEventsParams{
			Principal:       Principal{UserID: "viewer", Role: RoleMember},
			Period:          ListPeriodWeek,
			PeriodReference: time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}

		// The week of 2024-03-11: one weekly occurrence and the review.
		if len(events) != 2 {
			t.Fatalf("got %d events, want 2: %+v", len(events), events)
		}
		if !events[0].Start.Equal(time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)) {
			t.Fatalf("first event start = %v", events[0].Start)
		}
	})

	t.Run("no window returns raw templates", func(t *testing.T) {
		t.Parallel()

		svc := seed(t)
		events, _, err := svc.ListEvents(context.Background(), ListEventsParams{
			Principal: Principal{UserID: "viewer", Role: RoleMember},
		})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("got %d events, want 2", len(events))
		}
		recurringSeen := false
		for _, event := range events {
			if event.Recurring {
				recurringSeen = true
			}
		}
		if !recurringSeen {
			t.Fatal("expected the recurring template in unexpanded listing")
		}
	})

	t.Run("requires an authenticated principal", func(t *testing.T) {
		t.Parallel()

		svc := seed(t)
		if _, _, err := svc.ListEvents(context.Background(), ListEventsParams{}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestEventService_NextEventOccurrence(t *testing.T) {
	t.Parallel()

	repo := newEventRepositoryStub()
	svc := NewEventService(repo, allUsersExist{}, sequentialIDs("event"), fixedNow)

	day := 1
	input := validEventInput("user-1")
	input.Recurrence = RecurrenceInput{Recurring: true, DayOfWeek: &day}
	event, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
		Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
		Input:     input,
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	next, ok, err := svc.NextEventOccurrence(context.Background(), Principal{UserID: "user-1", Role: RoleOrganizer}, event.ID, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NextEventOccurrence failed: %v", err)
	}
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if !next.Equal(time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("next = %v", next)
	}
}

func TestComputePeriodRange(t *testing.T) {
	t.Parallel()

	reference := time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		period    ListPeriod
		wantStart time.Time
		wantEnd   time.Time
	}{
		"day": {
			period:    ListPeriodDay,
			wantStart: time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 13, 23, 59, 59, 0, time.UTC),
		},
		"week": {
			period:    ListPeriodWeek,
			wantStart: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 17, 23, 59, 59, 0, time.UTC),
		},
		"month": {
			period:    ListPeriodMonth,
			wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			start, end := computePeriodRange(tc.period, reference)
			if !start.Equal(tc.wantStart) {
				t.Errorf("start = %v, want %v", start, tc.wantStart)
			}
			if !end.Equal(tc.wantEnd) {
				t.Errorf("end = %v, want %v", end, tc.wantEnd)
			}
		})
	}
}

// eventRepositoryStub provides an in-memory EventRepository for tests.
type eventRepositoryStub struct {
	events map[string]Event

	createErr error
	getErr    error
	listErr   error
}

func newEventRepositoryStub() *eventRepositoryStub {
	return &eventRepositoryStub{events: make(map[string]Event)}
}

func (s *eventRepositoryStub) CreateEvent(ctx context.Context, event Event) (Event, error) {
	if s.createErr != nil {
		return Event{}, s.createErr
	}
	s.events[event.ID] = event
	return event, nil
}

func (s *eventRepositoryStub) GetEvent(ctx context.Context, id string) (Event, error) {
	if s.getErr != nil {
		return Event{}, s.getErr
	}
	event, ok := s.events[id]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	return event, nil
}

func (s *eventRepositoryStub) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	if _, ok := s.events[event.ID]; !ok {
		return Event{}, persistence.ErrNotFound
	}
	s.events[event.ID] = event
	return event, nil
}

func (s *eventRepositoryStub) DeleteEvent(ctx context.Context, id string) error {
	if _, ok := s.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *eventRepositoryStub) ListEvents(ctx context.Context, filter EventRepositoryFilter) ([]Event, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Event
	for _, event := range s.events {
		if filter.OrganizerID != "" && event.OrganizerID != filter.OrganizerID {
			continue
		}
		if !event.Recurring {
			if filter.StartsAfter != nil && event.End.Before(*filter.StartsAfter) {
				continue
			}
			if filter.EndsBefore != nil && event.Start.After(*filter.EndsBefore) {
				continue
			}
		}
		out = append(out, event)
	}
	return out, nil
}

// allUsersExist reports every user ID as known.
type allUsersExist struct{}

func (allUsersExist) UserExists(ctx context.Context, id string) (bool, error) { return true, nil }

// noUsersExist reports every user ID as unknown.
type noUsersExist struct{}

func (noUsersExist) UserExists(ctx context.Context, id string) (bool, error) { return false, nil }
