package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/availability-scheduler/internal/persistence"
)

func validAvailabilityInput(userID string) AvailabilityInput {
	return AvailabilityInput{
		UserID: userID,
		Start:  time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 3, 5, 16, 0, 0, 0, time.UTC),
	}
}

func TestAvailabilityService_CreateSlot(t *testing.T) {
	t.Parallel()

	t.Run("persists a slot for the principal by default", func(t *testing.T) {
		t.Parallel()

		repo := newAvailabilityRepositoryStub()
		svc := NewAvailabilityService(repo, allUsersExist{}, sequentialIDs("slot"), fixedNow)

		input := validAvailabilityInput("")
		note := "  prefers mornings  "
		input.Note = &note

		slot, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
			Principal: Principal{UserID: "user-1", Role: RoleMember},
			Input:     input,
		})
		if err != nil {
			t.Fatalf("CreateSlot failed: %v", err)
		}
		if slot.UserID != "user-1" {
			t.Errorf("user id = %q, want principal", slot.UserID)
		}
		if slot.Note == nil || *slot.Note != "prefers mornings" {
			t.Errorf("note = %v, want trimmed", slot.Note)
		}
		if len(repo.slots) != 1 {
			t.Errorf("stored %d slots, want 1", len(repo.slots))
		}
	})

	t.Run("rejects creating for another user without admin", func(t *testing.T) {
		t.Parallel()

		svc := NewAvailabilityService(newAvailabilityRepositoryStub(), allUsersExist{}, sequentialIDs("slot"), fixedNow)
		_, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     validAvailabilityInput("user-2"),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("admin may create for another user", func(t *testing.T) {
		t.Parallel()

		svc := NewAvailabilityService(newAvailabilityRepositoryStub(), allUsersExist{}, sequentialIDs("slot"), fixedNow)
		slot, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
			Principal: Principal{UserID: "admin-1", Role: RoleAdmin},
			Input:     validAvailabilityInput("user-2"),
		})
		if err != nil {
			t.Fatalf("CreateSlot failed: %v", err)
		}
		if slot.UserID != "user-2" {
			t.Fatalf("user id = %q", slot.UserID)
		}
	})

	t.Run("validates core fields", func(t *testing.T) {
		t.Parallel()

		svc := NewAvailabilityService(newAvailabilityRepositoryStub(), allUsersExist{}, sequentialIDs("slot"), fixedNow)

		input := validAvailabilityInput("user-1")
		input.End = input.Start
		longNote := strings.Repeat("a", 501)
		input.Note = &longNote

		_, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
			Principal: Principal{UserID: "user-1", Role: RoleMember},
			Input:     input,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["time"]; !ok {
			t.Errorf("expected time error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["note"]; !ok {
			t.Errorf("expected note error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects invalid recurrence weekday", func(t *testing.T) {
		t.Parallel()

		svc := NewAvailabilityService(newAvailabilityRepositoryStub(), allUsersExist{}, sequentialIDs("slot"), fixedNow)

		input := validAvailabilityInput("user-1")
		bad := 7
		input.Recurrence = RecurrenceInput{Recurring: true, DayOfWeek: &bad}

		_, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
			Principal: Principal{UserID: "user-1", Role: RoleMember},
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

	t.Run("rejects unknown users", func(t *testing.T) {
		t.Parallel()

		svc := NewAvailabilityService(newAvailabilityRepositoryStub(), noUsersExist{}, sequentialIDs("slot"), fixedNow)
		_, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
			Principal: Principal{UserID: "user-1", Role: RoleMember},
			Input:     validAvailabilityInput("user-1"),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["user_id"]; !ok {
			t.Errorf("expected user_id error, got %v", vErr.FieldErrors)
		}
	})
}

func TestAvailabilityService_UpdateSlot(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, owner string) (*AvailabilityService, AvailabilitySlot) {
		t.Helper()
		repo := newAvailabilityRepositoryStub()
		svc := NewAvailabilityService(repo, allUsersExist{}, sequentialIDs("slot"), fixedNow)
		slot, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
			Principal: Principal{UserID: owner, Role: RoleMember},
			Input:     validAvailabilityInput(owner),
		})
		if err != nil {
			t.Fatalf("seed CreateSlot failed: %v", err)
		}
		return svc, slot
	}

	t.Run("owner updates the window", func(t *testing.T) {
		t.Parallel()

		svc, slot := seed(t, "user-1")
		input := validAvailabilityInput("user-1")
		input.End = input.End.Add(time.Hour)

		updated, err := svc.UpdateSlot(context.Background(), UpdateAvailabilityParams{
			Principal: Principal{UserID: "user-1", Role: RoleMember},
			SlotID:    slot.ID,
			Input:     input,
		})
		if err != nil {
			t.Fatalf("UpdateSlot failed: %v", err)
		}
		if !updated.End.Equal(input.End) {
			t.Fatalf("end = %v, want %v", updated.End, input.End)
		}
	})

	t.Run("rejects owner changes", func(t *testing.T) {
		t.Parallel()

		svc, slot := seed(t, "user-1")
		input := validAvailabilityInput("user-2")

		_, err := svc.UpdateSlot(context.Background(), UpdateAvailabilityParams{
			Principal: Principal{UserID: "user-1", Role: RoleMember},
			SlotID:    slot.ID,
			Input:     input,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["user_id"]; !ok {
			t.Errorf("expected user_id error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects non-owners", func(t *testing.T) {
		t.Parallel()

		svc, slot := seed(t, "user-1")
		_, err := svc.UpdateSlot(context.Background(), UpdateAvailabilityParams{
			Principal: Principal{UserID: "user-2", Role: RoleOrganizer},
			SlotID:    slot.ID,
			Input:     validAvailabilityInput("user-1"),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("missing slot maps to not found", func(t *testing.T) {
		t.Parallel()

		svc, _ := seed(t, "user-1")
		_, err := svc.UpdateSlot(context.Background(), UpdateAvailabilityParams{
			Principal: Principal{UserID: "user-1", Role: RoleMember},
			SlotID:    "missing",
			Input:     validAvailabilityInput("user-1"),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAvailabilityService_GetSlot(t *testing.T) {
	t.Parallel()

	repo := newAvailabilityRepositoryStub()
	svc := NewAvailabilityService(repo, allUsersExist{}, sequentialIDs("slot"), fixedNow)
	slot, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
		Principal: Principal{UserID: "user-1", Role: RoleMember},
		Input:     validAvailabilityInput("user-1"),
	})
	if err != nil {
		t.Fatalf("CreateSlot failed: %v", err)
	}

	if _, err := svc.GetSlot(context.Background(), Principal{UserID: "user-1", Role: RoleMember}, slot.ID); err != nil {
		t.Fatalf("owner GetSlot failed: %v", err)
	}
	if _, err := svc.GetSlot(context.Background(), Principal{UserID: "org-1", Role: RoleOrganizer}, slot.ID); err != nil {
		t.Fatalf("organizer GetSlot failed: %v", err)
	}
	if _, err := svc.GetSlot(context.Background(), Principal{UserID: "user-2", Role: RoleMember}, slot.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAvailabilityService_DeleteSlot(t *testing.T) {
	t.Parallel()

	repo := newAvailabilityRepositoryStub()
	svc := NewAvailabilityService(repo, allUsersExist{}, sequentialIDs("slot"), fixedNow)
	slot, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
		Principal: Principal{UserID: "user-1", Role: RoleMember},
		Input:     validAvailabilityInput("user-1"),
	})
	if err != nil {
		t.Fatalf("CreateSlot failed: %v", err)
	}

	if err := svc.DeleteSlot(context.Background(), Principal{UserID: "org-1", Role: RoleOrganizer}, slot.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.DeleteSlot(context.Background(), Principal{UserID: "user-1", Role: RoleMember}, slot.ID); err != nil {
		t.Fatalf("DeleteSlot failed: %v", err)
	}
	if err := svc.DeleteSlot(context.Background(), Principal{UserID: "user-1", Role: RoleMember}, slot.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAvailabilityService_ListSlots(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) *AvailabilityService {
		t.Helper()
		repo := newAvailabilityRepositoryStub()
		svc := NewAvailabilityService(repo, allUsersExist{}, sequentialIDs("slot"), fixedNow)

		weekday := 2 // Tuesday
		recurring := validAvailabilityInput("user-1")
		recurring.Recurrence = RecurrenceInput{Recurring: true, DayOfWeek: &weekday}
		oneOff := validAvailabilityInput("user-2")
		oneOff.Start = time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
		oneOff.End = time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)

		for userID, input := range map[string]AvailabilityInput{"user-1": recurring, "user-2": oneOff} {
			if _, err := svc.CreateSlot(context.Background(), CreateAvailabilityParams{
				Principal: Principal{UserID: userID, Role: RoleMember},
				Input:     input,
			}); err != nil {
				t.Fatalf("seed CreateSlot failed: %v", err)
			}
		}
		return svc
	}

	t.Run("members see only their own slots", func(t *testing.T) {
		t.Parallel()

		svc := seed(t)
		slots, err := svc.ListSlots(context.Background(), ListAvailabilityParams{
			Principal: Principal{UserID: "user-2", Role: RoleMember},
		})
		if err != nil {
			t.Fatalf("ListSlots failed: %v", err)
		}
		if len(slots) != 1 || slots[0].UserID != "user-2" {
			t.Fatalf("unexpected slots %+v", slots)
		}
	})

	t.Run("organizers see everyone and recurring slots expand", func(t *testing.T) {
		t.Parallel()

		svc := seed(t)
		start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 3, 17, 23, 59, 59, 0, time.UTC)

		slots, err := svc.ListSlots(context.Background(), ListAvailabilityParams{
			Principal: Principal{UserID: "org-1", Role: RoleOrganizer},
			Start:     &start,
			End:       &end,
		})
		if err != nil {
			t.Fatalf("ListSlots failed: %v", err)
		}
		// Two Tuesdays (Mar 5, Mar 12) plus the one-off on Mar 7.
		if len(slots) != 3 {
			t.Fatalf("got %d occurrences, want 3: %+v", len(slots), slots)
		}
		for _, slot := range slots {
			if slot.Recurring {
				t.Errorf("occurrence %s still marked recurring", slot.ID)
			}
		}
		if !slots[0].Start.Equal(time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)) {
			t.Errorf("first occurrence starts %v", slots[0].Start)
		}
	})

	t.Run("week preset bounds the expansion", func(t *testing.T) {
		t.Parallel()

		svc := seed(t)
		slots, err := svc.ListSlots(context.Background(), ListAvailabilityParams{
			Principal:       Principal{UserID: "org-1", Role: RoleOrganizer},
			Period:          ListPeriodWeek,
			PeriodReference: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("ListSlots failed: %v", err)
		}
		// The week of Mar 4 holds one Tuesday occurrence and the one-off.
		if len(slots) != 2 {
			t.Fatalf("got %d occurrences, want 2: %+v", len(slots), slots)
		}
	})
}

// availabilityRepositoryStub provides an in-memory AvailabilityRepository.
type availabilityRepositoryStub struct {
	slots map[string]AvailabilitySlot
}

func newAvailabilityRepositoryStub() *availabilityRepositoryStub {
	return &availabilityRepositoryStub{slots: make(map[string]AvailabilitySlot)}
}

func (s *availabilityRepositoryStub) CreateSlot(ctx context.Context, slot AvailabilitySlot) (AvailabilitySlot, error) {
	s.slots[slot.ID] = slot
	return slot, nil
}

func (s *availabilityRepositoryStub) GetSlot(ctx context.Context, id string) (AvailabilitySlot, error) {
	slot, ok := s.slots[id]
	if !ok {
		return AvailabilitySlot{}, persistence.ErrNotFound
	}
	return slot, nil
}

func (s *availabilityRepositoryStub) UpdateSlot(ctx context.Context, slot AvailabilitySlot) (AvailabilitySlot, error) {
	if _, ok := s.slots[slot.ID]; !ok {
		return AvailabilitySlot{}, persistence.ErrNotFound
	}
	s.slots[slot.ID] = slot
	return slot, nil
}

func (s *availabilityRepositoryStub) DeleteSlot(ctx context.Context, id string) error {
	if _, ok := s.slots[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.slots, id)
	return nil
}

func (s *availabilityRepositoryStub) ListSlots(ctx context.Context, filter AvailabilityRepositoryFilter) ([]AvailabilitySlot, error) {
	var out []AvailabilitySlot
	for _, slot := range s.slots {
		if filter.UserID != "" && slot.UserID != filter.UserID {
			continue
		}
		if !slot.Recurring && filter.StartsAfter != nil && slot.Start.Before(*filter.StartsAfter) {
			continue
		}
		if !slot.Recurring && filter.EndsBefore != nil && slot.Start.After(*filter.EndsBefore) {
			continue
		}
		out = append(out, slot)
	}
	return out, nil
}
