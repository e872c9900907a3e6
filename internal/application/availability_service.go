package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/availability-scheduler/internal/persistence"
)

// AvailabilityRepository captures the persistence interactions needed by the service.
type AvailabilityRepository interface {
	CreateSlot(ctx context.Context, slot AvailabilitySlot) (AvailabilitySlot, error)
	GetSlot(ctx context.Context, id string) (AvailabilitySlot, error)
	UpdateSlot(ctx context.Context, slot AvailabilitySlot) (AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, id string) error
	ListSlots(ctx context.Context, filter AvailabilityRepositoryFilter) ([]AvailabilitySlot, error)
}

// AvailabilityRepositoryFilter narrows queries issued to the availability repository.
type AvailabilityRepositoryFilter struct {
	UserID      string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// AvailabilityService orchestrates validation, authorization, and persistence
// for availability slots.
type AvailabilityService struct {
	slots       AvailabilityRepository
	users       UserDirectory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAvailabilityService wires dependencies for availability operations.
func NewAvailabilityService(slots AvailabilityRepository, users UserDirectory, idGenerator func() string, now func() time.Time) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(slots, users, idGenerator, now, nil)
}

// NewAvailabilityServiceWithLogger constructs an AvailabilityService with a specified logger.
func NewAvailabilityServiceWithLogger(slots AvailabilityRepository, users UserDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		slots:       slots,
		users:       users,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// CreateSlot validates the request before delegating to persistence.
func (s *AvailabilityService) CreateSlot(ctx context.Context, params CreateAvailabilityParams) (AvailabilitySlot, error) {
	if s == nil {
		return AvailabilitySlot{}, fmt.Errorf("AvailabilityService is nil")
	}
	input := params.Input
	principal := params.Principal

	logger := s.loggerWith(ctx, "CreateSlot", "principal_id", principal.UserID)

	if input.UserID == "" {
		input.UserID = principal.UserID
	}
	if input.UserID != principal.UserID && !principal.IsAdmin() {
		return AvailabilitySlot{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	validateAvailabilityCore(input, vErr)
	validateRecurrence(input.Recurrence, vErr)
	if vErr.HasErrors() {
		return AvailabilitySlot{}, vErr
	}

	if err := s.ensureUserExists(ctx, input.UserID); err != nil {
		return AvailabilitySlot{}, err
	}

	createdAt := s.now().UTC()
	slot := AvailabilitySlot{
		ID:        s.idGenerator(),
		UserID:    input.UserID,
		Note:      trimPtr(input.Note),
		Start:     input.Start.UTC(),
		End:       input.End.UTC(),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	applyRecurrence(&slot.Recurring, &slot.DayOfWeek, &slot.RecurrenceEnd, &slot.ExceptionDates, input.Recurrence)

	if s.slots == nil {
		return slot, nil
	}

	persisted, err := s.slots.CreateSlot(ctx, slot)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create availability slot", "error", err, "error_kind", ErrorKind(err))
		return AvailabilitySlot{}, mapAvailabilityRepoError(err)
	}

	logger.With("slot_id", persisted.ID).InfoContext(ctx, "availability slot created")
	return persisted, nil
}

// UpdateSlot applies validation and authorization before updating persistence state.
func (s *AvailabilityService) UpdateSlot(ctx context.Context, params UpdateAvailabilityParams) (AvailabilitySlot, error) {
	if s == nil {
		return AvailabilitySlot{}, fmt.Errorf("AvailabilityService is nil")
	}
	if s.slots == nil {
		return AvailabilitySlot{}, fmt.Errorf("availability repository not configured")
	}

	logger := s.loggerWith(ctx, "UpdateSlot", "slot_id", params.SlotID)

	existing, err := s.slots.GetSlot(ctx, params.SlotID)
	if err != nil {
		return AvailabilitySlot{}, mapAvailabilityRepoError(err)
	}

	principal := params.Principal
	input := params.Input

	if existing.UserID != principal.UserID && !principal.IsAdmin() {
		return AvailabilitySlot{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if input.UserID != "" && input.UserID != existing.UserID {
		vErr.add("user_id", "owner cannot be changed")
	}
	validateAvailabilityCore(input, vErr)
	validateRecurrence(input.Recurrence, vErr)
	if vErr.HasErrors() {
		return AvailabilitySlot{}, vErr
	}

	updated := existing
	updated.Note = trimPtr(input.Note)
	updated.Start = input.Start.UTC()
	updated.End = input.End.UTC()
	updated.UpdatedAt = s.now().UTC()
	applyRecurrence(&updated.Recurring, &updated.DayOfWeek, &updated.RecurrenceEnd, &updated.ExceptionDates, input.Recurrence)

	persisted, err := s.slots.UpdateSlot(ctx, updated)
	if err != nil {
		logger.ErrorContext(ctx, "failed to update availability slot", "error", err, "error_kind", ErrorKind(err))
		return AvailabilitySlot{}, mapAvailabilityRepoError(err)
	}

	logger.InfoContext(ctx, "availability slot updated")
	return persisted, nil
}

// GetSlot returns a single availability slot. Members may read only their
// own slots; admins and organizers may read anyone's.
func (s *AvailabilityService) GetSlot(ctx context.Context, principal Principal, slotID string) (AvailabilitySlot, error) {
	if s == nil {
		return AvailabilitySlot{}, fmt.Errorf("AvailabilityService is nil")
	}
	if s.slots == nil {
		return AvailabilitySlot{}, fmt.Errorf("availability repository not configured")
	}

	slot, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return AvailabilitySlot{}, mapAvailabilityRepoError(err)
	}
	if slot.UserID != principal.UserID && !principal.CanOrganize() {
		return AvailabilitySlot{}, ErrUnauthorized
	}
	return slot, nil
}

// DeleteSlot ensures authorization before delegating to persistence.
func (s *AvailabilityService) DeleteSlot(ctx context.Context, principal Principal, slotID string) error {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}
	if s.slots == nil {
		return fmt.Errorf("availability repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteSlot", "slot_id", slotID)

	existing, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return mapAvailabilityRepoError(err)
	}

	if existing.UserID != principal.UserID && !principal.IsAdmin() {
		return ErrUnauthorized
	}

	if err := s.slots.DeleteSlot(ctx, slotID); err != nil {
		logger.ErrorContext(ctx, "failed to delete availability slot", "error", err, "error_kind", ErrorKind(err))
		return mapAvailabilityRepoError(err)
	}

	logger.InfoContext(ctx, "availability slot deleted")
	return nil
}

// ListSlots enumerates availability slots visible to the requesting
// principal. When the requested window has both bounds, recurring slots are
// expanded into the occurrences falling inside it.
func (s *AvailabilityService) ListSlots(ctx context.Context, params ListAvailabilityParams) ([]AvailabilitySlot, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}
	if s.slots == nil {
		return nil, fmt.Errorf("availability repository not configured")
	}

	userID := params.UserID
	if userID == "" && !params.Principal.CanOrganize() {
		userID = params.Principal.UserID
	}
	if userID != params.Principal.UserID && userID != "" && !params.Principal.CanOrganize() {
		return nil, ErrUnauthorized
	}

	filter := buildAvailabilityListFilter(params, userID)

	slots, err := s.slots.ListSlots(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	if filter.StartsAfter != nil && filter.EndsBefore != nil {
		return ExpandAvailability(slots, *filter.StartsAfter, *filter.EndsBefore), nil
	}

	ordered := make([]AvailabilitySlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})
	return ordered, nil
}

func (s *AvailabilityService) ensureUserExists(ctx context.Context, id string) error {
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
	vErr.add("user_id", "user does not exist")
	return vErr
}

func validateAvailabilityCore(input AvailabilityInput, vErr *ValidationError) {
	if input.Start.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if input.End.IsZero() {
		vErr.add("end_time", "end time is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.Start.Before(input.End) {
		vErr.add("time", "start time must be before end time")
	}
	if input.Note != nil && len(strings.TrimSpace(*input.Note)) > 500 {
		vErr.add("note", "note must be 500 characters or fewer")
	}
}

func buildAvailabilityListFilter(params ListAvailabilityParams, userID string) AvailabilityRepositoryFilter {
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

	return AvailabilityRepositoryFilter{
		UserID:      userID,
		StartsAfter: startsAfter,
		EndsBefore:  endsBefore,
	}
}

func mapAvailabilityRepoError(err error) error {
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
		vErr.add("user_id", "user does not exist")
		return vErr
	}
	return err
}
