package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/availability-scheduler/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository using SQLite.
type AvailabilityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewAvailabilityRepository creates a new SQLite availability repository.
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateSlot inserts a new availability slot with its exception dates.
func (r *AvailabilityRepository) CreateSlot(ctx context.Context, slot persistence.AvailabilitySlot) error {
	if slot.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO availability_slots (id, user_id, note, start_time, end_time,
				is_recurring, day_of_week, recurrence_end_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			slot.ID,
			slot.UserID,
			nullText(slot.Note),
			encodeTime(slot.Start),
			encodeTime(slot.End),
			slot.Recurring,
			nullWeekday(slot.DayOfWeek),
			nullDate(slot.RecurrenceEnd),
			encodeTime(slot.CreatedAt),
			encodeTime(slot.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		return r.replaceExceptions(ctx, tx, slot.ID, slot.ExceptionDates, false)
	})
}

// UpdateSlot updates an existing slot and replaces its exception dates.
func (r *AvailabilityRepository) UpdateSlot(ctx context.Context, slot persistence.AvailabilitySlot) error {
	if slot.ID == "" {
		return persistence.ErrNotFound
	}

	slot.UpdatedAt = time.Now().UTC()

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE availability_slots
			SET note = ?, start_time = ?, end_time = ?,
				is_recurring = ?, day_of_week = ?, recurrence_end_date = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			nullText(slot.Note),
			encodeTime(slot.Start),
			encodeTime(slot.End),
			slot.Recurring,
			nullWeekday(slot.DayOfWeek),
			nullDate(slot.RecurrenceEnd),
			encodeTime(slot.UpdatedAt),
			slot.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		return r.replaceExceptions(ctx, tx, slot.ID, slot.ExceptionDates, true)
	})
}

// GetSlot retrieves a single availability slot by ID.
func (r *AvailabilityRepository) GetSlot(ctx context.Context, id string) (persistence.AvailabilitySlot, error) {
	if id == "" {
		return persistence.AvailabilitySlot{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, user_id, note, start_time, end_time,
			is_recurring, day_of_week, recurrence_end_date, created_at, updated_at
		FROM availability_slots
		WHERE id = ?
	`, id)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.AvailabilitySlot{}, persistence.ErrNotFound
		}
		return persistence.AvailabilitySlot{}, r.mapper.MapError(err)
	}

	slot.ExceptionDates, err = r.loadExceptions(ctx, slot.ID)
	if err != nil {
		return persistence.AvailabilitySlot{}, err
	}

	return slot, nil
}

// ListSlots returns availability slots matching the filter, ordered by
// start time. Recurring templates always pass the time bounds.
func (r *AvailabilityRepository) ListSlots(ctx context.Context, filter persistence.AvailabilityFilter) ([]persistence.AvailabilitySlot, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, user_id, note, start_time, end_time,
			is_recurring, day_of_week, recurrence_end_date, created_at, updated_at
		FROM availability_slots
	`)

	var conds []string
	var args []any

	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.StartsAfter != nil {
		conds = append(conds, "(is_recurring = 1 OR end_time >= ?)")
		args = append(args, encodeTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conds = append(conds, "(is_recurring = 1 OR start_time <= ?)")
		args = append(args, encodeTime(*filter.EndsBefore))
	}

	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	query.WriteString(" ORDER BY start_time, id")

	rows, err := r.pool.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var slots []persistence.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range slots {
		slots[i].ExceptionDates, err = r.loadExceptions(ctx, slots[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return slots, nil
}

// DeleteSlot removes an availability slot; exception dates cascade.
func (r *AvailabilityRepository) DeleteSlot(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM availability_slots WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

func (r *AvailabilityRepository) replaceExceptions(ctx context.Context, tx *sql.Tx, slotID string, dates []time.Time, clear bool) error {
	if clear {
		if _, err := tx.ExecContext(ctx, "DELETE FROM availability_exceptions WHERE slot_id = ?", slotID); err != nil {
			return r.mapper.MapError(err)
		}
	}
	for _, day := range dates {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO availability_exceptions (slot_id, day) VALUES (?, ?)",
			slotID, encodeDate(day),
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *AvailabilityRepository) loadExceptions(ctx context.Context, slotID string) ([]time.Time, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT day FROM availability_exceptions WHERE slot_id = ? ORDER BY day", slotID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		day, err := decodeDate(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, day)
	}
	return dates, rows.Err()
}

func scanSlot(row rowScanner) (persistence.AvailabilitySlot, error) {
	var (
		slot          persistence.AvailabilitySlot
		note          sql.NullString
		startRaw      string
		endRaw        string
		dayOfWeek     sql.NullInt64
		recurrenceEnd sql.NullString
		createdRaw    string
		updatedRaw    string
	)

	if err := row.Scan(
		&slot.ID, &slot.UserID, &note,
		&startRaw, &endRaw, &slot.Recurring, &dayOfWeek, &recurrenceEnd,
		&createdRaw, &updatedRaw,
	); err != nil {
		return persistence.AvailabilitySlot{}, err
	}

	slot.Note = textPtr(note)
	slot.DayOfWeek = weekdayPtr(dayOfWeek)

	var err error
	if slot.Start, err = decodeTime(startRaw); err != nil {
		return persistence.AvailabilitySlot{}, err
	}
	if slot.End, err = decodeTime(endRaw); err != nil {
		return persistence.AvailabilitySlot{}, err
	}
	if slot.RecurrenceEnd, err = datePtr(recurrenceEnd); err != nil {
		return persistence.AvailabilitySlot{}, err
	}
	if slot.CreatedAt, err = decodeTime(createdRaw); err != nil {
		return persistence.AvailabilitySlot{}, err
	}
	if slot.UpdatedAt, err = decodeTime(updatedRaw); err != nil {
		return persistence.AvailabilitySlot{}, err
	}

	return slot, nil
}
