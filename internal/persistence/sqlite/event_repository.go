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

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateEvent inserts a new event with its exception dates.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO events (id, title, description, organizer_id, venue, start_time, end_time,
				is_recurring, day_of_week, recurrence_end_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			event.ID,
			event.Title,
			nullText(event.Description),
			event.OrganizerID,
			nullText(event.Venue),
			encodeTime(event.Start),
			encodeTime(event.End),
			event.Recurring,
			nullWeekday(event.DayOfWeek),
			nullDate(event.RecurrenceEnd),
			encodeTime(event.CreatedAt),
			encodeTime(event.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		return r.replaceExceptions(ctx, tx, event.ID, event.ExceptionDates, false)
	})
}

// UpdateEvent updates an existing event and replaces its exception dates.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrNotFound
	}

	event.UpdatedAt = time.Now().UTC()

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE events
			SET title = ?, description = ?, venue = ?, start_time = ?, end_time = ?,
				is_recurring = ?, day_of_week = ?, recurrence_end_date = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			event.Title,
			nullText(event.Description),
			nullText(event.Venue),
			encodeTime(event.Start),
			encodeTime(event.End),
			event.Recurring,
			nullWeekday(event.DayOfWeek),
			nullDate(event.RecurrenceEnd),
			encodeTime(event.UpdatedAt),
			event.ID,
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

		return r.replaceExceptions(ctx, tx, event.ID, event.ExceptionDates, true)
	})
}

// GetEvent retrieves a single event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, title, description, organizer_id, venue, start_time, end_time,
			is_recurring, day_of_week, recurrence_end_date, created_at, updated_at
		FROM events
		WHERE id = ?
	`, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, r.mapper.MapError(err)
	}

	event.ExceptionDates, err = r.loadExceptions(ctx, event.ID)
	if err != nil {
		return persistence.Event{}, err
	}

	return event, nil
}

// ListEvents returns events matching the filter, ordered by start time.
// Recurring templates always pass the time bounds; their occurrences may
// fall anywhere inside the queried range.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, title, description, organizer_id, venue, start_time, end_time,
			is_recurring, day_of_week, recurrence_end_date, created_at, updated_at
		FROM events
	`)

	var conds []string
	var args []any

	if filter.OrganizerID != "" {
		conds = append(conds, "organizer_id = ?")
		args = append(args, filter.OrganizerID)
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

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		events[i].ExceptionDates, err = r.loadExceptions(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return events, nil
}

// DeleteEvent removes an event; exception dates cascade.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
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

func (r *EventRepository) replaceExceptions(ctx context.Context, tx *sql.Tx, eventID string, dates []time.Time, clear bool) error {
	if clear {
		if _, err := tx.ExecContext(ctx, "DELETE FROM event_exceptions WHERE event_id = ?", eventID); err != nil {
			return r.mapper.MapError(err)
		}
	}
	for _, day := range dates {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO event_exceptions (event_id, day) VALUES (?, ?)",
			eventID, encodeDate(day),
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *EventRepository) loadExceptions(ctx context.Context, eventID string) ([]time.Time, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT day FROM event_exceptions WHERE event_id = ? ORDER BY day", eventID)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event         persistence.Event
		description   sql.NullString
		venue         sql.NullString
		startRaw      string
		endRaw        string
		dayOfWeek     sql.NullInt64
		recurrenceEnd sql.NullString
		createdRaw    string
		updatedRaw    string
	)

	if err := row.Scan(
		&event.ID, &event.Title, &description, &event.OrganizerID, &venue,
		&startRaw, &endRaw, &event.Recurring, &dayOfWeek, &recurrenceEnd,
		&createdRaw, &updatedRaw,
	); err != nil {
		return persistence.Event{}, err
	}

	event.Description = textPtr(description)
	event.Venue = textPtr(venue)
	event.DayOfWeek = weekdayPtr(dayOfWeek)

	var err error
	if event.Start, err = decodeTime(startRaw); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = decodeTime(endRaw); err != nil {
		return persistence.Event{}, err
	}
	if event.RecurrenceEnd, err = datePtr(recurrenceEnd); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = decodeTime(createdRaw); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = decodeTime(updatedRaw); err != nil {
		return persistence.Event{}, err
	}

	return event, nil
}
