package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Timestamps are stored as RFC 3339 UTC strings; recurrence end dates and
// exception dates as date-only strings. Both orderings are lexicographic,
// which keeps SQL range filters correct.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func decodeTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", value, err)
	}
	return t, nil
}

func encodeDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func decodeDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", value, err)
	}
	return t.UTC(), nil
}

func nullText(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func textPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	value := ns.String
	return &value
}

func nullTime(p *time.Time) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*p), Valid: true}
}

func nullDate(p *time.Time) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeDate(*p), Valid: true}
}

func datePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := decodeDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullWeekday(p *time.Weekday) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func weekdayPtr(ni sql.NullInt64) *time.Weekday {
	if !ni.Valid {
		return nil
	}
	w := time.Weekday(ni.Int64)
	return &w
}
