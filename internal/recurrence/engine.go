package recurrence

import (
	"sort"
	"time"
)

// Search horizons for NextOccurrence. The bounds keep an otherwise
// open-ended scan from running forever when every candidate inside a year
// is suppressed by exception dates.
const (
	weeklyLookahead = 52
	dailyLookahead  = 365
)

// Template describes the recurrence-bearing fields of a schedule record.
//
// For a non-recurring record, Start and End denote the single concrete
// occurrence. For a recurring record they act as a pattern: only the UTC
// time-of-day of Start and the duration End-Start carry meaning, while the
// calendar date of Start is not itself an occurrence date.
type Template struct {
	ID        string
	Start     time.Time
	End       time.Time
	Recurring bool

	// Weekday selects weekly recurrence on the given day. Nil on a
	// recurring template selects daily recurrence.
	Weekday *time.Weekday

	// Until is the last calendar date eligible for occurrences. Only the
	// date portion is significant. Nil bounds the expansion by the query
	// range alone.
	Until *time.Time

	// Exceptions lists calendar dates on which an otherwise-due occurrence
	// is suppressed. Any time component is stripped before comparison.
	Exceptions []time.Time
}

// Expandable is implemented by record types the engine can expand.
// Instance must return a copy of the record rewritten as one concrete,
// non-recurring occurrence with the given identifier and bounds.
type Expandable[T any] interface {
	Template() Template
	Instance(id string, start, end time.Time) T
}

// InstanceID derives the identifier of a generated occurrence. Embedding
// the occurrence start keeps IDs unique within one expansion result.
func InstanceID(templateID string, start time.Time) string {
	return templateID + "-" + start.UTC().Format(time.RFC3339)
}

// Expand materializes every concrete occurrence of items that starts within
// the inclusive range [rangeStart, rangeEnd].
//
// Non-recurring records are included as-is when their start falls inside
// the range. Recurring records are expanded into synthesized instances
// that preserve the template's UTC time-of-day and duration, skip exception
// dates, and stop at the recurrence end date. The combined result is
// ordered ascending by start time.
//
// Expand never fails: templates with an out-of-range weekday or an empty
// query range simply contribute nothing.
func Expand[T Expandable[T]](items []T, rangeStart, rangeEnd time.Time) []T {
	if rangeEnd.Before(rangeStart) {
		return nil
	}

	type occurrence struct {
		item  T
		start time.Time
		id    string
	}

	collected := make([]occurrence, 0, len(items))

	for _, item := range items {
		tpl := item.Template()

		if !tpl.Recurring {
			if tpl.Start.Before(rangeStart) || tpl.Start.After(rangeEnd) {
				continue
			}
			collected = append(collected, occurrence{item: item, start: tpl.Start, id: tpl.ID})
			continue
		}

		walk(tpl, rangeStart, rangeEnd, func(start, end time.Time) {
			id := InstanceID(tpl.ID, start)
			collected = append(collected, occurrence{
				item:  item.Instance(id, start, end),
				start: start,
				id:    id,
			})
		})
	}

	sort.SliceStable(collected, func(i, j int) bool {
		if collected[i].start.Equal(collected[j].start) {
			return collected[i].id < collected[j].id
		}
		return collected[i].start.Before(collected[j].start)
	})

	out := make([]T, len(collected))
	for i, occ := range collected {
		out[i] = occ.item
	}
	return out
}

// NextOccurrence finds the earliest occurrence start strictly after the
// given instant that is not suppressed by an exception date and does not
// fall past the recurrence end date.
//
// The search is bounded to 52 weekly or 365 daily candidates. A false
// result therefore means "no occurrence within roughly one year", not a
// proof that the recurrence has terminated; callers that care about
// horizons beyond a year must not read it as such.
func NextOccurrence(tpl Template, after time.Time) (time.Time, bool) {
	if !tpl.Recurring || !validWeekday(tpl.Weekday) {
		return time.Time{}, false
	}

	var until time.Time
	bounded := tpl.Until != nil
	if bounded {
		until = dateOnly(*tpl.Until)
	}

	exceptions := exceptionSet(tpl.Exceptions)
	start := tpl.Start.UTC()

	day := dateOnly(after)
	step, limit := 1, dailyLookahead
	if tpl.Weekday != nil {
		for day.Weekday() != *tpl.Weekday {
			day = day.AddDate(0, 0, 1)
		}
		step, limit = 7, weeklyLookahead
	}

	for i := 0; i < limit; i++ {
		if bounded && day.After(until) {
			return time.Time{}, false
		}
		candidate := atTimeOfDay(day, start)
		if candidate.After(after) {
			if _, skip := exceptions[day]; !skip {
				return candidate, true
			}
		}
		day = day.AddDate(0, 0, step)
	}

	return time.Time{}, false
}

// CountOccurrences reports how many occurrences of a recurring template
// start within the inclusive range. Non-recurring records always count
// zero; they are handled by Expand's direct-inclusion path instead.
func CountOccurrences(tpl Template, rangeStart, rangeEnd time.Time) int {
	count := 0
	walk(tpl, rangeStart, rangeEnd, func(time.Time, time.Time) {
		count++
	})
	return count
}

// walk visits every occurrence of a recurring template whose start lies in
// [rangeStart, rangeEnd], stepping one day or one week at a time in UTC.
func walk(tpl Template, rangeStart, rangeEnd time.Time, visit func(start, end time.Time)) {
	if !tpl.Recurring || !validWeekday(tpl.Weekday) {
		return
	}
	if rangeEnd.Before(rangeStart) {
		return
	}

	start := tpl.Start.UTC()
	duration := tpl.End.Sub(tpl.Start)

	upper := dateOnly(rangeEnd)
	if tpl.Until != nil {
		if u := dateOnly(*tpl.Until); u.Before(upper) {
			upper = u
		}
	}

	exceptions := exceptionSet(tpl.Exceptions)

	day := dateOnly(rangeStart)
	step := 1
	if tpl.Weekday != nil {
		for day.Weekday() != *tpl.Weekday {
			day = day.AddDate(0, 0, 1)
		}
		step = 7
	}

	for ; !day.After(upper); day = day.AddDate(0, 0, step) {
		if _, skip := exceptions[day]; skip {
			continue
		}
		occStart := atTimeOfDay(day, start)
		if occStart.Before(rangeStart) || occStart.After(rangeEnd) {
			continue
		}
		visit(occStart, occStart.Add(duration))
	}
}

// dateOnly truncates an instant to midnight UTC of its calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// atTimeOfDay places the UTC time-of-day of tod onto the given date.
func atTimeOfDay(day, tod time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), tod.Nanosecond(), time.UTC)
}

func exceptionSet(dates []time.Time) map[time.Time]struct{} {
	if len(dates) == 0 {
		return nil
	}
	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[dateOnly(d)] = struct{}{}
	}
	return set
}

func validWeekday(w *time.Weekday) bool {
	return w == nil || (*w >= time.Sunday && *w <= time.Saturday)
}
