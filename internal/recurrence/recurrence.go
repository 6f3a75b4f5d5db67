// Package recurrence expands a weekly booking pattern into concrete
// occurrences.
package recurrence

import "time"

// Occurrence is one expanded instance of a weekly pattern.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Expand generates one occurrence per selected weekday strictly after the
// template's own day, through the until date inclusive. Each occurrence keeps
// the template's wall-clock start and duration in the template's location, so
// a pattern crossing a DST change stays at the same local time.
//
// An empty weekday set or a non-positive template duration yields nil.
func Expand(baseStart, baseEnd time.Time, weekdays []time.Weekday, until time.Time) []Occurrence {
	if len(weekdays) == 0 || !baseEnd.After(baseStart) {
		return nil
	}
	loc := baseStart.Location()
	duration := baseEnd.Sub(baseStart)

	selected := make(map[time.Weekday]struct{}, len(weekdays))
	for _, day := range weekdays {
		selected[day] = struct{}{}
	}

	cursor := midnight(baseStart, loc).AddDate(0, 0, 1)
	limit := midnight(until, loc)

	var occurrences []Occurrence
	for !cursor.After(limit) {
		if _, ok := selected[cursor.Weekday()]; ok {
			start := atClock(cursor, baseStart, loc)
			occurrences = append(occurrences, Occurrence{
				Start: start,
				End:   start.Add(duration),
			})
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return occurrences
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func atClock(date, template time.Time, loc *time.Location) time.Time {
	y, m, d := date.In(loc).Date()
	clock := template.In(loc)
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), loc)
}
