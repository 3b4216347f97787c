package recurrence

import "time"

// Session is one materialized occurrence, stored as UTC instants.
type Session struct {
	Date  Date
	Start time.Time
	End   time.Time
}

// Materialize places the parent's local start and end time-of-day on each date
// in loc. A parent spanning midnight keeps the same day offset for its end.
func Materialize(parentStart, parentEnd time.Time, loc *time.Location, dates []Date) []Session {
	ls := parentStart.In(loc)
	le := parentEnd.In(loc)
	span := DateOf(ls).DaysUntil(DateOf(le))

	sessions := make([]Session, 0, len(dates))
	for _, d := range dates {
		ed := d.AddDays(span)
		start := time.Date(d.Year, d.Month, d.Day, ls.Hour(), ls.Minute(), ls.Second(), 0, loc)
		end := time.Date(ed.Year, ed.Month, ed.Day, le.Hour(), le.Minute(), le.Second(), 0, loc)
		sessions = append(sessions, Session{Date: d, Start: start.UTC(), End: end.UTC()})
	}
	return sessions
}

// Children expands a weekly series from the parent's local date through endDate
// and materializes every generated date except the parent's own.
func Children(parentStart, parentEnd time.Time, loc *time.Location, endDate Date, weekdays WeekdaySet) []Session {
	first := DateOf(parentStart.In(loc))
	var dates []Date
	for _, d := range Expand(first, endDate, weekdays) {
		if d == first {
			continue
		}
		dates = append(dates, d)
	}
	return Materialize(parentStart, parentEnd, loc, dates)
}
