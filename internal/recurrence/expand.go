package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate indicates a calendar date that could not be parsed.
var ErrInvalidDate = errors.New("recurrence: invalid date")

const dateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.midnightUTC().AddDate(0, 0, n))
}

func (d Date) Weekday() Weekday {
	return FromTime(d.midnightUTC().Weekday())
}

func (d Date) Before(o Date) bool {
	return d.midnightUTC().Before(o.midnightUTC())
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

// DaysUntil counts whole days from d to o; negative when o is earlier.
func (d Date) DaysUntil(o Date) int {
	return int(o.midnightUTC().Sub(d.midnightUTC()) / (24 * time.Hour))
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	return d.midnightUTC()
}

func (d Date) String() string {
	return d.midnightUTC().Format(dateLayout)
}

// Expand lists every day in [start, end] whose weekday is in weekdays, ascending.
// An empty set or an inverted range yields nil.
func Expand(start, end Date, weekdays WeekdaySet) []Date {
	if len(weekdays) == 0 || start.After(end) {
		return nil
	}
	var dates []Date
	for cur := start; !cur.After(end); cur = cur.AddDays(1) {
		if weekdays.Has(cur.Weekday()) {
			dates = append(dates, cur)
		}
	}
	return dates
}
