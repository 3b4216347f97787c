package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Weekday numbers days Monday=0 through Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ErrUnknownWeekday indicates a weekday name outside the accepted spellings.
var ErrUnknownWeekday = errors.New("recurrence: unknown weekday")

var weekdayNames = map[string]Weekday{
	"Mon": Monday, "Monday": Monday,
	"Tue": Tuesday, "Tuesday": Tuesday,
	"Wed": Wednesday, "Wednesday": Wednesday,
	"Thu": Thursday, "Thursday": Thursday,
	"Fri": Friday, "Friday": Friday,
	"Sat": Saturday, "Saturday": Saturday,
	"Sun": Sunday, "Sunday": Sunday,
}

var shortNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ParseWeekday accepts abbreviated or full English names, case-sensitively.
func ParseWeekday(name string) (Weekday, error) {
	w, ok := weekdayNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
	}
	return w, nil
}

// FromTime converts the standard library's Sunday-first numbering.
func FromTime(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

func (w Weekday) String() string {
	if w < Monday || w > Sunday {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return shortNames[w]
}

// WeekdaySet is an unordered set of weekdays.
type WeekdaySet map[Weekday]struct{}

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	s := make(WeekdaySet, len(days))
	for _, d := range days {
		s[d] = struct{}{}
	}
	return s
}

// ParseWeekdays builds a set from names; the first unknown name fails the whole list.
func ParseWeekdays(names []string) (WeekdaySet, error) {
	s := make(WeekdaySet, len(names))
	for _, n := range names {
		w, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		s[w] = struct{}{}
	}
	return s, nil
}

func (s WeekdaySet) Has(w Weekday) bool {
	_, ok := s[w]
	return ok
}

// Names returns the canonical short names in Monday-first order.
func (s WeekdaySet) Names() []string {
	names := make([]string, 0, len(s))
	for w := Monday; w <= Sunday; w++ {
		if s.Has(w) {
			names = append(names, w.String())
		}
	}
	return names
}
