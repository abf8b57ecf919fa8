package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Weekday numbers days from Monday (0) to Sunday (6).
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

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d Weekday) String() string {
	if d < 0 || int(d) >= len(weekdayNames) {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// WeekdayOf converts a time.Weekday (Sunday=0) to a Monday-first Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

func parseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if name == s || name[:3] == s {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// Clock is a time of day in seconds since midnight.
type Clock int

func clockOf(t time.Time) Clock {
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func parseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return Clock(t.Hour()*3600 + t.Minute()*60), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/3600, (int(c)%3600)/60)
}

// Range is an inclusive time-of-day interval. Start after End wraps midnight.
type Range struct {
	Start Clock
	End   Clock
}

// ParseRange parses "HH:MM-HH:MM".
func ParseRange(s string) (Range, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid range %q: want HH:MM-HH:MM", s)
	}
	sc, err := parseClock(start)
	if err != nil {
		return Range{}, err
	}
	ec, err := parseClock(end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: sc, End: ec}, nil
}

// Contains reports whether c falls in the range, both bounds included.
func (r Range) Contains(c Clock) bool {
	if r.Start <= r.End {
		return r.Start <= c && c <= r.End
	}
	return c >= r.Start || c <= r.End
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Entry maps a time range to an activity label.
type Entry struct {
	Range    Range
	Activity string
}

// Table holds the ordered entries for every weekday. It is not modified
// after construction and is safe for concurrent readers.
type Table struct {
	days [7][]Entry
}

// NewTable builds a table from per-day entries. Entry order is preserved.
func NewTable(days map[Weekday][]Entry) *Table {
	t := &Table{}
	for d, entries := range days {
		if d < Monday || d > Sunday {
			continue
		}
		t.days[d] = append([]Entry(nil), entries...)
	}
	return t
}

// Day returns a copy of the entries for the weekday, in file order.
func (t *Table) Day(d Weekday) []Entry {
	if d < Monday || d > Sunday {
		return nil
	}
	return append([]Entry(nil), t.days[d]...)
}

// Lookup returns the first activity whose range contains the clock.
func (t *Table) Lookup(d Weekday, c Clock) (string, bool) {
	if d < Monday || d > Sunday {
		return "", false
	}
	for _, e := range t.days[d] {
		if e.Range.Contains(c) {
			return e.Activity, true
		}
	}
	return "", false
}
