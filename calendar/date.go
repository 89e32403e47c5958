package calendar

import (
	"fmt"
	"time"
)

const dateLayout = "20060102"

// Parses a GTFS YYYYMMDD date. The result is midnight UTC, so day
// arithmetic never crosses a DST boundary.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date '%s': %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Calls f for every date from start to end, inclusive.
func EachDate(start, end string, f func(date string, weekday time.Weekday)) error {
	from, err := ParseDate(start)
	if err != nil {
		return err
	}
	to, err := ParseDate(end)
	if err != nil {
		return err
	}

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		f(FormatDate(d), d.Weekday())
	}

	return nil
}
