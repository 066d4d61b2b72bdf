package models

import (
	"fmt"
	"time"
)

// CalendarLayout renders a date without its time of day, e.g. "Sun Jan 01 2023".
const CalendarLayout = "Mon Jan 02 2006"

// FormatDate renders t as a calendar-day string in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(CalendarLayout)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns UTC
// midnight of the calendar day as written, whatever the offset or time of day.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
}
