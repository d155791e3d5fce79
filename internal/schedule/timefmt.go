package schedule

import (
	"fmt"
	"regexp"
	"time"
)

const (
	// EventTimeLayout is the only accepted shape for event times.
	EventTimeLayout = "2006-01-02T15:04"
	// DateLayout is the shape of recurrence end dates and slot-search dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the shape of time-of-day window bounds.
	ClockLayout = "15:04"
)

var (
	eventTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}$`)
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern     = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// All times are naive wall-clock values. They are carried as time.Time in UTC
// so that comparison and arithmetic never cross a zone transition.

// ParseEventTime parses a strict YYYY-MM-DDTHH:MM string.
func ParseEventTime(s string) (time.Time, error) {
	if !eventTimePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: time must be YYYY-MM-DDTHH:MM", ErrInvalidFormat)
	}
	t, err := time.ParseInLocation(EventTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time must be YYYY-MM-DDTHH:MM", ErrInvalidFormat)
	}
	return t, nil
}

// FormatEventTime is the inverse of ParseEventTime.
func FormatEventTime(t time.Time) string {
	return t.Format(EventTimeLayout)
}

// ParseEndDate parses a strict YYYY-MM-DD string and returns 23:59 of that
// day, the inclusive end-of-day bound used by "until" recurrences.
func ParseEndDate(s string) (time.Time, error) {
	d, err := ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: recurrence.until must be YYYY-MM-DD", ErrInvalidFormat)
	}
	return d.Add(23*time.Hour + 59*time.Minute), nil
}

// ParseDate parses a strict YYYY-MM-DD string to midnight of that day.
func ParseDate(s string) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidFormat)
	}
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidFormat)
	}
	return d, nil
}

// AtClock returns the given day at an HH:MM time of day.
func AtClock(day time.Time, clock string) (time.Time, error) {
	if !clockPattern.MatchString(clock) {
		return time.Time{}, fmt.Errorf("%w: time of day must be HH:MM", ErrInvalidFormat)
	}
	c, err := time.ParseInLocation(ClockLayout, clock, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time of day must be HH:MM", ErrInvalidFormat)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, time.UTC), nil
}
