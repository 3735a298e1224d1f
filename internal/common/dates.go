package common

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-date key format used by snapshots and the daily mapping.
const DayLayout = "2006-01-02"

// DayKey returns the UTC calendar date of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD key into UTC midnight of that day.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, day, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t, nil
}

// UTCMidnight truncates t to the start of its UTC calendar day.
func UTCMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
