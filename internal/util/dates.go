package util

import "time"

// DateLayout is the canonical trade-date format used throughout the schema.
// Dates in this form compare correctly as plain strings.
const DateLayout = "2006-01-02"

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NextDay returns the calendar day after the given date. Malformed input is
// returned unchanged.
func NextDay(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format(DateLayout)
}

// DaysAgo returns today minus n days, formatted as a trade date.
func DaysAgo(n int) string {
	return time.Now().AddDate(0, 0, -n).Format(DateLayout)
}

// Today returns the current date formatted as a trade date.
func Today() string {
	return time.Now().Format(DateLayout)
}
