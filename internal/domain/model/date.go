package model

import "time"

// DateLayout is the wire format of as-of dates.
const DateLayout = "2006-01-02"

const hoursPerDay = 24

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from t to asOf.
// It is negative when t falls after asOf.
func DaysBetween(asOf, t time.Time) int {
	return int(DateOf(asOf).Sub(DateOf(t)).Hours() / hoursPerDay)
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
