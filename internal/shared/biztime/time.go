// Package biztime provides time utilities for entitlement bookkeeping.
// All storage and transport use UTC; implicit Local timezone is prohibited.
package biztime

import "time"

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ToUTC normalizes t to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Days returns a duration of n calendar days.
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
