package models

import (
	"fmt"
	"strings"
	"time"
)

// Quota key prefixes. Search reads and KMZ re-downloads are separate
// counters but MUST share the same date-bucketing rule so both are
// accounted in one daily window, never two windows that double a user's
// effective allowance.
const (
	KeyPrefixDailyRead = "daily_read"
	KeyPrefixKMZ       = "kmz_dl"
)

// DayBucket returns the UTC calendar-day bucket for a point in time,
// formatted YYYYMMDD. Every day-scoped quota key goes through this.
func DayBucket(t time.Time) string {
	return t.UTC().Format("20060102")
}

// UntilDayEnd returns the remaining lifetime of a record created at t: the
// time left until the next UTC day boundary.
func UntilDayEnd(t time.Time) time.Duration {
	u := t.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next.Sub(u)
}

// QuotaKey builds the day-scoped quota key for an identity.
func QuotaKey(prefix string, t time.Time, anonID string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, DayBucket(t), SanitizeKeySegment(anonID))
}

// SanitizeKeySegment escapes delimiter characters in quota key segments to
// prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent quota buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
