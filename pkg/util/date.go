package util

import (
	"strconv"
	"time"
)

// WireTimeLayout is the timestamp format carried on the queue and stored in
// the warehouse identity key.
const WireTimeLayout = "2006-01-02 15:04:05"

// ParseTime tries the queue wire layout, RFC3339, RFC3339Nano, and unix
// seconds. Returns (t, true) if any worked. Wire timestamps carry no zone
// and are interpreted as UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(WireTimeLayout, s, time.UTC); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// FormatWire renders a timestamp in the queue wire layout (UTC).
func FormatWire(t time.Time) string {
	return t.UTC().Format(WireTimeLayout)
}

// MinuteBucket truncates a timestamp to its minute boundary.
func MinuteBucket(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
