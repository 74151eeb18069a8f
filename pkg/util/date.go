package util

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("invalid date range")
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
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

// WidenDate accepts YYYY-MM-DD or a full timestamp. A bare date becomes
// 00:00:00Z when it starts a range and 23:59:59Z when it ends one.
func WidenDate(s string, end bool) (time.Time, error) {
	if d, err := time.Parse(dateLayout, s); err == nil {
		if end {
			return d.Add(24*time.Hour - time.Second), nil
		}
		return d, nil
	}
	if t, ok := ParseTime(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w %q, want YYYY-MM-DD or RFC3339", ErrInvalidDate, s)
}

// ParseRange widens both ends and checks ordering.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	from, err := WidenDate(start, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	to, err := WidenDate(end, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	return from, to, nil
}

// FormatRange renders a range the way run reports print it.
func FormatRange(from, to time.Time) string {
	return from.UTC().Format(dateLayout) + ".." + to.UTC().Format(dateLayout)
}
