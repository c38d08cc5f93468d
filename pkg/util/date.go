package util

import (
    "strconv"
    "time"
)

// DayFormat is the canonical calendar-day layout used across the data store.
const DayFormat = "2006-01-02"

// ParseDay tries YYYY-MM-DD and compact YYYYMMDD. Returns (t, true) if any worked.
func ParseDay(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(DayFormat, s); err == nil {
        return t, true
    }
    if t, err := time.Parse("20060102", s); err == nil {
        return t, true
    }
    return time.Time{}, false
}

// ParseDayDefault parses a day or returns default if empty/invalid.
func ParseDayDefault(s string, def time.Time) time.Time {
    if t, ok := ParseDay(s); ok {
        return t
    }
    return def
}

// FormatDay renders a time as a canonical day string.
func FormatDay(t time.Time) string {
    return t.Format(DayFormat)
}

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
        return time.Unix(ts, 0), true
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

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
    if s == "" {
        return def
    }
    v, err := strconv.Atoi(s)
    if err != nil {
        return def
    }
    return v
}
