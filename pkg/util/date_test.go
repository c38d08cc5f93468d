package util

import (
    "testing"
    "time"
)

func TestParseDay(t *testing.T) {
    got, ok := ParseDay("2024-10-10")
    if !ok {
        t.Fatalf("expected ok")
    }
    if FormatDay(got) != "2024-10-10" {
        t.Fatalf("unexpected day %v", got)
    }
}

func TestParseDayCompact(t *testing.T) {
    got, ok := ParseDay("20241010")
    if !ok {
        t.Fatalf("expected ok")
    }
    want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
    if !got.Equal(want) {
        t.Fatalf("unexpected day %v", got)
    }
}

func TestParseDayDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
    got := ParseDayDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
    if _, ok := ParseDay("not-a-day"); ok {
        t.Fatalf("expected parse failure")
    }
}

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}
