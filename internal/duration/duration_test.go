package duration

import (
	"errors"
	"testing"
	"time"
)

func TestMillis_ParsesSingleAndCompoundExpressions(t *testing.T) {
	cases := map[string]int64{
		"2hours":            7_200_000,
		"1h30min":           5_400_000,
		"1hour30minutes":    5_400_000,
		"15minutes":         900_000,
		"15 Minutes":        900_000,
		"1h 30min 15s":      5_415_000,
		"0s":                0,
		"45secs":            45_000,
		"1d":                86_400_000,
		"2weeks":            1_209_600_000,
		"1m":                2_592_000_000,
		"1month":            2_592_000_000,
		"1y":                31_536_000_000,
		"1c":                3_153_600_000_000,
		"1century1c":        6_307_200_000_000,
	}

	for expr, want := range cases {
		got, err := Millis(expr)
		if err != nil {
			t.Fatalf("Millis(%q) returned error: %v", expr, err)
		}
		if got != want {
			t.Fatalf("Millis(%q) = %d, want %d", expr, got, want)
		}
	}
}

func TestMillis_RejectsMalformedExpressions(t *testing.T) {
	for _, expr := range []string{
		"banana",
		"",
		"   ",
		"15",
		"-5minutes",
		"1.5h",
		"10parsecs",
		"1h banana",
		"99999999999999999999s",
		"9223372036854775807y",
	} {
		got, err := Millis(expr)
		if err == nil {
			t.Fatalf("Millis(%q) = %d, expected error", expr, got)
		}
		if !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("Millis(%q) error %v does not wrap ErrInvalidDuration", expr, err)
		}
		if got != 0 {
			t.Fatalf("Millis(%q) returned partial result %d", expr, got)
		}
	}
}

func TestParser_CustomCalendar(t *testing.T) {
	p := Parser{DaysPerMonth: 31, DaysPerYear: 360}

	month, err := p.Millis("1month")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if month != 31*86_400_000 {
		t.Fatalf("expected 31-day month, got %d", month)
	}

	year, err := p.Millis("1year")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if year != 360*86_400_000 {
		t.Fatalf("expected 360-day year, got %d", year)
	}
}

func TestParser_ZeroCalendarIsInvalid(t *testing.T) {
	var p Parser
	if _, err := p.Millis("1month"); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration for zero days per month, got %v", err)
	}
	if got, err := p.Millis("2hours"); err != nil || got != 7_200_000 {
		t.Fatalf("fixed units should not need a calendar, got %d err=%v", got, err)
	}
}

func TestParse_ReturnsDuration(t *testing.T) {
	d, err := Parse("1h30min")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 90*time.Minute {
		t.Fatalf("expected 90m, got %v", d)
	}

	if _, err := Parse("100000c"); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected overflow of time.Duration to be rejected, got %v", err)
	}
}
