// Package duration converts expressions such as "15minutes" or "1h30min" into durations.
package duration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var ErrInvalidDuration = errors.New("invalid duration")

const (
	DefaultDaysPerMonth = 30
	DefaultDaysPerYear  = 365

	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
	msPerWeek   = 7 * msPerDay
)

type unit int

const (
	unitSecond unit = iota
	unitMinute
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitYear
	unitCentury
)

var unitNames = map[string]unit{
	"s": unitSecond, "sec": unitSecond, "secs": unitSecond, "second": unitSecond, "seconds": unitSecond,
	"min": unitMinute, "mins": unitMinute, "minute": unitMinute, "minutes": unitMinute,
	"h": unitHour, "hr": unitHour, "hrs": unitHour, "hour": unitHour, "hours": unitHour,
	"d": unitDay, "day": unitDay, "days": unitDay,
	"w": unitWeek, "wk": unitWeek, "wks": unitWeek, "week": unitWeek, "weeks": unitWeek,
	"m": unitMonth, "mo": unitMonth, "month": unitMonth, "months": unitMonth,
	"y": unitYear, "yr": unitYear, "yrs": unitYear, "year": unitYear, "years": unitYear,
	"c": unitCentury, "century": unitCentury, "centuries": unitCentury,
}

// Parser turns additive "<integer><unit>" expressions into milliseconds.
// Months and years are calendar-free and use fixed day counts.
type Parser struct {
	DaysPerMonth int
	DaysPerYear  int
}

func NewParser() Parser {
	return Parser{DaysPerMonth: DefaultDaysPerMonth, DaysPerYear: DefaultDaysPerYear}
}

// Millis parses expr into a millisecond count. Nothing is returned on failure.
func (p Parser) Millis(expr string) (int64, error) {
	runes := []rune(expr)
	var total int64
	tokens := 0

	i := 0
	for {
		i = skipSpace(runes, i)
		if i >= len(runes) {
			break
		}

		start := i
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			i++
		}
		if start == i {
			return 0, fmt.Errorf("%w: %q: expected a non-negative integer at offset %d", ErrInvalidDuration, expr, start)
		}
		amount, err := strconv.ParseInt(string(runes[start:i]), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, expr, err)
		}

		i = skipSpace(runes, i)
		start = i
		for i < len(runes) && unicode.IsLetter(runes[i]) {
			i++
		}
		if start == i {
			return 0, fmt.Errorf("%w: %q: missing unit after %d", ErrInvalidDuration, expr, amount)
		}
		name := strings.ToLower(string(runes[start:i]))
		u, ok := unitNames[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q: unknown unit %q", ErrInvalidDuration, expr, name)
		}

		ms, err := p.unitMillis(u)
		if err != nil {
			return 0, err
		}
		if amount != 0 && ms > math.MaxInt64/amount {
			return 0, fmt.Errorf("%w: %q: overflows", ErrInvalidDuration, expr)
		}
		part := amount * ms
		if total > math.MaxInt64-part {
			return 0, fmt.Errorf("%w: %q: overflows", ErrInvalidDuration, expr)
		}
		total += part
		tokens++
	}

	if tokens == 0 {
		return 0, fmt.Errorf("%w: %q: empty expression", ErrInvalidDuration, expr)
	}
	return total, nil
}

// Parse is Millis expressed as a time.Duration.
func (p Parser) Parse(expr string) (time.Duration, error) {
	ms, err := p.Millis(expr)
	if err != nil {
		return 0, err
	}
	if ms > int64(math.MaxInt64/time.Millisecond) {
		return 0, fmt.Errorf("%w: %q: overflows time.Duration", ErrInvalidDuration, expr)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (p Parser) unitMillis(u unit) (int64, error) {
	switch u {
	case unitSecond:
		return msPerSecond, nil
	case unitMinute:
		return msPerMinute, nil
	case unitHour:
		return msPerHour, nil
	case unitDay:
		return msPerDay, nil
	case unitWeek:
		return msPerWeek, nil
	case unitMonth:
		if p.DaysPerMonth <= 0 {
			return 0, fmt.Errorf("%w: days per month must be positive", ErrInvalidDuration)
		}
		return int64(p.DaysPerMonth) * msPerDay, nil
	case unitYear:
		if p.DaysPerYear <= 0 {
			return 0, fmt.Errorf("%w: days per year must be positive", ErrInvalidDuration)
		}
		return int64(p.DaysPerYear) * msPerDay, nil
	default:
		if p.DaysPerYear <= 0 {
			return 0, fmt.Errorf("%w: days per year must be positive", ErrInvalidDuration)
		}
		return 100 * int64(p.DaysPerYear) * msPerDay, nil
	}
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

// Parse parses expr with the default calendar.
func Parse(expr string) (time.Duration, error) {
	return NewParser().Parse(expr)
}

// Millis parses expr with the default calendar.
func Millis(expr string) (int64, error) {
	return NewParser().Millis(expr)
}
