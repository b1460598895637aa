// Package common contains small utilities used across the project:
// English pluralization, token formatting and tenant-local calendar days.
package common

import (
	"fmt"
	"time"
)

// DayLayout is the format of a tenant-local calendar day ("2026-10-15").
const DayLayout = "2006-01-02"

// PluralizeTokens returns "token" or "tokens" for n.
func PluralizeTokens(n int64) string {
	if n == 1 || n == -1 {
		return "token"
	}
	return "tokens"
}

// FormatTokens formats a balance: FormatTokens(150) → "150 tokens".
func FormatTokens(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizeTokens(n))
}

// FormatTokensAmount adds an explicit sign.
//
//	FormatTokensAmount(25) → "+25 tokens"
//	FormatTokensAmount(-1) → "-1 token"
func FormatTokensAmount(amount int64) string {
	if amount >= 0 {
		return "+" + FormatTokens(amount)
	}
	return FormatTokens(amount)
}

// PluralizeDays returns "day" or "days" for n.
func PluralizeDays(n int) string {
	if n == 1 || n == -1 {
		return "day"
	}
	return "days"
}

// LoadLocation resolves the tenant timezone. An empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// DayOf returns the calendar day of t in loc, formatted with DayLayout.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// PreviousDay returns the calendar day before day.
// AddDate works on the civil date, so DST transitions do not matter.
func PreviousDay(day string) (string, error) {
	d, err := time.Parse(DayLayout, day)
	if err != nil {
		return "", fmt.Errorf("bad day %q: %w", day, err)
	}
	return d.AddDate(0, 0, -1).Format(DayLayout), nil
}

// DayBounds returns [start, end) of day in loc: local midnight to the next
// local midnight. On DST days the window is 23 or 25 hours long.
func DayBounds(day string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad day %q: %w", day, err)
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
	return start, end, nil
}
