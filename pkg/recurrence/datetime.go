package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

// Compact iCalendar layouts. All timestamps handled by this package are naive:
// they carry time.UTC as a floating wall clock and are never converted.
const (
	LayoutDate     = "20060102"
	LayoutDateTime = "20060102T150405"
	LayoutUTC      = "20060102T150405Z"
)

var tokenCleaner = strings.NewReplacer("T", "", "Z", "", "-", "", ":", "")

// ParseDateTime reads a compact date or date-time token such as 20250610,
// 20250610T140000Z or 2025-06-10T14:00:00.
//
// Corrupt year, month or day components fail with ErrInvalidDate. Corrupt
// hour, minute or second components are reset to zero.
func ParseDateTime(token string) (time.Time, error) {
	digits := tokenCleaner.Replace(strings.TrimSpace(token))
	if len(digits) < 8 {
		return time.Time{}, fmt.Errorf("%w: %q is too short", ErrInvalidDate, token)
	}

	year, err := component(digits, 0, 4)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, token, err)
	}
	month, err := component(digits, 4, 6)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, token, err)
	}
	day, err := component(digits, 6, 8)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, token, err)
	}

	if year < 1900 || year > 2100 {
		return time.Time{}, fmt.Errorf("%w: year %d out of range", ErrInvalidDate, year)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: month %d out of range", ErrInvalidDate, month)
	}
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: day %d out of range", ErrInvalidDate, day)
	}
	if day > DaysIn(year, time.Month(month)) {
		return time.Time{}, fmt.Errorf("%w: day %d does not exist in %04d-%02d", ErrInvalidDate, day, year, month)
	}

	var hour, minute, second int
	if len(digits) >= 10 {
		if hour, err = component(digits, 8, 10); err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, token, err)
		}
	}
	if len(digits) >= 12 {
		if minute, err = component(digits, 10, 12); err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, token, err)
		}
	}
	if len(digits) >= 14 {
		if second, err = component(digits, 12, 14); err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, token, err)
		}
	}
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	if second < 0 || second > 59 {
		second = 0
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

// HasTimeOfDay reports whether the token carries more than a date.
func HasTimeOfDay(token string) bool {
	return len(tokenCleaner.Replace(strings.TrimSpace(token))) > 8
}

// DaysIn returns the number of days of the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOf truncates t to midnight of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func component(digits string, from, to int) (int, error) {
	return strconv.Atoi(digits[from:to])
}
