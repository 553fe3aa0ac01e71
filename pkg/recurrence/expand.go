package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var ErrExpansionFailed = errors.New("recurrence expansion failed")

const (
	// Occurrences are generated up to this far past the requested window.
	windowPadding         = 60 * 24 * time.Hour
	defaultMaxOccurrences = 100
	maxIterations         = 1000
)

// Occurrence is one generated slot of a series. Index is the position in the
// full series starting at 0, also for slots outside the requested window.
type Occurrence struct {
	Index int
	Start time.Time
	End   time.Time
}

// Expand generates the occurrences of a series whose first instance runs from
// start to end and that overlap [windowStart, windowEnd] by calendar date.
//
// Generation stops at COUNT occurrences (100 when unset), past UNTIL, past the
// padded window end or after 1000 steps, whichever comes first.
func Expand(start, end time.Time, rule Rule, windowStart, windowEnd time.Time) (occurrences []Occurrence, err error) {
	freq, err := rule.Frequency()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			occurrences = nil
			err = fmt.Errorf("%w: %v", ErrExpansionFailed, r)
		}
	}()

	duration := end.Sub(start)
	interval := rule.EffectiveInterval()
	limit := rule.Count
	if limit == 0 {
		limit = defaultMaxOccurrences
	}
	lastStart := windowEnd.Add(windowPadding)
	firstDay, lastDay := DateOf(windowStart), DateOf(windowEnd)

	current := start
	for index := 0; index < limit && index < maxIterations; index++ {
		if current.After(lastStart) {
			break
		}
		if rule.Until != nil && current.After(*rule.Until) {
			break
		}

		occurrenceEnd := current.Add(duration)
		if !DateOf(current).After(lastDay) && !DateOf(occurrenceEnd).Before(firstDay) {
			occurrences = append(occurrences, Occurrence{Index: index, Start: current, End: occurrenceEnd})
		}

		next, ok := advance(current, freq, interval)
		if !ok {
			break
		}
		current = next
	}
	return occurrences, nil
}

func advance(t time.Time, freq rrule.Frequency, interval int) (time.Time, bool) {
	switch freq {
	case rrule.DAILY:
		return t.AddDate(0, 0, interval), true
	case rrule.WEEKLY:
		return t.AddDate(0, 0, 7*interval), true
	case rrule.MONTHLY:
		return addMonths(t, interval), true
	case rrule.YEARLY:
		return addYears(t, interval), true
	}
	return t, false
}

// addMonths keeps the day of month, clamped to the last day of the target month.
func addMonths(t time.Time, months int) time.Time {
	month := int(t.Month()) - 1 + months
	year := t.Year() + month/12
	month = month%12 + 1
	day := min(t.Day(), DaysIn(year, time.Month(month)))
	return time.Date(year, time.Month(month), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addYears maps Feb 29 onto Feb 28 in non-leap target years.
func addYears(t time.Time, years int) time.Time {
	year := t.Year() + years
	day := t.Day()
	if t.Month() == time.February && day == 29 && DaysIn(year, time.February) == 28 {
		day = 28
	}
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
