package series

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/davcal/davcal/pkg/ics"
	"github.com/davcal/davcal/pkg/recurrence"
	"github.com/emersion/go-ical"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotRecurring       = errors.New("event is not recurring")
	ErrSeriesExhausted    = errors.New("no occurrence left in series")
	ErrBaseEventNotFound  = errors.New("base event not found")
	ErrStorageWriteFailed = errors.New("failed to write calendar object")
	ErrInvalidDeleteType  = errors.New("invalid delete type")
)

var occurrenceSuffix = regexp.MustCompile(`_recurrence_\d+$`)

// StripOccurrenceSuffix turns the UID of a generated occurrence back into the
// UID of its series. Other UIDs are returned as they are.
func StripOccurrenceSuffix(uid string) string {
	return occurrenceSuffix.ReplaceAllString(strings.TrimSpace(uid), "")
}

// DeleteSingleOccurrence adds an exception date for the occurrence on the day
// of token. The exception keeps the time of day of DTSTART, a date-only
// DTSTART gives a date-only exception. The rule itself is not changed.
func DeleteSingleOccurrence(raw, token string) (string, error) {
	cal, master, err := decodeMaster(raw)
	if err != nil {
		return "", err
	}
	exception, err := ExceptionFor(master, token)
	if err != nil {
		return "", err
	}

	start := master.Props.Get(ical.PropDateTimeStart)
	value := exceptionValue(start, exception)
	if !hasException(master, exception) {
		prop := ical.NewProp(ical.PropExceptionDates)
		prop.Value = value
		if tzid := start.Params.Get(ical.ParamTimezoneID); tzid != "" {
			prop.Params.Set(ical.ParamTimezoneID, tzid)
		}
		if dateOnly(start) {
			prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
		}
		master.Props.Add(prop)
	}
	return ics.EncodeCalendar(cal)
}

// ExceptionFor combines the date of token with the time of day of DTSTART.
func ExceptionFor(master *ical.Component, token string) (time.Time, error) {
	date, err := recurrence.ParseDateTime(token)
	if err != nil {
		return time.Time{}, err
	}
	start, err := startOf(master)
	if err != nil {
		return time.Time{}, err
	}
	if dateOnly(master.Props.Get(ical.PropDateTimeStart)) {
		return recurrence.DateOf(date), nil
	}
	return time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), start.Second(), 0, time.UTC), nil
}

// DeleteFutureOccurrences ends the series the day before token, so the
// occurrence on that day and all later ones disappear. COUNT is replaced by
// UNTIL. Events without a rule fail with ErrNotRecurring, a cut before the
// first occurrence fails with ErrSeriesExhausted.
func DeleteFutureOccurrences(raw, token string) (string, error) {
	cal, master, err := decodeMaster(raw)
	if err != nil {
		return "", err
	}
	until, err := UntilFor(master, token)
	if err != nil {
		return "", err
	}
	ruleProp := master.Props.Get(ical.PropRecurrenceRule)
	rule, err := recurrence.DecodeRule(ruleProp.Value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotRecurring, err)
	}

	rule.TruncateAt(untilValue(master.Props.Get(ical.PropDateTimeStart), until))
	ruleProp.Value = rule.Encode()
	return ics.EncodeCalendar(cal)
}

// UntilFor is the last moment kept when the series is cut at token.
func UntilFor(master *ical.Component, token string) (time.Time, error) {
	if master.Props.Get(ical.PropRecurrenceRule) == nil {
		return time.Time{}, ErrNotRecurring
	}
	cutoff, err := recurrence.ParseDateTime(token)
	if err != nil {
		return time.Time{}, err
	}
	start, err := startOf(master)
	if err != nil {
		return time.Time{}, err
	}

	until := cutoff.AddDate(0, 0, -1)
	switch {
	case dateOnly(master.Props.Get(ical.PropDateTimeStart)):
		until = recurrence.DateOf(until)
	case !recurrence.HasTimeOfDay(token):
		// A bare date cuts at the end of the previous day rather than its
		// midnight, so a timed occurrence on that day is kept.
		until = until.Add(24*time.Hour - time.Second)
	}
	if until.Before(start) {
		return time.Time{}, ErrSeriesExhausted
	}
	return until, nil
}

func decodeMaster(raw string) (*ical.Calendar, *ical.Component, error) {
	cal, err := ics.DecodeCalendar(raw)
	if err != nil {
		return nil, nil, err
	}
	master := ics.FindMaster(cal, "")
	if master == nil {
		return nil, nil, ErrBaseEventNotFound
	}
	return cal, master, nil
}

func startOf(master *ical.Component) (time.Time, error) {
	prop := master.Props.Get(ical.PropDateTimeStart)
	if prop == nil {
		return time.Time{}, fmt.Errorf("%w: event has no start", recurrence.ErrInvalidDate)
	}
	return recurrence.ParseDateTime(prop.Value)
}

func dateOnly(start *ical.Prop) bool {
	return strings.EqualFold(start.Params.Get(ical.ParamValue), string(ical.ValueDate)) || !recurrence.HasTimeOfDay(start.Value)
}

func exceptionValue(start *ical.Prop, exception time.Time) string {
	switch {
	case dateOnly(start):
		return exception.Format(recurrence.LayoutDate)
	case strings.HasSuffix(strings.ToUpper(start.Value), "Z"):
		return exception.Format(recurrence.LayoutUTC)
	default:
		return exception.Format(recurrence.LayoutDateTime)
	}
}

// untilValue follows DTSTART: a date gives a date, a floating time a floating
// time and a UTC time a UTC time. A zoned wall time is converted to UTC, or
// written floating when its zone is unknown.
func untilValue(start *ical.Prop, until time.Time) (time.Time, recurrence.UntilForm) {
	switch {
	case dateOnly(start):
		return until, recurrence.UntilDate
	case strings.HasSuffix(strings.ToUpper(start.Value), "Z"):
		return until, recurrence.UntilUTC
	}
	tzid := start.Params.Get(ical.ParamTimezoneID)
	if tzid == "" {
		return until, recurrence.UntilFloating
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		log.Debugf("unknown time zone %q, writing a floating until: %v", tzid, err)
		return until, recurrence.UntilFloating
	}
	return recurrence.UntilInZone(until, loc), recurrence.UntilUTC
}

func hasException(master *ical.Component, exception time.Time) bool {
	for _, prop := range master.Props[ical.PropExceptionDates] {
		for _, token := range strings.Split(prop.Value, ",") {
			if existing, err := recurrence.ParseDateTime(token); err == nil && existing.Equal(exception) {
				return true
			}
		}
	}
	return false
}
