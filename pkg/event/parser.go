package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/davcal/davcal/internal/utils"
	"github.com/davcal/davcal/pkg/caldav_store"
	"github.com/davcal/davcal/pkg/ics"
	"github.com/davcal/davcal/pkg/recurrence"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Parser turns stored calendar objects into events, expanding recurring ones
// over the requested window.
type Parser struct {
	clock utils.Clock
}

func NewParser(clock utils.Clock) *Parser {
	return &Parser{clock: clock}
}

// ListOccurrences parses every object and keeps the events overlapping
// [from, to] by calendar date.
func (p *Parser) ListOccurrences(objects []caldav_store.Object, from, to time.Time) []Event {
	var events []Event
	for _, object := range objects {
		for _, e := range p.Parse(object.Data, object.URL, from, to) {
			if Overlaps(e, from, to) {
				events = append(events, e)
			}
		}
	}
	return events
}

// Parse reads each VEVENT of raw. Missing or unreadable properties are filled
// with defaults so a damaged block still shows up. Recurring events are
// expanded over [from, to].
func (p *Parser) Parse(raw, url string, from, to time.Time) []Event {
	blocks, err := ics.Decode(raw)
	if err != nil {
		log.Warnf("skipping unreadable calendar object %s: %v", url, err)
		return nil
	}

	var events []Event
	for _, block := range blocks {
		base := p.baseEvent(block, url)
		events = append(events, occurrencesOf(base, from, to)...)
	}
	return events
}

func (p *Parser) baseEvent(block ics.VEvent, url string) Event {
	e := Event{
		UID:         truncate(block.Value(ical.PropUID), maxUIDLength),
		Summary:     truncate(block.Text(ical.PropSummary), maxSummaryLength),
		Description: truncate(block.Text(ical.PropDescription), maxDescriptionLength),
		Location:    truncate(block.Text(ical.PropLocation), maxLocationLength),
		Start:       utils.Today(p.clock).Add(defaultHour * time.Hour),
		URL:         url,
		RRule:       strings.TrimSpace(block.Value(ical.PropRecurrenceRule)),
	}
	if e.UID == "" {
		e.UID = uuid.NewString()
	}
	if e.Summary == "" {
		e.Summary = defaultSummary
	}

	if prop, ok := block.Get(ical.PropDateTimeStart); ok {
		start, err := recurrence.ParseDateTime(prop.Value)
		if err != nil {
			log.Warnf("event %s has an invalid start %q, using defaults: %v", e.UID, prop.Value, err)
		} else {
			e.Start = start
			e.AllDay = isDate(prop)
			e.zone = prop.Param(ical.ParamTimezoneID)
		}
	}
	e.End = e.Start.Add(time.Hour)
	if prop, ok := block.Get(ical.PropDateTimeEnd); ok {
		if end, err := recurrence.ParseDateTime(prop.Value); err == nil {
			e.End = end
		} else {
			log.Debugf("event %s has an invalid end %q: %v", e.UID, prop.Value, err)
		}
	}
	if !e.End.After(e.Start) {
		e.End = e.Start.Add(time.Hour)
	}

	for _, prop := range block[ical.PropExceptionDates] {
		for _, token := range strings.Split(prop.Value, ",") {
			if date, err := recurrence.ParseDateTime(token); err == nil {
				e.ExceptionDates = append(e.ExceptionDates, date)
			}
		}
	}
	return e
}

func occurrencesOf(base Event, from, to time.Time) []Event {
	if base.RRule == "" {
		return []Event{base}
	}
	rule, err := recurrence.DecodeRule(base.RRule)
	if err != nil {
		log.Debugf("event %s is shown without recurrence: %v", base.UID, err)
		return []Event{base}
	}
	if base.zone != "" {
		if loc, err := time.LoadLocation(base.zone); err == nil {
			rule.LocalizeUntil(loc)
		} else {
			log.Debugf("event %s has an unknown time zone %q: %v", base.UID, base.zone, err)
		}
	}

	var events []Event
	for _, e := range Expand(base, *rule, from, to) {
		if e.IsRecurring() && excluded(e.Start, base.ExceptionDates) {
			continue
		}
		events = append(events, e)
	}
	return events
}

// Expand materializes the occurrences of base overlapping [from, to]. When
// the rule cannot be expanded base is returned as the only event.
func Expand(base Event, rule recurrence.Rule, from, to time.Time) []Event {
	occurrences, err := recurrence.Expand(base.Start, base.End, rule, from, to)
	if err != nil {
		log.Debugf("event %s is not expanded: %v", base.UID, err)
		return []Event{base}
	}

	events := make([]Event, 0, len(occurrences))
	for _, o := range occurrences {
		e := base
		e.UID = fmt.Sprintf("%s_recurrence_%d", base.UID, o.Index)
		e.Start = o.Start
		e.End = o.End
		e.RRule = ""
		e.ExceptionDates = nil
		e.Recurrence = &RecurrenceInfo{OriginalUID: base.UID, Index: o.Index}
		events = append(events, e)
	}
	return events
}

// Overlaps compares by calendar date, an event ending at midnight of from
// still overlaps.
func Overlaps(e Event, from, to time.Time) bool {
	return !recurrence.DateOf(e.Start).After(recurrence.DateOf(to)) &&
		!recurrence.DateOf(e.End).Before(recurrence.DateOf(from))
}

// excluded reports whether an exception date removes the occurrence starting
// at start. Date-only exceptions remove the whole day.
func excluded(start time.Time, exceptions []time.Time) bool {
	for _, x := range exceptions {
		if x.Equal(start) {
			return true
		}
		if recurrence.DateOf(x).Equal(recurrence.DateOf(start)) && x.Equal(recurrence.DateOf(x)) {
			return true
		}
	}
	return false
}

func isDate(prop ics.Property) bool {
	return strings.EqualFold(prop.Param(ical.ParamValue), "DATE") || !recurrence.HasTimeOfDay(prop.Value)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
