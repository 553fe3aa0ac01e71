package ics

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	log "github.com/sirupsen/logrus"
)

const ProductID = "-//davcal//CalDAV Web Client//EN"

var ErrNoCalendar = errors.New("no calendar data")

// Property is a single content line value together with its parameters.
// Value is kept exactly as written, text escapes included.
type Property struct {
	Value  string
	Params map[string][]string
}

// Param returns the first value of the named parameter.
func (p Property) Param(name string) string {
	values := p.Params[strings.ToUpper(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// VEvent holds the properties of one VEVENT block keyed by upper-case name.
type VEvent map[string][]Property

// Get returns the first property with the given name.
func (e VEvent) Get(name string) (Property, bool) {
	props := e[strings.ToUpper(name)]
	if len(props) == 0 {
		return Property{}, false
	}
	return props[0], true
}

// Value returns the raw value of the first property with the given name.
func (e VEvent) Value(name string) string {
	prop, _ := e.Get(name)
	return prop.Value
}

// Text returns the unescaped value of the first property with the given name.
func (e VEvent) Text(name string) string {
	return Unescape(e.Value(name))
}

// Decode returns the VEVENT blocks of a calendar object. Payloads the strict
// decoder refuses are scanned line by line instead, so a single bad content
// line does not hide the events around it.
func Decode(text string) ([]VEvent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoCalendar
	}
	cal, err := DecodeCalendar(text)
	if err == nil {
		return eventsOf(cal), nil
	}
	log.Debugf("strict iCalendar decoding failed, scanning leniently: %v", err)
	events := scan(text)
	if len(events) == 0 {
		return nil, fmt.Errorf("failed to decode calendar data: %w", err)
	}
	return events, nil
}

// DecodeCalendar parses a calendar object into its component tree.
func DecodeCalendar(text string) (*ical.Calendar, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoCalendar
	}
	cal, err := ical.NewDecoder(strings.NewReader(text)).Decode()
	if err == io.EOF {
		return nil, ErrNoCalendar
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}
	return cal, nil
}

// EncodeCalendar serializes a component tree, filling in the calendar and
// event properties every stored object must carry.
func EncodeCalendar(cal *ical.Calendar) (string, error) {
	if cal.Props.Get(ical.PropProductID) == nil {
		cal.Props.SetText(ical.PropProductID, ProductID)
	}
	if cal.Props.Get(ical.PropVersion) == nil {
		cal.Props.SetText(ical.PropVersion, "2.0")
	}
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent && child.Props.Get(ical.PropDateTimeStamp) == nil {
			child.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
		}
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// NewCalendar returns an empty VCALENDAR with PRODID and VERSION set.
func NewCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	return cal
}

// FindEvent returns the VEVENT with the given UID, or the first VEVENT when
// uid is empty.
func FindEvent(cal *ical.Calendar, uid string) *ical.Component {
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if uid == "" {
			return child
		}
		if prop := child.Props.Get(ical.PropUID); prop != nil && prop.Value == uid {
			return child
		}
	}
	return nil
}

// FindMaster returns the VEVENT defining a series, the first one without a
// RECURRENCE-ID. A uid narrows the search when not empty.
func FindMaster(cal *ical.Calendar, uid string) *ical.Component {
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent || child.Props.Get(ical.PropRecurrenceID) != nil {
			continue
		}
		if uid == "" {
			return child
		}
		if prop := child.Props.Get(ical.PropUID); prop != nil && prop.Value == uid {
			return child
		}
	}
	return nil
}

// SetValue replaces a property with a raw value and optional parameters.
func SetValue(comp *ical.Component, name, value string, params map[string][]string) {
	prop := ical.NewProp(name)
	prop.Value = value
	for k, v := range params {
		prop.Params[k] = append([]string(nil), v...)
	}
	comp.Props.Set(prop)
}

var unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";")

// Unescape resolves the TEXT escapes \n, \, and \; of a raw value.
func Unescape(value string) string {
	return unescaper.Replace(value)
}

func eventsOf(cal *ical.Calendar) []VEvent {
	var events []VEvent
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		event := VEvent{}
		for name, props := range child.Props {
			for _, p := range props {
				event[strings.ToUpper(name)] = append(event[strings.ToUpper(name)], Property{
					Value:  p.Value,
					Params: p.Params,
				})
			}
		}
		events = append(events, event)
	}
	return events
}

// scan extracts VEVENT blocks without validating the surrounding structure.
// Nested components such as VALARM are skipped.
func scan(text string) []VEvent {
	var events []VEvent
	var current VEvent
	depth := 0

	for _, line := range unfold(text) {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case upper == "BEGIN:VEVENT" && current == nil:
			current = VEvent{}
			depth = 0
			continue
		case current == nil:
			continue
		case strings.HasPrefix(upper, "BEGIN:"):
			depth++
			continue
		case upper == "END:VEVENT" && depth == 0:
			events = append(events, current)
			current = nil
			continue
		case strings.HasPrefix(upper, "END:"):
			depth--
			continue
		}
		if depth > 0 {
			continue
		}
		name, prop, ok := parseContentLine(line)
		if !ok {
			continue
		}
		current[name] = append(current[name], prop)
	}
	return events
}

func unfold(text string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func parseContentLine(line string) (string, Property, bool) {
	colon := valueSeparator(line)
	if colon <= 0 {
		return "", Property{}, false
	}
	head, value := line[:colon], line[colon+1:]
	segments := strings.Split(head, ";")
	name := strings.ToUpper(strings.TrimSpace(segments[0]))
	if name == "" {
		return "", Property{}, false
	}
	params := map[string][]string{}
	for _, segment := range segments[1:] {
		key, raw, found := strings.Cut(segment, "=")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		for _, v := range strings.Split(raw, ",") {
			params[key] = append(params[key], strings.Trim(v, `"`))
		}
	}
	return name, Property{Value: value, Params: params}, true
}

// valueSeparator finds the colon that ends the property head, ignoring
// colons inside quoted parameter values.
func valueSeparator(line string) int {
	quoted := false
	for i, r := range line {
		switch r {
		case '"':
			quoted = !quoted
		case ':':
			if !quoted {
				return i
			}
		}
	}
	return -1
}
