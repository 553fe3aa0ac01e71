package event

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/davcal/davcal/internal/utils"
	"github.com/davcal/davcal/pkg/caldav_store"
	"github.com/davcal/davcal/pkg/ics"
	"github.com/davcal/davcal/pkg/preferences"
	"github.com/davcal/davcal/pkg/recurrence"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidEvent = errors.New("invalid event")
var ErrNoCalendar = errors.New("no calendar available")

// PreferencesProvider gives access to the calendar selection of the current user.
type PreferencesProvider interface {
	Get(ctx context.Context) (preferences.Preferences, error)
	SelectCalendars(ctx context.Context, names []string) (preferences.Preferences, error)
}

type Service interface {
	ListOccurrences(ctx context.Context, from, to time.Time) ([]Event, error)
	Create(ctx context.Context, draft Draft) (Event, error)
	Update(ctx context.Context, url string, draft Draft) error
}

type ServiceImpl struct {
	connector   caldav_store.Connector
	preferences PreferencesProvider
	parser      *Parser
	clock       utils.Clock
}

func NewService(connector caldav_store.Connector, preferences PreferencesProvider, parser *Parser, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{
		connector:   connector,
		preferences: preferences,
		parser:      parser,
		clock:       clock,
	}
}

// ListOccurrences returns the events of all shown calendars overlapping
// [from, to]. A calendar that cannot be read is skipped.
func (s *ServiceImpl) ListOccurrences(ctx context.Context, from, to time.Time) ([]Event, error) {
	store, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to calendar server: %w", err)
	}
	calendars, err := store.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	prefs, err := s.shownPreferences(ctx, calendars)
	if err != nil {
		return nil, err
	}

	shown := prefs.Shown(calendarNames(calendars))
	events := make([]Event, 0)
	for position, name := range shown {
		calendar, err := caldav_store.FindCalendar(calendars, name)
		if err != nil {
			continue
		}
		objects, err := store.ListObjects(ctx, calendar.Path)
		if err != nil {
			log.Errorf("failed to read calendar %s, skipping it: %v", name, err)
			continue
		}
		color := prefs.ColorOf(name, position)
		for _, e := range s.parser.ListOccurrences(objects, from, to) {
			e.CalendarName = name
			e.Color = color
			events = append(events, e)
		}
	}

	slices.SortStableFunc(events, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
	log.Debugf("found %d events between %s and %s", len(events), from, to)
	return events, nil
}

// shownPreferences selects every calendar when the user has not chosen any yet.
func (s *ServiceImpl) shownPreferences(ctx context.Context, calendars []caldav_store.Calendar) (preferences.Preferences, error) {
	prefs, err := s.preferences.Get(ctx)
	if err != nil {
		return preferences.Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	if len(prefs.SelectedCalendars) > 0 || len(calendars) == 0 {
		return prefs, nil
	}
	prefs, err = s.preferences.SelectCalendars(ctx, calendarNames(calendars))
	if err != nil {
		return preferences.Preferences{}, fmt.Errorf("failed to store calendar selection: %w", err)
	}
	return prefs, nil
}

func (s *ServiceImpl) Create(ctx context.Context, draft Draft) (Event, error) {
	if err := validate(draft); err != nil {
		return Event{}, err
	}
	store, err := s.connector.Connect(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("failed to connect to calendar server: %w", err)
	}
	calendar, err := s.targetCalendar(ctx, store, draft.CalendarName)
	if err != nil {
		return Event{}, err
	}

	uid := uuid.NewString()
	vevent := ical.NewComponent(ical.CompEvent)
	ics.SetValue(vevent, ical.PropUID, uid, nil)
	s.apply(vevent, draft)
	cal := ics.NewCalendar()
	cal.Children = append(cal.Children, vevent)
	data, err := ics.EncodeCalendar(cal)
	if err != nil {
		return Event{}, err
	}

	object, err := store.SaveNewObject(ctx, calendar.Path, uid, data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to save event: %w", err)
	}
	log.Infof("created event %s in calendar %s", uid, calendar.Name)

	return Event{
		UID:          uid,
		Summary:      titleOf(draft),
		Description:  draft.Description,
		Location:     draft.Location,
		Start:        draft.Start,
		End:          draft.End,
		URL:          object.URL,
		CalendarName: calendar.Name,
		RRule:        ruleText(draft.Repeat),
	}, nil
}

// Update rewrites the content of the stored event at url. Properties the
// draft does not cover, exception dates included, are kept.
func (s *ServiceImpl) Update(ctx context.Context, url string, draft Draft) error {
	if err := validate(draft); err != nil {
		return err
	}
	store, err := s.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to calendar server: %w", err)
	}
	object, err := store.FetchObject(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to fetch event: %w", err)
	}
	cal, err := ics.DecodeCalendar(object.Data)
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}
	vevent := ics.FindMaster(cal, "")
	if vevent == nil {
		return fmt.Errorf("%w: %s", caldav_store.ErrObjectNotFound, url)
	}
	s.apply(vevent, draft)
	data, err := ics.EncodeCalendar(cal)
	if err != nil {
		return err
	}
	if err := store.OverwriteObject(ctx, url, data); err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	log.Infof("updated event %s", url)
	return nil
}

// targetCalendar picks the named calendar, then the default calendar, then
// the first shown calendar, then any calendar.
func (s *ServiceImpl) targetCalendar(ctx context.Context, store caldav_store.Store, name string) (caldav_store.Calendar, error) {
	calendars, err := store.ListCalendars(ctx)
	if err != nil {
		return caldav_store.Calendar{}, fmt.Errorf("failed to list calendars: %w", err)
	}
	if len(calendars) == 0 {
		return caldav_store.Calendar{}, ErrNoCalendar
	}
	if name != "" {
		return caldav_store.FindCalendar(calendars, name)
	}

	prefs, err := s.preferences.Get(ctx)
	if err != nil {
		return caldav_store.Calendar{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	if prefs.DefaultCalendar != "" {
		if calendar, err := caldav_store.FindCalendar(calendars, prefs.DefaultCalendar); err == nil {
			return calendar, nil
		}
		log.Warnf("default calendar %s not found", prefs.DefaultCalendar)
	}
	for _, shown := range prefs.Shown(calendarNames(calendars)) {
		if calendar, err := caldav_store.FindCalendar(calendars, shown); err == nil {
			return calendar, nil
		}
	}
	return calendars[0], nil
}

func (s *ServiceImpl) apply(vevent *ical.Component, draft Draft) {
	vevent.Props.SetText(ical.PropSummary, titleOf(draft))
	setOptionalText(vevent, ical.PropDescription, draft.Description)
	setOptionalText(vevent, ical.PropLocation, draft.Location)
	ics.SetValue(vevent, ical.PropDateTimeStart, draft.Start.Format(recurrence.LayoutDateTime), nil)
	ics.SetValue(vevent, ical.PropDateTimeEnd, draft.End.Format(recurrence.LayoutDateTime), nil)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, s.clock.Now().UTC())
	vevent.Props.SetDateTime(ical.PropLastModified, s.clock.Now().UTC())

	if rule := ruleText(draft.Repeat); rule != "" {
		ics.SetValue(vevent, ical.PropRecurrenceRule, rule, nil)
	} else {
		vevent.Props.Del(ical.PropRecurrenceRule)
		vevent.Props.Del(ical.PropExceptionDates)
	}
}

func titleOf(draft Draft) string {
	if title := strings.TrimSpace(draft.Title); title != "" {
		return title
	}
	return defaultSummary
}

func setOptionalText(vevent *ical.Component, name, value string) {
	if value == "" {
		vevent.Props.Del(name)
		return
	}
	vevent.Props.SetText(name, value)
}

// ruleText builds the recurrence rule of a repeat request. COUNT takes
// precedence over an end date, which ends the series at the end of that day.
func ruleText(repeat Repeat) string {
	freq := strings.ToUpper(strings.TrimSpace(repeat.Frequency))
	if freq == "" || freq == strings.ToUpper(RepeatNone) {
		return ""
	}
	rule := recurrence.Rule{Freq: freq}
	if repeat.Interval > 1 {
		rule.Interval = repeat.Interval
	}
	if repeat.Count > 0 {
		rule.Count = repeat.Count
	} else if repeat.Until != nil {
		u := *repeat.Until
		until := time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
		rule.Until = &until
		rule.UntilForm = recurrence.UntilUTC
	}
	return rule.Encode()
}

func validate(draft Draft) error {
	if draft.Start.IsZero() || draft.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidEvent)
	}
	if draft.End.Before(draft.Start) {
		return fmt.Errorf("%w: end is before start", ErrInvalidEvent)
	}
	switch strings.ToLower(strings.TrimSpace(draft.Repeat.Frequency)) {
	case "", RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
	default:
		return fmt.Errorf("%w: unknown repeat frequency %q", ErrInvalidEvent, draft.Repeat.Frequency)
	}
	if draft.Repeat.Interval < 0 || draft.Repeat.Count < 0 {
		return fmt.Errorf("%w: repeat interval and count must not be negative", ErrInvalidEvent)
	}
	return nil
}

func calendarNames(calendars []caldav_store.Calendar) []string {
	names := make([]string, 0, len(calendars))
	for _, c := range calendars {
		names = append(names, c.Name)
	}
	return names
}
