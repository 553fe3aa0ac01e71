package series

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davcal/davcal/internal/event_bus"
	"github.com/davcal/davcal/pkg/caldav_store"
	"github.com/davcal/davcal/pkg/ics"
	"github.com/davcal/davcal/pkg/recurrence"
	"github.com/emersion/go-ical"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	// DeleteEvent removes the stored object at url.
	DeleteEvent(ctx context.Context, url string) error
	// DeleteOccurrence excludes the occurrence of series uid on date.
	DeleteOccurrence(ctx context.Context, calendarName, url, uid, date string) error
	// DeleteFuture ends series uid before date.
	DeleteFuture(ctx context.Context, calendarName, url, uid, date string) error
	// DeleteSeries removes the stored object holding series uid.
	DeleteSeries(ctx context.Context, calendarName, url, uid string) error
}

type ServiceImpl struct {
	connector caldav_store.Connector
	bus       *event_bus.EventBus
}

func NewService(connector caldav_store.Connector, bus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{
		connector: connector,
		bus:       bus,
	}
}

func (s *ServiceImpl) DeleteEvent(ctx context.Context, url string) error {
	store, err := s.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to calendar server: %w", err)
	}
	return s.deleteObject(ctx, store, url, "")
}

func (s *ServiceImpl) DeleteOccurrence(ctx context.Context, calendarName, url, uid, date string) error {
	day, err := recurrence.ParseDateTime(date)
	if err != nil {
		return err
	}
	store, err := s.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to calendar server: %w", err)
	}
	object, err := s.locate(ctx, store, calendarName, url, uid)
	if err != nil {
		return err
	}

	rewritten, err := DeleteSingleOccurrence(object.Data, date)
	if err != nil {
		return fmt.Errorf("failed to exclude occurrence: %w", err)
	}
	if err := store.OverwriteObject(ctx, object.URL, rewritten); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}

	log.Infof("excluded occurrence %s of series %s", day.Format(time.DateOnly), StripOccurrenceSuffix(uid))
	s.publish(ctx, event_bus.SeriesOccurrenceExcludedType, event_bus.SeriesOccurrenceExcluded{
		UID:  StripOccurrenceSuffix(uid),
		URL:  object.URL,
		Date: recurrence.DateOf(day),
	})
	return nil
}

// DeleteFuture removes the whole object when nothing would remain of the
// series or when the event does not recur.
func (s *ServiceImpl) DeleteFuture(ctx context.Context, calendarName, url, uid, date string) error {
	store, err := s.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to calendar server: %w", err)
	}
	object, err := s.locate(ctx, store, calendarName, url, uid)
	if err != nil {
		return err
	}

	rewritten, err := DeleteFutureOccurrences(object.Data, date)
	if errors.Is(err, ErrNotRecurring) || errors.Is(err, ErrSeriesExhausted) {
		log.Infof("deleting %s entirely: %v", object.URL, err)
		return s.deleteObject(ctx, store, object.URL, StripOccurrenceSuffix(uid))
	}
	if err != nil {
		return fmt.Errorf("failed to truncate series: %w", err)
	}
	if err := store.OverwriteObject(ctx, object.URL, rewritten); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}

	until := untilOf(rewritten)
	log.Infof("series %s now ends %s", StripOccurrenceSuffix(uid), until)
	s.publish(ctx, event_bus.SeriesTruncatedType, event_bus.SeriesTruncated{
		UID:   StripOccurrenceSuffix(uid),
		URL:   object.URL,
		Until: until,
	})
	return nil
}

func (s *ServiceImpl) DeleteSeries(ctx context.Context, calendarName, url, uid string) error {
	store, err := s.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to calendar server: %w", err)
	}
	object, err := s.locate(ctx, store, calendarName, url, uid)
	if err != nil {
		return err
	}
	return s.deleteObject(ctx, store, object.URL, StripOccurrenceSuffix(uid))
}

func (s *ServiceImpl) deleteObject(ctx context.Context, store caldav_store.Store, url, uid string) error {
	err := store.DeleteObject(ctx, url)
	if errors.Is(err, caldav_store.ErrObjectNotFound) {
		return fmt.Errorf("%w: %w", ErrBaseEventNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	log.Infof("deleted calendar object %s", url)
	s.publish(ctx, event_bus.SeriesDeletedType, event_bus.SeriesDeleted{UID: uid, URL: url})
	return nil
}

// locate finds the stored object holding the series uid. The object at url
// is tried first, then calendarName, then every other calendar.
func (s *ServiceImpl) locate(ctx context.Context, store caldav_store.Store, calendarName, url, uid string) (caldav_store.Object, error) {
	base := StripOccurrenceSuffix(uid)
	if base == "" {
		return caldav_store.Object{}, fmt.Errorf("%w: no uid given", ErrBaseEventNotFound)
	}

	if url != "" {
		object, err := store.FetchObject(ctx, url)
		if err == nil && holds(object.Data, base) {
			return object, nil
		}
		if err != nil && !errors.Is(err, caldav_store.ErrObjectNotFound) {
			log.Warnf("failed to fetch %s, searching by uid: %v", url, err)
		}
	}

	calendars, err := store.ListCalendars(ctx)
	if err != nil {
		return caldav_store.Object{}, fmt.Errorf("failed to list calendars: %w", err)
	}
	for _, calendar := range searchOrder(calendars, calendarName) {
		objects, err := store.ListObjects(ctx, calendar.Path)
		if err != nil {
			log.Warnf("failed to search calendar %s: %v", calendar.Name, err)
			continue
		}
		for _, object := range objects {
			if holds(object.Data, base) {
				return object, nil
			}
		}
	}
	return caldav_store.Object{}, fmt.Errorf("%w: %s", ErrBaseEventNotFound, base)
}

func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Warnf("failed to publish %s: %v", eventType, err)
	}
}

func searchOrder(calendars []caldav_store.Calendar, preferred string) []caldav_store.Calendar {
	if preferred == "" {
		return calendars
	}
	first, err := caldav_store.FindCalendar(calendars, preferred)
	if err != nil {
		return calendars
	}
	ordered := []caldav_store.Calendar{first}
	for _, c := range calendars {
		if c.Path != first.Path {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

func holds(data, uid string) bool {
	events, err := ics.Decode(data)
	if err != nil {
		return false
	}
	for _, e := range events {
		if e.Value(ical.PropUID) == uid {
			return true
		}
	}
	return false
}

func untilOf(raw string) time.Time {
	_, master, err := decodeMaster(raw)
	if err != nil {
		return time.Time{}
	}
	prop := master.Props.Get(ical.PropRecurrenceRule)
	if prop == nil {
		return time.Time{}
	}
	rule, err := recurrence.DecodeRule(prop.Value)
	if err != nil || rule.Until == nil {
		return time.Time{}
	}
	return *rule.Until
}
