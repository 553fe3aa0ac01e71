package caldav_store

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/davcal/davcal/pkg/ics"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	log "github.com/sirupsen/logrus"
)

const maxObjectSize = 4 << 20

// DAVStore keeps calendar objects on a CalDAV server.
type DAVStore struct {
	client  *caldav.Client
	homeSet string
}

// NewDAVStore connects to the calendar home of username. homeURL is used when
// the server does not advertise a home set itself.
func NewDAVStore(httpClient webdav.HTTPClient, homeURL string) (*DAVStore, error) {
	client, err := caldav.NewClient(httpClient, homeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return &DAVStore{client: client, homeSet: homeURL}, nil
}

func (s *DAVStore) ListCalendars(ctx context.Context) ([]Calendar, error) {
	homeSet := s.discoverHomeSet(ctx)

	found, err := s.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars in %s: %w", homeSet, err)
	}

	calendars := make([]Calendar, 0, len(found))
	for _, c := range found {
		if len(c.SupportedComponentSet) > 0 && !supportsEvents(c.SupportedComponentSet) {
			log.Tracef("skipping calendar %s without VEVENT support", c.Path)
			continue
		}
		name := c.Name
		if name == "" {
			name = path.Base(strings.TrimSuffix(c.Path, "/"))
		}
		calendars = append(calendars, Calendar{
			Name:        name,
			Path:        c.Path,
			Description: c.Description,
		})
	}
	log.Debugf("found %d calendars in %s", len(calendars), homeSet)
	return calendars, nil
}

// ListObjects returns every event object of a calendar. Servers whose reports
// cannot be decoded are read file by file so that one broken object does not
// hide the others.
func (s *DAVStore) ListObjects(ctx context.Context, calendarPath string) ([]Object, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  "VCALENDAR",
			Comps: []caldav.CompFilter{{Name: "VEVENT"}},
		},
	}

	found, err := s.client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		log.Warnf("calendar query on %s failed, reading objects one by one: %v", calendarPath, err)
		return s.readObjects(ctx, calendarPath)
	}

	objects := make([]Object, 0, len(found))
	for _, o := range found {
		if o.Data == nil {
			continue
		}
		data, err := ics.EncodeCalendar(o.Data)
		if err != nil {
			log.Warnf("skipping calendar object %s: %v", o.Path, err)
			continue
		}
		objects = append(objects, Object{URL: o.Path, ETag: o.ETag, Data: data})
	}
	return objects, nil
}

func (s *DAVStore) FetchObject(ctx context.Context, url string) (Object, error) {
	data, err := s.read(ctx, url)
	if err != nil {
		return Object{}, err
	}
	return Object{URL: url, Data: data}, nil
}

func (s *DAVStore) SaveNewObject(ctx context.Context, calendarPath, uid, data string) (Object, error) {
	objectPath := ObjectPath(calendarPath, uid)
	stored, err := s.put(ctx, objectPath, data)
	if err != nil {
		return Object{}, err
	}
	return Object{URL: objectPath, ETag: stored.ETag, Data: data}, nil
}

func (s *DAVStore) OverwriteObject(ctx context.Context, url, data string) error {
	_, err := s.put(ctx, url, data)
	return err
}

func (s *DAVStore) DeleteObject(ctx context.Context, url string) error {
	if err := s.client.RemoveAll(ctx, url); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, url)
		}
		return fmt.Errorf("failed to delete %s: %w", url, err)
	}
	return nil
}

func (s *DAVStore) put(ctx context.Context, objectPath, data string) (*caldav.CalendarObject, error) {
	cal, err := ics.DecodeCalendar(data)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", objectPath, err)
	}
	stored, err := s.client.PutCalendarObject(ctx, objectPath, cal)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", objectPath, err)
	}
	return stored, nil
}

func (s *DAVStore) read(ctx context.Context, objectPath string) (string, error) {
	body, err := s.client.Open(ctx, objectPath)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
		}
		return "", fmt.Errorf("failed to fetch %s: %w", objectPath, err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxObjectSize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", objectPath, err)
	}
	return string(data), nil
}

func (s *DAVStore) readObjects(ctx context.Context, calendarPath string) ([]Object, error) {
	files, err := s.client.ReadDir(ctx, calendarPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects in %s: %w", calendarPath, err)
	}

	var objects []Object
	for _, f := range files {
		if f.IsDir || !strings.HasSuffix(strings.ToLower(f.Path), ".ics") {
			continue
		}
		data, err := s.read(ctx, f.Path)
		if err != nil {
			log.Warnf("skipping calendar object %s: %v", f.Path, err)
			continue
		}
		objects = append(objects, Object{URL: f.Path, ETag: f.ETag, Data: data})
	}
	return objects, nil
}

// discoverHomeSet asks the server for the calendar home of the current
// principal and falls back to the URL derived from the server type.
func (s *DAVStore) discoverHomeSet(ctx context.Context) string {
	principal, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		log.Debugf("principal discovery failed, using %s: %v", s.homeSet, err)
		return s.homeSet
	}
	homeSet, err := s.client.FindCalendarHomeSet(ctx, principal)
	if err != nil || homeSet == "" {
		log.Debugf("home set discovery failed, using %s: %v", s.homeSet, err)
		return s.homeSet
	}
	return homeSet
}

func supportsEvents(components []string) bool {
	for _, c := range components {
		if strings.EqualFold(c, "VEVENT") {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "404")
}
