package caldav_store

import (
	"context"
	"errors"
	"path"
	"strings"
)

var ErrObjectNotFound = errors.New("calendar object not found")
var ErrCalendarNotFound = errors.New("calendar not found")

// Calendar is one event collection of the account.
type Calendar struct {
	Name        string
	Path        string
	Description string
}

// Object is one stored calendar resource. URL is the server path used to
// address it again, Data its iCalendar text.
type Object struct {
	URL  string
	ETag string
	Data string
}

// Store is the storage collaborator of the event engine. Objects are exchanged
// as text, the engine decides how to read and rewrite them.
type Store interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
	ListObjects(ctx context.Context, calendarPath string) ([]Object, error)
	FetchObject(ctx context.Context, url string) (Object, error)
	SaveNewObject(ctx context.Context, calendarPath, uid, data string) (Object, error)
	OverwriteObject(ctx context.Context, url, data string) error
	DeleteObject(ctx context.Context, url string) error
}

// Connector opens the Store of the user of the current request.
type Connector interface {
	Connect(ctx context.Context) (Store, error)
}

// FindCalendar picks a calendar by display name or by the last segment of its path.
func FindCalendar(calendars []Calendar, name string) (Calendar, error) {
	for _, c := range calendars {
		if c.Name == name {
			return c, nil
		}
	}
	for _, c := range calendars {
		if path.Base(strings.TrimSuffix(c.Path, "/")) == name {
			return c, nil
		}
	}
	return Calendar{}, ErrCalendarNotFound
}

// ObjectPath is where a new object with the given UID is stored.
func ObjectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + safeFileName(uid) + ".ics"
}

func safeFileName(uid string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '#', '%', ' ':
			return '_'
		}
		return r
	}, uid)
}
