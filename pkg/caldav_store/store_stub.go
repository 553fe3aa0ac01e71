package caldav_store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// StoreStub is an in-memory Store for tests.
type StoreStub struct {
	mu        sync.RWMutex
	calendars []Calendar
	objects   map[string]Object // url -> object
	calls     []string

	// WriteErr, when set, fails every write.
	WriteErr error
	// ListErr, when set, fails ListObjects for the calendar paths it names.
	ListErr map[string]error
}

func NewStoreStub(calendars ...Calendar) *StoreStub {
	return &StoreStub{
		calendars: calendars,
		objects:   make(map[string]Object),
		ListErr:   make(map[string]error),
	}
}

// Put stores data directly, bypassing WriteErr.
func (s *StoreStub) Put(url, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[url] = Object{URL: url, Data: data}
}

// Get returns the stored text of url.
func (s *StoreStub) Get(url string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[url]
	return o.Data, ok
}

// Calls lists the store operations performed, in order.
func (s *StoreStub) Calls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.calls...)
}

func (s *StoreStub) ListCalendars(ctx context.Context) ([]Calendar, error) {
	s.record("ListCalendars")
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Calendar(nil), s.calendars...), nil
}

func (s *StoreStub) ListObjects(ctx context.Context, calendarPath string) ([]Object, error) {
	s.record("ListObjects " + calendarPath)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ListErr[calendarPath]; err != nil {
		return nil, err
	}
	var objects []Object
	for url, o := range s.objects {
		if strings.HasPrefix(url, calendarPath) {
			objects = append(objects, o)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].URL < objects[j].URL })
	return objects, nil
}

func (s *StoreStub) FetchObject(ctx context.Context, url string) (Object, error) {
	s.record("FetchObject " + url)
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[url]
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrObjectNotFound, url)
	}
	return o, nil
}

func (s *StoreStub) SaveNewObject(ctx context.Context, calendarPath, uid, data string) (Object, error) {
	s.record("SaveNewObject " + calendarPath)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return Object{}, s.WriteErr
	}
	o := Object{URL: ObjectPath(calendarPath, uid), Data: data}
	s.objects[o.URL] = o
	return o, nil
}

func (s *StoreStub) OverwriteObject(ctx context.Context, url, data string) error {
	s.record("OverwriteObject " + url)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	if _, ok := s.objects[url]; !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, url)
	}
	s.objects[url] = Object{URL: url, Data: data}
	return nil
}

func (s *StoreStub) DeleteObject(ctx context.Context, url string) error {
	s.record("DeleteObject " + url)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	if _, ok := s.objects[url]; !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, url)
	}
	delete(s.objects, url)
	return nil
}

func (s *StoreStub) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// ConnectorStub hands out the same Store to every request.
type ConnectorStub struct {
	Store Store
	Err   error
}

func (c ConnectorStub) Connect(ctx context.Context) (Store, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Store, nil
}
