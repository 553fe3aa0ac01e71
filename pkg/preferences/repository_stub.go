package preferences

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu    sync.RWMutex
	items map[string]Preferences // username@serverURL -> preferences
	now   func() time.Time
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items: make(map[string]Preferences),
		now:   time.Now,
	}
}

func (r *RepositoryStub) Get(ctx context.Context, username, serverURL string) (Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefs, ok := r.items[username+"@"+serverURL]
	if !ok {
		return Preferences{}, ErrPreferencesNotFound
	}
	return clone(prefs), nil
}

func (r *RepositoryStub) Store(ctx context.Context, prefs Preferences) (Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := prefs.Username + "@" + prefs.ServerURL
	now := r.now()
	if existing, ok := r.items[key]; ok {
		prefs.CreatedAt = existing.CreatedAt
		if prefs.LastLogin == nil {
			prefs.LastLogin = existing.LastLogin
		}
	} else {
		prefs.CreatedAt = now
	}
	prefs.UpdatedAt = now
	if prefs.SelectedCalendars == nil {
		prefs.SelectedCalendars = []string{}
	}
	if prefs.CalendarColors == nil {
		prefs.CalendarColors = map[string]string{}
	}
	r.items[key] = clone(prefs)
	return prefs, nil
}

func (r *RepositoryStub) TouchLogin(ctx context.Context, username, serverURL string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := username + "@" + serverURL
	prefs, ok := r.items[key]
	if !ok {
		return ErrPreferencesNotFound
	}
	prefs.LastLogin = &at
	r.items[key] = prefs
	return nil
}

func clone(p Preferences) Preferences {
	p.SelectedCalendars = slices.Clone(p.SelectedCalendars)
	p.CalendarColors = maps.Clone(p.CalendarColors)
	return p
}
