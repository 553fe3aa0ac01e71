package preferences

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/davcal/davcal/internal/utils"
	"github.com/davcal/davcal/pkg/caldav_store"
	"github.com/davcal/davcal/pkg/user"
	log "github.com/sirupsen/logrus"
)

// CalendarView is an available calendar as presented to the user.
type CalendarView struct {
	Name        string
	Path        string
	Description string
	Selected    bool
	Color       string
}

type Service interface {
	// Get returns the preferences of the current user, creating defaults on first use.
	Get(ctx context.Context) (Preferences, error)
	UpdateSettings(ctx context.Context, settings Settings) (Preferences, error)
	SelectCalendars(ctx context.Context, names []string) (Preferences, error)
	Calendars(ctx context.Context) ([]CalendarView, error)
	RecordLogin(ctx context.Context) error
}

type ServiceImpl struct {
	repo      Repository
	connector caldav_store.Connector
	clock     utils.Clock
}

func NewService(repo Repository, connector caldav_store.Connector, clock utils.Clock) *ServiceImpl {
	return &ServiceImpl{
		repo:      repo,
		connector: connector,
		clock:     clock,
	}
}

func (s *ServiceImpl) Get(ctx context.Context) (Preferences, error) {
	u, err := user.CurrentUser(ctx)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to get current user: %w", err)
	}
	prefs, err := s.repo.Get(ctx, u.Username, u.ServerURL)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, ErrPreferencesNotFound) {
		return Preferences{}, err
	}

	log.Infof("creating default preferences for %s", u.Key())
	prefs, err = s.repo.Store(ctx, New(u.Username, u.ServerURL, u.ServerType))
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to create default preferences: %w", err)
	}
	return prefs, nil
}

func (s *ServiceImpl) UpdateSettings(ctx context.Context, settings Settings) (Preferences, error) {
	prefs, err := s.Get(ctx)
	if err != nil {
		return Preferences{}, err
	}
	updated, err := prefs.Apply(settings)
	if err != nil {
		return Preferences{}, err
	}
	return s.repo.Store(ctx, updated)
}

func (s *ServiceImpl) SelectCalendars(ctx context.Context, names []string) (Preferences, error) {
	prefs, err := s.Get(ctx)
	if err != nil {
		return Preferences{}, err
	}
	selection := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" && !slices.Contains(selection, name) {
			selection = append(selection, name)
		}
	}
	prefs.SelectedCalendars = selection
	log.Debugf("selected calendars: %v", selection)
	return s.repo.Store(ctx, prefs)
}

// Calendars lists the calendars of the account with their selection state and
// color. When nothing was selected yet, all calendars become the selection.
func (s *ServiceImpl) Calendars(ctx context.Context) ([]CalendarView, error) {
	prefs, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	store, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to calendar server: %w", err)
	}
	calendars, err := store.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	names := make([]string, 0, len(calendars))
	for _, c := range calendars {
		names = append(names, c.Name)
	}
	if len(prefs.SelectedCalendars) == 0 && len(names) > 0 {
		prefs.SelectedCalendars = names
		if prefs, err = s.repo.Store(ctx, prefs); err != nil {
			return nil, fmt.Errorf("failed to store calendar selection: %w", err)
		}
	}

	shown := prefs.Shown(names)
	views := make([]CalendarView, 0, len(calendars))
	for i, c := range calendars {
		position := slices.Index(shown, c.Name)
		selected := position >= 0
		if !selected {
			position = i
		}
		views = append(views, CalendarView{
			Name:        c.Name,
			Path:        c.Path,
			Description: c.Description,
			Selected:    selected,
			Color:       prefs.ColorOf(c.Name, position),
		})
	}
	return views, nil
}

func (s *ServiceImpl) RecordLogin(ctx context.Context) error {
	u, err := user.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if _, err := s.Get(ctx); err != nil {
		return err
	}
	return s.repo.TouchLogin(ctx, u.Username, u.ServerURL, s.clock.Now())
}
