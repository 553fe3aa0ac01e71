package preferences

import (
	"errors"
	"regexp"
	"slices"
	"time"
)

var ErrPreferencesNotFound = errors.New("preferences not found")
var ErrInvalidSettings = errors.New("invalid settings")

const (
	DefaultView     = "dayGridMonth"
	DefaultTimezone = "UTC"
)

// DefaultColors are assigned by calendar position when no color was chosen.
var DefaultColors = []string{
	"#3788d8", "#28a745", "#dc3545", "#ffc107", "#6f42c1",
	"#fd7e14", "#20c997", "#e83e8c", "#6c757d", "#17a2b8",
}

var views = []string{"dayGridMonth", "timeGridWeek", "timeGridDay", "listWeek"}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Preferences are kept per account, an account being a username on a server.
type Preferences struct {
	Username   string
	ServerURL  string
	ServerType string
	// SelectedCalendars lists the calendars shown. Empty means all of them.
	SelectedCalendars []string
	CalendarColors    map[string]string
	DefaultCalendar   string
	// WeekStart is 0 for Sunday, 1 for Monday.
	WeekStart   int
	DefaultView string
	Timezone    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLogin   *time.Time
}

// Settings is a partial update of the display settings. Nil fields stay unchanged.
type Settings struct {
	WeekStart       *int
	CalendarColors  map[string]string
	DefaultCalendar *string
	DefaultView     *string
	Timezone        *string
}

func New(username, serverURL, serverType string) Preferences {
	return Preferences{
		Username:          username,
		ServerURL:         serverURL,
		ServerType:        serverType,
		SelectedCalendars: []string{},
		CalendarColors:    map[string]string{},
		DefaultView:       DefaultView,
		Timezone:          DefaultTimezone,
	}
}

// ColorOf returns the chosen color of a calendar or the default color for its
// position among the selected calendars.
func (p Preferences) ColorOf(calendar string, position int) string {
	if color, ok := p.CalendarColors[calendar]; ok && color != "" {
		return color
	}
	return DefaultColors[position%len(DefaultColors)]
}

// Apply validates s and merges it into p.
func (p Preferences) Apply(s Settings) (Preferences, error) {
	if s.WeekStart != nil {
		if *s.WeekStart < 0 || *s.WeekStart > 6 {
			return p, errors.Join(ErrInvalidSettings, errors.New("week start must be a weekday number between 0 and 6"))
		}
		p.WeekStart = *s.WeekStart
	}
	if s.DefaultView != nil {
		if !slices.Contains(views, *s.DefaultView) {
			return p, errors.Join(ErrInvalidSettings, errors.New("unknown view "+*s.DefaultView))
		}
		p.DefaultView = *s.DefaultView
	}
	if s.Timezone != nil {
		if _, err := time.LoadLocation(*s.Timezone); err != nil {
			return p, errors.Join(ErrInvalidSettings, err)
		}
		p.Timezone = *s.Timezone
	}
	if s.DefaultCalendar != nil {
		p.DefaultCalendar = *s.DefaultCalendar
	}
	if s.CalendarColors != nil {
		colors := make(map[string]string, len(s.CalendarColors))
		for name, color := range s.CalendarColors {
			if !colorPattern.MatchString(color) {
				return p, errors.Join(ErrInvalidSettings, errors.New("invalid color "+color+" for "+name))
			}
			colors[name] = color
		}
		p.CalendarColors = colors
	}
	return p, nil
}

// Shown filters available calendar names down to the selection, keeping the
// order of available. An empty selection shows everything.
func (p Preferences) Shown(available []string) []string {
	if len(p.SelectedCalendars) == 0 {
		return slices.Clone(available)
	}
	shown := make([]string, 0, len(p.SelectedCalendars))
	for _, name := range available {
		if slices.Contains(p.SelectedCalendars, name) {
			shown = append(shown, name)
		}
	}
	return shown
}
