package preferences

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/davcal/davcal/internal/rest"
	log "github.com/sirupsen/logrus"
)

type SettingsDTO struct {
	WeekStart       int               `json:"week_start"`
	CalendarColors  map[string]string `json:"calendar_colors"`
	DefaultCalendar string            `json:"default_calendar"`
	DefaultView     string            `json:"default_view"`
	Timezone        string            `json:"timezone"`
}

// SettingsUpdateDTO carries only the settings that should change.
type SettingsUpdateDTO struct {
	WeekStart       *int              `json:"week_start"`
	CalendarColors  map[string]string `json:"calendar_colors"`
	DefaultCalendar *string           `json:"default_calendar"`
	DefaultView     *string           `json:"default_view"`
	Timezone        *string           `json:"timezone"`
}

type CalendarSelectionDTO struct {
	Calendars         []string          `json:"calendars"`
	SelectedCalendars []string          `json:"selected_calendars"`
	CalendarColors    map[string]string `json:"calendar_colors"`
	WeekStart         int               `json:"week_start"`
}

type CalendarSelectionUpdateDTO struct {
	Calendars *[]string `json:"calendars"`
}

type CalendarDTO struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Selected    bool   `json:"selected"`
	Color       string `json:"color"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetSettings godoc
// @Summary Get display settings
// @Description Returns the display settings of the current account
// @Tags Settings
// @Produce json
// @Success 200 {object} SettingsDTO
// @Router /api/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	prefs, err := h.service.Get(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(w).Encode(settingsToDTO(prefs)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// UpdateSettings godoc
// @Summary Update display settings
// @Description Updates the provided settings, other settings stay unchanged
// @Tags Settings
// @Accept json
// @Produce json
// @Param settings body SettingsUpdateDTO true "Settings"
// @Success 200 {object} rest.SuccessResponse
// @Failure 400 {object} rest.ErrorResponse "Invalid settings"
// @Router /api/settings [post]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body SettingsUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	log.Tracef("updating settings: %+v", body)

	_, err := h.service.UpdateSettings(r.Context(), Settings{
		WeekStart:       body.WeekStart,
		CalendarColors:  body.CalendarColors,
		DefaultCalendar: body.DefaultCalendar,
		DefaultView:     body.DefaultView,
		Timezone:        body.Timezone,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidSettings) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid settings", err.Error())
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteSuccess(w)
}

// GetCalendarSelection godoc
// @Summary Get calendar selection
// @Description Returns available calendars and the ones shown in the calendar view
// @Tags Settings
// @Produce json
// @Success 200 {object} CalendarSelectionDTO
// @Router /api/calendar-selection [get]
func (h *Handler) GetCalendarSelection(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	calendars, err := h.service.Calendars(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	prefs, err := h.service.Get(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(calendars))
	for _, c := range calendars {
		names = append(names, c.Name)
	}
	dto := CalendarSelectionDTO{
		Calendars:         names,
		SelectedCalendars: prefs.SelectedCalendars,
		CalendarColors:    prefs.CalendarColors,
		WeekStart:         prefs.WeekStart,
	}
	if err := json.NewEncoder(w).Encode(dto); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// UpdateCalendarSelection godoc
// @Summary Select calendars
// @Description Replaces the list of calendars shown. An empty list shows all calendars
// @Tags Settings
// @Accept json
// @Produce json
// @Param selection body CalendarSelectionUpdateDTO true "Selection"
// @Success 200 {object} rest.SuccessResponse
// @Failure 400 {object} rest.ErrorResponse "No calendar data provided"
// @Router /api/calendar-selection [post]
func (h *Handler) UpdateCalendarSelection(w http.ResponseWriter, r *http.Request) {
	var body CalendarSelectionUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Calendars == nil {
		rest.WriteError(w, http.StatusBadRequest, "No calendar data provided", "")
		return
	}
	if _, err := h.service.SelectCalendars(r.Context(), *body.Calendars); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rest.WriteSuccess(w)
}

// ListCalendars godoc
// @Summary List calendars
// @Description Lists the event calendars of the account with selection state and color
// @Tags Settings
// @Produce json
// @Success 200 {array} CalendarDTO
// @Router /api/calendars [get]
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	calendars, err := h.service.Calendars(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dtos := make([]CalendarDTO, 0, len(calendars))
	for _, c := range calendars {
		dtos = append(dtos, CalendarDTO{
			Name:        c.Name,
			Path:        c.Path,
			Description: c.Description,
			Selected:    c.Selected,
			Color:       c.Color,
		})
	}
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func settingsToDTO(p Preferences) SettingsDTO {
	colors := p.CalendarColors
	if colors == nil {
		colors = map[string]string{}
	}
	return SettingsDTO{
		WeekStart:       p.WeekStart,
		CalendarColors:  colors,
		DefaultCalendar: p.DefaultCalendar,
		DefaultView:     p.DefaultView,
		Timezone:        p.Timezone,
	}
}
