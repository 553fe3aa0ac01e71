package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/davcal/davcal/internal/rest"
	"github.com/davcal/davcal/pkg/caldav_store"
	log "github.com/sirupsen/logrus"
)

// Times are exchanged as wall clock times without zone.
const timeLayout = "2006-01-02T15:04:05"

var inputLayouts = []string{time.RFC3339, timeLayout, "2006-01-02T15:04", "2006-01-02"}

type EventDTO struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Start           string `json:"start"`
	End             string `json:"end"`
	AllDay          bool   `json:"allDay"`
	Description     string `json:"description"`
	Location        string `json:"location"`
	URL             string `json:"url"`
	BackgroundColor string `json:"backgroundColor"`
	BorderColor     string `json:"borderColor"`
	CalendarName    string `json:"calendar_name"`
	IsRecurring     bool   `json:"is_recurring"`
	OriginalUID     string `json:"original_uid"`
	RecurrenceIndex *int   `json:"recurrence_index,omitempty"`
	RRule           string `json:"rrule,omitempty"`
}

type EventInputDTO struct {
	URL               string  `json:"url,omitempty"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	Location          string  `json:"location"`
	Start             string  `json:"start"`
	End               string  `json:"end"`
	CalendarName      string  `json:"calendar_name"`
	Recurring         string  `json:"recurring"`
	RecurringInterval flexInt `json:"recurring_interval"`
	RecurringCount    flexInt `json:"recurring_count"`
	RecurringUntil    string  `json:"recurring_until"`
}

// flexInt accepts numbers and numeric strings, form inputs send both.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetEvents godoc
// @Summary List events
// @Description Lists events of the shown calendars between start and end, recurring events expanded
// @Tags Event
// @Produce json
// @Param start query string true "Window start (RFC3339 or 2006-01-02T15:04:05)"
// @Param end query string true "Window end (RFC3339 or 2006-01-02T15:04:05)"
// @Success 200 {array} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Missing or invalid dates"
// @Router /api/events [get]
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	startParam := r.URL.Query().Get("start")
	endParam := r.URL.Query().Get("end")
	if startParam == "" || endParam == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing date parameters", "start and end are required")
		return
	}
	from, err := parseTime(startParam)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date format", err.Error())
		return
	}
	to, err := parseTime(endParam)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date format", err.Error())
		return
	}

	events, err := h.service.ListOccurrences(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// CreateEvent godoc
// @Summary Create an event
// @Description Creates an event, optionally recurring, in the given or default calendar
// @Tags Event
// @Accept json
// @Produce json
// @Param event body EventInputDTO true "Event"
// @Success 200 {object} rest.SuccessResponse
// @Failure 400 {object} rest.ErrorResponse "Invalid event"
// @Router /api/events [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), draft.draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.Tracef("created event: %+v", created)
	rest.WriteSuccess(w)
}

// UpdateEvent godoc
// @Summary Update an event
// @Description Rewrites the stored event at url
// @Tags Event
// @Accept json
// @Produce json
// @Param eventId path string true "Event ID"
// @Param event body EventInputDTO true "Event"
// @Success 200 {object} rest.SuccessResponse
// @Failure 400 {object} rest.ErrorResponse "Invalid event"
// @Router /api/events/{eventId} [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	if draft.url == "" {
		rest.WriteError(w, http.StatusBadRequest, "Event URL required for updates", "")
		return
	}
	if err := h.service.Update(r.Context(), draft.url, draft.draft); err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteSuccess(w)
}

type decodedDraft struct {
	url   string
	draft Draft
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (decodedDraft, bool) {
	var body EventInputDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "No data provided", err.Error())
		return decodedDraft{}, false
	}
	start, err := parseTime(body.Start)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date format", err.Error())
		return decodedDraft{}, false
	}
	end, err := parseTime(body.End)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date format", err.Error())
		return decodedDraft{}, false
	}
	repeat := Repeat{
		Frequency: body.Recurring,
		Interval:  int(body.RecurringInterval),
		Count:     int(body.RecurringCount),
	}
	if body.RecurringUntil != "" {
		until, err := parseTime(body.RecurringUntil)
		if err != nil {
			log.Warnf("ignoring invalid recurrence end %q: %v", body.RecurringUntil, err)
		} else {
			repeat.Until = &until
		}
	}
	return decodedDraft{
		url: body.URL,
		draft: Draft{
			Title:        body.Title,
			Description:  body.Description,
			Location:     body.Location,
			Start:        start,
			End:          end,
			CalendarName: body.CalendarName,
			Repeat:       repeat,
		},
	}, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidEvent):
		rest.WriteError(w, http.StatusBadRequest, "Invalid event", err.Error())
	case errors.Is(err, ErrNoCalendar):
		rest.WriteError(w, http.StatusBadRequest, "No calendars available", "")
	case errors.Is(err, caldav_store.ErrCalendarNotFound):
		rest.WriteError(w, http.StatusBadRequest, "Calendar not found", err.Error())
	case errors.Is(err, caldav_store.ErrObjectNotFound):
		rest.WriteError(w, http.StatusNotFound, "Event not found", err.Error())
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// parseTime reads the wall clock of value, any zone designator is dropped.
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range inputLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func eventToDTO(e Event) EventDTO {
	dto := EventDTO{
		ID:              e.CalendarName + ":" + e.UID,
		Title:           e.Summary,
		Start:           e.Start.Format(timeLayout),
		End:             e.End.Format(timeLayout),
		AllDay:          e.AllDay,
		Description:     e.Description,
		Location:        e.Location,
		URL:             e.URL,
		BackgroundColor: e.Color,
		BorderColor:     e.Color,
		CalendarName:    e.CalendarName,
		OriginalUID:     e.UID,
		RRule:           e.RRule,
	}
	if e.Recurrence != nil {
		index := e.Recurrence.Index
		dto.IsRecurring = true
		dto.OriginalUID = e.Recurrence.OriginalUID
		dto.RecurrenceIndex = &index
	}
	return dto
}
