package series

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/davcal/davcal/internal/rest"
	"github.com/davcal/davcal/pkg/recurrence"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type DeleteType string

const (
	DeleteSingle DeleteType = "single"
	DeleteThis   DeleteType = "this"
	DeleteFuture DeleteType = "future"
	DeleteAll    DeleteType = "all"
)

// ParseDeleteType defaults to DeleteSingle when value is empty.
func ParseDeleteType(value string) (DeleteType, error) {
	switch t := DeleteType(strings.ToLower(strings.TrimSpace(value))); t {
	case "":
		return DeleteSingle, nil
	case DeleteSingle, DeleteThis, DeleteFuture, DeleteAll:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDeleteType, value)
}

type DeleteRequestDTO struct {
	URL         string `json:"url"`
	DeleteType  string `json:"deleteType"`
	EventDate   string `json:"eventDate"`
	OriginalUID string `json:"originalUid"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Deletes an event, a single occurrence, an occurrence and all following ones or a whole series
// @Tags Event
// @Accept json
// @Produce json
// @Param eventId path string true "Event ID ({calendar}:{uid})"
// @Param request body DeleteRequestDTO true "What to delete"
// @Success 200 {object} rest.SuccessResponse
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {object} rest.ErrorResponse "Event not found"
// @Router /api/events/{eventId} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	calendarName, _ := splitEventID(mux.Vars(r)["eventId"])

	var body DeleteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		rest.WriteError(w, http.StatusBadRequest, "Invalid JSON data", err.Error())
		return
	}
	deleteType, err := ParseDeleteType(body.DeleteType)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid delete type", "deleteType must be one of single, this, future, all")
		return
	}
	if body.URL == "" {
		rest.WriteError(w, http.StatusBadRequest, "Event URL required for deletion", "")
		return
	}
	if deleteType != DeleteSingle && body.OriginalUID == "" {
		rest.WriteError(w, http.StatusBadRequest, "Original event UID required", "")
		return
	}
	if (deleteType == DeleteThis || deleteType == DeleteFuture) && body.EventDate == "" {
		rest.WriteError(w, http.StatusBadRequest, "Event date required", "")
		return
	}
	log.Debugf("deleting %s (%s) from calendar %q", body.URL, deleteType, calendarName)

	ctx := r.Context()
	switch deleteType {
	case DeleteSingle:
		err = h.service.DeleteEvent(ctx, body.URL)
	case DeleteThis:
		err = h.service.DeleteOccurrence(ctx, calendarName, body.URL, body.OriginalUID, body.EventDate)
	case DeleteFuture:
		err = h.service.DeleteFuture(ctx, calendarName, body.URL, body.OriginalUID, body.EventDate)
	case DeleteAll:
		err = h.service.DeleteSeries(ctx, calendarName, body.URL, body.OriginalUID)
	}
	if err != nil {
		log.Errorf("failed to delete %s (%s): %v", body.URL, deleteType, err)
		switch {
		case errors.Is(err, recurrence.ErrInvalidDate):
			rest.WriteError(w, http.StatusBadRequest, "Invalid event date", err.Error())
		case errors.Is(err, ErrBaseEventNotFound):
			rest.WriteError(w, http.StatusNotFound, "Event not found", err.Error())
		default:
			rest.WriteError(w, http.StatusInternalServerError, "Failed to delete event", err.Error())
		}
		return
	}
	rest.WriteSuccess(w)
}

// splitEventID separates "{calendar}:{uid}" at the first colon. IDs without a
// colon carry only a uid.
func splitEventID(id string) (calendarName, uid string) {
	calendarName, uid, found := strings.Cut(id, ":")
	if !found {
		return "", id
	}
	return calendarName, uid
}
