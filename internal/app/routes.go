package app

import (
	"encoding/json"
	"net/http"

	"github.com/davcal/davcal/internal/config"
	"github.com/gorilla/mux"
)

const version = "2.1.0"

type HealthDTO struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	r.HandleFunc("/health", health).Methods("GET")

	// Events
	r.HandleFunc("/api/events", deps.EventHandler.GetEvents).Methods("GET")
	r.HandleFunc("/api/events", deps.EventHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/events/{eventId}", deps.EventHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/events/{eventId}", deps.SeriesHandler.DeleteEvent).Methods("DELETE")

	// Settings
	r.HandleFunc("/api/settings", deps.PreferencesHandler.GetSettings).Methods("GET")
	r.HandleFunc("/api/settings", deps.PreferencesHandler.UpdateSettings).Methods("POST")

	// Calendars
	r.HandleFunc("/api/calendar-selection", deps.PreferencesHandler.GetCalendarSelection).Methods("GET")
	r.HandleFunc("/api/calendar-selection", deps.PreferencesHandler.UpdateCalendarSelection).Methods("POST")
	r.HandleFunc("/api/calendars", deps.PreferencesHandler.ListCalendars).Methods("GET")
}

// health godoc
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthDTO
// @Router /health [get]
func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(HealthDTO{
		Status:  "healthy",
		Message: "CalDAV Web Client is running",
		Version: version,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
