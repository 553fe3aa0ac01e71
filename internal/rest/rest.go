package rest

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is the body of mutating endpoints that have nothing else to return.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// WriteError writes status with an ErrorResponse body.
func WriteError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encodeErr := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Details: details,
	})
	if encodeErr != nil {
		http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
	}
}

func WriteSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(SuccessResponse{Success: true}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewFrontendHandler serves the single page application in dir. Unknown paths
// get the index page so client side routes survive a reload. /api paths are never
// answered with HTML.
func NewFrontendHandler(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}

		clean := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+path)))
		if info, err := os.Stat(clean); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		if _, err := os.Stat(index); err != nil {
			log.Warnf("frontend index not found in %s", dir)
			http.Error(w, "frontend not available", http.StatusServiceUnavailable)
			return
		}
		http.ServeFile(w, r, index)
	})
}
