package app

import (
	"net/http"
	"strings"

	"github.com/davcal/davcal/internal/config"
	"github.com/davcal/davcal/internal/rest"
	"github.com/davcal/davcal/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	serverURLHeader  = "X-CalDAV-Server-URL"
	serverTypeHeader = "X-CalDAV-Server-Type"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {
	r.Use(credentialsMiddleware(deps, cfg))
}

// credentialsMiddleware puts the CalDAV account of the request into the
// context. API calls carry the account password as basic auth.
func credentialsMiddleware(deps *Dependencies, cfg config.Application) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, "/api/") {
				next.ServeHTTP(w, req)
				return
			}

			username, password, ok := req.BasicAuth()
			if !ok || username == "" {
				log.Debugf("missing credentials for %s", req.URL.Path)
				w.Header().Set("WWW-Authenticate", `Basic realm="CalDAV"`)
				rest.WriteError(w, http.StatusUnauthorized, "Authentication required", "")
				return
			}

			u := user.User{
				Username:   username,
				Password:   password,
				ServerURL:  req.Header.Get(serverURLHeader),
				ServerType: req.Header.Get(serverTypeHeader),
			}
			if u.ServerURL == "" {
				u.ServerURL = cfg.CalDAV.ServerURL
			}
			if u.ServerType == "" {
				u.ServerType = cfg.CalDAV.ServerType
			}
			ctx := user.WithUser(req.Context(), u)

			if req.Method == http.MethodGet && req.URL.Path == "/api/settings" {
				if err := deps.PreferencesService.RecordLogin(ctx); err != nil {
					log.Debugf("last login not recorded for %s: %v", u.Key(), err)
				}
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
