package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davcal/davcal/internal/config"
	"github.com/davcal/davcal/internal/utils"
	"github.com/davcal/davcal/pkg/caldav_store"
	"github.com/davcal/davcal/pkg/preferences"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	personalPath = "/calendars/alice/personal/"
	standupURL   = personalPath + "standup.ics"
	serverURL    = "https://dav.example.com"
)

const standup = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250602T090000\r\n" +
	"DTEND:20250602T091500\r\n" +
	"SUMMARY:Standup\r\n" +
	"RRULE:FREQ=DAILY;COUNT=10\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type appFixture struct {
	router *mux.Router
	store  *caldav_store.StoreStub
	repo   *preferences.RepositoryStub
}

func setupAppTest(t *testing.T) appFixture {
	t.Helper()
	store := caldav_store.NewStoreStub(caldav_store.Calendar{Name: "Personal", Path: personalPath})
	store.Put(standupURL, standup)
	repo := preferences.NewRepositoryStub()
	clock := &utils.MockClock{FixedNow: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	deps := buildDependencies(caldav_store.ConnectorStub{Store: store}, repo, clock)
	cfg := config.Application{CalDAV: config.CalDAV{ServerURL: serverURL, ServerType: "generic"}}

	r := mux.NewRouter()
	SetupMiddleware(r, deps, cfg)
	RegisterRoutes(r, deps, cfg)
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("frontend"))
	})
	return appFixture{router: r, store: store, repo: repo}
}

func (f appFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func authorized(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.SetBasicAuth("alice", "secret")
	return req
}

func TestHealth(t *testing.T) {
	f := setupAppTest(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body HealthDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, version, body.Version)
}

func TestCredentialsMiddleware(t *testing.T) {
	t.Run("should reject api calls without credentials", func(t *testing.T) {
		f := setupAppTest(t)

		rr := f.do(httptest.NewRequest(http.MethodGet, "/api/settings", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
		assert.Empty(t, f.store.Calls())
	})

	t.Run("should serve the frontend without credentials", func(t *testing.T) {
		f := setupAppTest(t)

		rr := f.do(httptest.NewRequest(http.MethodGet, "/calendar", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "frontend", rr.Body.String())
	})

	t.Run("should use the server from the headers", func(t *testing.T) {
		f := setupAppTest(t)
		req := authorized(http.MethodGet, "/api/settings", "")
		req.Header.Set("X-CalDAV-Server-URL", "https://other.example.com")

		rr := f.do(req)

		require.Equal(t, http.StatusOK, rr.Code)
		_, err := f.repo.Get(req.Context(), "alice", "https://other.example.com")
		assert.NoError(t, err)
	})

	t.Run("should record the login when settings are loaded", func(t *testing.T) {
		f := setupAppTest(t)

		rr := f.do(authorized(http.MethodGet, "/api/settings", ""))

		require.Equal(t, http.StatusOK, rr.Code)
		prefs, err := f.repo.Get(t.Context(), "alice", serverURL)
		require.NoError(t, err)
		require.NotNil(t, prefs.LastLogin)
		assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), *prefs.LastLogin)
	})
}

func TestRoutes_Events(t *testing.T) {
	t.Run("should list expanded occurrences", func(t *testing.T) {
		f := setupAppTest(t)

		rr := f.do(authorized(http.MethodGet, "/api/events?start=2025-06-01T00:00:00&end=2025-06-04T00:00:00", ""))

		require.Equal(t, http.StatusOK, rr.Code)
		var events []map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
		require.Len(t, events, 3)
		assert.Equal(t, "Personal:standup_recurrence_0", events[0]["id"])
		assert.Equal(t, "2025-06-02T09:00:00", events[0]["start"])
		assert.Equal(t, "Personal", events[0]["calendar_name"])
	})

	t.Run("should delete a single occurrence", func(t *testing.T) {
		f := setupAppTest(t)
		body := `{"url":"` + standupURL + `","deleteType":"this","eventDate":"2025-06-05","originalUid":"standup"}`

		rr := f.do(authorized(http.MethodDelete, "/api/events/Personal:standup_recurrence_3", body))

		require.Equal(t, http.StatusOK, rr.Code)
		data, ok := f.store.Get(standupURL)
		require.True(t, ok)
		assert.Contains(t, data, "EXDATE:20250605T090000")
	})

	t.Run("should delete the whole object", func(t *testing.T) {
		f := setupAppTest(t)
		body := `{"url":"` + standupURL + `","deleteType":"all","originalUid":"standup"}`

		rr := f.do(authorized(http.MethodDelete, "/api/events/Personal:standup", body))

		require.Equal(t, http.StatusOK, rr.Code)
		_, ok := f.store.Get(standupURL)
		assert.False(t, ok)
	})
}
