package series

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func serveDelete(handler *Handler, eventID, body string) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	router.HandleFunc("/api/events/{eventId}", handler.DeleteEvent).Methods("DELETE")
	req := httptest.NewRequest(http.MethodDelete, "/api/events/"+eventID, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req.WithContext(context.Background()))
	return w
}

func TestHandler_DeleteEvent(t *testing.T) {
	t.Run("should reject unknown delete types before touching storage", func(t *testing.T) {
		f := setupServiceTest(t)

		w := serveDelete(NewHandler(f.service), "Work:review", `{"url":"`+reviewURL+`","deleteType":"everything"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid delete type")
		assert.Empty(t, f.store.Calls())
	})

	testCases := []struct {
		name  string
		body  string
		error string
	}{
		{name: "missing url", body: `{"deleteType":"single"}`, error: "Event URL required for deletion"},
		{name: "missing uid", body: `{"url":"` + reviewURL + `","deleteType":"all"}`, error: "Original event UID required"},
		{name: "missing date", body: `{"url":"` + reviewURL + `","deleteType":"future","originalUid":"review"}`, error: "Event date required"},
		{name: "invalid json", body: `{"url":`, error: "Invalid JSON data"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupServiceTest(t)

			w := serveDelete(NewHandler(f.service), "Work:review", tc.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.error)
			assert.Empty(t, f.store.Calls())
		})
	}

	t.Run("should delete a single event by default", func(t *testing.T) {
		f := setupServiceTest(t)

		w := serveDelete(NewHandler(f.service), "Personal:gym", `{"url":"`+personalPath+`gym.ics"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
		_, ok := f.store.Get(personalPath + "gym.ics")
		assert.False(t, ok)
	})

	t.Run("should exclude one occurrence", func(t *testing.T) {
		f := setupServiceTest(t)
		body := `{"url":"` + reviewURL + `","deleteType":"this","eventDate":"2025-06-10","originalUid":"review"}`

		w := serveDelete(NewHandler(f.service), "Work:review_recurrence_7", body)

		assert.Equal(t, http.StatusOK, w.Code)
		data, _ := f.store.Get(reviewURL)
		assert.Equal(t, []string{"20250610T140000"}, exceptionValues(t, data))
	})

	t.Run("should report invalid event dates", func(t *testing.T) {
		f := setupServiceTest(t)
		body := `{"url":"` + reviewURL + `","deleteType":"this","eventDate":"2025-13-10","originalUid":"review"}`

		w := serveDelete(NewHandler(f.service), "Work:review", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should report unknown series", func(t *testing.T) {
		f := setupServiceTest(t)
		body := `{"url":"` + reviewURL + `","deleteType":"all","originalUid":"missing"}`

		w := serveDelete(NewHandler(f.service), "Work:missing", body)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestParseDeleteType(t *testing.T) {
	deleteType, err := ParseDeleteType("")
	assert.NoError(t, err)
	assert.Equal(t, DeleteSingle, deleteType)

	deleteType, err = ParseDeleteType("Future")
	assert.NoError(t, err)
	assert.Equal(t, DeleteFuture, deleteType)

	_, err = ParseDeleteType("some")
	assert.ErrorIs(t, err, ErrInvalidDeleteType)
}

func TestSplitEventID(t *testing.T) {
	calendar, uid := splitEventID("Work:meeting:2025")
	assert.Equal(t, "Work", calendar)
	assert.Equal(t, "meeting:2025", uid)

	calendar, uid = splitEventID("meeting")
	assert.Equal(t, "", calendar)
	assert.Equal(t, "meeting", uid)
}
