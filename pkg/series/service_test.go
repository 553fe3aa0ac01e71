package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davcal/davcal/internal/event_bus"
	"github.com/davcal/davcal/pkg/caldav_store"
	"github.com/davcal/davcal/pkg/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	personalPath = "/calendars/alice/personal/"
	workPath     = "/calendars/alice/work/"
	reviewURL    = workPath + "review.ics"
)

type serviceFixture struct {
	service   *ServiceImpl
	store     *caldav_store.StoreStub
	published []event_bus.Event
}

func setupServiceTest(t *testing.T) *serviceFixture {
	t.Helper()
	store := caldav_store.NewStoreStub(
		caldav_store.Calendar{Name: "Personal", Path: personalPath},
		caldav_store.Calendar{Name: "Work", Path: workPath},
	)
	store.Put(reviewURL, weekly)
	store.Put(personalPath+"gym.ics", seriesText("UID:gym", "DTSTAMP:20250101T000000Z", "DTSTART:20250602T180000"))

	f := &serviceFixture{store: store}
	bus := event_bus.NewEventBus()
	for _, eventType := range []event_bus.EventType{
		event_bus.SeriesOccurrenceExcludedType,
		event_bus.SeriesTruncatedType,
		event_bus.SeriesDeletedType,
	} {
		bus.Subscribe(eventType, func(e event_bus.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}
	f.service = NewService(caldav_store.ConnectorStub{Store: store}, bus)
	return f
}

func TestService_DeleteOccurrence(t *testing.T) {
	t.Run("should store the exception", func(t *testing.T) {
		f := setupServiceTest(t)

		err := f.service.DeleteOccurrence(context.Background(), "Work", reviewURL, "review_recurrence_7", "2025-06-10")

		require.NoError(t, err)
		data, _ := f.store.Get(reviewURL)
		assert.Equal(t, []string{"20250610T140000"}, exceptionValues(t, data))
		require.Len(t, f.published, 1)
		excluded := f.published[0].Data.(event_bus.SeriesOccurrenceExcluded)
		assert.Equal(t, "review", excluded.UID)
		assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), excluded.Date)
	})

	t.Run("should find the series by uid when the url is stale", func(t *testing.T) {
		f := setupServiceTest(t)

		err := f.service.DeleteOccurrence(context.Background(), "", personalPath+"gone.ics", "review", "2025-06-10")

		require.NoError(t, err)
		data, _ := f.store.Get(reviewURL)
		assert.Len(t, exceptionValues(t, data), 1)
	})

	t.Run("should report unknown series", func(t *testing.T) {
		f := setupServiceTest(t)

		err := f.service.DeleteOccurrence(context.Background(), "Work", reviewURL, "missing", "2025-06-10")

		assert.ErrorIs(t, err, ErrBaseEventNotFound)
		assert.Empty(t, f.published)
	})

	t.Run("should not write when the date is invalid", func(t *testing.T) {
		f := setupServiceTest(t)

		err := f.service.DeleteOccurrence(context.Background(), "Work", reviewURL, "review", "tomorrow")

		assert.ErrorIs(t, err, recurrence.ErrInvalidDate)
		assert.Empty(t, f.store.Calls())
		assert.Empty(t, f.published)
	})

	t.Run("should report write failures", func(t *testing.T) {
		f := setupServiceTest(t)
		f.store.WriteErr = errors.New("precondition failed")

		err := f.service.DeleteOccurrence(context.Background(), "Work", reviewURL, "review", "2025-06-10")

		assert.ErrorIs(t, err, ErrStorageWriteFailed)
		data, _ := f.store.Get(reviewURL)
		assert.Empty(t, exceptionValues(t, data))
	})
}

func TestService_DeleteFuture(t *testing.T) {
	t.Run("should truncate the series", func(t *testing.T) {
		f := setupServiceTest(t)

		err := f.service.DeleteFuture(context.Background(), "Work", reviewURL, "review_recurrence_7", "2025-06-10")

		require.NoError(t, err)
		data, _ := f.store.Get(reviewURL)
		assert.Equal(t, "FREQ=DAILY;UNTIL=20250609T235959", ruleOf(t, data))
		require.Len(t, f.published, 1)
		truncated := f.published[0].Data.(event_bus.SeriesTruncated)
		assert.Equal(t, time.Date(2025, 6, 9, 23, 59, 59, 0, time.UTC), truncated.Until)
	})

	t.Run("should delete events without a rule", func(t *testing.T) {
		f := setupServiceTest(t)

		err := f.service.DeleteFuture(context.Background(), "Personal", personalPath+"gym.ics", "gym", "2025-06-10")

		require.NoError(t, err)
		_, ok := f.store.Get(personalPath + "gym.ics")
		assert.False(t, ok)
		assert.Equal(t, event_bus.SeriesDeletedType, f.published[0].Type)
	})

	t.Run("should delete a series cut at its first occurrence", func(t *testing.T) {
		f := setupServiceTest(t)

		err := f.service.DeleteFuture(context.Background(), "Work", reviewURL, "review", "2025-06-03")

		require.NoError(t, err)
		_, ok := f.store.Get(reviewURL)
		assert.False(t, ok)
	})
}

func TestService_DeleteSeries(t *testing.T) {
	t.Run("should delete the object holding the series", func(t *testing.T) {
		f := setupServiceTest(t)

		err := f.service.DeleteSeries(context.Background(), "Work", "", "review_recurrence_3")

		require.NoError(t, err)
		_, ok := f.store.Get(reviewURL)
		assert.False(t, ok)
		deleted := f.published[0].Data.(event_bus.SeriesDeleted)
		assert.Equal(t, "review", deleted.UID)
		assert.Equal(t, reviewURL, deleted.URL)
	})

	t.Run("should search the named calendar first", func(t *testing.T) {
		f := setupServiceTest(t)

		require.NoError(t, f.service.DeleteSeries(context.Background(), "Work", "", "review"))

		calls := f.store.Calls()
		require.GreaterOrEqual(t, len(calls), 2)
		assert.Equal(t, "ListObjects "+workPath, calls[1])
	})
}

func TestService_DeleteEvent(t *testing.T) {
	f := setupServiceTest(t)

	require.NoError(t, f.service.DeleteEvent(context.Background(), reviewURL))
	assert.ErrorIs(t, f.service.DeleteEvent(context.Background(), reviewURL), ErrBaseEventNotFound)
}
