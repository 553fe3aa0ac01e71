package preferences

import (
	"context"
	"testing"
	"time"

	"github.com/davcal/davcal/internal/utils"
	"github.com/davcal/davcal/pkg/caldav_store"
	"github.com/davcal/davcal/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = user.User{Username: "alice", Password: "secret", ServerURL: "https://dav.example.com", ServerType: "generic"}

func setupServiceTest(t *testing.T) (*ServiceImpl, *RepositoryStub, context.Context) {
	t.Helper()
	repo := NewRepositoryStub()
	store := caldav_store.NewStoreStub(
		caldav_store.Calendar{Name: "Personal", Path: "/calendars/alice/personal/"},
		caldav_store.Calendar{Name: "Work", Path: "/calendars/alice/work/"},
	)
	clock := &utils.MockClock{FixedNow: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	service := NewService(repo, caldav_store.ConnectorStub{Store: store}, clock)
	return service, repo, user.WithUser(context.Background(), alice)
}

func TestService_Get(t *testing.T) {
	t.Run("should create defaults on first use", func(t *testing.T) {
		service, repo, ctx := setupServiceTest(t)

		prefs, err := service.Get(ctx)

		require.NoError(t, err)
		assert.Equal(t, "alice", prefs.Username)
		assert.Equal(t, DefaultView, prefs.DefaultView)
		assert.Equal(t, DefaultTimezone, prefs.Timezone)
		assert.Empty(t, prefs.SelectedCalendars)
		stored, err := repo.Get(ctx, "alice", "https://dav.example.com")
		require.NoError(t, err)
		assert.Equal(t, "generic", stored.ServerType)
	})

	t.Run("should require a user", func(t *testing.T) {
		service, _, _ := setupServiceTest(t)

		_, err := service.Get(context.Background())

		assert.ErrorIs(t, err, user.ErrNoUser)
	})
}

func TestService_UpdateSettings(t *testing.T) {
	service, _, ctx := setupServiceTest(t)

	// when
	_, err := service.UpdateSettings(ctx, Settings{WeekStart: intPtr(1), DefaultCalendar: strPtr("Work")})
	require.NoError(t, err)

	// then
	prefs, err := service.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, prefs.WeekStart)
	assert.Equal(t, "Work", prefs.DefaultCalendar)

	// when
	_, err = service.UpdateSettings(ctx, Settings{DefaultView: strPtr("agenda")})

	// then
	assert.ErrorIs(t, err, ErrInvalidSettings)
	prefs, _ = service.Get(ctx)
	assert.Equal(t, DefaultView, prefs.DefaultView)
}

func TestService_Calendars(t *testing.T) {
	t.Run("should select all calendars when nothing was selected", func(t *testing.T) {
		service, _, ctx := setupServiceTest(t)

		calendars, err := service.Calendars(ctx)

		require.NoError(t, err)
		require.Len(t, calendars, 2)
		assert.True(t, calendars[0].Selected)
		assert.True(t, calendars[1].Selected)
		assert.Equal(t, DefaultColors[0], calendars[0].Color)
		assert.Equal(t, DefaultColors[1], calendars[1].Color)
		prefs, _ := service.Get(ctx)
		assert.Equal(t, []string{"Personal", "Work"}, prefs.SelectedCalendars)
	})

	t.Run("should color selected calendars by their position", func(t *testing.T) {
		service, _, ctx := setupServiceTest(t)
		_, err := service.SelectCalendars(ctx, []string{"Work", "Work", ""})
		require.NoError(t, err)

		calendars, err := service.Calendars(ctx)

		require.NoError(t, err)
		assert.False(t, calendars[0].Selected)
		assert.True(t, calendars[1].Selected)
		assert.Equal(t, DefaultColors[0], calendars[1].Color)
		prefs, _ := service.Get(ctx)
		assert.Equal(t, []string{"Work"}, prefs.SelectedCalendars)
	})
}

func TestService_RecordLogin(t *testing.T) {
	service, repo, ctx := setupServiceTest(t)

	require.NoError(t, service.RecordLogin(ctx))

	prefs, err := repo.Get(ctx, "alice", "https://dav.example.com")
	require.NoError(t, err)
	require.NotNil(t, prefs.LastLogin)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), *prefs.LastLogin)
}
