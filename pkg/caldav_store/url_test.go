package caldav_store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHomeURL(t *testing.T) {
	testCases := []struct {
		serverType ServerType
		base       string
		want       string
	}{
		{Nextcloud, "https://cloud.example.com/", "https://cloud.example.com/remote.php/dav/calendars/alice/"},
		{Baikal, "https://dav.example.com", "https://dav.example.com/cal.php/calendars/alice/"},
		{Radicale, "https://radicale.example.com", "https://radicale.example.com/alice/"},
		{Generic, "https://dav.example.com", "https://dav.example.com/calendars/alice/"},
		{Google, "", "https://apidata.googleusercontent.com/caldav/v2/alice/"},
	}
	for _, tc := range testCases {
		t.Run(string(tc.serverType), func(t *testing.T) {
			assert.Equal(t, tc.want, HomeURL(tc.serverType, tc.base, "alice"))
		})
	}
}

func TestParseServerType(t *testing.T) {
	assert.Equal(t, Nextcloud, ParseServerType("Nextcloud"))
	assert.Equal(t, Radicale, ParseServerType(" radicale "))
	assert.Equal(t, Google, ParseServerType("google"))
	assert.Equal(t, Generic, ParseServerType("owncloud"))
	assert.Equal(t, Generic, ParseServerType(""))
}

func TestFindCalendar(t *testing.T) {
	calendars := []Calendar{
		{Name: "Personal", Path: "/calendars/alice/personal/"},
		{Name: "Work", Path: "/calendars/alice/work-2/"},
	}

	byName, err := FindCalendar(calendars, "Work")
	assert.NoError(t, err)
	assert.Equal(t, "/calendars/alice/work-2/", byName.Path)

	byPath, err := FindCalendar(calendars, "personal")
	assert.NoError(t, err)
	assert.Equal(t, "Personal", byPath.Name)

	_, err = FindCalendar(calendars, "Holidays")
	assert.ErrorIs(t, err, ErrCalendarNotFound)
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "/cal/personal/abc.ics", ObjectPath("/cal/personal/", "abc"))
	assert.Equal(t, "/cal/personal/a_b.ics", ObjectPath("/cal/personal", "a/b"))
}
