package caldav_store

import (
	"net/url"
	"strings"
)

type ServerType string

const (
	Nextcloud ServerType = "nextcloud"
	Baikal    ServerType = "baikal"
	Radicale  ServerType = "radicale"
	Generic   ServerType = "generic"
	Google    ServerType = "google"
)

const googleCalDAVBase = "https://apidata.googleusercontent.com/caldav/v2"

// ParseServerType maps configuration and header values onto a known server
// type. Unknown values are treated as generic.
func ParseServerType(value string) ServerType {
	switch t := ServerType(strings.ToLower(strings.TrimSpace(value))); t {
	case Nextcloud, Baikal, Radicale, Generic, Google:
		return t
	}
	return Generic
}

// HomeURL returns the calendar home collection of username on a server of the
// given type.
func HomeURL(serverType ServerType, baseURL, username string) string {
	base := strings.TrimRight(baseURL, "/")
	user := url.PathEscape(username)
	switch serverType {
	case Nextcloud:
		return base + "/remote.php/dav/calendars/" + user + "/"
	case Baikal:
		return base + "/cal.php/calendars/" + user + "/"
	case Radicale:
		return base + "/" + user + "/"
	case Google:
		return googleCalDAVBase + "/" + user + "/"
	default:
		return base + "/calendars/" + user + "/"
	}
}
