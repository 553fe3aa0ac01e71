package caldav_store

import (
	"context"
	"net/http"
	"time"

	"github.com/davcal/davcal/internal/config"
	"github.com/davcal/davcal/pkg/user"
	"github.com/emersion/go-webdav"
	"golang.org/x/oauth2"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

const googleCalendarScope = "https://www.googleapis.com/auth/calendar"

// NewHTTPClient returns the authenticated transport for u. Google accounts
// send an OAuth2 refresh token as password, all other servers use basic auth.
func NewHTTPClient(ctx context.Context, u user.User, google config.Google, timeout time.Duration) webdav.HTTPClient {
	base := &http.Client{Timeout: timeout}

	if ParseServerType(u.ServerType) == Google {
		oauthConfig := &oauth2.Config{
			ClientID:     google.ClientId,
			ClientSecret: google.ClientSecret,
			Endpoint:     googleEndpoint,
			Scopes:       []string{googleCalendarScope},
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		client := oauthConfig.Client(ctx, &oauth2.Token{RefreshToken: u.Password})
		client.Timeout = timeout
		return client
	}

	return webdav.HTTPClientWithBasicAuth(base, u.Username, u.Password)
}
