package caldav_store

import (
	"context"
	"errors"
	"fmt"

	"github.com/davcal/davcal/internal/config"
	"github.com/davcal/davcal/pkg/user"
	log "github.com/sirupsen/logrus"
)

var ErrNoServer = errors.New("no caldav server configured")

// DAVConnector opens a DAVStore with the credentials of the request's user.
type DAVConnector struct {
	cfg config.Application
}

func NewDAVConnector(cfg config.Application) *DAVConnector {
	return &DAVConnector{cfg: cfg}
}

func (c *DAVConnector) Connect(ctx context.Context) (Store, error) {
	u, err := user.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if u.ServerURL == "" {
		u.ServerURL = c.cfg.CalDAV.ServerURL
	}
	if u.ServerType == "" {
		u.ServerType = c.cfg.CalDAV.ServerType
	}
	serverType := ParseServerType(u.ServerType)
	if u.ServerURL == "" && serverType != Google {
		return nil, ErrNoServer
	}

	homeURL := HomeURL(serverType, u.ServerURL, u.Username)
	log.Tracef("connecting %s to %s", u.Username, homeURL)

	httpClient := NewHTTPClient(ctx, u, c.cfg.Google, c.cfg.CalDAV.Timeout)
	return NewDAVStore(httpClient, homeURL)
}
