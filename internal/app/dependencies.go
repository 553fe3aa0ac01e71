package app

import (
	"github.com/davcal/davcal/internal/config"
	"github.com/davcal/davcal/internal/event_bus"
	"github.com/davcal/davcal/internal/utils"
	"github.com/davcal/davcal/pkg/caldav_store"
	"github.com/davcal/davcal/pkg/event"
	"github.com/davcal/davcal/pkg/preferences"
	"github.com/davcal/davcal/pkg/series"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Connector caldav_store.Connector

	PreferencesRepo    preferences.Repository
	PreferencesService preferences.Service
	PreferencesHandler *preferences.Handler

	Parser       *event.Parser
	EventService event.Service
	EventHandler *event.Handler

	EventBus      *event_bus.EventBus
	SeriesService series.Service
	SeriesHandler *series.Handler

	Clock utils.Clock
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	return buildDependencies(caldav_store.NewDAVConnector(cfg), preferences.NewRepository(db), utils.SystemClock{})
}

func buildDependencies(connector caldav_store.Connector, repo preferences.Repository, clock utils.Clock) *Dependencies {
	deps := &Dependencies{Connector: connector, Clock: clock}

	deps.PreferencesRepo = repo
	deps.PreferencesService = preferences.NewService(deps.PreferencesRepo, deps.Connector, deps.Clock)
	deps.PreferencesHandler = preferences.NewHandler(deps.PreferencesService)

	deps.Parser = event.NewParser(deps.Clock)
	deps.EventService = event.NewService(deps.Connector, deps.PreferencesService, deps.Parser, deps.Clock)
	deps.EventHandler = event.NewHandler(deps.EventService)

	deps.EventBus = event_bus.NewEventBus()
	subscribeAuditLog(deps.EventBus)
	deps.SeriesService = series.NewService(deps.Connector, deps.EventBus)
	deps.SeriesHandler = series.NewHandler(deps.SeriesService)

	return deps
}

func subscribeAuditLog(bus *event_bus.EventBus) {
	event_bus.SubscribeTyped(bus, event_bus.SeriesOccurrenceExcludedType, func(e event_bus.EventT[event_bus.SeriesOccurrenceExcluded]) error {
		log.WithFields(log.Fields{"uid": e.Data.UID, "url": e.Data.URL}).
			Infof("excluded occurrence on %s", e.Data.Date.Format("2006-01-02"))
		return nil
	})
	event_bus.SubscribeTyped(bus, event_bus.SeriesTruncatedType, func(e event_bus.EventT[event_bus.SeriesTruncated]) error {
		log.WithFields(log.Fields{"uid": e.Data.UID, "url": e.Data.URL}).
			Infof("series now ends %s", e.Data.Until.Format("2006-01-02T15:04:05"))
		return nil
	})
	event_bus.SubscribeTyped(bus, event_bus.SeriesDeletedType, func(e event_bus.EventT[event_bus.SeriesDeleted]) error {
		log.WithFields(log.Fields{"uid": e.Data.UID, "url": e.Data.URL}).Info("event deleted")
		return nil
	})
}
