package eventbus

import (
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/rs/zerolog"
)

// ActivityLogger writes an info line for every repository activity event.
// It stands in for downstream consumers such as notifications or indexing.
type ActivityLogger struct {
	bus *EventBus
	log zerolog.Logger
}

// NewActivityLogger constructs an activity logger for bus.
func NewActivityLogger(bus *EventBus) *ActivityLogger {
	return &ActivityLogger{bus: bus, log: logging.Component("activity")}
}

// Register subscribes to all repository activity events.
func (a *ActivityLogger) Register() {
	if a == nil || a.bus == nil {
		return
	}

	a.bus.SubscribeChangesetsReceived(func(p ChangesetsReceivedPayload) {
		a.log.Info().
			Str("repository", p.Repository.NamespaceAndName()).
			Int("changesets", len(p.Changesets)).
			Msg("changesets received")
	})

	a.bus.SubscribeRepositoryModified(func(p RepositoryModifiedPayload) {
		a.log.Info().
			Str("repository", p.Repository.NamespaceAndName()).
			Str("operation", p.Operation).
			Str("branch", p.Branch).
			Str("revision", p.Revision).
			Msg("repository modified")
	})

	a.bus.SubscribeConfigReloaded(func(ConfigReloadedPayload) {
		a.log.Info().Msg("configuration reloaded")
	})
}
