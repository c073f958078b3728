// Package eventbus provides a typed publish/subscribe event bus that carries
// repository activity to other subsystems. The command core only publishes.
package eventbus

import (
	"github.com/colonyops/scmd/internal/core/config"
	"github.com/colonyops/scmd/internal/core/scm"
)

// Event names a payload type carried by the bus.
type Event string

const (
	// Keep list sorted A-Z
	EventChangesetsPending  Event = "changesets.pending"
	EventChangesetsReceived Event = "changesets.received"
	EventConfigReloaded     Event = "config.reloaded"
	EventRepositoryModified Event = "repository.modified"
)

// ChangesetsPendingPayload is emitted when a pre-receive hook accepted
// changesets that are not yet durably stored.
type ChangesetsPendingPayload struct {
	Repository scm.Repository
	Changesets []scm.Changeset
	Token      string
}

// ChangesetsReceivedPayload is emitted after a post-receive hook completed.
type ChangesetsReceivedPayload struct {
	Repository scm.Repository
	Changesets []scm.Changeset
	Token      string
}

// RepositoryModifiedPayload is emitted when a mutating command published a revision.
type RepositoryModifiedPayload struct {
	Repository scm.Repository
	Branch     string
	Revision   string
	Operation  string
}

// ConfigReloadedPayload is emitted when configuration is reloaded.
type ConfigReloadedPayload struct {
	Config *config.Config
}

func (bus *EventBus) PublishChangesetsPending(p ChangesetsPendingPayload) {
	bus.send(EventChangesetsPending, p)
}

func (bus *EventBus) SubscribeChangesetsPending(fn func(ChangesetsPendingPayload)) {
	bus.subscribe(EventChangesetsPending, func(p any) { fn(p.(ChangesetsPendingPayload)) })
}

func (bus *EventBus) PublishChangesetsReceived(p ChangesetsReceivedPayload) {
	bus.send(EventChangesetsReceived, p)
}

func (bus *EventBus) SubscribeChangesetsReceived(fn func(ChangesetsReceivedPayload)) {
	bus.subscribe(EventChangesetsReceived, func(p any) { fn(p.(ChangesetsReceivedPayload)) })
}

func (bus *EventBus) PublishRepositoryModified(p RepositoryModifiedPayload) {
	bus.send(EventRepositoryModified, p)
}

func (bus *EventBus) SubscribeRepositoryModified(fn func(RepositoryModifiedPayload)) {
	bus.subscribe(EventRepositoryModified, func(p any) { fn(p.(RepositoryModifiedPayload)) })
}

func (bus *EventBus) PublishConfigReloaded(p ConfigReloadedPayload) {
	bus.send(EventConfigReloaded, p)
}

func (bus *EventBus) SubscribeConfigReloaded(fn func(ConfigReloadedPayload)) {
	bus.subscribe(EventConfigReloaded, func(p any) { fn(p.(ConfigReloadedPayload)) })
}
