package eventbus_test

import (
	"testing"

	"github.com/colonyops/scmd/internal/core/eventbus"
	"github.com/colonyops/scmd/internal/core/eventbus/testbus"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/rs/zerolog"
)

func TestRegisterDebugLogger(t *testing.T) {
	tb := testbus.New(t)

	// Register with a nop logger, verifies no panic.
	eventbus.RegisterDebugLogger(tb.EventBus, zerolog.Nop())
	eventbus.NewActivityLogger(tb.EventBus).Register()

	tb.PublishChangesetsPending(eventbus.ChangesetsPendingPayload{
		Repository: scm.Repository{ID: "r1"},
	})
	tb.PublishRepositoryModified(eventbus.RepositoryModifiedPayload{
		Repository: scm.Repository{ID: "r1"},
		Revision:   "abc",
	})
	tb.PublishChangesetsReceived(eventbus.ChangesetsReceivedPayload{
		Repository: scm.Repository{ID: "r1"},
	})

	tb.AssertPublished(t, eventbus.EventChangesetsReceived)
}
