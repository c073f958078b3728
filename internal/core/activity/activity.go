// Package activity keeps the most recent write activity of every
// repository in the key-value store, fed from the event bus.
package activity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/colonyops/scmd/internal/core/eventbus"
	"github.com/colonyops/scmd/internal/core/kv"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/rs/zerolog"
)

const namespace = "activity"

// Entry is the last recorded activity of a repository.
type Entry struct {
	Operation  string    `json:"operation"`
	Branch     string    `json:"branch,omitempty"`
	Revision   string    `json:"revision,omitempty"`
	Changesets int       `json:"changesets,omitempty"`
	At         time.Time `json:"at"`
}

// Recorder persists activity events. Entries expire after the retention
// period and are removed by Sweep.
type Recorder struct {
	entries   *kv.TypedKV[Entry]
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewRecorder creates a recorder. A zero retention keeps entries forever.
func NewRecorder(store kv.KV, retention time.Duration) *Recorder {
	return &Recorder{
		entries:   kv.Scoped[Entry](store, namespace),
		retention: retention,
		now:       time.Now,
		log:       logging.Component("activity"),
	}
}

// Register subscribes the recorder to bus.
func (r *Recorder) Register(bus *eventbus.EventBus) {
	if bus == nil {
		return
	}
	bus.SubscribeRepositoryModified(func(p eventbus.RepositoryModifiedPayload) {
		r.record(p.Repository.ID, Entry{Operation: p.Operation, Branch: p.Branch, Revision: p.Revision})
	})
	bus.SubscribeChangesetsReceived(func(p eventbus.ChangesetsReceivedPayload) {
		e := Entry{Operation: "receive", Changesets: len(p.Changesets)}
		if n := len(p.Changesets); n > 0 {
			e.Revision = p.Changesets[n-1].ID
		}
		r.record(p.Repository.ID, e)
	})
}

func (r *Recorder) record(repositoryID string, e Entry) {
	ctx := context.Background()
	e.At = r.now()

	var err error
	if r.retention > 0 {
		err = r.entries.SetTTL(ctx, repositoryID, e, r.retention)
	} else {
		err = r.entries.Set(ctx, repositoryID, e)
	}
	if err != nil {
		r.log.Error().Err(err).Str("repository", repositoryID).Msg("failed to record activity")
	}
}

// Last returns the last activity of a repository. ok is false when none
// is recorded.
func (r *Recorder) Last(ctx context.Context, repositoryID string) (Entry, bool, error) {
	e, err := r.entries.Get(ctx, repositoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Forget removes the activity of a deleted repository.
func (r *Recorder) Forget(ctx context.Context, repositoryID string) error {
	return r.entries.Delete(ctx, repositoryID)
}

// Sweeper removes expired entries.
type Sweeper interface {
	SweepExpired(ctx context.Context) error
}

// Sweep periodically removes expired key-value entries. It blocks until
// ctx is cancelled.
func Sweep(ctx context.Context, s Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepExpired(ctx); err != nil {
				l := logging.Component("activity")
				l.Debug().Err(err).Msg("kv sweep failed")
			}
		}
	}
}
