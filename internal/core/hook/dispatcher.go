package hook

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/colonyops/scmd/internal/core/eventbus"
	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/rs/zerolog"
)

// Listener is notified of hook invocations. Returning an error rejects a
// pre-receive hook and stops notification of later listeners.
type Listener interface {
	OnHook(ctx context.Context, hc *Context) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, hc *Context) error

func (f ListenerFunc) OnHook(ctx context.Context, hc *Context) error { return f(ctx, hc) }

// Result is the outcome of one dispatch.
type Result struct {
	State    State
	Messages []string
	Err      error
}

// Rejected reports whether a listener failed.
func (r Result) Rejected() bool { return r.State == StateRejected }

// Lines returns the collected messages followed by the error message, the
// text relayed to the pushing client.
func (r Result) Lines() []string {
	lines := slices.Clone(r.Messages)
	if r.Err != nil {
		lines = append(lines, r.Err.Error())
	}
	return lines
}

// AsError converts a rejected result into a *scm.HookRejectedError.
func (r Result) AsError(repo scm.Repository) error {
	if !r.Rejected() {
		return nil
	}
	return &scm.HookRejectedError{Repository: repo, Messages: r.Messages, Err: r.Err}
}

// Dispatcher fans hook contexts out to listeners in registration order and
// publishes the accepted changesets on the event bus.
type Dispatcher struct {
	bus *eventbus.EventBus
	log zerolog.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// NewDispatcher creates a dispatcher. bus may be nil.
func NewDispatcher(bus *eventbus.EventBus) *Dispatcher {
	return &Dispatcher{bus: bus, log: logging.Component("hook")}
}

// Register appends l to the listener list.
func (d *Dispatcher) Register(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Fire dispatches an in-process hook whose context is already built.
func (d *Dispatcher) Fire(ctx context.Context, hc *Context) Result {
	inv := NewInvocation()
	if err := inv.Transition(StateContextBuilt); err != nil {
		return Result{State: inv.State(), Err: err}
	}
	return d.Dispatch(ctx, inv, hc)
}

// Dispatch notifies listeners for an invocation in StateContextBuilt and
// drives it to a terminal state.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *Invocation, hc *Context) Result {
	if state := inv.State(); state != StateContextBuilt {
		return Result{State: state, Err: fmt.Errorf("hook invocation is %s, not %s", state, StateContextBuilt)}
	}

	ctx = logging.WithRepositoryID(ctx, hc.Repository().ID)
	if hc.Token() != "" {
		ctx = logging.WithHookToken(ctx, hc.Token())
	}

	d.mu.RLock()
	listeners := slices.Clone(d.listeners)
	d.mu.RUnlock()

	var rejection error
	for i, l := range listeners {
		if err := notify(ctx, l, hc); err != nil {
			d.log.Warn().Ctx(ctx).Err(err).
				Str("type", string(hc.Type())).
				Int("listener", i).
				Msg("hook listener rejected changesets")
			rejection = err
			break
		}
	}

	if err := inv.Transition(StateListenersNotified); err != nil {
		return Result{State: inv.State(), Messages: hc.Messages(), Err: err}
	}

	if rejection != nil {
		_ = inv.Transition(StateRejected)
		return Result{State: StateRejected, Messages: hc.Messages(), Err: rejection}
	}
	if err := inv.Transition(StateSuccess); err != nil {
		return Result{State: inv.State(), Messages: hc.Messages(), Err: err}
	}

	d.publish(ctx, hc)

	d.log.Debug().Ctx(ctx).
		Str("type", string(hc.Type())).
		Int("listeners", len(listeners)).
		Msg("hook dispatched")

	return Result{State: inv.State(), Messages: hc.Messages()}
}

func notify(ctx context.Context, l Listener, hc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook listener panicked: %v", r)
		}
	}()
	return l.OnHook(ctx, hc)
}

func (d *Dispatcher) publish(ctx context.Context, hc *Context) {
	if d.bus == nil {
		return
	}

	changesets, err := hc.Changesets(ctx)
	if err != nil {
		d.log.Error().Ctx(ctx).Err(err).Msg("failed to load hook changesets")
	}

	switch hc.Type() {
	case PreReceive:
		d.bus.PublishChangesetsPending(eventbus.ChangesetsPendingPayload{
			Repository: hc.Repository(),
			Changesets: changesets,
			Token:      hc.Token(),
		})
	case PostReceive:
		d.bus.PublishChangesetsReceived(eventbus.ChangesetsReceivedPayload{
			Repository: hc.Repository(),
			Changesets: changesets,
			Token:      hc.Token(),
		})
	}
}
