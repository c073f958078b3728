package hook

import (
	"fmt"
	"sync"
)

// State is a step of a single hook invocation.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateContextBuilt      State = "CONTEXT_BUILT"
	StateListenersNotified State = "LISTENERS_NOTIFIED"
	StateSuccess           State = "SUCCESS"
	StateRejected          State = "REJECTED"
	StateNotFound          State = "NOT_FOUND"
)

var transitions = map[State][]State{
	StateReceived:          {StateContextBuilt, StateNotFound},
	StateContextBuilt:      {StateListenersNotified},
	StateListenersNotified: {StateSuccess, StateRejected},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateRejected || s == StateNotFound
}

// Invocation tracks the state of one hook invocation. It reaches exactly one
// terminal state.
type Invocation struct {
	mu      sync.Mutex
	state   State
	history []State
}

// NewInvocation starts in StateReceived.
func NewInvocation() *Invocation {
	return &Invocation{state: StateReceived, history: []State{StateReceived}}
}

// State returns the current state.
func (i *Invocation) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// History returns every state visited, in order.
func (i *Invocation) History() []State {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]State, len(i.history))
	copy(out, i.history)
	return out
}

// Transition moves to next or fails when next is not reachable from the
// current state.
func (i *Invocation) Transition(next State) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, allowed := range transitions[i.state] {
		if allowed == next {
			i.state = next
			i.history = append(i.history, next)
			return nil
		}
	}
	return fmt.Errorf("invalid hook transition %s -> %s", i.state, next)
}
