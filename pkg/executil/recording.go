package executil

import (
	"context"
	"strings"
	"sync"
)

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Dir  string
	Env  []string
	Cmd  string
	Args []string
}

// Line returns the command and its arguments joined by spaces.
func (r RecordedCommand) Line() string {
	return strings.TrimSpace(r.Cmd + " " + strings.Join(r.Args, " "))
}

// RecordingExecutor captures commands for testing.
// Configure Outputs and Errors maps to control return values, or set
// Handler for full control.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	// Outputs maps a command key to its output. The key is matched first
	// against "<cmd> <first arg>" (e.g. "hg log") and then the command name.
	Outputs map[string][]byte

	// Errors maps a command key to its error, using the same lookup as Outputs.
	Errors map[string]error

	// Handler, when set, takes precedence over Outputs and Errors.
	Handler func(RecordedCommand) ([]byte, error)
}

// Run records the command and returns configured output/error.
func (e *RecordingExecutor) Run(_ context.Context, cmd string, args ...string) ([]byte, error) {
	return e.record(RecordedCommand{Cmd: cmd, Args: args})
}

// RunDir records the command with directory and returns configured output/error.
func (e *RecordingExecutor) RunDir(_ context.Context, dir, cmd string, args ...string) ([]byte, error) {
	return e.record(RecordedCommand{Dir: dir, Cmd: cmd, Args: args})
}

// Output records c and returns configured output/error.
func (e *RecordingExecutor) Output(_ context.Context, c Command) ([]byte, error) {
	return e.record(RecordedCommand{Dir: c.Dir, Env: c.Env, Cmd: c.Name, Args: c.Args})
}

func (e *RecordingExecutor) record(rc RecordedCommand) ([]byte, error) {
	e.mu.Lock()
	e.Commands = append(e.Commands, rc)
	handler := e.Handler
	e.mu.Unlock()

	if handler != nil {
		return handler(rc)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	keys := []string{rc.Cmd}
	if len(rc.Args) > 0 {
		keys = []string{rc.Cmd + " " + rc.Args[0], rc.Cmd}
	}

	var out []byte
	var err error
	for _, k := range keys {
		if v, ok := e.Outputs[k]; ok {
			out = v
			break
		}
	}
	for _, k := range keys {
		if v, ok := e.Errors[k]; ok {
			err = v
			break
		}
	}
	return out, err
}

// Lines returns every recorded command line in order.
func (e *RecordingExecutor) Lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	lines := make([]string, len(e.Commands))
	for i, c := range e.Commands {
		lines[i] = c.Line()
	}
	return lines
}

// Reset clears recorded commands.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
}
