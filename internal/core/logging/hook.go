package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts repository_id and hook_token from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if id := GetRepositoryID(ctx); id != "" {
		e.Str("repository_id", id)
	}

	if token := GetHookToken(ctx); token != "" {
		e.Str("hook_token", token)
	}
}
