package logging

import "context"

type contextKey string

const (
	repositoryIDKey contextKey = "repository_id"
	hookTokenKey    contextKey = "hook_token"
)

// WithRepositoryID adds a repository ID to the context.
func WithRepositoryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, repositoryIDKey, id)
}

// WithHookToken adds the transaction token of a hook invocation to the context.
func WithHookToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, hookTokenKey, token)
}

// GetRepositoryID retrieves the repository ID from the context.
// Returns empty string if not present.
func GetRepositoryID(ctx context.Context) string {
	if id, ok := ctx.Value(repositoryIDKey).(string); ok {
		return id
	}
	return ""
}

// GetHookToken retrieves the hook token from the context.
func GetHookToken(ctx context.Context) string {
	if token, ok := ctx.Value(hookTokenKey).(string); ok {
		return token
	}
	return ""
}
