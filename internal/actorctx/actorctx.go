package actorctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Actor identifies who is performing an operation. Audit records fall back to
// "system" when no actor is attached to the request context.
type Actor struct {
	ID       snowflake.ID
	Username string
	Role     string
}

// ActorContextKey is the request context key for the acting user.
type ActorContextKey struct{}

// WithActor stores the acting user in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

// ActorFromContext returns the acting user from context, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ActorContextKey{}).(Actor)
	if !ok || actor.Username == "" {
		return Actor{}, false
	}
	return actor, true
}

// Username returns the acting username, or "system" when none is attached.
func Username(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return "system"
}
