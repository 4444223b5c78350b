package shared

import "context"

type contextKey string

const actorKey contextKey = "actor"

// Actor identifies the authenticated caller for the current request.
type Actor struct {
	UserID int64
	Login  string
}

// ContextWithActor stores the actor in the request context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor set by the auth middleware, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
