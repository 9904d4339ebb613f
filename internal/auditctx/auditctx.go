package auditctx

import "context"

// Actor identifies who initiated a request, for activity logging below the HTTP layer.
type Actor struct {
	UserID    string
	Role      string
	IPAddress string
	UserAgent string
}

type actorContextKey struct{}

// WithActor returns a derived context carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// UserID returns the acting user's id, or "" for anonymous and system contexts.
func UserID(ctx context.Context) string {
	actor, _ := FromContext(ctx)
	return actor.UserID
}
