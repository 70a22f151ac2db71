package core

import "context"

type actorKey struct{}

// Actor is the authenticated caller of an operation, carried by the request context.
type Actor struct {
	UserID   string
	Username string
	IP       string
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the Actor stored in ctx, the zero Actor (system) otherwise.
func ActorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
