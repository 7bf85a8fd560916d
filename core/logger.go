package core

import "context"

// Logger is implemented by the logging services.
// args may hold errors, maps of extra data and the current Actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor is the authenticated person behind a request or a CLI session.
type Actor struct {
	ID           string
	Username     string
	Name         string
	Email        string
	StudentIndex string
	Roles        []string
}

func (a Actor) IsZero() bool {
	return a.ID == "" && a.Username == ""
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the Actor stored in ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
