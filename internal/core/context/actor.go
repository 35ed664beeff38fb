// Package context provides request-scoped context values shared between
// the HTTP layer and the domain layer.
package context

import (
	"context"
)

// ActorContext identifies the already-authenticated actor performing the
// request. The engine trusts this identity; authentication itself happens
// upstream.
type ActorContext struct {
	// ActorID is the seller / cashier / operator id
	ActorID string

	// DisplayName is optional, used for audit enrichment only
	DisplayName string
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context, or nil.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorID returns the actor id from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ActorID
	}
	return ""
}
