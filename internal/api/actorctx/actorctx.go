package actorctx

import "context"

type ctxKeyActor struct{}

// DefaultActor attributes edits made without an identity.
const DefaultActor = "anonymous"

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor{}, actor)
}

func Actor(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyActor{}).(string)
	if !ok || v == "" {
		return DefaultActor
	}
	return v
}
