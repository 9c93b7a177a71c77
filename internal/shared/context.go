package shared

import "context"

type identityContextKey struct{}

// Identity carries the authenticated principal resolved by the upstream
// gateway. The core only consumes the user id and role string.
type Identity struct {
	UserID int64
	Role   string
}

// ContextWithIdentity stores the request identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the request identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// UserIDFromContext returns the current user id, zero when unauthenticated.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
