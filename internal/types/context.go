package types

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userKey      contextKey = "current_user"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context. Returns an empty
// string when no request ID has been set.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithUser stores the resolved caller in the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// GetUser retrieves the resolved caller from the context, or nil when the
// request carries no identity.
func GetUser(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}
