package middleware

import "context"

// Caller is the authenticated subscriber behind a request.
type Caller struct {
	UserID string
	Email  string
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.UserID != ""
}

// UserIDFromContext returns "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	c, _ := CallerFromContext(ctx)
	return c.UserID
}

// WithUserID is WithCaller without an email. Tests use it to skip token minting.
func WithUserID(ctx context.Context, userID string) context.Context {
	return WithCaller(ctx, Caller{UserID: userID})
}
