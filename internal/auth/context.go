package auth

import "context"

type contextKey string

const userIDContextKey contextKey = "vocagym-user-id"

// ContextWithUserID attaches the authenticated user ID to the context.
func ContextWithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int)
	return userID, ok
}
