// Package usercontext carries the authenticated account identity through request contexts.
package usercontext

import "context"

type contextKey string

const userIDKey contextKey = "usercontext_user_id"

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	if ctx == nil || userID == 0 {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	value, ok := ctx.Value(userIDKey).(int64)
	if !ok || value == 0 {
		return 0, false
	}
	return value, true
}
