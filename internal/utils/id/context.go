package id

import "context"

type userIDKey struct{}

// WithUserID marks ctx as belonging to a signed-in user. Non-positive ids
// leave ctx anonymous.
func WithUserID(ctx context.Context, userID int64) context.Context {
	if userID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext reports the signed-in user, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	userID, ok := ctx.Value(userIDKey{}).(int64)
	return userID, ok
}
