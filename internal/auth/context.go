// Package auth carries the acting user through a request context.
package auth

import (
	"context"

	"portfolio/internal/middleware"
	"portfolio/internal/models"
)

type userKey struct{}

// WithUser returns ctx carrying user as the acting user. The user ID is also
// attached for log records.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if user == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, userKey{}, user)
	return middleware.WithUserID(ctx, user.ID)
}

// UserFrom returns the acting user, or nil for anonymous requests.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey{}).(*models.User)
	return user
}
