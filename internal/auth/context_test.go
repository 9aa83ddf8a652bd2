package auth

import (
	"context"
	"testing"

	"portfolio/internal/middleware"
	"portfolio/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestWithUser(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, UserFrom(ctx))
	assert.Equal(t, ctx, WithUser(ctx, nil))

	user := &models.User{ID: 5, Role: models.RoleAdmin}
	ctx = WithUser(ctx, user)
	assert.Same(t, user, UserFrom(ctx))
	assert.Equal(t, uint(5), ctx.Value(middleware.UserIDKey))
}
