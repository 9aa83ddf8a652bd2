// Package session stores server-side login sessions in Redis, or in the
// database when Redis is not available.
package session

import (
	"context"
	"errors"
	"time"

	"portfolio/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store persists sessions and the per-user index used to end them all at once.
type Store interface {
	Create(ctx context.Context, userID uint, ttl time.Duration) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID uint) error
}

// NewStore returns a Redis-backed store when rdb is set, otherwise a
// database-backed one.
func NewStore(rdb *redis.Client, db *gorm.DB) Store {
	if rdb != nil {
		return NewRedisStore(rdb)
	}
	return NewDBStore(db)
}

func newSession(userID uint, ttl time.Duration, now time.Time) *models.Session {
	return &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}
