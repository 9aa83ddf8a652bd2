// Package bootstrap prepares the process-wide runtime: storage connections
// and the configured root admin.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"portfolio/internal/cache"
	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/repository"
	"portfolio/internal/session"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to DB and Redis and ensures the root admin exists.
// The Redis client is nil when Redis is unreachable; sessions then live in
// the database.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureRootAdmin(ctx, cfg, repository.NewUserRepository(db)); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap root admin: %w", err)
	}

	if r == nil {
		n, err := session.NewDBStore(db).PurgeExpired(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("purge expired sessions: %w", err)
		}
		if n > 0 {
			middleware.Logger.Info("purged expired sessions", slog.Int64("count", n))
		}
	}

	return db, r, nil
}

// EnsureRootAdmin creates the admin named by ADMIN_EMAIL, or promotes and
// re-keys an existing account with that address. It does nothing when no
// admin email is configured.
func EnsureRootAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD must be set when ADMIN_EMAIL is set")
	}

	name := strings.TrimSpace(cfg.AdminName)
	if name == "" {
		name = "Admin"
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if existing == nil {
		root := &models.User{
			Name:     name,
			Email:    email,
			Password: string(hashedPassword),
			Role:     models.RoleAdmin,
		}
		if err := users.Create(ctx, root); err != nil {
			return err
		}
		middleware.Logger.Info("root admin created", slog.String("email", email))
		return nil
	}

	existing.Role = models.RoleAdmin
	existing.Password = string(hashedPassword)
	if err := users.Update(ctx, existing); err != nil {
		return err
	}
	middleware.Logger.Info("root admin ensured", slog.String("email", email))
	return nil
}
