// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var dbSeq atomic.Uint64

// TestConfig returns a configuration suitable for tests.
func TestConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "test",
		DBDriver:        "sqlite",
		JWTSecret:       "test-secret-key-12345678901234567890123456789012",
		SessionTTLHours: 2,
		LoginRateLimit:  10,
	}
}

// NewTestDB opens a private, migrated in-memory SQLite database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := TestConfig()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg.SQLitePath = fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewTestRedis starts an in-process Redis server and returns a client for it.
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser inserts a user whose password is the bcrypt hash of password.
func CreateUser(t *testing.T, db *gorm.DB, email, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		Name:     strings.Split(email, "@")[0],
		Email:    email,
		Password: string(hash),
		Role:     role,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreatePost inserts a post owned by owner.
func CreatePost(t *testing.T, db *gorm.DB, owner *models.User, title, date string) *models.Post {
	t.Helper()
	d, err := models.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	p := &models.Post{
		Title:       title,
		Date:        d,
		Description: "Description of " + title,
		UserID:      owner.ID,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}
