// Package seed fills the database with demo posts for development.
package seed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPosts is the number of posts created by a plain seed run.
const DefaultPosts = 3

// ErrNoAdmin is returned when there is no admin to own seeded posts.
var ErrNoAdmin = errors.New("seed: no admin user, set ADMIN_EMAIL and ADMIN_PASSWORD first")

// Options configuration for the seeder
type Options struct {
	NumPosts    int
	ShouldClean bool
}

// Seeder creates demo data through the repositories.
type Seeder struct {
	db    *gorm.DB
	users repository.UserRepository
	posts repository.PostRepository
	faker *gofakeit.Faker
}

// NewSeeder returns a seeder; a non-zero seed makes the content reproducible.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{
		db:    db,
		users: repository.NewUserRepository(db),
		posts: repository.NewPostRepository(db),
		faker: gofakeit.New(seed),
	}
}

// Run applies opts and returns the created posts.
func (s *Seeder) Run(ctx context.Context, opts Options) ([]*models.Post, error) {
	if opts.ShouldClean {
		if err := s.ClearPosts(ctx); err != nil {
			return nil, err
		}
	}
	n := opts.NumPosts
	if n <= 0 {
		n = DefaultPosts
	}
	return s.Posts(ctx, n)
}

// ClearPosts deletes every post.
func (s *Seeder) ClearPosts(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Post{}).Error
}

// Posts creates n fake posts owned by the first admin.
func (s *Seeder) Posts(ctx context.Context, n int) ([]*models.Post, error) {
	admin, err := s.users.FirstAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrNoAdmin
	}

	end := time.Now()
	start := end.AddDate(-5, 0, 0)

	created := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		post := &models.Post{
			Title:       strings.TrimSuffix(s.faker.Sentence(4), "."),
			Date:        models.NewDate(s.faker.DateRange(start, end)),
			Description: s.faker.Paragraph(1, 3, 12, " "),
			UserID:      admin.ID,
		}
		if err := s.posts.Create(ctx, post); err != nil {
			return nil, err
		}
		created = append(created, post)
	}

	middleware.Logger.InfoContext(ctx, "seeded posts",
		slog.Int("count", len(created)),
		slog.Uint64("owner_id", uint64(admin.ID)),
	)
	return created, nil
}
