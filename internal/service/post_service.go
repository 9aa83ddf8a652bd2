// Package service contains the business rules behind the HTTP handlers.
package service

import (
	"context"
	"log/slog"
	"strings"

	"portfolio/internal/auth"
	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/observability"
	"portfolio/internal/policy"
	"portfolio/internal/repository"

	"github.com/go-playground/validator/v10"
)

type PostService struct {
	postRepo repository.PostRepository
	validate *validator.Validate
}

// PostInput is the form or JSON body of a post create or update.
type PostInput struct {
	Title       string `form:"title" json:"title" validate:"required,max=255"`
	Date        string `form:"date" json:"date" validate:"required,calendar_date"`
	Description string `form:"description" json:"description" validate:"notblank"`
}

func (in *PostInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.Description = strings.TrimSpace(in.Description)
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{
		postRepo: postRepo,
		validate: newValidator(),
	}
}

// ListPosts returns every post, newest date first.
func (s *PostService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	return s.postRepo.List(ctx)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// AuthorizeCreate fails unless the acting user may create posts.
func (s *PostService) AuthorizeCreate(ctx context.Context) error {
	user := auth.UserFrom(ctx)
	if user == nil {
		return models.NewUnauthorizedError("Authentication required")
	}
	if !policy.CanCreatePost(user) {
		return models.NewForbiddenError("Only administrators can create posts")
	}
	return nil
}

// AuthorizeMutation loads post id and fails unless the acting user may
// change it.
func (s *PostService) AuthorizeMutation(ctx context.Context, id uint) (*models.Post, error) {
	user := auth.UserFrom(ctx)
	if user == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutatePost(user, post) {
		return nil, models.NewForbiddenError("Not authorized to modify this post")
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "PostService", "CreatePost")
	defer span.End()

	if err := s.AuthorizeCreate(ctx); err != nil {
		return nil, err
	}

	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	date, _ := models.ParseDate(in.Date)
	post := &models.Post{
		Title:       in.Title,
		Date:        date,
		Description: in.Description,
		UserID:      auth.UserFrom(ctx).ID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	middleware.PostMutations.WithLabelValues("create").Inc()
	middleware.Logger.InfoContext(ctx, "post created", slog.Uint64("post_id", uint64(post.ID)))
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, id uint, in PostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "PostService", "UpdatePost")
	defer span.End()

	post, err := s.AuthorizeMutation(ctx, id)
	if err != nil {
		return nil, err
	}

	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	date, _ := models.ParseDate(in.Date)
	post.Title = in.Title
	post.Date = date
	post.Description = in.Description

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	middleware.PostMutations.WithLabelValues("update").Inc()
	middleware.Logger.InfoContext(ctx, "post updated", slog.Uint64("post_id", uint64(post.ID)))
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, id uint) error {
	ctx, span := observability.StartSpan(ctx, "PostService", "DeletePost")
	defer span.End()

	if _, err := s.AuthorizeMutation(ctx, id); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, id); err != nil {
		return err
	}

	middleware.PostMutations.WithLabelValues("delete").Inc()
	middleware.Logger.InfoContext(ctx, "post deleted", slog.Uint64("post_id", uint64(id)))
	return nil
}
