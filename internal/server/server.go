// Package server contains the HTTP handlers and routing of the portfolio site.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"portfolio/internal/cache"
	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/repository"
	"portfolio/internal/service"
	"portfolio/internal/session"
	"portfolio/internal/views"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	views          *views.Engine
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	sessions       session.Store
	postService    *service.PostService
	authService    *service.AuthService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redisClient keeps sessions in the database and disables the login
// rate limit store.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("server: database is required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		views:          views.New(),
		promMiddleware: middleware.InitMetrics("portfolio"),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		sessions:       session.NewStore(redisClient, db),
	}
	s.postService = service.NewPostService(s.postRepo)
	s.authService = service.NewAuthService(s.userRepo, s.sessions, cfg.JWTSecret, cfg.SessionTTL())

	if err := s.views.Load(); err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "Portfolio",
		Views:        s.views,
		ErrorHandler: s.errorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)

	return s, nil
}

// App returns the configured fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Propagates request and trace IDs to the request context
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	if s.config.AllowedOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.AllowedOrigins,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
			AllowCredentials: s.config.AllowedOrigins != "*",
			MaxAge:           86400,
		}))
	}

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:   views.Static(),
		MaxAge: 3600,
	}))

	app.Use(s.SessionMiddleware())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Static pages
	app.Get("/", s.Welcome)
	app.Get("/me", s.About)
	app.Get("/contacts", s.Contacts)
	app.Get("/research", s.Research)

	// Authentication
	app.Get("/login", s.LoginForm)
	login := []fiber.Handler{s.Login}
	if !middleware.RateLimitBypassed(s.config.Env) {
		login = append([]fiber.Handler{middleware.RateLimit(
			s.redis, s.config.LoginRateLimit, time.Minute, "login")}, login...)
	}
	app.Post("/login", login...)
	app.Post("/logout", s.AuthRequired(), s.Logout)
	app.Get("/dashboard", s.AuthRequired(), s.Dashboard)

	// Public post routes
	work := app.Group("/work")
	work.Get("/", s.ListPosts)

	// /work/create must be registered before the generic /:id route
	adminOnly := []fiber.Handler{s.AuthRequired(), s.RoleRequired(models.RoleAdmin)}
	work.Get("/create", append(adminOnly, s.CreatePostForm)...)
	work.Post("/", append(adminOnly, s.CreatePost)...)

	// Define specific /:id/:resource routes BEFORE generic /:id route
	work.Get("/:id/edit", s.AuthRequired(), s.EditPostForm)
	work.Get("/:id/delete", s.AuthRequired(), s.DeletePostForm)
	work.Put("/:id", s.AuthRequired(), s.UpdatePost)
	work.Patch("/:id", s.AuthRequired(), s.UpdatePost)
	work.Delete("/:id", s.AuthRequired(), s.DeletePost)
	work.Post("/:id", s.AuthRequired(), s.MethodOverride)
	work.Get("/:id", s.ShowPost)
}

// Start starts the server
func (s *Server) Start() error {
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: when
// it is not configured sessions live in the database.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
