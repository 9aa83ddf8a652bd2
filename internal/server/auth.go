package server

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"portfolio/internal/auth"
	"portfolio/internal/middleware"
	"portfolio/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SessionMiddleware resolves the acting user from the session cookie or a
// bearer token. Requests without valid credentials continue anonymously.
func (s *Server) SessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		var (
			user      *models.User
			sessionID string
		)

		if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
			u, sid, err := s.authService.ResolveToken(ctx, strings.TrimPrefix(header, "Bearer "))
			switch {
			case err == nil:
				user, sessionID = u, sid
			case models.HasCode(err, models.CodeUnauthorized):
				middleware.Logger.DebugContext(ctx, "bearer token rejected", slog.String("error", err.Error()))
			default:
				middleware.Logger.WarnContext(ctx, "session store unavailable, continuing anonymously",
					slog.String("error", err.Error()))
			}
		} else if id := c.Cookies(sessionCookie); id != "" {
			u, err := s.authService.ResolveSession(ctx, id)
			switch {
			case err != nil:
				// AuthRequired still rejects the anonymous request on protected routes.
				middleware.Logger.WarnContext(ctx, "session store unavailable, continuing anonymously",
					slog.String("error", err.Error()))
			case u == nil:
				s.clearCookie(c, sessionCookie)
			default:
				user, sessionID = u, id
			}
		}

		if user != nil {
			c.Locals("user", user)
			c.Locals("sessionID", sessionID)
			c.SetUserContext(auth.WithUser(ctx, user))
		}
		return c.Next()
	}
}

// AuthRequired rejects anonymous requests. Browsers are sent to the login
// page and return to the requested page after signing in.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) != nil {
			return c.Next()
		}

		if wantsJSON(c) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Unauthenticated."))
		}

		if c.Method() == fiber.MethodGet {
			s.setCookie(c, intendedCookie, url.QueryEscape(c.OriginalURL()), time.Now().Add(30*time.Minute))
		}
		return c.Redirect("/login", fiber.StatusFound)
	}
}

// RoleRequired rejects users that do not hold role.
func (s *Server) RoleRequired(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil || user.Role != role {
			return s.respondError(c, models.NewForbiddenError("This action is unauthorized."))
		}
		return c.Next()
	}
}
