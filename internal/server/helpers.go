package server

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"portfolio/internal/auth"
	"portfolio/internal/middleware"
	"portfolio/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	sessionCookie  = "portfolio_session"
	flashCookie    = "portfolio_flash"
	intendedCookie = "portfolio_intended"
)

// wantsJSON reports whether the caller expects a JSON response rather than
// an HTML page.
func wantsJSON(c *fiber.Ctx) bool {
	if strings.Contains(strings.ToLower(c.Get(fiber.HeaderAccept)), "json") {
		return true
	}
	return c.Get(fiber.HeaderXRequestedWith) == "XMLHttpRequest"
}

// currentUser returns the authenticated user of the request, if any.
func currentUser(c *fiber.Ctx) *models.User {
	if user, ok := c.Locals("user").(*models.User); ok {
		return user
	}
	return auth.UserFrom(c.UserContext())
}

func currentSessionID(c *fiber.Ctx) string {
	id, _ := c.Locals("sessionID").(string)
	return id
}

// parseID reads the :id route parameter. Anything that is not a positive
// integer cannot name a post, so it is reported as not found.
func parseID(c *fiber.Ctx) (uint, error) {
	raw := c.Params("id")
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, models.NewNotFoundError("Post", raw)
	}
	return uint(id), nil
}

func (s *Server) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearCookie(c *fiber.Ctx, name string) {
	s.setCookie(c, name, "", time.Unix(0, 0))
}

// flash stores a one-shot message shown on the next rendered page.
func (s *Server) flash(c *fiber.Ctx, message string) {
	s.setCookie(c, flashCookie, url.QueryEscape(message), time.Now().Add(5*time.Minute))
}

// takeFlash returns and clears the pending flash message.
func (s *Server) takeFlash(c *fiber.Ctx) string {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return ""
	}
	s.clearCookie(c, flashCookie)
	msg, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return msg
}

// safeRedirect keeps post-login redirects on this site.
func safeRedirect(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// page builds the template binding shared by every page.
func (s *Server) page(c *fiber.Ctx, active string, data fiber.Map) fiber.Map {
	binding := fiber.Map{
		"User":   currentUser(c),
		"Flash":  s.takeFlash(c),
		"Active": active,
		"Year":   time.Now().Year(),
	}
	for k, v := range data {
		binding[k] = v
	}
	return binding
}

func (s *Server) render(c *fiber.Ctx, status int, name, active string, data fiber.Map) error {
	return c.Status(status).Render(name, s.page(c, active, data))
}

// respondError writes err as JSON or as the error page, depending on what
// the caller accepts. Validation failures are handled by the form handlers.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}

	if wantsJSON(c) {
		return models.RespondWithError(c, status, err)
	}

	message := "Something went wrong."
	var appErr *models.AppError
	if errors.As(err, &appErr) && status < fiber.StatusInternalServerError {
		message = appErr.Message
	}
	return s.render(c, status, "error", "", fiber.Map{
		"Status":  status,
		"Message": message,
	})
}

// errorHandler handles errors that escape the handlers, including fiber's
// own 404 and 405 errors.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if wantsJSON(c) {
			return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
		}
		return s.render(c, fe.Code, "error", "", fiber.Map{
			"Status":  fe.Code,
			"Message": fe.Message,
		})
	}
	return s.respondError(c, err)
}

// validationFields returns the per-field messages of a validation failure.
func validationFields(err error) (map[string][]string, bool) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != models.CodeValidation {
		return nil, false
	}
	return appErr.Fields, true
}
