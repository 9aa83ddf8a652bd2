package server

import (
	"net/url"
	"time"

	"portfolio/internal/models"
	"portfolio/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LoginForm handles GET /login
func (s *Server) LoginForm(c *fiber.Ctx) error {
	if currentUser(c) != nil {
		return c.Redirect("/work", fiber.StatusFound)
	}
	return s.render(c, fiber.StatusOK, "login", "login", nil)
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := c.BodyParser(&in); err != nil {
		in = service.LoginInput{}
	}

	result, err := s.authService.Login(c.UserContext(), in, currentSessionID(c))
	if err != nil {
		fields, ok := validationFields(err)
		if !ok {
			return s.respondError(c, err)
		}
		if wantsJSON(c) {
			return models.RespondWithError(c, fiber.StatusUnprocessableEntity, err)
		}
		return s.render(c, fiber.StatusUnprocessableEntity, "login", "login", fiber.Map{
			"Errors": fields,
			"Old":    map[string]string{"email": in.Email},
		})
	}

	s.setCookie(c, sessionCookie, result.Session.ID, result.Session.ExpiresAt)

	target := "/work"
	if raw := c.Cookies(intendedCookie); raw != "" {
		s.clearCookie(c, intendedCookie)
		if intended, err := url.QueryUnescape(raw); err == nil && safeRedirect(intended) {
			target = intended
		}
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{
			"token":      result.Token,
			"expires_at": result.Session.ExpiresAt.UTC().Format(time.RFC3339),
			"user":       result.User,
			"redirect":   target,
		})
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

// Logout handles POST /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), currentSessionID(c)); err != nil {
		return s.respondError(c, err)
	}
	s.clearCookie(c, sessionCookie)

	if wantsJSON(c) {
		return c.JSON(fiber.Map{"message": "Logged out successfully."})
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

// Dashboard handles GET /dashboard
func (s *Server) Dashboard(c *fiber.Ctx) error {
	if wantsJSON(c) {
		return c.JSON(fiber.Map{"user": currentUser(c)})
	}
	return s.render(c, fiber.StatusOK, "dashboard", "dashboard", nil)
}
