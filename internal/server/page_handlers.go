package server

import "github.com/gofiber/fiber/v2"

func (s *Server) Welcome(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "welcome", "welcome", nil)
}

// About handles GET /me
func (s *Server) About(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "me", "me", nil)
}

func (s *Server) Contacts(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "contacts", "contacts", nil)
}

func (s *Server) Research(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "research", "research", nil)
}
