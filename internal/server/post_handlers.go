package server

import (
	"strings"

	"portfolio/internal/models"
	"portfolio/internal/service"

	"github.com/gofiber/fiber/v2"
)

func oldPostInput(in service.PostInput) map[string]string {
	return map[string]string{
		"title":       in.Title,
		"date":        in.Date,
		"description": in.Description,
	}
}

func postInputFrom(post *models.Post) service.PostInput {
	return service.PostInput{
		Title:       post.Title,
		Date:        post.Date.String(),
		Description: post.Description,
	}
}

// bindPostInput reads a post from a form or JSON body. A body that cannot
// be parsed is treated as empty so it fails validation field by field.
func bindPostInput(c *fiber.Ctx) service.PostInput {
	var in service.PostInput
	if err := c.BodyParser(&in); err != nil {
		return service.PostInput{}
	}
	return in
}

// formFailed answers a rejected post form: validation failures re-render
// the form with the submitted values, anything else is an error response.
func (s *Server) formFailed(c *fiber.Ctx, err error, view string, in service.PostInput, data fiber.Map) error {
	fields, ok := validationFields(err)
	if !ok {
		return s.respondError(c, err)
	}
	if wantsJSON(c) {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity, err)
	}
	if data == nil {
		data = fiber.Map{}
	}
	data["Errors"] = fields
	data["Old"] = oldPostInput(in)
	return s.render(c, fiber.StatusUnprocessableEntity, view, "work", data)
}

// ListPosts handles GET /work
func (s *Server) ListPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	if wantsJSON(c) {
		return c.JSON(posts)
	}
	return s.render(c, fiber.StatusOK, "work", "work", fiber.Map{"Posts": posts})
}

// ShowPost handles GET /work/:id
func (s *Server) ShowPost(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	if wantsJSON(c) {
		return c.JSON(post)
	}
	return s.render(c, fiber.StatusOK, "posts/show", "work", fiber.Map{"Post": post})
}

// CreatePostForm handles GET /work/create
func (s *Server) CreatePostForm(c *fiber.Ctx) error {
	if err := s.postService.AuthorizeCreate(c.UserContext()); err != nil {
		return s.respondError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts/create", "work", nil)
}

// CreatePost handles POST /work
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in := bindPostInput(c)

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return s.formFailed(c, err, "posts/create", in, nil)
	}

	if wantsJSON(c) {
		return c.Status(fiber.StatusCreated).JSON(post)
	}
	s.flash(c, "Post created successfully!")
	return c.Redirect("/work", fiber.StatusSeeOther)
}

// EditPostForm handles GET /work/:id/edit
func (s *Server) EditPostForm(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	post, err := s.postService.AuthorizeMutation(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts/edit", "work", fiber.Map{
		"Post": post,
		"Old":  oldPostInput(postInputFrom(post)),
	})
}

// UpdatePost handles PUT /work/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	in := bindPostInput(c)

	post, err := s.postService.UpdatePost(c.UserContext(), id, in)
	if err != nil {
		return s.formFailed(c, err, "posts/edit", in, fiber.Map{
			"Post": &models.Post{ID: id, Title: in.Title},
		})
	}

	if wantsJSON(c) {
		return c.JSON(post)
	}
	s.flash(c, "Post updated successfully!")
	return c.Redirect("/work", fiber.StatusSeeOther)
}

// DeletePostForm handles GET /work/:id/delete
func (s *Server) DeletePostForm(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	post, err := s.postService.AuthorizeMutation(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts/delete", "work", fiber.Map{"Post": post})
}

// DeletePost handles DELETE /work/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := s.postService.DeletePost(c.UserContext(), id); err != nil {
		return s.respondError(c, err)
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{"message": "Post deleted successfully!"})
	}
	s.flash(c, "Post deleted successfully!")
	return c.Redirect("/work", fiber.StatusSeeOther)
}

// MethodOverride handles POST /work/:id for HTML forms, which can only
// submit GET and POST. The real method is taken from the _method field or
// the X-HTTP-Method-Override header.
func (s *Server) MethodOverride(c *fiber.Ctx) error {
	method := c.FormValue("_method")
	if method == "" {
		method = c.Get("X-HTTP-Method-Override")
	}

	switch strings.ToUpper(method) {
	case fiber.MethodPut, fiber.MethodPatch:
		return s.UpdatePost(c)
	case fiber.MethodDelete:
		return s.DeletePost(c)
	default:
		return fiber.NewError(fiber.StatusMethodNotAllowed, "Method Not Allowed")
	}
}
