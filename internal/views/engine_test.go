package views

import (
	"bytes"
	"io"
	"testing"
	"testing/fstest"

	"portfolio/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ fiber.Views = (*Engine)(nil)

func render(t *testing.T, e *Engine, name string, data fiber.Map) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, name, data))
	return buf.String()
}

func baseData(user *models.User) fiber.Map {
	return fiber.Map{"User": user, "Year": 2024}
}

func TestEngine_LoadsEveryPage(t *testing.T) {
	e := New()
	require.NoError(t, e.Load())

	for _, name := range []string{"welcome", "work", "me", "contacts", "research", "login", "error"} {
		out := render(t, e, name, baseData(nil))
		assert.Contains(t, out, "<!DOCTYPE html>", name)
		assert.Contains(t, out, `href="/login"`, name)
	}
}

func TestEngine_WorkListing(t *testing.T) {
	e := New()
	d, _ := models.ParseDate("2023-06-28")
	posts := []*models.Post{{ID: 3, Title: "<Cloud migration>", Date: d, Description: "Moved things"}}

	data := baseData(nil)
	data["Posts"] = posts
	out := render(t, e, "work", data)
	assert.Contains(t, out, `href="/work/3"`)
	assert.Contains(t, out, "&lt;Cloud migration&gt;")
	assert.Contains(t, out, "Happened at: 2023-06-28")
	assert.NotContains(t, out, "/work/create")

	data = baseData(&models.User{ID: 1, Role: models.RoleAdmin})
	data["Posts"] = posts
	out = render(t, e, "work", data)
	assert.Contains(t, out, "/work/create")
	assert.Contains(t, out, `action="/logout"`)

	data["Posts"] = nil
	assert.Contains(t, render(t, e, "work", data), "Nothing here yet.")
}

func TestEngine_ShowButtons(t *testing.T) {
	e := New()
	post := &models.Post{ID: 9, Title: "Post", UserID: 2}

	tests := []struct {
		name    string
		user    *models.User
		buttons bool
	}{
		{"anonymous", nil, false},
		{"stranger", &models.User{ID: 3, Role: models.RoleUser}, false},
		{"owner", &models.User{ID: 2, Role: models.RoleUser}, true},
		{"admin", &models.User{ID: 1, Role: models.RoleAdmin}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := baseData(tt.user)
			data["Post"] = post
			out := render(t, e, "posts/show", data)
			assert.Equal(t, tt.buttons, bytes.Contains([]byte(out), []byte("/work/9/edit")))
			assert.Equal(t, tt.buttons, bytes.Contains([]byte(out), []byte("/work/9/delete")))
		})
	}
}

func TestEngine_FormErrorsAndOldInput(t *testing.T) {
	e := New()
	data := baseData(&models.User{ID: 1, Role: models.RoleAdmin})
	data["Errors"] = map[string][]string{"title": {"The title field is required."}}
	data["Old"] = map[string]string{"date": "2020-01-01", "description": "kept"}

	out := render(t, e, "posts/create", data)
	assert.Contains(t, out, "The title field is required.")
	assert.Contains(t, out, `value="2020-01-01"`)
	assert.Contains(t, out, ">kept</textarea>")

	data["Post"] = &models.Post{ID: 4, Title: "Old title"}
	out = render(t, e, "posts/edit", data)
	assert.Contains(t, out, `name="_method" value="PUT"`)
	assert.Contains(t, out, `action="/work/4"`)

	out = render(t, e, "posts/delete", data)
	assert.Contains(t, out, `name="_method" value="DELETE"`)
}

func TestEngine_Flash(t *testing.T) {
	data := baseData(nil)
	data["Flash"] = "Post created successfully!"
	assert.Contains(t, render(t, New(), "welcome", data), "Post created successfully!")
}

func TestEngine_Errors(t *testing.T) {
	e := New()
	assert.Error(t, e.Render(io.Discard, "missing", nil))
	assert.Error(t, e.Render(io.Discard, "welcome", baseData(nil), "layouts/none"))

	empty := NewFS(fstest.MapFS{"templates/page.html": {Data: []byte("x")}})
	assert.Error(t, empty.Load())

	broken := NewFS(fstest.MapFS{
		"templates/layouts/main.html": {Data: []byte(`{{template "content" .}}`)},
		"templates/bad.html":          {Data: []byte(`{{define "content"}}{{.Foo`)},
	})
	assert.Error(t, broken.Load())
}

func TestStatic(t *testing.T) {
	f, err := Static().Open("/css/site.css")
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(b), ".navbar")
}
