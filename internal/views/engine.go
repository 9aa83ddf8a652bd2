// Package views renders the site's HTML pages from embedded templates.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"

	"portfolio/internal/models"
	"portfolio/internal/policy"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const defaultLayout = "layouts/main"

// Static returns the embedded static assets rooted at static/.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Engine implements fiber.Views over the embedded templates. Every page is
// parsed together with each layout so pages only define "title" and "content".
type Engine struct {
	mu    sync.RWMutex
	fs    fs.FS
	pages map[string]*template.Template
}

// New returns an engine over the embedded templates.
func New() *Engine {
	return NewFS(templateFS)
}

// NewFS returns an engine over fsys, which must contain a templates/ tree.
func NewFS(fsys fs.FS) *Engine {
	return &Engine{fs: fsys}
}

// Funcs available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"isAdmin":   func(u *models.User) bool { return u.IsAdmin() },
		"canMutate": policy.CanMutatePost,
		"fieldError": func(errs map[string][]string, field string) string {
			if msgs := errs[field]; len(msgs) > 0 {
				return msgs[0]
			}
			return ""
		},
		"old": func(old map[string]string, field string) string {
			return old[field]
		},
		"active": func(current, name string) string {
			if current == name {
				return "is-active"
			}
			return ""
		},
	}
}

// Load parses every layout and page. It is called once by fiber at startup.
func (e *Engine) Load() error {
	layouts, err := fs.Glob(e.fs, "templates/layouts/*.html")
	if err != nil {
		return err
	}
	if len(layouts) == 0 {
		return fmt.Errorf("views: no layouts found")
	}
	partials, err := fs.Glob(e.fs, "templates/partials/*.html")
	if err != nil {
		return err
	}

	pages := make(map[string]*template.Template)
	err = fs.WalkDir(e.fs, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" ||
			strings.HasPrefix(p, "templates/layouts/") || strings.HasPrefix(p, "templates/partials/") {
			return nil
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".html")

		for _, layout := range layouts {
			layoutName := strings.TrimSuffix(strings.TrimPrefix(layout, "templates/"), ".html")
			files := append([]string{layout}, partials...)
			files = append(files, p)
			tmpl, err := template.New(path.Base(layout)).Funcs(Funcs()).ParseFS(e.fs, files...)
			if err != nil {
				return fmt.Errorf("views: parse %s: %w", name, err)
			}
			pages[layoutName+":"+name] = tmpl
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.pages = pages
	e.mu.Unlock()
	return nil
}

// Render executes page name inside the given layout, or the main layout.
func (e *Engine) Render(w io.Writer, name string, binding interface{}, layout ...string) error {
	e.mu.RLock()
	pages := e.pages
	e.mu.RUnlock()

	if pages == nil {
		if err := e.Load(); err != nil {
			return err
		}
		e.mu.RLock()
		pages = e.pages
		e.mu.RUnlock()
	}

	layoutName := defaultLayout
	if len(layout) > 0 && layout[0] != "" {
		layoutName = layout[0]
	}

	tmpl, ok := pages[layoutName+":"+name]
	if !ok {
		return fmt.Errorf("views: template %q not found in layout %q", name, layoutName)
	}
	return tmpl.Execute(w, binding)
}
