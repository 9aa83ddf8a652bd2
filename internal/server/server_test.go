package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"portfolio/internal/models"
	"portfolio/internal/service"
	"portfolio/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)

	srv, err := NewServerWithDeps(testutil.TestConfig(), db, rdb)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.App(), db: db, mr: mr}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, string(body)
}

// login signs user in and returns the session cookie and bearer token.
func (e *testEnv) login(t *testing.T, email string) (*http.Cookie, string) {
	t.Helper()
	res, err := e.srv.authService.Login(context.Background(), service.LoginInput{Email: email, Password: "password"}, "")
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookie, Value: res.Session.ID}, res.Token
}

func formRequest(method, target string, values url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func jsonRequest(method, target string, body any, token string) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func getRequest(target string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func responseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v), body)
	return v
}

func TestPublicPages(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", "<!DOCTYPE html>"},
		{"/me", "<!DOCTYPE html>"},
		{"/contacts", "<!DOCTYPE html>"},
		{"/research", "<!DOCTYPE html>"},
		{"/work", "Nothing here yet."},
		{"/login", `action="/login"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := env.do(t, getRequest(tt.path))
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, body, tt.want)
			assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
			assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, getRequest("/nowhere"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "404")

	resp, _ = env.do(t, jsonRequest(http.MethodGet, "/nowhere", nil, ""))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "json")
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, getRequest("/static/css/site.css"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, ".navbar")
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, getRequest("/health/live"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, getRequest("/health/ready"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", ready["status"])

	env.mr.Close()
	resp, body = env.do(t, getRequest("/health/ready"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	ready = decode[map[string]any](t, body)
	assert.Equal(t, "unhealthy", ready["checks"].(map[string]any)["redis"])
}

func TestHealthChecks_DatabaseSessions(t *testing.T) {
	srv, err := NewServerWithDeps(testutil.TestConfig(), testutil.NewTestDB(t), nil)
	require.NoError(t, err)

	resp, err := srv.App().Test(getRequest("/health/ready"), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServerWithDeps_RequiresDatabase(t *testing.T) {
	_, err := NewServerWithDeps(testutil.TestConfig(), nil, nil)
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, getRequest("/"))
	resp, body := env.do(t, getRequest("/metrics"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "http_requests_total")
}

func TestWantsJSON(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if wantsJSON(c) {
			return c.SendString("json")
		}
		return c.SendString("html")
	})

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"browser", map[string]string{"Accept": "text/html,application/xhtml+xml"}, "html"},
		{"json accept", map[string]string{"Accept": "application/json"}, "json"},
		{"vendor json", map[string]string{"Accept": "application/vnd.api+json"}, "json"},
		{"xhr", map[string]string{"X-Requested-With": "XMLHttpRequest"}, "json"},
		{"none", nil, "html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	assert.True(t, safeRedirect("/work/create"))
	assert.True(t, safeRedirect("/work?page=2"))
	assert.False(t, safeRedirect(""))
	assert.False(t, safeRedirect("https://evil.example"))
	assert.False(t, safeRedirect("//evil.example"))
	assert.False(t, safeRedirect(`/\evil.example`))
	assert.False(t, safeRedirect("work"))
}

func TestFlashIsShownOnce(t *testing.T) {
	env := newTestEnv(t)

	flash := &http.Cookie{Name: flashCookie, Value: url.QueryEscape("Post created successfully!")}
	resp, body := env.do(t, getRequest("/work", flash))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Post created successfully!")

	cleared := responseCookie(resp, flashCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestSessionMiddleware_UnknownCookieIsCleared(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, getRequest("/", &http.Cookie{Name: sessionCookie, Value: "stale"}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `href="/login"`)

	cleared := responseCookie(resp, sessionCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestSessionMiddleware_BearerAndCookie(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "user@example.com", "password", models.RoleUser)
	cookie, token := env.login(t, user.Email)

	resp, body := env.do(t, jsonRequest(http.MethodGet, "/dashboard", nil, token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]map[string]any](t, body)
	assert.Equal(t, user.Email, got["user"]["email"])

	resp, body = env.do(t, getRequest("/dashboard", cookie))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "You are logged in as user (user@example.com).")

	resp, _ = env.do(t, jsonRequest(http.MethodGet, "/dashboard", nil, "garbage"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionMiddleware_StoreDownServesPublicPages(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "user@example.com", "password", models.RoleUser)
	cookie, token := env.login(t, user.Email)

	env.mr.Close()

	resp, body := env.do(t, getRequest("/work", cookie))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `href="/login"`)

	resp, _ = env.do(t, getRequest("/dashboard", cookie))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = env.do(t, jsonRequest(http.MethodGet, "/work", nil, token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, jsonRequest(http.MethodDelete, "/work/1", nil, token))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
