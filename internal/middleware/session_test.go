package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionApp() *fiber.App {
	app := fiber.New(fiber.Config{Immutable: true})
	app.Use(ViewerSession(SessionConfig{CookieName: "fv", TTL: time.Hour}))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(SessionID(c))
	})
	return app
}

func TestViewerSessionIssuesID(t *testing.T) {
	resp, err := newSessionApp().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "fv", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	_, err = uuid.Parse(cookies[0].Value)
	assert.NoError(t, err)
}

func TestViewerSessionKeepsValidID(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "fv", Value: id})

	resp, err := newSessionApp().Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, id, resp.Cookies()[0].Value)
}

func TestViewerSessionReplacesForgedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "fv", Value: "../../etc/passwd"})

	resp, err := newSessionApp().Test(req, -1)
	require.NoError(t, err)

	assert.NotEqual(t, "../../etc/passwd", resp.Cookies()[0].Value)
}

func TestAdminOnlyDisabledWithoutKey(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", AdminOnly(""), func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-API-Key", "")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
