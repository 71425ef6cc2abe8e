package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/feedviewer/internal/cache"
	"github.com/bilgisen/feedviewer/internal/config"
	"github.com/bilgisen/feedviewer/internal/feed"
	"github.com/bilgisen/feedviewer/internal/models"
	"github.com/bilgisen/feedviewer/internal/render"
	"github.com/bilgisen/feedviewer/internal/viewer"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	mu    sync.Mutex
	calls []string
	fn    func(url string) ([]models.FeedItem, error)
}

func (s *stubRetriever) Retrieve(ctx context.Context, feedURL string) ([]models.FeedItem, error) {
	s.mu.Lock()
	s.calls = append(s.calls, feedURL)
	s.mu.Unlock()
	if strings.TrimSpace(feedURL) == "" {
		return nil, feed.ErrMissingURL
	}
	return s.fn(feedURL)
}

func (s *stubRetriever) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testConfig() *config.Config {
	cfg := config.FromEnv()
	cfg.AdminAPIKey = "admin-secret"
	cfg.FetchDeadline = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T, retriever viewer.Retriever) *fiber.App {
	t.Helper()
	cfg := testConfig()

	renderer, err := render.New(time.UTC)
	require.NoError(t, err)

	registry := viewer.NewRegistry(retriever, cache.NewMemoryStore(), time.Hour, zerolog.Nop())
	return NewApp(cfg, NewHandlers(cfg, registry, retriever, renderer))
}

func helloFeed(string) ([]models.FeedItem, error) {
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.FeedItem{{
		Title:       "Hello",
		Link:        "https://example.com/1",
		PublishDate: &published,
		Description: "<p>Hi</p>",
	}}, nil
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "feedviewer_id" {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t, &stubRetriever{fn: helloFeed})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"status":"ok"`)
}

func TestIndexRendersEmptyViewer(t *testing.T) {
	app := newTestApp(t, &stubRetriever{fn: helloFeed})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fiber.MIMETextHTMLCharsetUTF8, resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, sessionCookie(t, resp).Value)

	body := readBody(t, resp)
	assert.Contains(t, body, "RSS Feed Viewer")
	assert.NotContains(t, body, "<article")
}

func TestFormFetchFlow(t *testing.T) {
	retriever := &stubRetriever{fn: helloFeed}
	app := newTestApp(t, retriever)

	form := url.Values{"url": {"https://example.com/feed.xml"}}
	req := httptest.NewRequest(http.MethodPost, "/fetch", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	cookie := sessionCookie(t, resp)

	var state viewer.ViewState
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/viewer", nil)
		req.AddCookie(cookie)
		resp, err := app.Test(req, -1)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			return false
		}
		return !state.IsLoading && len(state.Items) > 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "https://example.com/feed.xml", state.URL)
	assert.Empty(t, state.ErrorMessage)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)

	body := readBody(t, resp)
	assert.Equal(t, 1, strings.Count(body, "<article"))
	assert.Contains(t, body, ">Hello</a>")
	assert.Contains(t, body, "<p>Hi</p>")
	assert.Contains(t, body, "Jan 1, 2024 12:00 AM")
}

func TestFormFetchEmptyURL(t *testing.T) {
	retriever := &stubRetriever{fn: helloFeed}
	app := newTestApp(t, retriever)

	req := httptest.NewRequest(http.MethodPost, "/fetch", strings.NewReader("url=+++"))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	cookie := sessionCookie(t, resp)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)

	assert.Contains(t, readBody(t, resp), "Please enter a RSS feed URL")
	assert.Equal(t, 0, retriever.callCount())
}

func TestViewerFetchAPI(t *testing.T) {
	app := newTestApp(t, &stubRetriever{fn: helloFeed})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/viewer/fetch",
		strings.NewReader(`{"url":"https://example.com/feed.xml"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		State viewer.ViewState `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.State.Items, 1)
	assert.Equal(t, "Hello", body.State.Items[0].Title)
	assert.False(t, body.State.IsLoading)
}

func TestViewerFetchAPIUpstreamRejected(t *testing.T) {
	app := newTestApp(t, &stubRetriever{fn: func(string) ([]models.FeedItem, error) {
		return nil, &feed.UpstreamError{Status: "error", Message: "invalid"}
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/viewer/fetch",
		strings.NewReader(`{"url":"https://example.com/broken"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body struct {
		State viewer.ViewState `json:"state"`
		Kind  string           `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, feed.KindUpstreamRejected, body.Kind)
	assert.Empty(t, body.State.Items)
	assert.Equal(t, "Could not fetch RSS feed. Please check the URL and try again.", body.State.ErrorMessage)
}

func TestGetFeed(t *testing.T) {
	retriever := &stubRetriever{fn: func(u string) ([]models.FeedItem, error) {
		switch u {
		case "https://example.com/feed.xml":
			return helloFeed(u)
		default:
			return nil, feed.ErrNetworkFailure
		}
	}}
	app := newTestApp(t, retriever)

	tests := []struct {
		name   string
		query  string
		status int
		want   string
	}{
		{"ok", "?url=" + url.QueryEscape("https://example.com/feed.xml"), http.StatusOK, `"title":"Hello"`},
		{"missing", "", http.StatusBadRequest, `"kind":"missing_url"`},
		{"network", "?url=https%3A%2F%2Fdown.example.com", http.StatusServiceUnavailable, `"kind":"network_failure"`},
		{"too long", "?url=" + strings.Repeat("a", 3000), http.StatusUnprocessableEntity, `"URL":"max"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/feed"+tt.query, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, readBody(t, resp), tt.want)
		})
	}
}

func TestPurgeViewersRequiresAdminKey(t *testing.T) {
	app := newTestApp(t, &stubRetriever{fn: helloFeed})

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/viewers", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/viewers", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/admin/viewers", nil)
	req.Header.Set("X-API-Key", "admin-secret")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, &stubRetriever{fn: helloFeed})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
