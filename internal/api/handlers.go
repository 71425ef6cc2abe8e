package api

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/bilgisen/feedviewer/internal/config"
	"github.com/bilgisen/feedviewer/internal/feed"
	"github.com/bilgisen/feedviewer/internal/logger"
	"github.com/bilgisen/feedviewer/internal/middleware"
	"github.com/bilgisen/feedviewer/internal/render"
	"github.com/bilgisen/feedviewer/internal/viewer"
	"github.com/gofiber/fiber/v2"
)

// FeedQuery is the query of GET /api/v1/feed.
type FeedQuery struct {
	URL string `query:"url" validate:"max=2048"`
}

// FetchRequest is the body of POST /api/v1/viewer/fetch.
type FetchRequest struct {
	URL string `json:"url" form:"url" validate:"max=2048"`
}

type Handlers struct {
	config    *config.Config
	registry  *viewer.Registry
	retriever viewer.Retriever
	renderer  *render.Renderer
}

func NewHandlers(cfg *config.Config, registry *viewer.Registry, retriever viewer.Retriever, renderer *render.Renderer) *Handlers {
	return &Handlers{
		config:    cfg,
		registry:  registry,
		retriever: retriever,
		renderer:  renderer,
	}
}

func (h *Handlers) viewer(c *fiber.Ctx) *viewer.Viewer {
	return h.registry.Get(c.UserContext(), middleware.SessionID(c))
}

// HealthCheck handles the /health endpoint
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"viewers": h.registry.Len(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

// Index handles GET / and renders the session's viewer.
func (h *Handlers) Index(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, h.viewer(c).State()); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(buf.Bytes())
}

// TriggerFetch handles the form post of POST /fetch. The retrieval runs in
// the background; the page shows the loading state until it settles.
func (h *Handlers) TriggerFetch(c *fiber.Ctx) error {
	log := logger.Get()
	session := middleware.SessionID(c)

	v := h.viewer(c)
	v.SetURL(c.FormValue("url"))

	// Detached from the request, which ends with the redirect below.
	ctx, cancel := context.WithTimeout(context.Background(), h.config.FetchDeadline)
	done, err := v.Start(ctx)
	if err != nil {
		cancel()
		log.Debug().Err(err).Str("session", session).Msg("Fetch rejected")
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	go func() {
		defer cancel()
		if err := <-done; err != nil && !errors.Is(err, viewer.ErrStale) {
			log.Warn().
				Err(err).
				Str("session", session).
				Str("kind", feed.Kind(err)).
				Msg("Background fetch failed")
		}
	}()

	return c.Redirect("/", fiber.StatusSeeOther)
}

// GetFeed handles GET /api/v1/feed without touching any viewer.
func (h *Handlers) GetFeed(c *fiber.Ctx) error {
	q := middleware.Query[FeedQuery](c)

	items, err := h.retriever.Retrieve(c.UserContext(), q.URL)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": feed.UserMessage(err),
			"kind":  feed.Kind(err),
		})
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"total":  len(items),
		"items":  items,
	})
}

// GetViewer handles GET /api/v1/viewer
func (h *Handlers) GetViewer(c *fiber.Ctx) error {
	return c.JSON(h.viewer(c).State())
}

// FetchViewer handles POST /api/v1/viewer/fetch and waits for the outcome.
func (h *Handlers) FetchViewer(c *fiber.Ctx) error {
	req := middleware.Body[FetchRequest](c)

	v := h.viewer(c)
	v.SetURL(req.URL)

	ctx, cancel := context.WithTimeout(c.UserContext(), h.config.FetchDeadline)
	defer cancel()

	err := v.FetchFeed(ctx)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"state": v.State()})
	case errors.Is(err, viewer.ErrStale):
		// A newer fetch owns the state now.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"state": v.State(),
			"kind":  "superseded",
		})
	default:
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"state": v.State(),
			"kind":  feed.Kind(err),
		})
	}
}

// PurgeViewers handles DELETE /api/v1/admin/viewers
func (h *Handlers) PurgeViewers(c *fiber.Ctx) error {
	if err := h.registry.Purge(c.UserContext()); err != nil {
		logger.Get().Error().Err(err).Msg("Error purging viewers")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to purge viewers",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "purged",
		"message": "All viewer state dropped",
	})
}

func statusFor(err error) int {
	switch feed.Kind(err) {
	case feed.KindMissingURL:
		return fiber.StatusBadRequest
	case feed.KindUpstreamRejected:
		return fiber.StatusBadGateway
	case feed.KindNetworkFailure:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
