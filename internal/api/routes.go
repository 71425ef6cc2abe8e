package api

import (
	"time"

	"github.com/bilgisen/feedviewer/internal/config"
	"github.com/bilgisen/feedviewer/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp builds the fiber application with all routes mounted.
func NewApp(cfg *config.Config, handlers *Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		// Session ids and URLs outlive the request inside the registry.
		Immutable:             true,
		ReadTimeout:           cfg.HTTPTimeout,
		WriteTimeout:          cfg.HTTPTimeout,
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	SetupRoutes(app, handlers, cfg)
	return app
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, handlers *Handlers, cfg *config.Config) {
	session := middleware.ViewerSession(middleware.SessionConfig{
		CookieName: cfg.CookieName,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.Env == "production",
	})

	// Page
	app.Get("/", session, handlers.Index)
	app.Post("/fetch", session, handlers.TriggerFetch)

	// API group with versioning
	api := app.Group("/api/v1")

	// Health check endpoint
	api.Get("/health", handlers.HealthCheck)

	// Stateless retrieval
	api.Get("/feed", middleware.ValidateQuery[FeedQuery](), handlers.GetFeed)

	// Session viewer
	v := api.Group("/viewer", session)
	{
		v.Get("", handlers.GetViewer)
		v.Post("/fetch", middleware.ValidateBody[FetchRequest](), handlers.FetchViewer)
	}

	// Admin endpoints
	admin := api.Group("/admin", middleware.AdminOnly(cfg.AdminAPIKey))
	{
		admin.Delete("/viewers", handlers.PurgeViewers)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
