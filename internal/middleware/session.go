package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const localsSession = "sessionID"

// SessionConfig defines the config for the viewer session middleware
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// ViewerSession makes sure every request carries a viewer session id,
// issuing a new cookie when the client has none or a malformed one.
func ViewerSession(cfg SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(cfg.CookieName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		// Refreshed on every request so the cookie outlives idle gaps
		// shorter than the TTL.
		c.Cookie(&fiber.Cookie{
			Name:     cfg.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(cfg.TTL.Seconds()),
			HTTPOnly: true,
			Secure:   cfg.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		c.Locals(localsSession, id)
		return c.Next()
	}
}

// SessionID returns the id set by ViewerSession, or "".
func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsSession).(string)
	return id
}
