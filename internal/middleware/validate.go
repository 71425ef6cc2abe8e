package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bilgisen/feedviewer/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const (
	localsBody  = "validated"
	localsQuery = "queryParams"
)

var validate = validator.New()

// ValidateBody parses the request body into a fresh T per request,
// validates it and stores it for Body.
func ValidateBody[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(T)
		if err := c.BodyParser(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
				"msg":   err.Error(),
			})
		}

		if fields, ok := validationFields(validate.Struct(req)); !ok {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "Validation failed",
				"fields": fields,
			})
		}

		c.Locals(localsBody, req)
		return c.Next()
	}
}

// ValidateQuery is ValidateBody for query parameters.
func ValidateQuery[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(T)
		if err := c.QueryParser(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid query parameters",
				"msg":   err.Error(),
			})
		}

		if fields, ok := validationFields(validate.Struct(req)); !ok {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "Invalid query parameters",
				"fields": fields,
			})
		}

		c.Locals(localsQuery, req)
		return c.Next()
	}
}

// Body returns the value stored by ValidateBody.
func Body[T any](c *fiber.Ctx) *T {
	v, _ := c.Locals(localsBody).(*T)
	return v
}

// Query returns the value stored by ValidateQuery.
func Query[T any](c *fiber.Ctx) *T {
	v, _ := c.Locals(localsQuery).(*T)
	return v
}

func validationFields(err error) (map[string]string, bool) {
	if err == nil {
		return nil, true
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	} else {
		fields["_"] = err.Error()
	}
	return fields, false
}

// ErrorHandler is the application wide fiber error handler. API routes
// get JSON, everything else plain text.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// Default status code
	code := fiber.StatusInternalServerError

	// Check if it's a fiber error
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	// Log the error
	logger.Get().Error().
		Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", code).
		Msg("HTTP error")

	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(code).JSON(fiber.Map{
			"error": http.StatusText(code),
		})
	}
	return c.Status(code).SendString(http.StatusText(code))
}
