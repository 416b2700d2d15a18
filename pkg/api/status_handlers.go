package api

import (
	"github.com/gofiber/fiber/v2"
)

// StatusFunc supplies the JSON payload for the status endpoint.
type StatusFunc func() interface{}

// RegisterStatusRoutes wires the health and status endpoints onto the app.
func RegisterStatusRoutes(app *fiber.App, serviceName string, statusFn StatusFunc) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": serviceName,
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	api := app.Group("/api")
	api.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   statusFn(),
		})
	})
}

// ErrorHandler is the shared fiber error handler: JSON body, proper code.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
