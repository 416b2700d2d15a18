package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-handtrack/pipeline/pkg/log"
	"github.com/open-handtrack/pipeline/services"
)

// ConfigHandler holds dependencies for the configuration API endpoints.
type ConfigHandler struct {
	configService services.ConfigService
	logger        customlog.Logger
}

// RegisterConfigRoutes wires the configuration endpoints onto the app: GET
// returns the raw YAML on disk, PUT validates and persists a replacement.
func RegisterConfigRoutes(app *fiber.App, configService services.ConfigService, logger customlog.Logger) {
	h := &ConfigHandler{configService: configService, logger: logger}

	group := app.Group("/api/config")
	group.Get("/", h.handleGetConfig)
	group.Put("/", h.handleUpdateConfig)
}

func (h *ConfigHandler) handleGetConfig(c *fiber.Ctx) error {
	yamlData, err := h.configService.CurrentYAML()
	if err != nil {
		h.logger.Errorf("Failed to read config YAML: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

func (h *ConfigHandler) handleUpdateConfig(c *fiber.Ctx) error {
	newYAML := c.Body()
	if len(newYAML) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body cannot be empty.",
		})
	}

	if err := h.configService.Update(newYAML); err != nil {
		h.logger.Errorf("Failed to update configuration: %v", err)
		if errors.Is(err, services.ErrInvalidConfig) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Configuration update rejected: %v", err),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to persist configuration: %v", err),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Configuration updated. Transport settings take effect on restart.",
	})
}
