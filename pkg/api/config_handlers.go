package api

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/haptic-link/controller/pkg/log"
	"github.com/haptic-link/controller/services"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	configService services.HapticConfigService
	logger        customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(configService services.HapticConfigService, logger customlog.Logger) *ConfigHandler {
	if configService == nil {
		panic("ConfigService cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// RegisterConfigRoutes registers the configuration API endpoints with the Fiber app.
func RegisterConfigRoutes(app *fiber.App, configService services.HapticConfigService, logger customlog.Logger) {
	h := NewConfigHandler(configService, logger)

	apiGroup := app.Group("/api/v1/config")

	apiGroup.Get("/haptic", h.handleGetHapticConfig)
	apiGroup.Put("/haptic", h.handleUpdateHapticConfig)

	logger.Infof("Registered haptic configuration API endpoints under /api/v1/config")
}

// handleGetHapticConfig handles GET requests for the current config YAML.
func (h *ConfigHandler) handleGetHapticConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config/haptic")

	yamlData, err := h.configService.GetCurrentConfigYAML()
	if err != nil {
		h.logger.Errorf("Failed to get current haptic config YAML: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

// handleUpdateHapticConfig handles PUT requests to replace the config YAML.
func (h *ConfigHandler) handleUpdateHapticConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling PUT request for /api/v1/config/haptic")

	newConfigYAML := c.Body()
	if len(newConfigYAML) == 0 {
		h.logger.Errorf("Received empty body in PUT request for haptic config update.")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body cannot be empty.",
		})
	}

	if err := h.configService.UpdateConfig(newConfigYAML); err != nil {
		h.logger.Errorf("Failed to update haptic configuration: %v", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Configuration update failed: %v", err),
		})
	}

	h.logger.Infof("Successfully processed PUT request to update haptic configuration.")
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Haptic configuration updated successfully.",
	})
}
