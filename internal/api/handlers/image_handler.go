package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/images"
	"github.com/rainfeed/backend/pkg/logger"
)

type ImageHandler struct {
	client *images.Client
}

func NewImageHandler(client *images.Client) *ImageHandler {
	return &ImageHandler{client: client}
}

// HandleGenerate renders the cover image for a seed. The prompt is
// deterministic per seed, so retries reproduce the same artwork.
func (h *ImageHandler) HandleGenerate(c *fiber.Ctx) error {
	var req struct {
		Seed *int64 `json:"seed"`
	}

	if err := c.BodyParser(&req); err != nil || req.Seed == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Seed is required and must be a number",
		})
	}

	if h.client == nil || !h.client.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Image generation not configured",
		})
	}

	imageURL, err := h.client.Generate(c.Context(), *req.Seed)
	if err != nil {
		logger.Error("Failed to generate image", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to generate image",
		})
	}

	return c.JSON(fiber.Map{
		"imageUrl": imageURL,
		"prompt":   images.GeneratePrompt(*req.Seed),
	})
}
