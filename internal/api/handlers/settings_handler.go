package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/auth"
	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

type SettingsHandler struct {
	store *sqlite.Store
}

func NewSettingsHandler(store *sqlite.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

func (h *SettingsHandler) HandleGet(c *fiber.Ctx) error {
	settings, err := h.store.GetOrCreateSettings(c.Context(), auth.UserID(c))
	if err != nil {
		logger.Error("Failed to get settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get settings",
		})
	}
	return c.JSON(settingsResponse(settings))
}

// HandleUpdate replaces the user's settings. Out-of-range values are clamped
// rather than rejected; the response shows what was actually stored.
func (h *SettingsHandler) HandleUpdate(c *fiber.Ctx) error {
	var req struct {
		ChunkSize         int     `json:"chunkSize"`
		ExploreRatio      float64 `json:"exploreRatio"`
		FeedBatchSize     int     `json:"feedBatchSize"`
		CandidatePoolSize int     `json:"candidatePoolSize"`
		ScoringBatchSize  int     `json:"scoringBatchSize"`
		NumFewShot        int     `json:"numFewShot"`
		ScoringModel      string  `json:"scoringModel"`
		ContextModel      string  `json:"contextModel"`
		ShowExploreFlag   bool    `json:"showExploreFlag"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	settings, err := h.store.UpdateSettings(c.Context(), models.Settings{
		UserID:            auth.UserID(c),
		ChunkSize:         req.ChunkSize,
		ExploreRatio:      req.ExploreRatio,
		FeedBatchSize:     req.FeedBatchSize,
		CandidatePoolSize: req.CandidatePoolSize,
		ScoringBatchSize:  req.ScoringBatchSize,
		NumFewShot:        req.NumFewShot,
		ScoringModel:      req.ScoringModel,
		ContextModel:      req.ContextModel,
		ShowExploreFlag:   req.ShowExploreFlag,
	})
	if err != nil {
		logger.Error("Failed to update settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update settings",
		})
	}
	return c.JSON(settingsResponse(settings))
}

func settingsResponse(settings *models.Settings) fiber.Map {
	return fiber.Map{
		"chunkSize":         settings.ChunkSize,
		"exploreRatio":      settings.ExploreRatio,
		"feedBatchSize":     settings.FeedBatchSize,
		"candidatePoolSize": settings.CandidatePoolSize,
		"scoringBatchSize":  settings.ScoringBatchSize,
		"numFewShot":        settings.NumFewShot,
		"scoringModel":      settings.ScoringModel,
		"contextModel":      settings.ContextModel,
		"showExploreFlag":   settings.ShowExploreFlag,
	}
}
