package handlers

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/auth"
	"github.com/rainfeed/backend/internal/metrics"
	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

type RatingHandler struct {
	store *sqlite.Store
}

func NewRatingHandler(store *sqlite.Store) *RatingHandler {
	return &RatingHandler{store: store}
}

// HandleRate records the one-time rating for a shown chunk. The chunk must
// appear in the user's feed log, and a second rating gets 409. The feed
// item's predicted score and explore flag are snapshotted onto the rating so
// accuracy reporting survives later rerolls.
func (h *RatingHandler) HandleRate(c *fiber.Ctx) error {
	var req struct {
		Rating     int    `json:"rating"`
		Annotation string `json:"annotation"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Rating must be between 1 and 5",
		})
	}

	userID := auth.UserID(c)
	chunkID := c.Params("id")

	item, err := h.store.FeedItemByChunk(c.Context(), userID, chunkID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Chunk has not been shown in the feed",
			})
		}
		logger.Error("Failed to look up feed item", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record rating",
		})
	}

	rating := &models.Rating{
		ID:             uuid.NewString(),
		ChunkID:        chunkID,
		UserID:         userID,
		Rating:         req.Rating,
		Annotation:     req.Annotation,
		PredictedScore: &item.PredictedScore,
		WasExplore:     item.WasExplore,
		CreatedAt:      time.Now(),
	}

	if err := h.store.InsertRating(c.Context(), rating); err != nil {
		if errors.Is(err, sqlite.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Chunk already rated",
			})
		}
		logger.Error("Failed to insert rating", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record rating",
		})
	}

	metrics.RatingsTotal.WithLabelValues(strconv.FormatBool(item.WasExplore)).Inc()
	metrics.PredictionError.Observe(math.Abs(item.PredictedScore - float64(req.Rating)))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":             rating.ID,
		"chunkId":        rating.ChunkID,
		"rating":         rating.Rating,
		"annotation":     rating.Annotation,
		"predictedScore": item.PredictedScore,
		"wasExplore":     item.WasExplore,
	})
}

// HandleGet returns the existing rating for a chunk, if any.
func (h *RatingHandler) HandleGet(c *fiber.Ctx) error {
	rating, err := h.store.RatingByChunk(c.Context(), auth.UserID(c), c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Rating not found",
			})
		}
		logger.Error("Failed to get rating", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get rating",
		})
	}

	resp := fiber.Map{
		"id":         rating.ID,
		"chunkId":    rating.ChunkID,
		"rating":     rating.Rating,
		"annotation": rating.Annotation,
		"wasExplore": rating.WasExplore,
		"createdAt":  rating.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rating.PredictedScore != nil {
		resp["predictedScore"] = *rating.PredictedScore
	}
	return c.JSON(resp)
}
