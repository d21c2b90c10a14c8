package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/auth"
	"github.com/rainfeed/backend/internal/feed"
	"github.com/rainfeed/backend/pkg/logger"
)

const historyLimit = 500

type FeedHandler struct {
	reader      *feed.Reader
	replenisher *feed.Replenisher
}

func NewFeedHandler(reader *feed.Reader, replenisher *feed.Replenisher) *FeedHandler {
	return &FeedHandler{
		reader:      reader,
		replenisher: replenisher,
	}
}

// HandleRead serves a page of the feed. Query params pick the mode: before
// pages backward, after and from page forward, none resumes from the saved
// position.
func (h *FeedHandler) HandleRead(c *fiber.Ctx) error {
	req := feed.ReadRequest{
		From:   c.Query("from"),
		After:  c.Query("after"),
		Before: c.Query("before"),
	}

	page, err := h.reader.Read(c.Context(), auth.UserID(c), req)
	if err != nil {
		if errors.Is(err, feed.ErrCursorNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Feed item not found",
			})
		}
		logger.Error("Failed to read feed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read feed",
		})
	}

	return c.JSON(page)
}

func (h *FeedHandler) HandleHistory(c *fiber.Ctx) error {
	page, err := h.reader.History(c.Context(), auth.UserID(c), historyLimit)
	if err != nil {
		logger.Error("Failed to read feed history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read feed history",
		})
	}
	return c.JSON(page)
}

// HandleReplenish refills the queue with freshly scored candidates.
func (h *FeedHandler) HandleReplenish(c *fiber.Ctx) error {
	outcome, err := h.replenisher.Replenish(c.Context(), auth.UserID(c))
	if err != nil {
		logger.Error("Failed to replenish feed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to replenish feed",
		})
	}
	return c.JSON(outcome)
}

// HandleReroll discards the unread tail of the feed and clears the queue.
func (h *FeedHandler) HandleReroll(c *fiber.Ctx) error {
	var req struct {
		FromFeedItemID string `json:"fromFeedItemId"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	result, err := h.reader.Reroll(c.Context(), auth.UserID(c), req.FromFeedItemID)
	if err != nil {
		if errors.Is(err, feed.ErrCursorNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Feed item not found",
			})
		}
		logger.Error("Failed to reroll feed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reroll feed",
		})
	}
	return c.JSON(result)
}

// HandlePosition saves (or clears) the reader's place in the feed.
func (h *FeedHandler) HandlePosition(c *fiber.Ctx) error {
	var req struct {
		FeedItemID *string `json:"feedItemId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.reader.SavePosition(c.Context(), auth.UserID(c), req.FeedItemID); err != nil {
		if errors.Is(err, feed.ErrCursorNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Feed item not found",
			})
		}
		logger.Error("Failed to save feed position", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save feed position",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
