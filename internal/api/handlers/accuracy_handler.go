package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/accuracy"
	"github.com/rainfeed/backend/internal/auth"
	"github.com/rainfeed/backend/pkg/logger"
)

type AccuracyHandler struct {
	reporter *accuracy.Reporter
}

func NewAccuracyHandler(reporter *accuracy.Reporter) *AccuracyHandler {
	return &AccuracyHandler{reporter: reporter}
}

// HandleReport returns prediction accuracy split by explore and exploit,
// with a per-day timeline.
func (h *AccuracyHandler) HandleReport(c *fiber.Ctx) error {
	report, err := h.reporter.Report(c.Context(), auth.UserID(c))
	if err != nil {
		logger.Error("Failed to build accuracy report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build accuracy report",
		})
	}
	return c.JSON(report)
}
