package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/auth"
	"github.com/rainfeed/backend/internal/ingestion"
	"github.com/rainfeed/backend/internal/middleware/validation"
	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

type ArticleHandler struct {
	store     *sqlite.Store
	processor *ingestion.Processor
}

func NewArticleHandler(store *sqlite.Store, processor *ingestion.Processor) *ArticleHandler {
	return &ArticleHandler{
		store:     store,
		processor: processor,
	}
}

// HandleSave ingests a URL: fetch, chunk, persist. New articles land in
// cloud status and start feeding the user's candidate pool.
func (h *ArticleHandler) HandleSave(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !validation.ValidURL(req.URL) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A valid http(s) URL is required",
		})
	}

	article, err := h.processor.SaveArticle(c.Context(), auth.UserID(c), req.URL)
	if err != nil {
		logger.Error("Failed to save article", zap.String("url", req.URL), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch or process article",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(articleResponse(article))
}

func (h *ArticleHandler) HandleList(c *fiber.Ctx) error {
	articles, err := h.store.ListArticles(c.Context(), auth.UserID(c))
	if err != nil {
		logger.Error("Failed to list articles", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list articles",
		})
	}

	out := make([]fiber.Map, 0, len(articles))
	for i := range articles {
		out = append(out, articleResponse(&articles[i]))
	}
	return c.JSON(fiber.Map{"articles": out})
}

func (h *ArticleHandler) HandleGet(c *fiber.Ctx) error {
	article, err := h.store.ArticleByID(c.Context(), auth.UserID(c), c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Article not found",
			})
		}
		logger.Error("Failed to get article", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get article",
		})
	}
	return c.JSON(articleResponse(article))
}

// HandleText returns the article's full text, reassembled from its chunks
// in reading order.
func (h *ArticleHandler) HandleText(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	articleID := c.Params("id")

	if _, err := h.store.ArticleByID(c.Context(), userID, articleID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Article not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get article",
		})
	}

	text, err := h.processor.FullText(c.Context(), userID, articleID)
	if err != nil {
		logger.Error("Failed to assemble article text", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get article text",
		})
	}
	return c.JSON(fiber.Map{"text": text})
}

// HandleStatus moves an article between cloud, river, and ocean. Illegal
// transitions and unknown statuses are rejected.
func (h *ArticleHandler) HandleStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	target, err := models.ParseArticleStatus(req.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Status must be cloud, river, or ocean",
		})
	}

	userID := auth.UserID(c)
	article, err := h.store.ArticleByID(c.Context(), userID, c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Article not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get article",
		})
	}

	if article.Status != target {
		if !article.Status.CanTransition(target) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid status transition",
			})
		}
		if err := h.store.UpdateArticleStatus(c.Context(), userID, article.ID, target); err != nil {
			logger.Error("Failed to update article status", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update article",
			})
		}
	}

	return c.JSON(fiber.Map{"success": true, "status": string(target)})
}

func (h *ArticleHandler) HandleProgress(c *fiber.Ctx) error {
	var req struct {
		ReadingProgress *float64 `json:"readingProgress"`
		Notes           *string  `json:"notes"`
		Finished        *bool    `json:"finished"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	progress := 0.0
	if req.ReadingProgress != nil {
		progress = *req.ReadingProgress
		if progress < 0 || progress > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "readingProgress must be between 0 and 1",
			})
		}
	}

	userID := auth.UserID(c)
	if req.ReadingProgress == nil {
		article, err := h.store.ArticleByID(c.Context(), userID, c.Params("id"))
		if err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Article not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to get article",
			})
		}
		progress = article.ReadingProgress
	}

	err := h.store.UpdateArticleProgress(c.Context(), userID, c.Params("id"), progress, req.Notes, req.Finished)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Article not found",
			})
		}
		logger.Error("Failed to update article progress", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update article",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *ArticleHandler) HandleDelete(c *fiber.Ctx) error {
	err := h.store.DeleteArticle(c.Context(), auth.UserID(c), c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Article not found",
			})
		}
		logger.Error("Failed to delete article", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete article",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

func articleResponse(article *models.Article) fiber.Map {
	resp := fiber.Map{
		"id":              article.ID,
		"url":             article.URL,
		"title":           article.Title,
		"description":     article.Description,
		"imageUrl":        article.ImageURL,
		"gradientSeed":    article.GradientSeed,
		"status":          string(article.Status),
		"readingProgress": article.ReadingProgress,
		"notes":           article.Notes,
		"finished":        article.Finished,
		"createdAt":       article.CreatedAt.UTC().Format(time.RFC3339),
	}
	if article.MovedToRiverAt != nil {
		resp["movedToRiverAt"] = article.MovedToRiverAt.UTC().Format(time.RFC3339)
	}
	if article.MovedToOceanAt != nil {
		resp["movedToOceanAt"] = article.MovedToOceanAt.UTC().Format(time.RFC3339)
	}
	return resp
}
