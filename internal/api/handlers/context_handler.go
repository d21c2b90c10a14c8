package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/auth"
	cache "github.com/rainfeed/backend/internal/cache/redis"
	"github.com/rainfeed/backend/internal/scoring"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

const contextCacheTTL = 7 * 24 * time.Hour

// ContextHandler locates a feed chunk inside its source document: one
// sentence of placement plus a document outline, generated by the LLM.
type ContextHandler struct {
	store  *sqlite.Store
	scorer *scoring.Client
	cache  *cache.Client
}

// NewContextHandler builds the handler. cacheClient may be nil.
func NewContextHandler(store *sqlite.Store, scorer *scoring.Client, cacheClient *cache.Client) *ContextHandler {
	return &ContextHandler{
		store:  store,
		scorer: scorer,
		cache:  cacheClient,
	}
}

// HandleGenerate produces the context summary in one shot.
func (h *ContextHandler) HandleGenerate(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	chunkID := c.Params("id")

	if h.cache != nil {
		if cached, ok, err := h.cache.GetContext(c.Context(), chunkID); err == nil && ok {
			return c.JSON(fiber.Map{"context": cached, "cached": true})
		}
	}

	chunkText, fullDocument, model, err := h.load(c.Context(), userID, chunkID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Chunk not found",
			})
		}
		logger.Error("Failed to load chunk context inputs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate context",
		})
	}

	generated, err := h.scorer.GenerateContext(c.Context(), chunkText, fullDocument, model)
	if err != nil {
		logger.Error("Failed to generate context", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Context generation unavailable",
		})
	}

	if h.cache != nil {
		if err := h.cache.SetContext(c.Context(), chunkID, generated, contextCacheTTL); err != nil {
			logger.Warn("Context cache write failed", zap.Error(err))
		}
	}
	return c.JSON(fiber.Map{"context": generated, "cached": false})
}

// HandleStream serves the same summary over a websocket, one delta per
// message, for progressive rendering.
func (h *ContextHandler) HandleStream(c *websocket.Conn) {
	defer c.Close()

	userID, _ := c.Locals(auth.LocalUserID).(string)
	if userID == "" {
		h.send(c, "error", "Authentication required")
		return
	}

	for {
		var msg struct {
			Type    string `json:"type"`
			ChunkID string `json:"chunkId"`
		}
		if err := c.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type != "context" || msg.ChunkID == "" {
			continue
		}

		if err := h.stream(c, userID, msg.ChunkID); err != nil {
			logger.Error("Failed to stream context", zap.Error(err))
			h.send(c, "error", "Failed to generate context")
		}
	}
}

func (h *ContextHandler) stream(c *websocket.Conn, userID, chunkID string) error {
	ctx := context.Background()

	if h.cache != nil {
		if cached, ok, err := h.cache.GetContext(ctx, chunkID); err == nil && ok {
			if err := h.send(c, "chunk", cached); err != nil {
				return err
			}
			return h.send(c, "complete", "")
		}
	}

	chunkText, fullDocument, model, err := h.load(ctx, userID, chunkID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return h.send(c, "error", "Chunk not found")
		}
		return err
	}

	var full strings.Builder
	err = h.scorer.StreamContext(ctx, chunkText, fullDocument, model, func(delta string) error {
		full.WriteString(delta)
		return h.send(c, "chunk", delta)
	})
	if err != nil {
		return err
	}

	if h.cache != nil && full.Len() > 0 {
		if err := h.cache.SetContext(ctx, chunkID, full.String(), contextCacheTTL); err != nil {
			logger.Warn("Context cache write failed", zap.Error(err))
		}
	}
	return h.send(c, "complete", "")
}

func (h *ContextHandler) load(ctx context.Context, userID, chunkID string) (chunkText, fullDocument, model string, err error) {
	chunk, err := h.store.ChunkByID(ctx, userID, chunkID)
	if err != nil {
		return "", "", "", err
	}

	siblings, err := h.store.ChunksByArticle(ctx, userID, chunk.ArticleID)
	if err != nil {
		return "", "", "", err
	}
	parts := make([]string, 0, len(siblings))
	for _, sibling := range siblings {
		parts = append(parts, sibling.Content)
	}

	settings, err := h.store.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return "", "", "", err
	}

	return chunk.Content, strings.Join(parts, "\n\n"), settings.ContextModel, nil
}

func (h *ContextHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(fiber.Map{"type": msgType, "content": content})
}
