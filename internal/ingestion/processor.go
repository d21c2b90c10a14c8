package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/fetcher"
	"github.com/rainfeed/backend/internal/metrics"
	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
	"github.com/rainfeed/backend/pkg/utils"
)

// ImageGenerator produces a cover image URL for an article. Implementations
// may fail or be absent; articles render with a seeded gradient either way.
type ImageGenerator interface {
	Generate(ctx context.Context, seed int64) (string, error)
}

// Processor turns a saved URL into an article with reading chunks: fetch the
// markdown, grab page metadata, split into word-bounded chunks, persist.
type Processor struct {
	store   *sqlite.Store
	fetcher *fetcher.Client
	images  ImageGenerator
}

// NewProcessor builds the ingestion pipeline. images may be nil.
func NewProcessor(store *sqlite.Store, fetcherClient *fetcher.Client, images ImageGenerator) *Processor {
	return &Processor{
		store:   store,
		fetcher: fetcherClient,
		images:  images,
	}
}

// SaveArticle ingests url for the user and returns the stored article. New
// articles start in cloud status, immediately feeding the candidate pool.
func (p *Processor) SaveArticle(ctx context.Context, userID, url string) (*models.Article, error) {
	logger.Info("Saving article", zap.String("url", url), zap.String("user_id", userID))

	markdown, err := p.fetcher.FetchMarkdown(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article: %w", err)
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, fmt.Errorf("no content extracted from %s", url)
	}

	settings, err := p.store.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	meta := FetchMetadata(ctx, url)
	if meta.Title == "" {
		meta.Title = titleFromMarkdown(markdown, url)
	}

	seed := utils.URLToSeed(url)
	imageURL := ""
	if p.images != nil {
		imageURL, err = p.images.Generate(ctx, seed)
		if err != nil {
			logger.Warn("Cover image generation failed", zap.Error(err))
			imageURL = ""
		}
	}
	if imageURL == "" {
		imageURL = meta.ImageURL
	}

	article := &models.Article{
		ID:           uuid.NewString(),
		UserID:       userID,
		URL:          url,
		Title:        meta.Title,
		Description:  meta.Description,
		ImageURL:     imageURL,
		GradientSeed: seed,
		Status:       models.StatusCloud,
		CreatedAt:    time.Now(),
	}
	if err := p.store.InsertArticle(ctx, article); err != nil {
		return nil, err
	}

	pieces := ChunkText(markdown, settings.ChunkSize)
	now := time.Now()
	chunks := make([]models.Chunk, 0, len(pieces))
	for i, content := range pieces {
		chunks = append(chunks, models.Chunk{
			ID:         uuid.NewString(),
			ArticleID:  article.ID,
			UserID:     userID,
			ChunkIndex: i,
			Content:    content,
			WordCount:  wordCount(content),
			CreatedAt:  now,
		})
	}
	if err := p.store.InsertChunks(ctx, chunks); err != nil {
		return nil, err
	}

	metrics.ArticlesIngested.Inc()
	metrics.ChunksIngested.Add(float64(len(chunks)))
	logger.Info("Article ingested",
		zap.String("article_id", article.ID),
		zap.Int("chunks", len(chunks)),
	)
	return article, nil
}

// FullText reassembles an article's chunks in order, for contextualization
// and focused reading.
func (p *Processor) FullText(ctx context.Context, userID, articleID string) (string, error) {
	chunks, err := p.store.ChunksByArticle(ctx, userID, articleID)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, chunk.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// titleFromMarkdown takes the first heading, or the bare host as a last
// resort.
func titleFromMarkdown(markdown, url string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}

	title := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	if idx := strings.IndexByte(title, '/'); idx > 0 {
		title = title[:idx]
	}
	return title
}
