package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	cache "github.com/rainfeed/backend/internal/cache/redis"
	"github.com/rainfeed/backend/pkg/logger"
	"github.com/rainfeed/backend/pkg/retry"
	"github.com/rainfeed/backend/pkg/utils"
)

const documentCacheTTL = 24 * time.Hour

// Client fetches article text as markdown through a reader proxy
// (r.jina.ai or compatible). Responses are cached by URL hash so saving the
// same article twice does not refetch.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	cache       *cache.Client
	retryConfig retry.Config
}

// NewClient builds a reader client. cacheClient may be nil; fetches then
// always go upstream.
func NewClient(baseURL string, timeout time.Duration, cacheClient *cache.Client) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheClient,
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   time.Second,
			MaxDelay:       10 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}
}

// FetchMarkdown returns the article body at url as markdown.
func (c *Client) FetchMarkdown(ctx context.Context, url string) (string, error) {
	urlHash := utils.HashString(url)

	if c.cache != nil {
		if markdown, ok, err := c.cache.GetDocument(ctx, urlHash); err != nil {
			logger.Warn("Document cache read failed", zap.Error(err))
		} else if ok {
			return markdown, nil
		}
	}

	var markdown string
	err := retry.Do(ctx, c.retryConfig, func() error {
		var err error
		markdown, err = c.fetch(ctx, url)
		return err
	})
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.SetDocument(ctx, urlHash, markdown, documentCacheTTL); err != nil {
			logger.Warn("Document cache write failed", zap.Error(err))
		}
	}

	logger.Info("Article fetched",
		zap.String("url", url),
		zap.Int("bytes", len(markdown)),
	)
	return markdown, nil
}

func (c *Client) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s", c.baseURL, url), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build reader request: %w", err)
	}
	req.Header.Set("Accept", "text/markdown")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reader returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read reader response: %w", err)
	}

	return stripReaderPreamble(string(body)), nil
}

// stripReaderPreamble drops the title/url header the reader proxy prepends,
// keeping only the body after the "Markdown Content:" marker.
func stripReaderPreamble(body string) string {
	const marker = "Markdown Content:\n"
	if idx := strings.Index(body, marker); idx >= 0 {
		return strings.TrimSpace(body[idx+len(marker):])
	}
	return strings.TrimSpace(body)
}
