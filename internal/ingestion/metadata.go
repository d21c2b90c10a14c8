package ingestion

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/pkg/logger"
)

type Metadata struct {
	Title       string
	Description string
	ImageURL    string
}

var metadataClient = &http.Client{Timeout: 10 * time.Second}

// FetchMetadata pulls title, description, and preview image from the page's
// Open Graph tags, falling back to standard HTML tags. Failures are logged
// and return empty metadata; a missing title never blocks a save.
func FetchMetadata(ctx context.Context, url string) Metadata {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metadata{}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; rainfeed/1.0)")

	resp, err := metadataClient.Do(req)
	if err != nil {
		logger.Debug("Metadata fetch failed", zap.String("url", url), zap.Error(err))
		return Metadata{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		logger.Debug("Metadata parse failed", zap.String("url", url), zap.Error(err))
		return Metadata{}
	}

	return parseMetadata(doc)
}

func parseMetadata(doc *goquery.Document) Metadata {
	meta := Metadata{
		Title:       metaProperty(doc, "og:title"),
		Description: metaProperty(doc, "og:description"),
		ImageURL:    metaProperty(doc, "og:image"),
	}

	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Description == "" {
		meta.Description, _ = doc.Find(`meta[name="description"]`).First().Attr("content")
		meta.Description = strings.TrimSpace(meta.Description)
	}
	return meta
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}
