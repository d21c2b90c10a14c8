package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/metrics"
	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

var ErrCursorNotFound = errors.New("cursor feed item not found")

// Item is a feed log entry joined with its chunk and article for rendering.
type Item struct {
	FeedItemID     string    `json:"feedItemId"`
	ChunkID        string    `json:"chunkId"`
	ArticleID      string    `json:"articleId"`
	ArticleTitle   string    `json:"articleTitle"`
	ArticleURL     string    `json:"articleUrl"`
	ChunkIndex     int       `json:"chunkIndex"`
	Content        string    `json:"content"`
	PredictedScore float64   `json:"predictedScore"`
	WasExplore     bool      `json:"wasExplore"`
	ShownAt        time.Time `json:"shownAt"`
	Position       int64     `json:"position"`
}

type Page struct {
	Items           []Item `json:"items"`
	HasMore         bool   `json:"hasMore"`
	HasBefore       bool   `json:"hasBefore"`
	ShowExploreFlag bool   `json:"showExploreFlag"`
}

// HistoryPage carries the shown-item log plus the saved cursor so clients can
// scroll to where the reader left off.
type HistoryPage struct {
	Items            []Item  `json:"items"`
	ResumeFeedItemID *string `json:"resumeFeedItemId"`
	ShowExploreFlag  bool    `json:"showExploreFlag"`
}

// ReadRequest selects one pagination mode. Before wins over After, After
// over From; all empty means resume from the saved position.
type ReadRequest struct {
	From   string
	After  string
	Before string
}

// Reader serves pages from the append-only feed log. Forward reads that come
// up short are topped up by promoting queue entries into fresh positions at
// the tail.
type Reader struct {
	store *sqlite.Store
}

func NewReader(store *sqlite.Store) *Reader {
	return &Reader{store: store}
}

func (r *Reader) Read(ctx context.Context, userID string, req ReadRequest) (*Page, error) {
	settings, err := r.store.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := settings.FeedBatchSize

	if req.Before != "" {
		page, err := r.readBefore(ctx, userID, req.Before, limit)
		if err != nil {
			return nil, err
		}
		page.ShowExploreFlag = settings.ShowExploreFlag
		return page, nil
	}

	var rows []models.FeedItem
	switch {
	case req.After != "":
		anchor, err := r.anchor(ctx, userID, req.After)
		if err != nil {
			return nil, err
		}
		rows, err = r.store.FeedItemsAfter(ctx, userID, anchor.Position, limit)
		if err != nil {
			return nil, err
		}
	case req.From != "":
		anchor, err := r.anchor(ctx, userID, req.From)
		if err != nil {
			return nil, err
		}
		rows, err = r.store.FeedItemsFrom(ctx, userID, anchor.Position, limit)
		if err != nil {
			return nil, err
		}
	default:
		rows, err = r.resume(ctx, userID, limit)
		if err != nil {
			return nil, err
		}
	}

	// Short forward reads mean we hit the tail of the log; pull the
	// shortfall out of the queue.
	if len(rows) < limit {
		promoted, err := r.store.PromoteFromQueue(ctx, userID, limit-len(rows))
		if err != nil {
			return nil, err
		}
		if len(promoted) > 0 {
			metrics.ItemsPromoted.Add(float64(len(promoted)))
			rows = append(rows, promoted...)
		}
	}

	page, err := r.buildPage(ctx, userID, rows, limit)
	if err != nil {
		return nil, err
	}
	page.ShowExploreFlag = settings.ShowExploreFlag

	logger.Debug("Feed page served",
		zap.String("user_id", userID),
		zap.Int("items", len(page.Items)),
		zap.Bool("has_more", page.HasMore),
	)
	return page, nil
}

// resume continues from the saved reading position, or from the start of the
// log for a fresh user. The page is inclusive of the saved item so the reader
// lands back on what they last saw.
func (r *Reader) resume(ctx context.Context, userID string, limit int) ([]models.FeedItem, error) {
	state, err := r.store.FeedState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.LastSeenFeedItemID == nil {
		return r.store.FeedItemsFrom(ctx, userID, 0, limit)
	}

	last, err := r.store.FeedItemByID(ctx, userID, *state.LastSeenFeedItemID)
	if err != nil {
		// The saved item can vanish after a reroll. Fall back to the
		// start rather than failing the read.
		if errors.Is(err, sqlite.ErrNotFound) {
			return r.store.FeedItemsFrom(ctx, userID, 0, limit)
		}
		return nil, err
	}
	return r.store.FeedItemsFrom(ctx, userID, last.Position, limit)
}

func (r *Reader) readBefore(ctx context.Context, userID, beforeID string, limit int) (*Page, error) {
	anchor, err := r.anchor(ctx, userID, beforeID)
	if err != nil {
		return nil, err
	}

	rows, err := r.store.FeedItemsBefore(ctx, userID, anchor.Position, limit)
	if err != nil {
		return nil, err
	}
	// Query returns nearest-first; pages always read ascending.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	items, err := r.enrich(ctx, userID, rows)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: items, HasMore: true, HasBefore: len(rows) == limit}
	if page.HasBefore && len(rows) > 0 {
		page.HasBefore, err = r.store.HasItemsBefore(ctx, userID, rows[0].Position)
		if err != nil {
			return nil, err
		}
	}
	return page, nil
}

func (r *Reader) buildPage(ctx context.Context, userID string, rows []models.FeedItem, limit int) (*Page, error) {
	items, err := r.enrich(ctx, userID, rows)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: items, HasMore: len(rows) == limit}
	if len(rows) > 0 {
		page.HasBefore, err = r.store.HasItemsBefore(ctx, userID, rows[0].Position)
		if err != nil {
			return nil, err
		}
	}
	return page, nil
}

// History returns the full shown-item log from the beginning, ascending,
// along with the saved cursor.
func (r *Reader) History(ctx context.Context, userID string, limit int) (*HistoryPage, error) {
	settings, err := r.store.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := r.store.FeedHistory(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	items, err := r.enrich(ctx, userID, rows)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Items: items, ShowExploreFlag: settings.ShowExploreFlag}
	state, err := r.store.FeedState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		page.ResumeFeedItemID = state.LastSeenFeedItemID
	}
	return page, nil
}

// SavePosition records the reader's place in the feed. The item must exist
// and belong to the user; nil clears the saved position.
func (r *Reader) SavePosition(ctx context.Context, userID string, feedItemID *string) error {
	if feedItemID != nil {
		if _, err := r.store.FeedItemByID(ctx, userID, *feedItemID); err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				return ErrCursorNotFound
			}
			return err
		}
	}
	return r.store.SaveFeedPosition(ctx, userID, feedItemID)
}

func (r *Reader) anchor(ctx context.Context, userID, feedItemID string) (*models.FeedItem, error) {
	item, err := r.store.FeedItemByID(ctx, userID, feedItemID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCursorNotFound, feedItemID)
	}
	return item, err
}

// enrich joins feed entries with their chunk and article rows. Entries whose
// chunk or article has been deleted are dropped rather than rendered broken.
func (r *Reader) enrich(ctx context.Context, userID string, rows []models.FeedItem) ([]Item, error) {
	if len(rows) == 0 {
		return []Item{}, nil
	}

	chunkIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		chunkIDs = append(chunkIDs, row.ChunkID)
	}
	chunks, err := r.store.ChunksByIDs(ctx, userID, chunkIDs)
	if err != nil {
		return nil, err
	}

	articleIDs := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.ArticleID]; !ok {
			seen[chunk.ArticleID] = struct{}{}
			articleIDs = append(articleIDs, chunk.ArticleID)
		}
	}
	articles, err := r.store.ArticlesByIDs(ctx, articleIDs)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		chunk, ok := chunks[row.ChunkID]
		if !ok {
			continue
		}
		article, ok := articles[chunk.ArticleID]
		if !ok {
			continue
		}
		items = append(items, Item{
			FeedItemID:     row.ID,
			ChunkID:        chunk.ID,
			ArticleID:      article.ID,
			ArticleTitle:   article.Title,
			ArticleURL:     article.URL,
			ChunkIndex:     chunk.ChunkIndex,
			Content:        chunk.Content,
			PredictedScore: row.PredictedScore,
			WasExplore:     row.WasExplore,
			ShownAt:        row.ShownAt,
			Position:       row.Position,
		})
	}
	return items, nil
}
