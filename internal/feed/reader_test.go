package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
)

func newFeedStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	return store
}

// seedContent creates one cloud article with n chunks (c1..cn) and enqueues
// them in order.
func seedContent(t *testing.T, store *sqlite.Store, userID string, n int) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.InsertArticle(ctx, &models.Article{
		ID:        "art1",
		UserID:    userID,
		URL:       "https://example.com/art1",
		Title:     "Test Article",
		Status:    models.StatusCloud,
		CreatedAt: time.Now(),
	}))

	chunks := make([]models.Chunk, 0, n)
	entries := make([]models.QueueEntry, 0, n)
	now := time.Now()
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("c%d", i)
		chunks = append(chunks, models.Chunk{
			ID:         id,
			ArticleID:  "art1",
			UserID:     userID,
			ChunkIndex: i - 1,
			Content:    "content " + id,
			WordCount:  2,
			CreatedAt:  now,
		})
		entries = append(entries, models.QueueEntry{
			ID:             fmt.Sprintf("q%02d", i),
			ChunkID:        id,
			UserID:         userID,
			PredictedScore: 3,
		})
	}
	require.NoError(t, store.InsertChunks(ctx, chunks))
	_, err := store.EnqueueChunks(ctx, entries)
	require.NoError(t, err)
}

func TestReadFreshUserPromotesFromQueue(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 15)

	page, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)

	// Default batch size is 10.
	require.Len(t, page.Items, 10)
	assert.True(t, page.HasMore)
	assert.False(t, page.HasBefore)
	assert.Equal(t, int64(1), page.Items[0].Position)
	assert.Equal(t, int64(10), page.Items[9].Position)
	assert.Equal(t, "Test Article", page.Items[0].ArticleTitle)

	size, err := store.QueueSize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, size)
}

func TestReadPartialTopUp(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 4)

	page, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 4)
	assert.False(t, page.HasMore, "short page means the log and queue are drained")
}

func TestReadAfterAndBefore(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 30)

	first, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.Len(t, first.Items, 10)

	second, err := reader.Read(ctx, "u1", ReadRequest{After: first.Items[9].FeedItemID})
	require.NoError(t, err)
	require.Len(t, second.Items, 10)
	assert.Equal(t, int64(11), second.Items[0].Position)
	assert.True(t, second.HasBefore)

	back, err := reader.Read(ctx, "u1", ReadRequest{Before: second.Items[0].FeedItemID})
	require.NoError(t, err)
	require.Len(t, back.Items, 10)
	assert.Equal(t, int64(1), back.Items[0].Position)
	assert.Equal(t, int64(10), back.Items[9].Position)
	assert.False(t, back.HasBefore)
	assert.True(t, back.HasMore)

	from, err := reader.Read(ctx, "u1", ReadRequest{From: second.Items[0].FeedItemID})
	require.NoError(t, err)
	require.Len(t, from.Items, 10)
	assert.Equal(t, int64(11), from.Items[0].Position)
}

func TestReadResumeFromSavedPosition(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 30)

	first, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.Len(t, first.Items, 10)

	itemID := first.Items[4].FeedItemID
	require.NoError(t, reader.SavePosition(ctx, "u1", &itemID))

	// Resuming lands back on the saved item, not the one after it.
	resumed, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, resumed.Items)
	assert.Equal(t, int64(5), resumed.Items[0].Position)
	assert.Equal(t, itemID, resumed.Items[0].FeedItemID)
}

func TestReadSurfacesShowExploreFlag(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 5)

	page, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	assert.False(t, page.ShowExploreFlag)

	settings, err := store.GetOrCreateSettings(ctx, "u1")
	require.NoError(t, err)
	settings.ShowExploreFlag = true
	_, err = store.UpdateSettings(ctx, *settings)
	require.NoError(t, err)

	page, err = reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	assert.True(t, page.ShowExploreFlag)

	history, err := reader.History(ctx, "u1", 100)
	require.NoError(t, err)
	assert.True(t, history.ShowExploreFlag)
}

func TestHistoryReturnsResumeCursor(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 5)
	page, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)

	history, err := reader.History(ctx, "u1", 100)
	require.NoError(t, err)
	assert.Nil(t, history.ResumeFeedItemID)

	itemID := page.Items[2].FeedItemID
	require.NoError(t, reader.SavePosition(ctx, "u1", &itemID))

	history, err = reader.History(ctx, "u1", 100)
	require.NoError(t, err)
	require.NotNil(t, history.ResumeFeedItemID)
	assert.Equal(t, itemID, *history.ResumeFeedItemID)
}

func TestReadUnknownCursor(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)

	_, err := reader.Read(context.Background(), "u1", ReadRequest{After: uuid.NewString()})
	assert.ErrorIs(t, err, ErrCursorNotFound)
}

func TestSavePositionRejectsForeignItem(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 5)
	page, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)

	itemID := page.Items[0].FeedItemID
	err = reader.SavePosition(ctx, "u2", &itemID)
	assert.ErrorIs(t, err, ErrCursorNotFound)
}

func TestRerollPreservesRatedItems(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 10)

	page, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 10)

	// Rate the item at position 5, then reroll from position 3.
	rated := page.Items[4]
	score := rated.PredictedScore
	require.NoError(t, store.InsertRating(ctx, &models.Rating{
		ID:             uuid.NewString(),
		ChunkID:        rated.ChunkID,
		UserID:         "u1",
		Rating:         5,
		PredictedScore: &score,
		CreatedAt:      time.Now(),
	}))

	result, err := reader.Reroll(ctx, "u1", page.Items[2].FeedItemID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 6, result.Removed)

	history, err := reader.History(ctx, "u1", 100)
	require.NoError(t, err)
	require.Len(t, history.Items, 4)
	assert.Equal(t, int64(5), history.Items[3].Position)

	size, err := store.QueueSize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestRerollFromSavedPosition(t *testing.T) {
	store := newFeedStore(t)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 10)
	page, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 10)

	itemID := page.Items[6].FeedItemID
	require.NoError(t, reader.SavePosition(ctx, "u1", &itemID))

	result, err := reader.Reroll(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Removed)
}
