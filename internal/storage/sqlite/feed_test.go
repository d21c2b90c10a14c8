package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainfeed/backend/internal/storage/models"
)

func queueEntries(userID string, chunkIDs ...string) []models.QueueEntry {
	entries := make([]models.QueueEntry, 0, len(chunkIDs))
	for i, chunkID := range chunkIDs {
		entries = append(entries, models.QueueEntry{
			ID:             "q-" + chunkID,
			ChunkID:        chunkID,
			UserID:         userID,
			PredictedScore: float64(i%5) + 1,
		})
	}
	return entries
}

func TestEnqueueChunksFirstScoreWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	added, err := store.EnqueueChunks(ctx, []models.QueueEntry{
		{ID: "q1", ChunkID: "c1", UserID: "u1", PredictedScore: 4.5},
		{ID: "q2", ChunkID: "c2", UserID: "u1", PredictedScore: 2.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Re-enqueueing c1 with a different score is a no-op.
	added, err = store.EnqueueChunks(ctx, []models.QueueEntry{
		{ID: "q3", ChunkID: "c1", UserID: "u1", PredictedScore: 1.0},
		{ID: "q4", ChunkID: "c3", UserID: "u1", PredictedScore: 3.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	size, err := store.QueueSize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	items, err := store.PromoteFromQueue(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		if item.ChunkID == "c1" {
			assert.Equal(t, 4.5, item.PredictedScore)
		}
	}
}

func TestPromoteAssignsSequentialPositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnqueueChunks(ctx, queueEntries("u1", "c1", "c2", "c3"))
	require.NoError(t, err)

	items, err := store.PromoteFromQueue(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].Position)
	assert.Equal(t, int64(2), items[1].Position)

	items, err = store.PromoteFromQueue(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].Position)

	size, err := store.QueueSize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestPositionsNeverReusedAfterDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnqueueChunks(ctx, queueEntries("u1", "c1", "c2", "c3"))
	require.NoError(t, err)
	items, err := store.PromoteFromQueue(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Drop the whole unrated tail, then promote fresh entries. Positions
	// must continue past the deleted ones.
	removed, err := store.DeleteUnratedItemsAfter(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, err = store.EnqueueChunks(ctx, queueEntries("u1", "c4"))
	require.NoError(t, err)
	items, err = store.PromoteFromQueue(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(4), items[0].Position)
}

func TestPromoteConcurrentNoDuplicatePositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunkIDs := make([]string, 20)
	for i := range chunkIDs {
		chunkIDs[i] = string(rune('a' + i))
	}
	_, err := store.EnqueueChunks(ctx, queueEntries("u1", chunkIDs...))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]models.FeedItem, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items, err := store.PromoteFromQueue(ctx, "u1", 5)
			assert.NoError(t, err)
			results[i] = items
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]string)
	total := 0
	for _, items := range results {
		for _, item := range items {
			prev, dup := seen[item.Position]
			assert.False(t, dup, "position %d assigned to both %s and %s", item.Position, prev, item.ChunkID)
			seen[item.Position] = item.ChunkID
			total++
		}
	}
	assert.Equal(t, 20, total)
}

func TestExcludedChunkIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnqueueChunks(ctx, queueEntries("u1", "queued"))
	require.NoError(t, err)

	_, err = store.EnqueueChunks(ctx, queueEntries("u1", "shown"))
	require.NoError(t, err)
	_, err = store.PromoteFromQueue(ctx, "u1", 1)
	require.NoError(t, err)

	// Queue insert order within one call follows entry ids, so "queued"
	// may or may not have been the promoted one; rate a separate chunk to
	// cover the ratings leg regardless.
	require.NoError(t, store.InsertRating(ctx, ratingFor("u1", "rated", 4)))

	excluded, err := store.ExcludedChunkIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, excluded, 3)
	assert.Contains(t, excluded, "queued")
	assert.Contains(t, excluded, "shown")
	assert.Contains(t, excluded, "rated")

	other, err := store.ExcludedChunkIDs(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDeleteUnratedItemsAfterCut(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnqueueChunks(ctx, queueEntries("u1", "c1", "c2", "c3", "c4"))
	require.NoError(t, err)
	items, err := store.PromoteFromQueue(ctx, "u1", 4)
	require.NoError(t, err)
	require.Len(t, items, 4)

	// Rate the item at position 3; cut after position 2.
	var rated models.FeedItem
	for _, item := range items {
		if item.Position == 3 {
			rated = item
		}
	}
	require.NoError(t, store.InsertRating(ctx, ratingFor("u1", rated.ChunkID, 5)))

	cut := int64(2)
	removed, err := store.DeleteUnratedItemsAfter(ctx, "u1", &cut)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := store.FeedItemsFrom(ctx, "u1", 0, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	positions := []int64{remaining[0].Position, remaining[1].Position, remaining[2].Position}
	assert.Equal(t, []int64{1, 2, 3}, positions)
}

func TestFeedItemsPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnqueueChunks(ctx, queueEntries("u1", "c1", "c2", "c3", "c4", "c5"))
	require.NoError(t, err)
	items, err := store.PromoteFromQueue(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, items, 5)

	from, err := store.FeedItemsFrom(ctx, "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, from, 2)
	assert.Equal(t, int64(2), from[0].Position)
	assert.Equal(t, int64(3), from[1].Position)

	after, err := store.FeedItemsAfter(ctx, "u1", 2, 10)
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, int64(3), after[0].Position)

	before, err := store.FeedItemsBefore(ctx, "u1", 4, 2)
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, int64(3), before[0].Position)
	assert.Equal(t, int64(2), before[1].Position)

	has, err := store.HasItemsBefore(ctx, "u1", 1)
	require.NoError(t, err)
	assert.False(t, has)
	has, err = store.HasItemsBefore(ctx, "u1", 2)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestFeedStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state, err := store.FeedState(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, state)

	itemID := "item-1"
	require.NoError(t, store.SaveFeedPosition(ctx, "u1", &itemID))

	state, err = store.FeedState(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.LastSeenFeedItemID)
	assert.Equal(t, "item-1", *state.LastSeenFeedItemID)

	require.NoError(t, store.SaveFeedPosition(ctx, "u1", nil))
	state, err = store.FeedState(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Nil(t, state.LastSeenFeedItemID)
}
