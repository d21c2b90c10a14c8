package feed

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainfeed/backend/internal/scoring"
	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
)

// offlineScorer returns a client pointed at a dead endpoint. Users without
// rating history never trigger an upstream call, so replenish tests run
// without a network.
func offlineScorer(seed int64) *scoring.Client {
	rng := rand.New(rand.NewSource(seed))
	return scoring.NewClient("http://127.0.0.1:1", "test-key", time.Second, 1, rng)
}

func newReplenisher(t *testing.T, store *sqlite.Store, seed int64) *Replenisher {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	return NewReplenisher(store, offlineScorer(seed), NewSelector(store, rng), rng)
}

func TestReplenishNoActiveSources(t *testing.T) {
	store := newFeedStore(t)
	r := newReplenisher(t, store, 1)

	outcome, err := r.Replenish(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, outcome.Replenished)
	assert.Equal(t, ReasonNoActiveSources, outcome.Reason)
	assert.Zero(t, outcome.QueueSize)
}

func TestReplenishNoCandidates(t *testing.T) {
	store := newFeedStore(t)
	r := newReplenisher(t, store, 1)
	ctx := context.Background()

	// A cloud article with no chunks yields an empty candidate pool.
	require.NoError(t, store.InsertArticle(ctx, &models.Article{
		ID:        "art1",
		UserID:    "u1",
		URL:       "https://example.com/empty",
		Title:     "Empty",
		Status:    models.StatusCloud,
		CreatedAt: time.Now(),
	}))

	outcome, err := r.Replenish(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, outcome.Replenished)
	assert.Equal(t, ReasonNoCandidates, outcome.Reason)
}

func TestReplenishFillsQueue(t *testing.T) {
	store := newFeedStore(t)
	r := newReplenisher(t, store, 42)
	ctx := context.Background()

	require.NoError(t, store.InsertArticle(ctx, &models.Article{
		ID:        "art1",
		UserID:    "u1",
		URL:       "https://example.com/art1",
		Title:     "Test",
		Status:    models.StatusCloud,
		CreatedAt: time.Now(),
	}))
	chunks := make([]models.Chunk, 0, 25)
	now := time.Now()
	for i := 0; i < 25; i++ {
		chunks = append(chunks, models.Chunk{
			ID:         "c" + string(rune('a'+i)),
			ArticleID:  "art1",
			UserID:     "u1",
			ChunkIndex: i,
			Content:    "some text",
			WordCount:  2,
			CreatedAt:  now,
		})
	}
	require.NoError(t, store.InsertChunks(ctx, chunks))

	outcome, err := r.Replenish(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, outcome.Replenished)
	assert.Equal(t, 10, outcome.Added, "default feed batch size")
	assert.Equal(t, 10, outcome.QueueSize)

	// A second call finds the queue full.
	outcome, err = r.Replenish(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, outcome.Replenished)
	assert.Equal(t, ReasonAlreadySufficient, outcome.Reason)
	assert.Equal(t, 10, outcome.QueueSize)
}

func TestReplenishSkipsSeenChunks(t *testing.T) {
	store := newFeedStore(t)
	r := newReplenisher(t, store, 7)
	reader := NewReader(store)
	ctx := context.Background()

	seedContent(t, store, "u1", 10)

	// Show everything, then replenish: every chunk is excluded and river
	// articles contribute nothing new.
	page, err := reader.Read(ctx, "u1", ReadRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 10)

	outcome, err := r.Replenish(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, outcome.Replenished)
	assert.Equal(t, ReasonNoCandidates, outcome.Reason)
}

func TestSelectorExcludesAndBounds(t *testing.T) {
	store := newFeedStore(t)
	rng := rand.New(rand.NewSource(9))
	selector := NewSelector(store, rng)
	ctx := context.Background()

	require.NoError(t, store.InsertArticle(ctx, &models.Article{
		ID:        "art1",
		UserID:    "u1",
		URL:       "https://example.com/art1",
		Title:     "Test",
		Status:    models.StatusCloud,
		CreatedAt: time.Now(),
	}))
	chunks := make([]models.Chunk, 0, 20)
	now := time.Now()
	for i := 0; i < 20; i++ {
		chunks = append(chunks, models.Chunk{
			ID:         "c" + string(rune('a'+i)),
			ArticleID:  "art1",
			UserID:     "u1",
			ChunkIndex: i,
			Content:    "some text",
			WordCount:  2,
			CreatedAt:  now,
		})
	}
	require.NoError(t, store.InsertChunks(ctx, chunks))

	candidates, err := selector.Select(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Len(t, candidates, 5, "pool is truncated to poolSize")

	// Queue two chunks; they drop out of the next selection.
	_, err = store.EnqueueChunks(ctx, []models.QueueEntry{
		{ID: "q1", ChunkID: "ca", UserID: "u1", PredictedScore: 3},
		{ID: "q2", ChunkID: "cb", UserID: "u1", PredictedScore: 3},
	})
	require.NoError(t, err)

	candidates, err = selector.Select(ctx, "u1", 100)
	require.NoError(t, err)
	assert.Len(t, candidates, 18)
	for _, c := range candidates {
		assert.NotContains(t, []string{"ca", "cb"}, c.ID)
	}
}
