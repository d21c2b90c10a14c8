package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainfeed/backend/internal/storage/models"
)

func ratingFor(userID, chunkID string, value int) *models.Rating {
	predicted := 3.5
	return &models.Rating{
		ID:             uuid.NewString(),
		ChunkID:        chunkID,
		UserID:         userID,
		Rating:         value,
		PredictedScore: &predicted,
		CreatedAt:      time.Now(),
	}
}

func TestInsertRatingConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRating(ctx, ratingFor("u1", "c1", 4)))

	err := store.InsertRating(ctx, ratingFor("u1", "c1", 2))
	assert.ErrorIs(t, err, ErrConflict)

	// Same chunk for a different user is fine.
	require.NoError(t, store.InsertRating(ctx, ratingFor("u2", "c1", 2)))

	rating, err := store.RatingByChunk(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, rating.Rating)
}

func TestRecentRatingsOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rating := ratingFor("u1", "c"+string(rune('1'+i)), i%5+1)
		rating.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.InsertRating(ctx, rating))
	}

	recent, err := store.RecentRatings(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "c5", recent[0].ChunkID)
	assert.Equal(t, "c4", recent[1].ChunkID)
	assert.Equal(t, "c3", recent[2].ChunkID)

	all, err := store.AllRatings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "c1", all[0].ChunkID)

	none, err := store.RecentRatings(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRatingPredictedScoreNullable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rating := ratingFor("u1", "c1", 3)
	rating.PredictedScore = nil
	require.NoError(t, store.InsertRating(ctx, rating))

	got, err := store.RatingByChunk(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Nil(t, got.PredictedScore)
}
