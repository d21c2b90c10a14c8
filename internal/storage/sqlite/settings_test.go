package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainfeed/backend/internal/storage/models"
)

func TestGetOrCreateSettingsDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings, err := store.GetOrCreateSettings(ctx, "u1")
	require.NoError(t, err)

	defaults := models.DefaultSettings("u1")
	assert.Equal(t, defaults.ChunkSize, settings.ChunkSize)
	assert.Equal(t, defaults.ExploreRatio, settings.ExploreRatio)
	assert.Equal(t, defaults.FeedBatchSize, settings.FeedBatchSize)
	assert.Equal(t, defaults.ScoringModel, settings.ScoringModel)

	// Second call reads the stored row instead of re-creating.
	again, err := store.GetOrCreateSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, settings.CreatedAt, again.CreatedAt)
}

func TestUpdateSettingsClamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	updated, err := store.UpdateSettings(ctx, models.Settings{
		UserID:            "u1",
		ChunkSize:         10000,
		ExploreRatio:      -0.5,
		FeedBatchSize:     0,
		CandidatePoolSize: 5,
		ScoringBatchSize:  500,
		NumFewShot:        -3,
	})
	require.NoError(t, err)

	assert.Equal(t, 500, updated.ChunkSize)
	assert.Equal(t, 0.0, updated.ExploreRatio)
	assert.Equal(t, 1, updated.FeedBatchSize)
	assert.Equal(t, 10, updated.CandidatePoolSize)
	assert.Equal(t, 100, updated.ScoringBatchSize)
	assert.Equal(t, 0, updated.NumFewShot)
	assert.Equal(t, models.DefaultSettings("u1").ScoringModel, updated.ScoringModel)
}
