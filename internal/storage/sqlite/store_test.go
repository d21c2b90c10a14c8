package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rainfeed/backend/internal/storage/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	return store
}

func seedArticle(t *testing.T, store *Store, userID, articleID string, status models.ArticleStatus) {
	t.Helper()

	err := store.InsertArticle(context.Background(), &models.Article{
		ID:        articleID,
		UserID:    userID,
		URL:       "https://example.com/" + articleID,
		Title:     "Article " + articleID,
		Status:    status,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func seedChunks(t *testing.T, store *Store, userID, articleID string, ids ...string) {
	t.Helper()

	now := time.Now()
	chunks := make([]models.Chunk, 0, len(ids))
	for i, id := range ids {
		chunks = append(chunks, models.Chunk{
			ID:         id,
			ArticleID:  articleID,
			UserID:     userID,
			ChunkIndex: i,
			Content:    "chunk content " + id,
			WordCount:  3,
			CreatedAt:  now,
		})
	}
	require.NoError(t, store.InsertChunks(context.Background(), chunks))
}
