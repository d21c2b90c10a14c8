package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rainfeed/backend/internal/storage/models"
)

func (s *Store) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, article_id, user_id, chunk_index, content, word_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, chunk.ID, chunk.ArticleID, chunk.UserID, chunk.ChunkIndex, chunk.Content,
			chunk.WordCount, chunk.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

func (s *Store) ChunkByID(ctx context.Context, userID, id string) (*models.Chunk, error) {
	var chunk models.Chunk
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, article_id, user_id, chunk_index, content, word_count, created_at
		FROM chunks WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&chunk.ID, &chunk.ArticleID, &chunk.UserID, &chunk.ChunkIndex,
		&chunk.Content, &chunk.WordCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	chunk.CreatedAt = time.Unix(createdAt, 0)
	return &chunk, nil
}

func (s *Store) ChunksByIDs(ctx context.Context, userID string, ids []string) (map[string]models.Chunk, error) {
	result := make(map[string]models.Chunk)
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT id, article_id, user_id, chunk_index, content, word_count, created_at
		FROM chunks WHERE user_id = ? AND id IN (%s)
	`, inPlaceholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chunk models.Chunk
		var createdAt int64
		if err := rows.Scan(&chunk.ID, &chunk.ArticleID, &chunk.UserID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.WordCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunk.CreatedAt = time.Unix(createdAt, 0)
		result[chunk.ID] = chunk
	}
	return result, rows.Err()
}

// ChunksByArticle returns an article's chunks in reading order.
func (s *Store) ChunksByArticle(ctx context.Context, userID, articleID string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, user_id, chunk_index, content, word_count, created_at
		FROM chunks WHERE user_id = ? AND article_id = ?
		ORDER BY chunk_index ASC
	`, userID, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query article chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var createdAt int64
		if err := rows.Scan(&chunk.ID, &chunk.ArticleID, &chunk.UserID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.WordCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunk.CreatedAt = time.Unix(createdAt, 0)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// RecentChunks returns the newest chunks belonging to the given articles,
// newest first. This is the bounded pre-filter window the candidate selector
// shuffles from.
func (s *Store) RecentChunks(ctx context.Context, userID string, articleIDs []string, limit int) ([]models.Chunk, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(articleIDs)+2)
	args = append(args, userID)
	for _, id := range articleIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, article_id, user_id, chunk_index, content, word_count, created_at
		FROM chunks
		WHERE user_id = ? AND article_id IN (%s)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, inPlaceholders(len(articleIDs)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var createdAt int64
		if err := rows.Scan(&chunk.ID, &chunk.ArticleID, &chunk.UserID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.WordCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunk.CreatedAt = time.Unix(createdAt, 0)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
