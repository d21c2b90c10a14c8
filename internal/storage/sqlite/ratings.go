package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/pkg/logger"
)

// InsertRating records a one-time rating. The UNIQUE(user_id, chunk_id)
// constraint is the arbiter under concurrent calls: the loser gets
// ErrConflict no matter the interleaving.
func (s *Store) InsertRating(ctx context.Context, rating *models.Rating) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunk_ratings (id, chunk_id, user_id, rating, annotation, predicted_score, was_explore, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rating.ID, rating.ChunkID, rating.UserID, rating.Rating, rating.Annotation,
		rating.PredictedScore, boolToInt(rating.WasExplore), rating.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert rating: %w", err)
	}

	logger.Info("Chunk rated",
		zap.String("chunk_id", rating.ChunkID),
		zap.Int("rating", rating.Rating),
		zap.Bool("was_explore", rating.WasExplore),
	)
	return nil
}

func (s *Store) RatingByChunk(ctx context.Context, userID, chunkID string) (*models.Rating, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, chunk_id, user_id, rating, annotation, predicted_score, was_explore, created_at
		FROM chunk_ratings WHERE user_id = ? AND chunk_id = ?
	`, userID, chunkID)
	rating, err := scanRating(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return rating, nil
}

// RecentRatings returns the newest ratings first, bounded by limit. These
// become the few-shot calibration examples for the scorer.
func (s *Store) RecentRatings(ctx context.Context, userID string, limit int) ([]models.Rating, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.queryRatings(ctx, `
		SELECT id, chunk_id, user_id, rating, annotation, predicted_score, was_explore, created_at
		FROM chunk_ratings WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
}

func (s *Store) AllRatings(ctx context.Context, userID string) ([]models.Rating, error) {
	return s.queryRatings(ctx, `
		SELECT id, chunk_id, user_id, rating, annotation, predicted_score, was_explore, created_at
		FROM chunk_ratings WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`, userID)
}

func (s *Store) queryRatings(ctx context.Context, query string, args ...interface{}) ([]models.Rating, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []models.Rating
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ratings = append(ratings, *rating)
	}
	return ratings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRating(row rowScanner) (*models.Rating, error) {
	var rating models.Rating
	var predicted sql.NullFloat64
	var explore int
	var createdAt int64
	err := row.Scan(&rating.ID, &rating.ChunkID, &rating.UserID, &rating.Rating,
		&rating.Annotation, &predicted, &explore, &createdAt)
	if err != nil {
		return nil, err
	}
	if predicted.Valid {
		rating.PredictedScore = &predicted.Float64
	}
	rating.WasExplore = explore != 0
	rating.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rating, nil
}
