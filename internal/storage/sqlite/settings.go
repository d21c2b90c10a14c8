package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rainfeed/backend/internal/storage/models"
)

// GetOrCreateSettings returns the user's settings, lazily inserting the
// defaults on first access.
func (s *Store) GetOrCreateSettings(ctx context.Context, userID string) (*models.Settings, error) {
	settings, err := s.getSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	defaults := models.DefaultSettings(userID).Sanitize()
	now := time.Now()
	defaults.CreatedAt = now
	defaults.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, chunk_size, explore_ratio, feed_batch_size,
			candidate_pool_size, scoring_batch_size, num_few_shot, scoring_model,
			context_model, show_explore_flag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, defaults.UserID, defaults.ChunkSize, defaults.ExploreRatio, defaults.FeedBatchSize,
		defaults.CandidatePoolSize, defaults.ScoringBatchSize, defaults.NumFewShot,
		defaults.ScoringModel, defaults.ContextModel, boolToInt(defaults.ShowExploreFlag),
		now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}

	// Re-read in case a concurrent request created the row first.
	return s.getSettings(ctx, userID)
}

func (s *Store) UpdateSettings(ctx context.Context, settings models.Settings) (*models.Settings, error) {
	settings = settings.Sanitize()
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, chunk_size, explore_ratio, feed_batch_size,
			candidate_pool_size, scoring_batch_size, num_few_shot, scoring_model,
			context_model, show_explore_flag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			chunk_size = excluded.chunk_size,
			explore_ratio = excluded.explore_ratio,
			feed_batch_size = excluded.feed_batch_size,
			candidate_pool_size = excluded.candidate_pool_size,
			scoring_batch_size = excluded.scoring_batch_size,
			num_few_shot = excluded.num_few_shot,
			scoring_model = excluded.scoring_model,
			context_model = excluded.context_model,
			show_explore_flag = excluded.show_explore_flag,
			updated_at = excluded.updated_at
	`, settings.UserID, settings.ChunkSize, settings.ExploreRatio, settings.FeedBatchSize,
		settings.CandidatePoolSize, settings.ScoringBatchSize, settings.NumFewShot,
		settings.ScoringModel, settings.ContextModel, boolToInt(settings.ShowExploreFlag),
		now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}

	return s.getSettings(ctx, settings.UserID)
}

func (s *Store) getSettings(ctx context.Context, userID string) (*models.Settings, error) {
	var settings models.Settings
	var explore int
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, chunk_size, explore_ratio, feed_batch_size, candidate_pool_size,
			scoring_batch_size, num_few_shot, scoring_model, context_model,
			show_explore_flag, created_at, updated_at
		FROM user_settings WHERE user_id = ?
	`, userID).Scan(&settings.UserID, &settings.ChunkSize, &settings.ExploreRatio,
		&settings.FeedBatchSize, &settings.CandidatePoolSize, &settings.ScoringBatchSize,
		&settings.NumFewShot, &settings.ScoringModel, &settings.ContextModel,
		&explore, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	settings.ShowExploreFlag = explore != 0
	settings.CreatedAt = time.Unix(createdAt, 0)
	settings.UpdatedAt = time.Unix(updatedAt, 0)
	return &settings, nil
}
