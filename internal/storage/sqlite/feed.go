package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/pkg/logger"
)

func (s *Store) QueueSize(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_queue WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feed queue: %w", err)
	}
	return count, nil
}

// EnqueueChunks inserts scored candidates into the feed queue. Duplicate
// (user, chunk) pairs are silently skipped so the first score wins. Returns
// the number of rows actually added.
func (s *Store) EnqueueChunks(ctx context.Context, entries []models.QueueEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	now := time.Now().Unix()
	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO feed_queue (id, chunk_id, user_id, predicted_score, was_explore, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, chunk_id) DO NOTHING
		`, id, entry.ChunkID, entry.UserID, entry.PredictedScore, boolToInt(entry.WasExplore), now)
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue chunk: %w", err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit enqueue: %w", err)
	}

	logger.Debug("Chunks enqueued", zap.Int("requested", len(entries)), zap.Int("added", added))
	return added, nil
}

func (s *Store) ClearQueue(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM feed_queue WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear feed queue: %w", err)
	}
	return nil
}

// ExcludedChunkIDs returns every chunk the user has already seen, queued, or
// rated. The candidate selector filters against this set.
func (s *Store) ExcludedChunkIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id FROM feed_items WHERE user_id = ?
		UNION
		SELECT chunk_id FROM feed_queue WHERE user_id = ?
		UNION
		SELECT chunk_id FROM chunk_ratings WHERE user_id = ?
	`, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query excluded chunks: %w", err)
	}
	defer rows.Close()

	excluded := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		excluded[id] = struct{}{}
	}
	return excluded, rows.Err()
}

// PromoteFromQueue moves up to limit of the oldest queue entries into the
// feed log inside one transaction: positions are reserved from the per-user
// counter, items inserted, and only the drained queue rows deleted. The
// counter only moves forward, so positions are never reused even after a
// reroll deletes future items.
func (s *Store) PromoteFromQueue(ctx context.Context, userID string, limit int) ([]models.FeedItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, chunk_id, predicted_score, was_explore
		FROM feed_queue
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to drain feed queue: %w", err)
	}

	type drained struct {
		queueID string
		chunkID string
		score   float64
		explore bool
	}
	var batch []drained
	for rows.Next() {
		var d drained
		var explore int
		if err := rows.Scan(&d.queueID, &d.chunkID, &d.score, &explore); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		d.explore = explore != 0
		batch = append(batch, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue rows: %w", err)
	}

	if len(batch) == 0 {
		return nil, tx.Commit()
	}

	base, err := reservePositions(ctx, tx, userID, len(batch))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var promoted []models.FeedItem
	queueIDs := make([]interface{}, 0, len(batch))
	for i, d := range batch {
		queueIDs = append(queueIDs, d.queueID)
		item := models.FeedItem{
			ID:             uuid.NewString(),
			ChunkID:        d.chunkID,
			UserID:         userID,
			PredictedScore: d.score,
			WasExplore:     d.explore,
			ShownAt:        now,
			Position:       base + int64(i),
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO feed_items (id, chunk_id, user_id, predicted_score, was_explore, shown_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, chunk_id) DO NOTHING
		`, item.ID, item.ChunkID, item.UserID, item.PredictedScore, boolToInt(item.WasExplore), item.ShownAt.Unix(), item.Position)
		if err != nil {
			return nil, fmt.Errorf("failed to promote chunk: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			promoted = append(promoted, item)
		}
	}

	query := fmt.Sprintf(`DELETE FROM feed_queue WHERE id IN (%s)`, inPlaceholders(len(queueIDs)))
	if _, err := tx.ExecContext(ctx, query, queueIDs...); err != nil {
		return nil, fmt.Errorf("failed to delete drained queue rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit promotion: %w", err)
	}

	logger.Debug("Queue entries promoted",
		zap.String("user_id", userID),
		zap.Int("drained", len(batch)),
		zap.Int("promoted", len(promoted)),
	)
	return promoted, nil
}

func reservePositions(ctx context.Context, tx *sql.Tx, userID string, n int) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO feed_positions (user_id, next_position) VALUES (?, 1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, fmt.Errorf("failed to init position counter: %w", err)
	}

	var base int64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_position FROM feed_positions WHERE user_id = ?`, userID).Scan(&base); err != nil {
		return 0, fmt.Errorf("failed to read position counter: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE feed_positions SET next_position = next_position + ? WHERE user_id = ?`, n, userID); err != nil {
		return 0, fmt.Errorf("failed to advance position counter: %w", err)
	}
	return base, nil
}

func (s *Store) FeedItemByID(ctx context.Context, userID, id string) (*models.FeedItem, error) {
	return s.feedItem(ctx,
		`SELECT id, chunk_id, user_id, predicted_score, was_explore, shown_at, position
		 FROM feed_items WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *Store) FeedItemByChunk(ctx context.Context, userID, chunkID string) (*models.FeedItem, error) {
	return s.feedItem(ctx,
		`SELECT id, chunk_id, user_id, predicted_score, was_explore, shown_at, position
		 FROM feed_items WHERE chunk_id = ? AND user_id = ?`, chunkID, userID)
}

func (s *Store) feedItem(ctx context.Context, query string, args ...interface{}) (*models.FeedItem, error) {
	var item models.FeedItem
	var explore int
	var shownAt int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&item.ID, &item.ChunkID, &item.UserID, &item.PredictedScore, &explore, &shownAt, &item.Position)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed item: %w", err)
	}
	item.WasExplore = explore != 0
	item.ShownAt = time.Unix(shownAt, 0)
	return &item, nil
}

// FeedItemsFrom returns entries at or past position, ascending.
func (s *Store) FeedItemsFrom(ctx context.Context, userID string, position int64, limit int) ([]models.FeedItem, error) {
	return s.feedItems(ctx,
		`SELECT id, chunk_id, user_id, predicted_score, was_explore, shown_at, position
		 FROM feed_items WHERE user_id = ? AND position >= ?
		 ORDER BY position ASC LIMIT ?`, userID, position, limit)
}

// FeedItemsAfter returns entries strictly past position, ascending.
func (s *Store) FeedItemsAfter(ctx context.Context, userID string, position int64, limit int) ([]models.FeedItem, error) {
	return s.feedItems(ctx,
		`SELECT id, chunk_id, user_id, predicted_score, was_explore, shown_at, position
		 FROM feed_items WHERE user_id = ? AND position > ?
		 ORDER BY position ASC LIMIT ?`, userID, position, limit)
}

// FeedItemsBefore returns entries strictly before position, nearest first.
// Callers reverse the slice so pages always read ascending.
func (s *Store) FeedItemsBefore(ctx context.Context, userID string, position int64, limit int) ([]models.FeedItem, error) {
	return s.feedItems(ctx,
		`SELECT id, chunk_id, user_id, predicted_score, was_explore, shown_at, position
		 FROM feed_items WHERE user_id = ? AND position < ?
		 ORDER BY position DESC LIMIT ?`, userID, position, limit)
}

func (s *Store) FeedHistory(ctx context.Context, userID string, limit int) ([]models.FeedItem, error) {
	return s.feedItems(ctx,
		`SELECT id, chunk_id, user_id, predicted_score, was_explore, shown_at, position
		 FROM feed_items WHERE user_id = ?
		 ORDER BY position ASC LIMIT ?`, userID, limit)
}

func (s *Store) feedItems(ctx context.Context, query string, args ...interface{}) ([]models.FeedItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed items: %w", err)
	}
	defer rows.Close()

	var items []models.FeedItem
	for rows.Next() {
		var item models.FeedItem
		var explore int
		var shownAt int64
		if err := rows.Scan(&item.ID, &item.ChunkID, &item.UserID, &item.PredictedScore,
			&explore, &shownAt, &item.Position); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		item.WasExplore = explore != 0
		item.ShownAt = time.Unix(shownAt, 0)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) HasItemsBefore(ctx context.Context, userID string, position int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM feed_items WHERE user_id = ? AND position < ?)`,
		userID, position).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check earlier feed items: %w", err)
	}
	return exists != 0, nil
}

// DeleteUnratedItemsAfter removes feed log entries past the cut position,
// skipping any whose chunk the user has rated. A nil cut deletes all unrated
// entries.
func (s *Store) DeleteUnratedItemsAfter(ctx context.Context, userID string, cut *int64) (int, error) {
	query := `
		DELETE FROM feed_items
		WHERE user_id = ?
		AND chunk_id NOT IN (SELECT chunk_id FROM chunk_ratings WHERE user_id = ?)
	`
	args := []interface{}{userID, userID}
	if cut != nil {
		query += ` AND position > ?`
		args = append(args, *cut)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unrated feed items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) SaveFeedPosition(ctx context.Context, userID string, feedItemID *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_feed_state (user_id, last_seen_feed_item_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			last_seen_feed_item_id = excluded.last_seen_feed_item_id,
			updated_at = excluded.updated_at
	`, userID, feedItemID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save feed position: %w", err)
	}
	return nil
}

func (s *Store) FeedState(ctx context.Context, userID string) (*models.UserFeedState, error) {
	var state models.UserFeedState
	var lastSeen sql.NullString
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, last_seen_feed_item_id, updated_at FROM user_feed_state WHERE user_id = ?`,
		userID).Scan(&state.UserID, &lastSeen, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed state: %w", err)
	}
	if lastSeen.Valid {
		state.LastSeenFeedItemID = &lastSeen.String
	}
	state.UpdatedAt = time.Unix(updatedAt, 0)
	return &state, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
