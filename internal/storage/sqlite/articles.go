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

func (s *Store) InsertArticle(ctx context.Context, article *models.Article) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (id, user_id, url, title, description, image_url,
			gradient_seed, status, reading_progress, notes, finished, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, article.ID, article.UserID, article.URL, article.Title, article.Description,
		article.ImageURL, article.GradientSeed, string(article.Status),
		article.ReadingProgress, article.Notes, boolToInt(article.Finished),
		article.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}

	logger.Info("Article saved",
		zap.String("article_id", article.ID),
		zap.String("url", article.URL),
	)
	return nil
}

func (s *Store) ArticleByID(ctx context.Context, userID, id string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, articleSelect+` WHERE id = ? AND user_id = ?`, id, userID)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

func (s *Store) ListArticles(ctx context.Context, userID string) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		articleSelect+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

func (s *Store) ArticlesByIDs(ctx context.Context, ids []string) (map[string]models.Article, error) {
	result := make(map[string]models.Article)
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(articleSelect+` WHERE id IN (%s)`, inPlaceholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[article.ID] = *article
	}
	return result, rows.Err()
}

// ActiveArticleIDs returns the ids of articles in cloud status, the only
// articles the candidate selector draws chunks from.
func (s *Store) ActiveArticleIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM articles WHERE user_id = ? AND status = ?`,
		userID, string(models.StatusCloud))
	if err != nil {
		return nil, fmt.Errorf("failed to query active articles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) UpdateArticleStatus(ctx context.Context, userID, id string, status models.ArticleStatus) error {
	var riverAt, oceanAt interface{}
	now := time.Now().Unix()
	switch status {
	case models.StatusRiver:
		riverAt = now
	case models.StatusOcean:
		oceanAt = now
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET
			status = ?,
			moved_to_river_at = COALESCE(?, moved_to_river_at),
			moved_to_ocean_at = COALESCE(?, moved_to_ocean_at)
		WHERE id = ? AND user_id = ?
	`, string(status), riverAt, oceanAt, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update article status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateArticleProgress(ctx context.Context, userID, id string, progress float64, notes *string, finished *bool) error {
	article, err := s.ArticleByID(ctx, userID, id)
	if err != nil {
		return err
	}

	if notes == nil {
		notes = &article.Notes
	}
	fin := article.Finished
	if finished != nil {
		fin = *finished
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE articles SET reading_progress = ?, notes = ?, finished = ?
		WHERE id = ? AND user_id = ?
	`, progress, *notes, boolToInt(fin), id, userID); err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	return nil
}

func (s *Store) DeleteArticle(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM articles WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const articleSelect = `
	SELECT id, user_id, url, title, description, image_url, gradient_seed,
		status, reading_progress, notes, finished, created_at,
		moved_to_river_at, moved_to_ocean_at
	FROM articles`

func scanArticle(row rowScanner) (*models.Article, error) {
	var article models.Article
	var status string
	var finished int
	var createdAt int64
	var riverAt, oceanAt sql.NullInt64
	err := row.Scan(&article.ID, &article.UserID, &article.URL, &article.Title,
		&article.Description, &article.ImageURL, &article.GradientSeed, &status,
		&article.ReadingProgress, &article.Notes, &finished, &createdAt,
		&riverAt, &oceanAt)
	if err != nil {
		return nil, err
	}
	article.Status = models.ArticleStatus(status)
	article.Finished = finished != 0
	article.CreatedAt = time.Unix(createdAt, 0)
	if riverAt.Valid {
		t := time.Unix(riverAt.Int64, 0)
		article.MovedToRiverAt = &t
	}
	if oceanAt.Valid {
		t := time.Unix(oceanAt.Int64, 0)
		article.MovedToOceanAt = &t
	}
	return &article, nil
}
