package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/pkg/logger"
)

var (
	// ErrNotFound is returned when a row does not exist or does not belong
	// to the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness invariant rejects a write.
	ErrConflict = errors.New("conflict")
)

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	// Immediate transactions serialize writers up front instead of failing
	// with SQLITE_BUSY on a mid-transaction lock upgrade.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite store initialized", zap.String("path", dbPath))

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		gradient_seed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'cloud',
		reading_progress REAL NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		finished INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		moved_to_river_at INTEGER,
		moved_to_ocean_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_articles_user ON articles(user_id);
	CREATE INDEX IF NOT EXISTS idx_articles_user_status ON articles(user_id, status);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		article_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_article ON chunks(article_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_user_created ON chunks(user_id, created_at);

	CREATE TABLE IF NOT EXISTS chunk_ratings (
		id TEXT PRIMARY KEY,
		chunk_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		annotation TEXT NOT NULL DEFAULT '',
		predicted_score REAL,
		was_explore INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		UNIQUE (user_id, chunk_id)
	);
	CREATE INDEX IF NOT EXISTS idx_ratings_user_created ON chunk_ratings(user_id, created_at);

	CREATE TABLE IF NOT EXISTS feed_queue (
		id TEXT PRIMARY KEY,
		chunk_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		predicted_score REAL NOT NULL,
		was_explore INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		UNIQUE (user_id, chunk_id)
	);
	CREATE INDEX IF NOT EXISTS idx_queue_user_created ON feed_queue(user_id, created_at);

	CREATE TABLE IF NOT EXISTS feed_items (
		id TEXT PRIMARY KEY,
		chunk_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		predicted_score REAL NOT NULL,
		was_explore INTEGER NOT NULL DEFAULT 0,
		shown_at INTEGER NOT NULL,
		position INTEGER NOT NULL,
		UNIQUE (user_id, chunk_id),
		UNIQUE (user_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_feed_items_user_position ON feed_items(user_id, position);

	CREATE TABLE IF NOT EXISTS feed_positions (
		user_id TEXT PRIMARY KEY,
		next_position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_feed_state (
		user_id TEXT PRIMARY KEY,
		last_seen_feed_item_id TEXT,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		chunk_size INTEGER NOT NULL,
		explore_ratio REAL NOT NULL,
		feed_batch_size INTEGER NOT NULL,
		candidate_pool_size INTEGER NOT NULL,
		scoring_batch_size INTEGER NOT NULL,
		num_few_shot INTEGER NOT NULL,
		scoring_model TEXT NOT NULL,
		context_model TEXT NOT NULL,
		show_explore_flag INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func inPlaceholders(n int) string {
	if n == 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
