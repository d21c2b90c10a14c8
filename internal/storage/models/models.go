package models

import (
	"fmt"
	"time"
)

// User is an account. PasswordHash is "salt:digest" where the digest mixes
// the password, salt, and server secret.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// ArticleStatus tracks where a saved article lives: cloud articles are the
// active chunk sources for the feed, river articles are queued for focused
// reading, ocean articles are archived.
type ArticleStatus string

const (
	StatusCloud ArticleStatus = "cloud"
	StatusRiver ArticleStatus = "river"
	StatusOcean ArticleStatus = "ocean"
)

func ParseArticleStatus(s string) (ArticleStatus, error) {
	switch ArticleStatus(s) {
	case StatusCloud, StatusRiver, StatusOcean:
		return ArticleStatus(s), nil
	}
	return "", fmt.Errorf("unknown article status %q", s)
}

// CanTransition enumerates the legal status moves. Anything not listed is
// rejected rather than silently written.
func (s ArticleStatus) CanTransition(to ArticleStatus) bool {
	switch s {
	case StatusCloud:
		return to == StatusRiver || to == StatusOcean
	case StatusRiver:
		return to == StatusCloud || to == StatusOcean
	case StatusOcean:
		return to == StatusCloud || to == StatusRiver
	}
	return false
}

type Article struct {
	ID              string
	UserID          string
	URL             string
	Title           string
	Description     string
	ImageURL        string
	GradientSeed    int64
	Status          ArticleStatus
	ReadingProgress float64
	Notes           string
	Finished        bool
	CreatedAt       time.Time
	MovedToRiverAt  *time.Time
	MovedToOceanAt  *time.Time
}

// Chunk is a word-bounded slice of an article's text, immutable once created.
type Chunk struct {
	ID         string
	ArticleID  string
	UserID     string
	ChunkIndex int
	Content    string
	WordCount  int
	CreatedAt  time.Time
}

// Rating is the one-time user verdict on a shown chunk. PredictedScore and
// WasExplore are snapshotted from the feed item at rating time so accuracy
// reporting survives feed rewrites.
type Rating struct {
	ID             string
	ChunkID        string
	UserID         string
	Rating         int
	Annotation     string
	PredictedScore *float64
	WasExplore     bool
	CreatedAt      time.Time
}

// QueueEntry is a scored chunk waiting to be surfaced. Unique per
// (user, chunk); the first score wins on duplicate insert.
type QueueEntry struct {
	ID             string
	ChunkID        string
	UserID         string
	PredictedScore float64
	WasExplore     bool
	CreatedAt      time.Time
}

// FeedItem is one entry of the durable, position-ordered record of
// everything shown to a user. Position is assigned once and never reused.
type FeedItem struct {
	ID             string
	ChunkID        string
	UserID         string
	PredictedScore float64
	WasExplore     bool
	ShownAt        time.Time
	Position       int64
}

type UserFeedState struct {
	UserID             string
	LastSeenFeedItemID *string
	UpdatedAt          time.Time
}

type Settings struct {
	UserID            string
	ChunkSize         int
	ExploreRatio      float64
	FeedBatchSize     int
	CandidatePoolSize int
	ScoringBatchSize  int
	NumFewShot        int
	ScoringModel      string
	ContextModel      string
	ShowExploreFlag   bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:            userID,
		ChunkSize:         200,
		ExploreRatio:      0.2,
		FeedBatchSize:     10,
		CandidatePoolSize: 100,
		ScoringBatchSize:  10,
		NumFewShot:        20,
		ScoringModel:      "llama-3.3-70b",
		ContextModel:      "llama-3.3-70b",
		ShowExploreFlag:   false,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sanitize clamps every tunable into its legal range and backfills empty
// model names from the defaults.
func (s Settings) Sanitize() Settings {
	defaults := DefaultSettings(s.UserID)
	s.ChunkSize = clampInt(s.ChunkSize, 50, 500)
	s.ExploreRatio = clampFloat(s.ExploreRatio, 0, 1)
	s.FeedBatchSize = clampInt(s.FeedBatchSize, 1, 100)
	s.CandidatePoolSize = clampInt(s.CandidatePoolSize, 10, 1000)
	s.ScoringBatchSize = clampInt(s.ScoringBatchSize, 1, 100)
	s.NumFewShot = clampInt(s.NumFewShot, 0, 100)
	if s.ScoringModel == "" {
		s.ScoringModel = defaults.ScoringModel
	}
	if s.ContextModel == "" {
		s.ContextModel = defaults.ContextModel
	}
	return s
}
