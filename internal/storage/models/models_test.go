package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArticleStatus(t *testing.T) {
	for _, valid := range []string{"cloud", "river", "ocean"} {
		status, err := ParseArticleStatus(valid)
		assert.NoError(t, err)
		assert.Equal(t, ArticleStatus(valid), status)
	}

	_, err := ParseArticleStatus("lake")
	assert.Error(t, err)
	_, err = ParseArticleStatus("")
	assert.Error(t, err)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ArticleStatus
		allowed  bool
	}{
		{StatusCloud, StatusRiver, true},
		{StatusCloud, StatusOcean, true},
		{StatusRiver, StatusCloud, true},
		{StatusRiver, StatusOcean, true},
		{StatusOcean, StatusCloud, true},
		{StatusOcean, StatusRiver, true},
		{StatusCloud, StatusCloud, false},
		{StatusRiver, StatusRiver, false},
		{ArticleStatus("lake"), StatusCloud, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestSettingsSanitizeClamps(t *testing.T) {
	s := Settings{
		UserID:            "u1",
		ChunkSize:         1,
		ExploreRatio:      2.5,
		FeedBatchSize:     1000,
		CandidatePoolSize: 2000,
		ScoringBatchSize:  0,
		NumFewShot:        500,
	}.Sanitize()

	assert.Equal(t, 50, s.ChunkSize)
	assert.Equal(t, 1.0, s.ExploreRatio)
	assert.Equal(t, 100, s.FeedBatchSize)
	assert.Equal(t, 1000, s.CandidatePoolSize)
	assert.Equal(t, 1, s.ScoringBatchSize)
	assert.Equal(t, 100, s.NumFewShot)
	assert.Equal(t, "llama-3.3-70b", s.ScoringModel)
	assert.Equal(t, "llama-3.3-70b", s.ContextModel)
}

func TestSettingsSanitizeKeepsValid(t *testing.T) {
	s := DefaultSettings("u1")
	sanitized := s.Sanitize()
	assert.Equal(t, s.ChunkSize, sanitized.ChunkSize)
	assert.Equal(t, s.ExploreRatio, sanitized.ExploreRatio)
	assert.Equal(t, s.ScoringModel, sanitized.ScoringModel)
}
