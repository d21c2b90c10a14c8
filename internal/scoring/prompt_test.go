package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScoresMapsByID(t *testing.T) {
	batch := []Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	content := `{"scores": [{"id": "b", "score": 2.5}, {"id": "a", "score": 4}]}`

	scores, fallbacks := parseScores(content, batch)
	require.Len(t, scores, 3)
	assert.Equal(t, 1, fallbacks)

	byID := make(map[string]float64)
	for _, s := range scores {
		byID[s.ID] = s.Score
	}
	assert.Equal(t, 4.0, byID["a"])
	assert.Equal(t, 2.5, byID["b"])
	assert.Equal(t, FallbackScore, byID["c"])
}

func TestParseScoresClamps(t *testing.T) {
	batch := []Candidate{{ID: "a"}, {ID: "b"}}
	content := `{"scores": [{"id": "a", "score": 9.1}, {"id": "b", "score": -3}]}`

	scores, fallbacks := parseScores(content, batch)
	require.Len(t, scores, 2)
	assert.Zero(t, fallbacks)
	assert.Equal(t, 5.0, scores[0].Score)
	assert.Equal(t, 1.0, scores[1].Score)
}

func TestParseScoresGarbledContent(t *testing.T) {
	batch := []Candidate{{ID: "a"}, {ID: "b"}}

	scores, fallbacks := parseScores("not json at all", batch)
	require.Len(t, scores, 2)
	assert.Equal(t, 2, fallbacks)
	for _, s := range scores {
		assert.Equal(t, FallbackScore, s.Score)
	}
}

func TestBuildFewShotText(t *testing.T) {
	text := buildFewShotText([]Example{
		{Content: "first chunk", Rating: 4},
		{Content: "second chunk", Rating: 1, Annotation: "too dry"},
	})

	assert.Contains(t, text, "Example 1\nRating: 4\nChunk: first chunk")
	assert.Contains(t, text, "Example 2\nRating: 1\nChunk: second chunk\nNote: too dry")
}

func TestBuildFewShotTextEmpty(t *testing.T) {
	assert.Contains(t, buildFewShotText(nil), "No historical ratings")
}
