package scoring

import (
	"encoding/json"
	"fmt"
	"strings"
)

const scoringSystemPrompt = `You are a recommendation scorer. Score each chunk from 1 to 5 by how much this reader will want to read it, judging from their historical ratings. Return only JSON of the form {"scores": [{"id": "...", "score": 1-5}]} with one entry per chunk.`

func buildScoringPrompt(batch []Candidate, examples []Example) string {
	payload, _ := json.Marshal(batch)
	return fmt.Sprintf("Historical examples:\n%s\n\nScore these chunks:\n%s",
		buildFewShotText(examples), payload)
}

func buildFewShotText(examples []Example) string {
	if len(examples) == 0 {
		return "No historical ratings available yet. Use your best estimate."
	}

	var sb strings.Builder
	for i, example := range examples {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Example %d\nRating: %d\nChunk: %s", i+1, example.Rating, example.Content)
		if example.Annotation != "" {
			fmt.Fprintf(&sb, "\nNote: %s", example.Annotation)
		}
	}
	return sb.String()
}

// parseScores maps the model output back onto the batch. Every candidate
// gets exactly one score: chunks the model skipped or garbled get the
// fallback, and everything is clamped into [1,5]. Returns the score list and
// how many members needed the fallback.
func parseScores(content string, batch []Candidate) ([]Score, int) {
	var parsed struct {
		Scores []Score `json:"scores"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return fallbackScores(batch), len(batch)
	}

	byID := make(map[string]float64, len(parsed.Scores))
	for _, score := range parsed.Scores {
		byID[score.ID] = score.Score
	}

	fallbacks := 0
	scores := make([]Score, 0, len(batch))
	for _, candidate := range batch {
		value, ok := byID[candidate.ID]
		if !ok {
			value = FallbackScore
			fallbacks++
		}
		scores = append(scores, Score{ID: candidate.ID, Score: clampScore(value)})
	}
	return scores, fallbacks
}

func clampScore(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}
