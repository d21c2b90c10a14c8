package scoring

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rainfeed/backend/internal/metrics"
	"github.com/rainfeed/backend/pkg/circuitbreaker"
	"github.com/rainfeed/backend/pkg/logger"
	"github.com/rainfeed/backend/pkg/retry"
)

// FallbackScore is the neutral midpoint assigned when the scorer fails or
// omits a chunk. It keeps replenish alive through upstream outages.
const FallbackScore = 3.0

type Candidate struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type Example struct {
	Content    string
	Rating     int
	Annotation string
}

type Score struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type Client struct {
	api         *openai.Client
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	timeout     time.Duration
	parallelism int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClient talks to any OpenAI-compatible inference endpoint. The rng seeds
// the cold-start path (no ratings yet) and is injectable for tests.
func NewClient(baseURL, apiKey string, timeout time.Duration, parallelism int, rng *rand.Rand) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	cb := circuitbreaker.New("scorer", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	if parallelism <= 0 {
		parallelism = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Client{
		api:         openai.NewClientWithConfig(config),
		cb:          cb,
		retryConfig: retry.Config{
			MaxAttempts:    2,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
		timeout:     timeout,
		parallelism: parallelism,
		rng:         rng,
	}
}

// ScoreChunks returns a score in [1,5] for every candidate. It never fails:
// without few-shot examples there is no calibration signal, so scores are
// uniform random; upstream errors degrade to the neutral fallback.
func (c *Client) ScoreChunks(ctx context.Context, candidates []Candidate, examples []Example, model string, batchSize int) []Score {
	if len(candidates) == 0 {
		return nil
	}

	if len(examples) == 0 {
		logger.Debug("No rating history, using random scores", zap.Int("candidates", len(candidates)))
		return c.randomScores(candidates)
	}

	if batchSize <= 0 {
		batchSize = len(candidates)
	}

	var batches [][]Candidate
	for i := 0; i < len(candidates); i += batchSize {
		end := i + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[i:end])
	}

	results := make([][]Score, len(batches))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(c.parallelism)
	for i, batch := range batches {
		i, batch := i, batch
		group.Go(func() error {
			results[i] = c.scoreBatch(gctx, batch, examples, model)
			return nil
		})
	}
	group.Wait()

	scores := make([]Score, 0, len(candidates))
	for _, batchScores := range results {
		scores = append(scores, batchScores...)
	}
	return scores
}

func (c *Client) scoreBatch(ctx context.Context, batch []Candidate, examples []Example, model string) []Score {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var content string
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       model,
				Temperature: 0,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: scoringSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: buildScoringPrompt(batch, examples)},
				},
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
			})
			if err != nil {
				return fmt.Errorf("failed to score batch: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("scorer returned no choices")
			}
			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		logger.Warn("Scoring batch failed, assigning fallback scores",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		metrics.ScoringBatches.WithLabelValues("error").Inc()
		metrics.ScoringFallbacks.Add(float64(len(batch)))
		return fallbackScores(batch)
	}

	scores, fallbacks := parseScores(content, batch)
	metrics.ScoringBatches.WithLabelValues("ok").Inc()
	if fallbacks > 0 {
		metrics.ScoringFallbacks.Add(float64(fallbacks))
	}
	return scores
}

func (c *Client) randomScores(candidates []Candidate) []Score {
	c.mu.Lock()
	defer c.mu.Unlock()

	scores := make([]Score, 0, len(candidates))
	for _, candidate := range candidates {
		scores = append(scores, Score{ID: candidate.ID, Score: c.rng.Float64()*4 + 1})
	}
	return scores
}

func fallbackScores(candidates []Candidate) []Score {
	scores := make([]Score, 0, len(candidates))
	for _, candidate := range candidates {
		scores = append(scores, Score{ID: candidate.ID, Score: FallbackScore})
	}
	return scores
}
