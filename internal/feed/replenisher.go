package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rainfeed/backend/internal/metrics"
	"github.com/rainfeed/backend/internal/scoring"
	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

// Replenish outcome reasons when nothing was added.
const (
	ReasonAlreadySufficient = "already_sufficient"
	ReasonNoActiveSources   = "no_active_sources"
	ReasonNoCandidates      = "no_candidates"
)

type ReplenishOutcome struct {
	Replenished bool   `json:"replenished"`
	Added       int    `json:"added"`
	QueueSize   int    `json:"queueSize"`
	Reason      string `json:"reason,omitempty"`
}

// Replenisher refills a user's feed queue: select candidates, score them
// against the user's recent ratings, partition into exploit and explore
// picks, enqueue. Concurrent calls for the same user collapse into one run
// via singleflight; both callers get the shared outcome.
type Replenisher struct {
	store    *sqlite.Store
	scorer   *scoring.Client
	selector *Selector
	group    singleflight.Group

	mu  sync.Mutex
	rng *rand.Rand
}

func NewReplenisher(store *sqlite.Store, scorer *scoring.Client, selector *Selector, rng *rand.Rand) *Replenisher {
	return &Replenisher{
		store:    store,
		scorer:   scorer,
		selector: selector,
		rng:      rng,
	}
}

func (r *Replenisher) Replenish(ctx context.Context, userID string) (ReplenishOutcome, error) {
	v, err, shared := r.group.Do(userID, func() (interface{}, error) {
		return r.replenish(ctx, userID)
	})
	if err != nil {
		return ReplenishOutcome{}, err
	}
	if shared {
		logger.Debug("Replenish deduplicated", zap.String("user_id", userID))
	}
	return v.(ReplenishOutcome), nil
}

func (r *Replenisher) replenish(ctx context.Context, userID string) (ReplenishOutcome, error) {
	start := time.Now()
	defer func() {
		metrics.ReplenishDuration.Observe(time.Since(start).Seconds())
	}()

	settings, err := r.store.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return ReplenishOutcome{}, err
	}

	queueSize, err := r.store.QueueSize(ctx, userID)
	if err != nil {
		return ReplenishOutcome{}, err
	}
	if queueSize >= settings.FeedBatchSize {
		metrics.ReplenishTotal.WithLabelValues(ReasonAlreadySufficient).Inc()
		return ReplenishOutcome{QueueSize: queueSize, Reason: ReasonAlreadySufficient}, nil
	}

	candidates, err := r.selector.Select(ctx, userID, settings.CandidatePoolSize)
	if err != nil {
		return ReplenishOutcome{}, err
	}
	if len(candidates) == 0 {
		reason := ReasonNoCandidates
		active, err := r.store.ActiveArticleIDs(ctx, userID)
		if err != nil {
			return ReplenishOutcome{}, err
		}
		if len(active) == 0 {
			reason = ReasonNoActiveSources
		}
		metrics.ReplenishTotal.WithLabelValues(reason).Inc()
		return ReplenishOutcome{QueueSize: queueSize, Reason: reason}, nil
	}

	examples, err := r.fewShotExamples(ctx, userID, settings.NumFewShot)
	if err != nil {
		return ReplenishOutcome{}, err
	}

	scorable := make([]scoring.Candidate, 0, len(candidates))
	for _, chunk := range candidates {
		scorable = append(scorable, scoring.Candidate{ID: chunk.ID, Content: chunk.Content})
	}
	scores := r.scorer.ScoreChunks(ctx, scorable, examples, settings.ScoringModel, settings.ScoringBatchSize)

	r.mu.Lock()
	selections := Partition(scores, settings.FeedBatchSize, settings.ExploreRatio, r.rng)
	r.mu.Unlock()

	entries := make([]models.QueueEntry, 0, len(selections))
	for _, sel := range selections {
		entries = append(entries, models.QueueEntry{
			ChunkID:        sel.ChunkID,
			UserID:         userID,
			PredictedScore: sel.PredictedScore,
			WasExplore:     sel.WasExplore,
		})
	}

	added, err := r.store.EnqueueChunks(ctx, entries)
	if err != nil {
		return ReplenishOutcome{}, err
	}

	queueSize, err = r.store.QueueSize(ctx, userID)
	if err != nil {
		return ReplenishOutcome{}, err
	}

	metrics.ReplenishTotal.WithLabelValues("replenished").Inc()
	logger.Info("Feed queue replenished",
		zap.String("user_id", userID),
		zap.Int("candidates", len(candidates)),
		zap.Int("added", added),
		zap.Int("queue_size", queueSize),
	)
	return ReplenishOutcome{Replenished: true, Added: added, QueueSize: queueSize}, nil
}

// fewShotExamples turns the user's newest ratings into scorer calibration
// examples. Ratings whose chunk text is gone are skipped.
func (r *Replenisher) fewShotExamples(ctx context.Context, userID string, limit int) ([]scoring.Example, error) {
	ratings, err := r.store.RecentRatings(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(ratings) == 0 {
		return nil, nil
	}

	chunkIDs := make([]string, 0, len(ratings))
	for _, rating := range ratings {
		chunkIDs = append(chunkIDs, rating.ChunkID)
	}
	chunks, err := r.store.ChunksByIDs(ctx, userID, chunkIDs)
	if err != nil {
		return nil, err
	}

	examples := make([]scoring.Example, 0, len(ratings))
	for _, rating := range ratings {
		chunk, ok := chunks[rating.ChunkID]
		if !ok {
			continue
		}
		examples = append(examples, scoring.Example{
			Content:    chunk.Content,
			Rating:     rating.Rating,
			Annotation: rating.Annotation,
		})
	}
	return examples, nil
}
