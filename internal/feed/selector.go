package feed

import (
	"context"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

const minCandidateWindow = 300

// Selector picks unseen chunks from the user's active sources. It pulls a
// bounded window of the newest chunks, drops anything already shown, queued,
// or rated, then shuffles so the pool is not biased toward the newest text.
type Selector struct {
	store *sqlite.Store

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(store *sqlite.Store, rng *rand.Rand) *Selector {
	return &Selector{store: store, rng: rng}
}

// Select returns up to poolSize candidate chunks. An empty result is a
// normal "nothing to do" outcome, not an error.
func (s *Selector) Select(ctx context.Context, userID string, poolSize int) ([]models.Chunk, error) {
	articleIDs, err := s.store.ActiveArticleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(articleIDs) == 0 {
		return nil, nil
	}

	excluded, err := s.store.ExcludedChunkIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	window := poolSize * 4
	if window < minCandidateWindow {
		window = minCandidateWindow
	}

	recent, err := s.store.RecentChunks(ctx, userID, articleIDs, window)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Chunk, 0, len(recent))
	for _, chunk := range recent {
		if _, seen := excluded[chunk.ID]; !seen {
			candidates = append(candidates, chunk)
		}
	}

	s.mu.Lock()
	s.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	s.mu.Unlock()

	if len(candidates) > poolSize {
		candidates = candidates[:poolSize]
	}

	logger.Debug("Candidates selected",
		zap.String("user_id", userID),
		zap.Int("window", len(recent)),
		zap.Int("selected", len(candidates)),
	)
	return candidates, nil
}
