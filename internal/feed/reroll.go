package feed

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/logger"
)

type RerollResult struct {
	Success      bool `json:"success"`
	Removed      int  `json:"removed"`
	QueueCleared int  `json:"queueCleared"`
}

// Reroll discards the not-yet-read tail of the feed: unrated log entries past
// the cut point are deleted and the pending queue is emptied, so the next
// read rebuilds from fresh scores. Rated entries are never touched, and the
// position counter keeps moving forward so discarded positions are not
// reissued.
//
// The cut point is the given feed item, or the saved reading position when
// fromFeedItemID is empty. With neither, every unrated entry is removed.
func (r *Reader) Reroll(ctx context.Context, userID, fromFeedItemID string) (*RerollResult, error) {
	var cut *int64

	switch {
	case fromFeedItemID != "":
		anchor, err := r.anchor(ctx, userID, fromFeedItemID)
		if err != nil {
			return nil, err
		}
		cut = &anchor.Position
	default:
		state, err := r.store.FeedState(ctx, userID)
		if err != nil {
			return nil, err
		}
		if state != nil && state.LastSeenFeedItemID != nil {
			last, err := r.store.FeedItemByID(ctx, userID, *state.LastSeenFeedItemID)
			if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
				return nil, err
			}
			if err == nil {
				cut = &last.Position
			}
		}
	}

	queueSize, err := r.store.QueueSize(ctx, userID)
	if err != nil {
		return nil, err
	}

	removed, err := r.store.DeleteUnratedItemsAfter(ctx, userID, cut)
	if err != nil {
		return nil, err
	}
	if err := r.store.ClearQueue(ctx, userID); err != nil {
		return nil, err
	}

	logger.Info("Feed rerolled",
		zap.String("user_id", userID),
		zap.Int("removed", removed),
		zap.Int("queue_cleared", queueSize),
	)
	return &RerollResult{Success: true, Removed: removed, QueueCleared: queueSize}, nil
}
