package feed

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rainfeed/backend/internal/scoring"
)

// Selection is a scored chunk chosen for the queue, tagged with how it got
// there: exploit picks are the highest-scored candidates, explore picks are
// drawn uniformly from the remainder.
type Selection struct {
	ChunkID        string
	PredictedScore float64
	WasExplore     bool
}

// Partition splits scored candidates into a batch of exploit and explore
// picks. The exploit share is round((1-exploreRatio)*batchSize), clamped so
// both shares stay within [0, batchSize]. Sorting is stable on (score desc,
// chunk id) so equal scores order deterministically.
func Partition(scores []scoring.Score, batchSize int, exploreRatio float64, rng *rand.Rand) []Selection {
	if batchSize <= 0 || len(scores) == 0 {
		return nil
	}
	if batchSize > len(scores) {
		batchSize = len(scores)
	}

	ranked := make([]scoring.Score, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	exploitCount := int(math.Round((1 - exploreRatio) * float64(batchSize)))
	if exploitCount < 0 {
		exploitCount = 0
	}
	if exploitCount > batchSize {
		exploitCount = batchSize
	}
	exploreCount := batchSize - exploitCount

	rest := ranked[exploitCount:]
	if exploreCount > len(rest) {
		exploreCount = len(rest)
		exploitCount = batchSize - exploreCount
	}

	selections := make([]Selection, 0, batchSize)
	for _, s := range ranked[:exploitCount] {
		selections = append(selections, Selection{
			ChunkID:        s.ID,
			PredictedScore: s.Score,
			WasExplore:     false,
		})
	}

	if exploreCount > 0 {
		picks := rng.Perm(len(rest))[:exploreCount]
		sort.Ints(picks)
		for _, idx := range picks {
			selections = append(selections, Selection{
				ChunkID:        rest[idx].ID,
				PredictedScore: rest[idx].Score,
				WasExplore:     true,
			})
		}
	}

	return selections
}
