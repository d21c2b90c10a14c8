package accuracy

import (
	"context"
	"math"
	"sort"

	"github.com/rainfeed/backend/internal/storage/models"
	"github.com/rainfeed/backend/internal/storage/sqlite"
)

// Summary is the mean absolute error between predicted scores and the
// ratings the user actually gave. Ratings without a predicted score (rated
// outside the feed, or predictions lost to a rewrite) count in Total but not
// in the error.
type Summary struct {
	Total    int      `json:"total"`
	Scored   int      `json:"scored"`
	MAE      *float64 `json:"mae"`
	MeanDiff *float64 `json:"meanDiff"`
}

type DailySummary struct {
	Date    string  `json:"date"`
	Overall Summary `json:"overall"`
	Explore Summary `json:"explore"`
	Exploit Summary `json:"exploit"`
}

type Report struct {
	Overall Summary        `json:"overall"`
	Explore Summary        `json:"explore"`
	Exploit Summary        `json:"exploit"`
	Daily   []DailySummary `json:"daily"`
}

// Reporter computes how well the scorer predicts the user's taste, split by
// explore and exploit picks and bucketed per UTC day.
type Reporter struct {
	store *sqlite.Store
}

func NewReporter(store *sqlite.Store) *Reporter {
	return &Reporter{store: store}
}

func (r *Reporter) Report(ctx context.Context, userID string) (*Report, error) {
	ratings, err := r.store.AllRatings(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Overall: summarize(ratings, nil),
		Explore: summarize(ratings, boolPtr(true)),
		Exploit: summarize(ratings, boolPtr(false)),
		Daily:   []DailySummary{},
	}

	byDay := make(map[string][]models.Rating)
	for _, rating := range ratings {
		day := rating.CreatedAt.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], rating)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		dayRatings := byDay[day]
		report.Daily = append(report.Daily, DailySummary{
			Date:    day,
			Overall: summarize(dayRatings, nil),
			Explore: summarize(dayRatings, boolPtr(true)),
			Exploit: summarize(dayRatings, boolPtr(false)),
		})
	}
	return report, nil
}

// summarize computes MAE and mean signed difference (predicted minus actual)
// over ratings matching the explore filter. A nil filter takes everything.
func summarize(ratings []models.Rating, explore *bool) Summary {
	var summary Summary
	var absSum, diffSum float64

	for _, rating := range ratings {
		if explore != nil && rating.WasExplore != *explore {
			continue
		}
		summary.Total++
		if rating.PredictedScore == nil {
			continue
		}
		summary.Scored++
		diff := *rating.PredictedScore - float64(rating.Rating)
		absSum += math.Abs(diff)
		diffSum += diff
	}

	if summary.Scored > 0 {
		mae := absSum / float64(summary.Scored)
		meanDiff := diffSum / float64(summary.Scored)
		summary.MAE = &mae
		summary.MeanDiff = &meanDiff
	}
	return summary
}

func boolPtr(b bool) *bool { return &b }
