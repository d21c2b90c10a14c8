package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReplenishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rainfeed_replenish_duration_seconds",
			Help:    "Feed replenish duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ReplenishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainfeed_replenish_total",
			Help: "Total replenish operations by outcome",
		},
		[]string{"outcome"},
	)

	ScoringBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainfeed_scoring_batches_total",
			Help: "Scoring batches sent to the relevance model",
		},
		[]string{"status"},
	)

	ScoringFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rainfeed_scoring_fallbacks_total",
			Help: "Chunks assigned the neutral fallback score",
		},
	)

	ItemsPromoted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rainfeed_feed_items_promoted_total",
			Help: "Queue entries promoted into the feed log",
		},
	)

	RatingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainfeed_ratings_total",
			Help: "Chunk ratings recorded",
		},
		[]string{"was_explore"},
	)

	PredictionError = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rainfeed_prediction_abs_error",
			Help:    "Absolute error between predicted score and rating",
			Buckets: []float64{0, 0.5, 1, 1.5, 2, 3, 4},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainfeed_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainfeed_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ArticlesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rainfeed_articles_ingested_total",
			Help: "Articles fetched and chunked",
		},
	)

	ChunksIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rainfeed_chunks_ingested_total",
			Help: "Chunks produced by ingestion",
		},
	)
)

func Init() {
	prometheus.MustRegister(ReplenishDuration)
	prometheus.MustRegister(ReplenishTotal)
	prometheus.MustRegister(ScoringBatches)
	prometheus.MustRegister(ScoringFallbacks)
	prometheus.MustRegister(ItemsPromoted)
	prometheus.MustRegister(RatingsTotal)
	prometheus.MustRegister(PredictionError)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ArticlesIngested)
	prometheus.MustRegister(ChunksIngested)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
